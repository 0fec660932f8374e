package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.InDelta(t, 10.0, Mean([]float64{5, 10, 15}), 1e-9)
	assert.Equal(t, 0.0, Mean(nil))
}

func TestStdDev(t *testing.T) {
	// Population stddev of [2,4,4,4,5,5,7,9] is exactly 2
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.0, StdDev(data), 1e-9)

	assert.Equal(t, 0.0, StdDev([]float64{42}), "single sample has no dispersion")
	assert.Equal(t, 0.0, StdDev(nil))
}

func TestMedian(t *testing.T) {
	assert.InDelta(t, 3.0, Median([]float64{1, 3, 5}), 1e-9)
	assert.InDelta(t, 2.5, Median([]float64{4, 1, 3, 2}), 1e-9, "even count interpolates")
	assert.Equal(t, 0.0, Median(nil))
}

func TestPercentile(t *testing.T) {
	data := []float64{10, 20, 30, 40}

	assert.InDelta(t, 10.0, Percentile(data, 0), 1e-9)
	assert.InDelta(t, 40.0, Percentile(data, 100), 1e-9)
	assert.InDelta(t, 25.0, Percentile(data, 50), 1e-9)
	assert.InDelta(t, 17.5, Percentile(data, 25), 1e-9, "linear interpolation between ranks")
}

func TestMinMax(t *testing.T) {
	data := []float64{3, -1, 7, 0}
	assert.Equal(t, -1.0, Min(data))
	assert.Equal(t, 7.0, Max(data))
	assert.Equal(t, 0.0, Min(nil))
	assert.Equal(t, 0.0, Max(nil))
}

func TestHerfindahlIndex(t *testing.T) {
	// Single position portfolio scores 100
	assert.InDelta(t, 100.0, HerfindahlIndex([]float64{100}), 1e-9)

	// Four equal positions: 4 * 25^2 / 100 = 25
	assert.InDelta(t, 25.0, HerfindahlIndex([]float64{25, 25, 25, 25}), 1e-9)

	assert.Equal(t, 0.0, HerfindahlIndex(nil))
}
