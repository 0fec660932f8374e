package formulas

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the population standard deviation of a slice of float64 values.
// Population (not sample) deviation matches the cross-sectional dispersion the
// stats module reports: the holdings ARE the whole population, not a sample.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.PopStdDev(data, nil)
}

// Median returns the middle value of the data set.
func Median(data []float64) float64 {
	return Percentile(data, 50)
}

// Percentile returns the p-th percentile (0-100) using linear interpolation,
// matching numpy's default behaviour.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(rank)
	frac := rank - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// Min returns the smallest value in the data set.
func Min(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	m := data[0]
	for _, v := range data[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest value in the data set.
func Max(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	m := data[0]
	for _, v := range data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// HerfindahlIndex computes the Herfindahl-Hirschman concentration index over
// position weights expressed as percentages (0-100). The result is divided by
// 100 so a single-position portfolio scores 100.
func HerfindahlIndex(weightsPct []float64) float64 {
	var sum float64
	for _, w := range weightsPct {
		sum += w * w
	}
	return sum / 100
}
