package stats

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// Thresholds holds every bucketing constant the stats module uses. They are
// enumerated here (and overridable via TOML) rather than scattered as magic
// numbers through the scoring code.
type Thresholds struct {
	Risk            RiskThresholds            `toml:"risk"`
	Concentration   ConcentrationThresholds   `toml:"concentration"`
	Diversification DiversificationThresholds `toml:"diversification"`
}

// RiskThresholds buckets cross-sectional return dispersion into a risk level.
type RiskThresholds struct {
	MediumDispersion float64 `toml:"medium_dispersion"`
	HighDispersion   float64 `toml:"high_dispersion"`
}

// ConcentrationThresholds drives both the concentration level (from HHI alone)
// and the concentration risk (from HHI and the largest position's weight).
type ConcentrationThresholds struct {
	ModerateHHI float64 `toml:"moderate_hhi"`
	HighHHI     float64 `toml:"high_hhi"`

	RiskMediumHHI       float64 `toml:"risk_medium_hhi"`
	RiskMediumTopWeight float64 `toml:"risk_medium_top_weight"`
	RiskHighHHI         float64 `toml:"risk_high_hhi"`
	RiskHighTopWeight   float64 `toml:"risk_high_top_weight"`
}

// DiversificationThresholds parameterizes the 0-10 diversification score.
// Small portfolios score linearly per holding; beyond SmallPortfolioSize the
// score grows slowly and saturates at MaxScore.
type DiversificationThresholds struct {
	SmallPortfolioSize int     `toml:"small_portfolio_size"`
	SmallPerHolding    float64 `toml:"small_per_holding"`
	BaseScore          float64 `toml:"base_score"`
	PerExtraHolding    float64 `toml:"per_extra_holding"`
	MaxScore           float64 `toml:"max_score"`
}

// DefaultThresholds returns the compiled-in threshold tables.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Risk: RiskThresholds{
			MediumDispersion: 10,
			HighDispersion:   20,
		},
		Concentration: ConcentrationThresholds{
			ModerateHHI:         10,
			HighHHI:             25,
			RiskMediumHHI:       15,
			RiskMediumTopWeight: 20,
			RiskHighHHI:         25,
			RiskHighTopWeight:   30,
		},
		Diversification: DiversificationThresholds{
			SmallPortfolioSize: 10,
			SmallPerHolding:    0.5,
			BaseScore:          5,
			PerExtraHolding:    0.2,
			MaxScore:           8.5,
		},
	}
}

// LoadThresholds returns the compiled-in defaults when path is empty or the
// file does not exist. A file that exists but fails to parse or validate is an
// error; the caller treats that as fatal at startup.
func LoadThresholds(path string, log zerolog.Logger) (Thresholds, error) {
	thresholds := DefaultThresholds()

	if path == "" {
		return thresholds, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("Thresholds file not found, using defaults")
		return thresholds, nil
	}

	if _, err := toml.DecodeFile(path, &thresholds); err != nil {
		return Thresholds{}, fmt.Errorf("failed to parse thresholds file %s: %w", path, err)
	}
	if err := thresholds.Validate(); err != nil {
		return Thresholds{}, fmt.Errorf("invalid thresholds in %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Loaded stats thresholds")
	return thresholds, nil
}

// Validate checks that the threshold tables are internally consistent.
func (t Thresholds) Validate() error {
	if t.Risk.MediumDispersion <= 0 || t.Risk.HighDispersion <= t.Risk.MediumDispersion {
		return fmt.Errorf("risk dispersion thresholds must satisfy 0 < medium < high, got medium=%.2f high=%.2f",
			t.Risk.MediumDispersion, t.Risk.HighDispersion)
	}
	if t.Concentration.ModerateHHI <= 0 || t.Concentration.HighHHI <= t.Concentration.ModerateHHI {
		return fmt.Errorf("concentration HHI thresholds must satisfy 0 < moderate < high, got moderate=%.2f high=%.2f",
			t.Concentration.ModerateHHI, t.Concentration.HighHHI)
	}
	if t.Concentration.RiskMediumHHI <= 0 || t.Concentration.RiskHighHHI <= t.Concentration.RiskMediumHHI {
		return fmt.Errorf("concentration risk HHI thresholds must satisfy 0 < medium < high, got medium=%.2f high=%.2f",
			t.Concentration.RiskMediumHHI, t.Concentration.RiskHighHHI)
	}
	if t.Concentration.RiskMediumTopWeight <= 0 || t.Concentration.RiskHighTopWeight <= t.Concentration.RiskMediumTopWeight {
		return fmt.Errorf("concentration risk top-weight thresholds must satisfy 0 < medium < high, got medium=%.2f high=%.2f",
			t.Concentration.RiskMediumTopWeight, t.Concentration.RiskHighTopWeight)
	}
	if t.Diversification.SmallPortfolioSize <= 0 {
		return fmt.Errorf("diversification small_portfolio_size must be positive, got %d",
			t.Diversification.SmallPortfolioSize)
	}
	if t.Diversification.SmallPerHolding <= 0 || t.Diversification.PerExtraHolding <= 0 {
		return fmt.Errorf("diversification per-holding increments must be positive")
	}
	if t.Diversification.MaxScore < t.Diversification.BaseScore {
		return fmt.Errorf("diversification max_score %.2f must not be below base_score %.2f",
			t.Diversification.MaxScore, t.Diversification.BaseScore)
	}
	return nil
}
