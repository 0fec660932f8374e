package stats

// Labels produced by threshold bucketing. The label sets are small and fixed;
// clients switch on them directly.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"

	ConcentrationDiversified  = "diversified"
	ConcentrationModerate     = "moderate"
	ConcentrationConcentrated = "concentrated"
)

// PortfolioStats is the cross-sectional statistics report. The return figures
// describe the distribution of per-holding return percentages at a single
// point in time. ReturnDispersion is the standard deviation of that
// distribution, which is not a time-series volatility and is deliberately not
// named one.
type PortfolioStats struct {
	SampleSize    int `json:"sample_size"`
	ExcludedCount int `json:"excluded_count"`

	MeanReturn       float64 `json:"mean_return"`
	MedianReturn     float64 `json:"median_return"`
	MinReturn        float64 `json:"min_return"`
	MaxReturn        float64 `json:"max_return"`
	ReturnDispersion float64 `json:"return_dispersion"`
	WinRate          float64 `json:"win_rate"`

	TopPositionTicker string  `json:"top_position_ticker"`
	TopPositionWeight float64 `json:"top_position_weight"`
	Top3Weight        float64 `json:"top_3_weight"`
	HHI               float64 `json:"hhi"`

	RiskLevel            string  `json:"risk_level"`
	ConcentrationLevel   string  `json:"concentration_level"`
	ConcentrationRisk    string  `json:"concentration_risk"`
	DiversificationScore float64 `json:"diversification_score"`
}
