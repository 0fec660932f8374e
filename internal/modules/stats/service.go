package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/mkarlis/folio/internal/modules/valuation"
	"github.com/mkarlis/folio/pkg/formulas"
)

// portfolioValuer is the slice of the valuation module this service needs
type portfolioValuer interface {
	ValuePortfolio(ctx context.Context, userID string) (*valuation.PortfolioValuation, error)
}

// Service computes cross-sectional portfolio statistics over priced holdings.
type Service struct {
	valuer     portfolioValuer
	thresholds Thresholds
	log        zerolog.Logger
}

// NewService creates a new stats service
func NewService(valuer portfolioValuer, thresholds Thresholds, log zerolog.Logger) *Service {
	return &Service{
		valuer:     valuer,
		thresholds: thresholds,
		log:        log.With().Str("service", "stats").Logger(),
	}
}

// ComputeStats values the portfolio and derives the statistics report.
// Holdings without a resolved price are excluded from the sample and counted
// in ExcludedCount so the caller knows how much of the portfolio the report
// actually describes.
func (s *Service) ComputeStats(ctx context.Context, userID string) (*PortfolioStats, error) {
	pv, err := s.valuer.ValuePortfolio(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to value portfolio: %w", err)
	}
	return s.Derive(pv), nil
}

// Derive computes the report from an existing valuation.
func (s *Service) Derive(pv *valuation.PortfolioValuation) *PortfolioStats {
	priced := valuation.PricedHoldings(pv)

	result := &PortfolioStats{
		SampleSize:    len(priced),
		ExcludedCount: len(pv.Holdings) - len(priced),
	}
	if len(priced) == 0 {
		s.log.Debug().Int("excluded", result.ExcludedCount).Msg("No priced holdings, stats skipped")
		return result
	}

	// Return sample: holdings where a return percentage is defined. A zero
	// cost basis leaves it undefined, so such holdings contribute to the
	// weight sample below but not here.
	returns := lo.FilterMap(priced, func(v valuation.HoldingValuation, _ int) (float64, bool) {
		if v.ReturnPercentage == nil {
			return 0, false
		}
		return v.ReturnPercentage.InexactFloat64(), true
	})

	if len(returns) > 0 {
		result.MeanReturn = formulas.Mean(returns)
		result.MedianReturn = formulas.Median(returns)
		result.MinReturn = formulas.Min(returns)
		result.MaxReturn = formulas.Max(returns)
		result.ReturnDispersion = formulas.StdDev(returns)

		winners := lo.CountBy(returns, func(r float64) bool { return r > 0 })
		result.WinRate = float64(winners) / float64(len(returns))
	}

	s.applyWeights(result, priced)

	result.RiskLevel = s.riskLevel(result.ReturnDispersion)
	result.ConcentrationLevel = s.concentrationLevel(result.HHI)
	result.ConcentrationRisk = s.concentrationRisk(result.HHI, result.TopPositionWeight)
	result.DiversificationScore = s.diversificationScore(len(priced))

	return result
}

// applyWeights fills the concentration fields from current-value weights.
func (s *Service) applyWeights(result *PortfolioStats, priced []valuation.HoldingValuation) {
	type weighted struct {
		ticker string
		weight float64
	}

	var total float64
	for _, v := range priced {
		total += v.CurrentValue.InexactFloat64()
	}
	if total <= 0 {
		return
	}

	weights := make([]weighted, 0, len(priced))
	for _, v := range priced {
		weights = append(weights, weighted{
			ticker: v.Ticker,
			weight: v.CurrentValue.InexactFloat64() / total * 100,
		})
	}
	sort.Slice(weights, func(i, j int) bool { return weights[i].weight > weights[j].weight })

	result.TopPositionTicker = weights[0].ticker
	result.TopPositionWeight = weights[0].weight
	for i, w := range weights {
		if i >= 3 {
			break
		}
		result.Top3Weight += w.weight
	}

	pcts := lo.Map(weights, func(w weighted, _ int) float64 { return w.weight })
	result.HHI = formulas.HerfindahlIndex(pcts)
}

func (s *Service) riskLevel(dispersion float64) string {
	switch {
	case dispersion < s.thresholds.Risk.MediumDispersion:
		return RiskLow
	case dispersion < s.thresholds.Risk.HighDispersion:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func (s *Service) concentrationLevel(hhi float64) string {
	switch {
	case hhi < s.thresholds.Concentration.ModerateHHI:
		return ConcentrationDiversified
	case hhi < s.thresholds.Concentration.HighHHI:
		return ConcentrationModerate
	default:
		return ConcentrationConcentrated
	}
}

func (s *Service) concentrationRisk(hhi, topWeight float64) string {
	c := s.thresholds.Concentration
	switch {
	case hhi > c.RiskHighHHI || topWeight > c.RiskHighTopWeight:
		return RiskHigh
	case hhi > c.RiskMediumHHI || topWeight > c.RiskMediumTopWeight:
		return RiskMedium
	default:
		return RiskLow
	}
}

// diversificationScore maps holding count to a 0-10 score. Small portfolios
// score linearly; past the small-portfolio size the score saturates.
func (s *Service) diversificationScore(n int) float64 {
	d := s.thresholds.Diversification
	if n < d.SmallPortfolioSize {
		return float64(n) * d.SmallPerHolding
	}
	score := d.BaseScore + float64(n-d.SmallPortfolioSize)*d.PerExtraHolding
	if score > d.MaxScore {
		return d.MaxScore
	}
	return score
}
