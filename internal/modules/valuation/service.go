package valuation

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mkarlis/folio/internal/modules/holdings"
	"github.com/mkarlis/folio/internal/modules/marketdata"
)

// priceResolver is the slice of the market data module this service needs
type priceResolver interface {
	Resolve(ctx context.Context, userID, ticker string) (*marketdata.PriceRecord, error)
}

// Service combines holdings with resolved prices into valuations.
type Service struct {
	holdingsSvc *holdings.Service
	resolver    priceResolver
	log         zerolog.Logger
}

// NewService creates a new valuation service
func NewService(holdingsSvc *holdings.Service, resolver priceResolver, log zerolog.Logger) *Service {
	return &Service{
		holdingsSvc: holdingsSvc,
		resolver:    resolver,
		log:         log.With().Str("service", "valuation").Logger(),
	}
}

// ValuePortfolio computes the full portfolio valuation for a user. Unresolved
// prices leave the affected holding's value fields nil and exclude it from the
// aggregate totals; integrity errors from the accounting engine are carried
// through per ticker.
func (s *Service) ValuePortfolio(ctx context.Context, userID string) (*PortfolioValuation, error) {
	hs, integrity, err := s.holdingsSvc.ComputeAll(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute holdings: %w", err)
	}

	result := &PortfolioValuation{
		Holdings:        make([]HoldingValuation, 0, len(hs)),
		IntegrityErrors: integrity,
	}
	if result.IntegrityErrors == nil {
		result.IntegrityErrors = []holdings.TickerError{}
	}

	totalValue := decimal.Zero

	for _, h := range hs {
		v := HoldingValuation{Holding: h}
		result.TotalCostBasis = result.TotalCostBasis.Add(h.CostBasis)
		result.TotalDividendIncome = result.TotalDividendIncome.Add(h.DividendIncome)

		rec, err := s.resolver.Resolve(ctx, userID, h.Ticker)
		if err != nil {
			return nil, fmt.Errorf("price resolution failed for %s: %w", h.Ticker, err)
		}

		if rec != nil {
			s.applyPrice(&v, rec)
			totalValue = totalValue.Add(*v.CurrentValue)
			result.HoldingsWithData++
		} else {
			result.HoldingsWithoutData++
		}

		result.Holdings = append(result.Holdings, v)
	}

	if result.HoldingsWithData > 0 {
		result.TotalCurrentValue = &totalValue

		pricedCost := decimal.Zero
		for _, v := range result.Holdings {
			if v.Priced() {
				pricedCost = pricedCost.Add(v.CostBasis)
			}
		}

		totalReturn := totalValue.Sub(pricedCost)
		result.TotalReturn = &totalReturn

		if pricedCost.IsPositive() {
			pct := totalReturn.Div(pricedCost).Mul(decimal.NewFromInt(100))
			result.ReturnPercentage = &pct
		}
	}

	// Largest positions first; unpriced holdings sort last
	sort.SliceStable(result.Holdings, func(i, j int) bool {
		vi, vj := result.Holdings[i], result.Holdings[j]
		switch {
		case vi.Priced() && !vj.Priced():
			return true
		case !vi.Priced() && vj.Priced():
			return false
		case !vi.Priced():
			return vi.CostBasis.GreaterThan(vj.CostBasis)
		default:
			return vi.CurrentValue.GreaterThan(*vj.CurrentValue)
		}
	})

	return result, nil
}

// PricedHoldings filters a valuation down to holdings with resolved prices;
// the stats module works over this sample.
func PricedHoldings(pv *PortfolioValuation) []HoldingValuation {
	return lo.Filter(pv.Holdings, func(v HoldingValuation, _ int) bool {
		return v.Priced()
	})
}

func (s *Service) applyPrice(v *HoldingValuation, rec *marketdata.PriceRecord) {
	price := rec.Price
	value := v.Quantity.Mul(price)
	ret := value.Sub(v.CostBasis)

	v.CurrentPrice = &price
	v.CurrentValue = &value
	v.UnrealizedReturn = &ret
	v.PriceSource = rec.Source
	v.PriceStaleness = rec.Staleness()

	age := rec.Age.Seconds()
	v.PriceAgeSeconds = &age

	// Return percentage is undefined on a zero cost basis
	if v.CostBasis.IsPositive() {
		pct := ret.Div(v.CostBasis).Mul(decimal.NewFromInt(100))
		v.ReturnPercentage = &pct
	}
}
