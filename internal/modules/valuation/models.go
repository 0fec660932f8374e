package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/mkarlis/folio/internal/modules/holdings"
	"github.com/mkarlis/folio/internal/modules/marketdata"
)

// HoldingValuation combines a holding with its resolved price. The nilable
// fields stay nil when no price could be resolved: "no data" is never
// collapsed into "zero return".
type HoldingValuation struct {
	holdings.Holding

	CurrentPrice     *decimal.Decimal       `json:"current_price"`
	CurrentValue     *decimal.Decimal       `json:"current_value"`
	UnrealizedReturn *decimal.Decimal       `json:"unrealized_return"`
	ReturnPercentage *decimal.Decimal       `json:"return_percentage"`
	PriceSource      marketdata.PriceSource `json:"price_source,omitempty"`
	PriceStaleness   string                 `json:"price_staleness,omitempty"`
	PriceAgeSeconds  *float64               `json:"price_age_seconds,omitempty"`
}

// Priced reports whether a price was resolved for this holding.
func (v *HoldingValuation) Priced() bool {
	return v.CurrentValue != nil
}

// PortfolioValuation is the aggregate view. Totals cover only holdings with a
// resolved price; HoldingsWithoutData says how much of the portfolio the
// totals actually describe.
type PortfolioValuation struct {
	Holdings []HoldingValuation `json:"holdings"`

	TotalCostBasis      decimal.Decimal  `json:"total_cost_basis"`
	TotalCurrentValue   *decimal.Decimal `json:"total_current_value"`
	TotalReturn         *decimal.Decimal `json:"total_return"`
	ReturnPercentage    *decimal.Decimal `json:"return_percentage"`
	TotalDividendIncome decimal.Decimal  `json:"total_dividend_income"`

	HoldingsWithData    int `json:"holdings_with_data"`
	HoldingsWithoutData int `json:"holdings_without_data"`

	IntegrityErrors []holdings.TickerError `json:"integrity_errors"`
}
