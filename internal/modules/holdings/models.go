package holdings

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the current position in one ticker, derived from the transaction
// log. It is recomputed on demand and never mutated independently.
type Holding struct {
	Ticker         string          `json:"ticker"`
	Quantity       decimal.Decimal `json:"quantity"`
	AvgCost        decimal.Decimal `json:"avg_cost"`
	CostBasis      decimal.Decimal `json:"cost_basis"`
	Currency       string          `json:"currency"`
	DividendIncome decimal.Decimal `json:"dividend_income"`
	FeesPaid       decimal.Decimal `json:"fees_paid"`
	FirstAcquired  time.Time       `json:"first_acquired"`
	OpenLots       int             `json:"open_lots"`
}

// InsufficientLotsError reports a SELL that exceeds previously bought and
// unconsumed quantity: the transaction history is internally inconsistent.
type InsufficientLotsError struct {
	Ticker    string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("insufficient lots for %s: sell of %s exceeds available %s",
		e.Ticker, e.Requested.String(), e.Available.String())
}

// TickerError carries a per-ticker integrity failure. One bad ticker aborts
// only its own computation, never the rest of the portfolio.
type TickerError struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}
