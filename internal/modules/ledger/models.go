package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates the kinds of ledger entries
type TransactionType string

const (
	TypeBuy      TransactionType = "BUY"
	TypeSell     TransactionType = "SELL"
	TypeDividend TransactionType = "DIVIDEND"
	TypeFee      TransactionType = "FEE"
)

// Transaction is a single immutable ledger entry. Corrections are new
// transactions, never edits in place.
type Transaction struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"user_id"`
	Ticker    string          `json:"ticker"`
	Type      TransactionType `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fees      decimal.Decimal `json:"fees"`
	TradeDate time.Time       `json:"trade_date"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks a transaction before insertion. The CSV upload collaborator
// has already coerced numeric fields; this guards the ledger's own invariants.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.Ticker) == "" {
		return fmt.Errorf("ticker is required")
	}

	switch t.Type {
	case TypeBuy, TypeSell:
		if !t.Quantity.IsPositive() {
			return fmt.Errorf("%s requires a positive quantity", t.Type)
		}
	case TypeDividend, TypeFee:
		if !t.Quantity.IsZero() {
			return fmt.Errorf("%s must have zero quantity", t.Type)
		}
	default:
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}

	if t.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	if t.Fees.IsNegative() {
		return fmt.Errorf("fees must not be negative")
	}
	if t.TradeDate.IsZero() {
		return fmt.Errorf("trade date is required")
	}

	return nil
}

// Normalize upper-cases identifiers and defaults the currency.
func (t *Transaction) Normalize() {
	t.Ticker = strings.ToUpper(strings.TrimSpace(t.Ticker))
	t.Type = TransactionType(strings.ToUpper(string(t.Type)))
	if t.Currency == "" {
		t.Currency = "USD"
	}
	t.Currency = strings.ToUpper(t.Currency)
	if t.UserID == "" {
		t.UserID = "default"
	}
}
