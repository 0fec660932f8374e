package holdings

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mkarlis/folio/internal/modules/ledger"
)

// Service reduces transaction histories into current holdings using FIFO lot
// consumption. The reduction is deterministic: the same ledger always yields
// the same holdings.
type Service struct {
	ledgerRepo *ledger.Repository
	log        zerolog.Logger
}

// NewService creates a new holdings service
func NewService(ledgerRepo *ledger.Repository, log zerolog.Logger) *Service {
	return &Service{
		ledgerRepo: ledgerRepo,
		log:        log.With().Str("service", "holdings").Logger(),
	}
}

// ComputeAll reduces the full ledger for a user into active holdings. Tickers
// whose history fails an integrity check are reported separately and do not
// prevent the rest of the portfolio from computing.
func (s *Service) ComputeAll(userID string) ([]Holding, []TickerError, error) {
	tickers, err := s.ledgerRepo.ListTickers(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list tickers: %w", err)
	}

	var (
		result    []Holding
		integrity []TickerError
	)

	for _, ticker := range tickers {
		txs, err := s.ledgerRepo.GetByTicker(userID, ticker)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load history for %s: %w", ticker, err)
		}

		holding, err := Reduce(ticker, txs)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Integrity error in transaction history")
			integrity = append(integrity, TickerError{Ticker: ticker, Error: err.Error()})
			continue
		}

		// Fully liquidated positions are closed, not zero-valued
		if holding != nil {
			result = append(result, *holding)
		}
	}

	return result, integrity, nil
}

// Reduce folds one ticker's ordered transaction history into its current
// holding. It returns nil (no holding) when the position is fully liquidated.
// The input must be sorted ascending by trade date with insertion order
// breaking ties; the ledger repository guarantees that.
func Reduce(ticker string, txs []ledger.Transaction) (*Holding, error) {
	queue := &lotQueue{}
	dividends := decimal.Zero
	fees := decimal.Zero
	currency := ""

	for _, tx := range txs {
		if currency == "" {
			currency = tx.Currency
		}
		fees = fees.Add(tx.Fees)

		switch tx.Type {
		case ledger.TypeBuy:
			// Buy fees fold into the per-share cost of the lot
			unitCost := tx.Price
			if tx.Fees.IsPositive() && tx.Quantity.IsPositive() {
				unitCost = unitCost.Add(tx.Fees.Div(tx.Quantity))
			}
			queue.buy(tx.Quantity, unitCost, tx.TradeDate)

		case ledger.TypeSell:
			if _, err := queue.sell(ticker, tx.Quantity); err != nil {
				return nil, err
			}

		case ledger.TypeDividend:
			// Income, never a cost basis adjustment
			dividends = dividends.Add(tx.Price)

		case ledger.TypeFee:
			// A standalone charge carries its amount in the price field,
			// same as DIVIDEND; lots untouched
			fees = fees.Add(tx.Price)

		default:
			return nil, fmt.Errorf("unknown transaction type %q for %s", tx.Type, ticker)
		}
	}

	quantity := queue.totalQuantity()
	if quantity.IsZero() {
		return nil, nil
	}

	costBasis := queue.totalCost()

	return &Holding{
		Ticker:         ticker,
		Quantity:       quantity,
		AvgCost:        costBasis.Div(quantity),
		CostBasis:      costBasis,
		Currency:       currency,
		DividendIncome: dividends,
		FeesPaid:       fees,
		FirstAcquired:  queue.oldestAcquisition(),
		OpenLots:       len(queue.lots),
	}, nil
}
