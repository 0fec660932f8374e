package holdings

import (
	"time"

	"github.com/shopspring/decimal"
)

// lot is a single open purchase: what remains of one BUY after any FIFO
// consumption by later SELLs.
type lot struct {
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal // price plus per-share slice of the buy fee
	AcquiredAt time.Time
}

// lotQueue holds open lots in acquisition order. Lots are a recomputed view of
// the transaction log, never persisted.
type lotQueue struct {
	lots []lot
}

// buy appends a new lot.
func (q *lotQueue) buy(quantity, unitCost decimal.Decimal, acquiredAt time.Time) {
	q.lots = append(q.lots, lot{
		Quantity:   quantity,
		UnitCost:   unitCost,
		AcquiredAt: acquiredAt,
	})
}

// sell consumes quantity from the oldest lots first. It returns the cost basis
// removed by the sale. Overselling returns an InsufficientLotsError and leaves
// the queue untouched; the caller must never see a silently clamped result.
func (q *lotQueue) sell(ticker string, quantity decimal.Decimal) (decimal.Decimal, error) {
	available := q.totalQuantity()
	if quantity.GreaterThan(available) {
		return decimal.Zero, &InsufficientLotsError{
			Ticker:    ticker,
			Requested: quantity,
			Available: available,
		}
	}

	removedCost := decimal.Zero
	remaining := quantity

	for len(q.lots) > 0 && remaining.IsPositive() {
		head := &q.lots[0]
		if head.Quantity.LessThanOrEqual(remaining) {
			// Consume the whole lot
			removedCost = removedCost.Add(head.Quantity.Mul(head.UnitCost))
			remaining = remaining.Sub(head.Quantity)
			q.lots = q.lots[1:]
		} else {
			// Partial consumption splits the lot
			removedCost = removedCost.Add(remaining.Mul(head.UnitCost))
			head.Quantity = head.Quantity.Sub(remaining)
			remaining = decimal.Zero
		}
	}

	return removedCost, nil
}

func (q *lotQueue) totalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range q.lots {
		total = total.Add(l.Quantity)
	}
	return total
}

func (q *lotQueue) totalCost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range q.lots {
		total = total.Add(l.Quantity.Mul(l.UnitCost))
	}
	return total
}

func (q *lotQueue) oldestAcquisition() time.Time {
	if len(q.lots) == 0 {
		return time.Time{}
	}
	return q.lots[0].AcquiredAt
}
