package holdings

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlis/folio/internal/modules/ledger"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func buy(ticker string, qty, price float64, day string) ledger.Transaction {
	return ledger.Transaction{
		Ticker:    ticker,
		Type:      ledger.TypeBuy,
		Quantity:  decimal.NewFromFloat(qty),
		Price:     decimal.NewFromFloat(price),
		TradeDate: date(day),
		Currency:  "USD",
	}
}

func sell(ticker string, qty, price float64, day string) ledger.Transaction {
	return ledger.Transaction{
		Ticker:    ticker,
		Type:      ledger.TypeSell,
		Quantity:  decimal.NewFromFloat(qty),
		Price:     decimal.NewFromFloat(price),
		TradeDate: date(day),
		Currency:  "USD",
	}
}

func TestReduce_BuysOnlyWeightedAverage(t *testing.T) {
	txs := []ledger.Transaction{
		buy("AAPL", 100, 150, "2024-01-15"),
		buy("AAPL", 50, 160, "2024-02-10"),
	}

	h, err := Reduce("AAPL", txs)
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(150)), "quantity = %s", h.Quantity)
	assert.True(t, h.CostBasis.Equal(decimal.NewFromInt(23500)), "cost basis = %s", h.CostBasis)

	// 23500 / 150 = 156.666..., rounds to 156.67 at presentation
	assert.Equal(t, "156.67", h.AvgCost.Round(2).String())
	assert.Equal(t, 2, h.OpenLots)
	assert.Equal(t, date("2024-01-15"), h.FirstAcquired)
}

func TestReduce_FIFOSellConsumesOldestFirst(t *testing.T) {
	txs := []ledger.Transaction{
		buy("AAPL", 100, 150, "2024-01-15"),
		buy("AAPL", 50, 160, "2024-02-10"),
		sell("AAPL", 120, 170, "2024-03-01"),
	}

	h, err := Reduce("AAPL", txs)
	require.NoError(t, err)
	require.NotNil(t, h)

	// FIFO consumes 100 @ 150 then 20 @ 160, leaving 30 @ 160
	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(30)), "quantity = %s", h.Quantity)
	assert.True(t, h.CostBasis.Equal(decimal.NewFromInt(4800)), "cost basis = %s", h.CostBasis)
	assert.True(t, h.AvgCost.Equal(decimal.NewFromInt(160)), "avg cost = %s", h.AvgCost)
	assert.Equal(t, 1, h.OpenLots)
}

func TestReduce_FullLiquidationClosesHolding(t *testing.T) {
	txs := []ledger.Transaction{
		buy("MSFT", 10, 300, "2024-01-02"),
		buy("MSFT", 5, 310, "2024-01-20"),
		sell("MSFT", 15, 320, "2024-02-01"),
	}

	h, err := Reduce("MSFT", txs)
	require.NoError(t, err)
	assert.Nil(t, h, "fully liquidated position must yield no holding")
}

func TestReduce_OversellReturnsInsufficientLots(t *testing.T) {
	txs := []ledger.Transaction{
		buy("TSLA", 10, 200, "2024-01-02"),
		sell("TSLA", 4, 210, "2024-01-10"),
		sell("TSLA", 7, 220, "2024-01-20"),
	}

	h, err := Reduce("TSLA", txs)
	require.Error(t, err)
	assert.Nil(t, h)

	var insufficient *InsufficientLotsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "TSLA", insufficient.Ticker)
	assert.True(t, insufficient.Requested.Equal(decimal.NewFromInt(7)))
	assert.True(t, insufficient.Available.Equal(decimal.NewFromInt(6)))
}

func TestReduce_BuyFeesFoldIntoLotCost(t *testing.T) {
	txs := []ledger.Transaction{
		{
			Ticker:    "VTI",
			Type:      ledger.TypeBuy,
			Quantity:  decimal.NewFromInt(10),
			Price:     decimal.NewFromInt(100),
			Fees:      decimal.NewFromInt(5),
			TradeDate: date("2024-01-02"),
			Currency:  "USD",
		},
	}

	h, err := Reduce("VTI", txs)
	require.NoError(t, err)
	require.NotNil(t, h)

	// unit cost 100 + 5/10 = 100.50
	assert.True(t, h.AvgCost.Equal(decimal.RequireFromString("100.5")), "avg cost = %s", h.AvgCost)
	assert.True(t, h.CostBasis.Equal(decimal.NewFromInt(1005)), "cost basis = %s", h.CostBasis)
	assert.True(t, h.FeesPaid.Equal(decimal.NewFromInt(5)))
}

func TestReduce_DividendsAreIncomeNotCostBasis(t *testing.T) {
	txs := []ledger.Transaction{
		buy("KO", 100, 60, "2024-01-02"),
		{
			Ticker:    "KO",
			Type:      ledger.TypeDividend,
			Quantity:  decimal.Zero,
			Price:     decimal.NewFromFloat(46.5),
			TradeDate: date("2024-03-15"),
			Currency:  "USD",
		},
	}

	h, err := Reduce("KO", txs)
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.True(t, h.CostBasis.Equal(decimal.NewFromInt(6000)), "dividend must not move cost basis")
	assert.True(t, h.DividendIncome.Equal(decimal.NewFromFloat(46.5)))
}

func TestReduce_StandaloneFeeAccumulates(t *testing.T) {
	txs := []ledger.Transaction{
		buy("VTI", 10, 100, "2024-01-02"),
		{
			Ticker:    "VTI",
			Type:      ledger.TypeFee,
			Quantity:  decimal.Zero,
			Price:     decimal.RequireFromString("9.99"),
			TradeDate: date("2024-02-01"),
			Currency:  "USD",
		},
	}

	h, err := Reduce("VTI", txs)
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.True(t, h.FeesPaid.Equal(decimal.RequireFromString("9.99")), "fees paid = %s", h.FeesPaid)
	assert.True(t, h.CostBasis.Equal(decimal.NewFromInt(1000)), "standalone fee must not move cost basis")
	assert.True(t, h.AvgCost.Equal(decimal.NewFromInt(100)))
}

func TestReduce_Idempotent(t *testing.T) {
	txs := []ledger.Transaction{
		buy("NVDA", 30, 400, "2024-01-02"),
		sell("NVDA", 10, 500, "2024-02-01"),
		buy("NVDA", 5, 550, "2024-02-15"),
	}

	first, err := Reduce("NVDA", txs)
	require.NoError(t, err)
	second, err := Reduce("NVDA", txs)
	require.NoError(t, err)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.True(t, first.Quantity.Equal(second.Quantity))
	assert.True(t, first.CostBasis.Equal(second.CostBasis))
	assert.True(t, first.AvgCost.Equal(second.AvgCost))
	assert.Equal(t, first.OpenLots, second.OpenLots)
}

func TestReduce_PartialLotSplit(t *testing.T) {
	txs := []ledger.Transaction{
		buy("AMD", 9, 100, "2024-01-02"),
		sell("AMD", 4, 120, "2024-01-10"),
	}

	h, err := Reduce("AMD", txs)
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, h.CostBasis.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 1, h.OpenLots)
}
