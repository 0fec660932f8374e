package valuation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlis/folio/internal/database"
	"github.com/mkarlis/folio/internal/modules/holdings"
	"github.com/mkarlis/folio/internal/modules/ledger"
	"github.com/mkarlis/folio/internal/modules/marketdata"
	"github.com/mkarlis/folio/pkg/logger"
)

// stubResolver serves canned prices; missing tickers resolve to nil.
type stubResolver struct {
	prices map[string]float64
}

func (s *stubResolver) Resolve(_ context.Context, _ string, ticker string) (*marketdata.PriceRecord, error) {
	price, ok := s.prices[ticker]
	if !ok {
		return nil, nil
	}
	return &marketdata.PriceRecord{
		Ticker:    ticker,
		Price:     decimal.NewFromFloat(price),
		Currency:  "USD",
		Source:    marketdata.SourceLive,
		FetchedAt: time.Now(),
	}, nil
}

func newTestService(t *testing.T, prices map[string]float64) (*Service, *ledger.Repository) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := logger.New(logger.Config{Level: "error"})
	ledgerRepo := ledger.NewRepository(db.Conn(), log)
	holdingsSvc := holdings.NewService(ledgerRepo, log)

	return NewService(holdingsSvc, &stubResolver{prices: prices}, log), ledgerRepo
}

func mustCreate(t *testing.T, repo *ledger.Repository, ticker string, typ ledger.TransactionType, qty, price float64, day string) {
	t.Helper()
	tradeDate, err := time.Parse("2006-01-02", day)
	require.NoError(t, err)
	require.NoError(t, repo.Create(&ledger.Transaction{
		Ticker:    ticker,
		Type:      typ,
		Quantity:  decimal.NewFromFloat(qty),
		Price:     decimal.NewFromFloat(price),
		TradeDate: tradeDate,
	}))
}

func TestValuePortfolio_ComputesReturns(t *testing.T) {
	svc, repo := newTestService(t, map[string]float64{"AAPL": 170})
	mustCreate(t, repo, "AAPL", ledger.TypeBuy, 100, 150, "2024-01-15")

	pv, err := svc.ValuePortfolio(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, pv.Holdings, 1)

	v := pv.Holdings[0]
	require.True(t, v.Priced())
	assert.True(t, v.CurrentValue.Equal(decimal.NewFromInt(17000)))
	assert.True(t, v.UnrealizedReturn.Equal(decimal.NewFromInt(2000)))

	// 2000 / 15000 * 100 = 13.33...
	assert.Equal(t, "13.33", v.ReturnPercentage.Round(2).String())
	assert.Equal(t, 1, pv.HoldingsWithData)
	assert.Equal(t, 0, pv.HoldingsWithoutData)
}

func TestValuePortfolio_UnresolvedPriceYieldsNulls(t *testing.T) {
	svc, repo := newTestService(t, map[string]float64{})
	mustCreate(t, repo, "ZZZZ", ledger.TypeBuy, 10, 50, "2024-01-15")

	pv, err := svc.ValuePortfolio(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, pv.Holdings, 1)

	v := pv.Holdings[0]
	assert.False(t, v.Priced())
	assert.Nil(t, v.CurrentPrice)
	assert.Nil(t, v.CurrentValue)
	assert.Nil(t, v.UnrealizedReturn)
	assert.Nil(t, v.ReturnPercentage)

	// Aggregate totals are absent, not zero
	assert.Nil(t, pv.TotalCurrentValue)
	assert.Nil(t, pv.TotalReturn)
	assert.Nil(t, pv.ReturnPercentage)
	assert.Equal(t, 0, pv.HoldingsWithData)
	assert.Equal(t, 1, pv.HoldingsWithoutData)
}

func TestValuePortfolio_PartialPriceCoverage(t *testing.T) {
	svc, repo := newTestService(t, map[string]float64{
		"AAPL": 170,
		"MSFT": 400,
		"VTI":  250,
		// GOOG intentionally unpriced
	})
	mustCreate(t, repo, "AAPL", ledger.TypeBuy, 10, 150, "2024-01-02")
	mustCreate(t, repo, "MSFT", ledger.TypeBuy, 5, 350, "2024-01-03")
	mustCreate(t, repo, "VTI", ledger.TypeBuy, 8, 240, "2024-01-04")
	mustCreate(t, repo, "GOOG", ledger.TypeBuy, 3, 140, "2024-01-05")

	pv, err := svc.ValuePortfolio(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, pv.Holdings, 4)

	assert.Equal(t, 3, pv.HoldingsWithData)
	assert.Equal(t, 1, pv.HoldingsWithoutData)

	// Total covers only the three priced holdings
	expected := decimal.NewFromInt(10*170 + 5*400 + 8*250)
	require.NotNil(t, pv.TotalCurrentValue)
	assert.True(t, pv.TotalCurrentValue.Equal(expected), "total = %s", pv.TotalCurrentValue)

	// The unpriced holding is flagged distinctly and sorts last
	last := pv.Holdings[len(pv.Holdings)-1]
	assert.Equal(t, "GOOG", last.Ticker)
	assert.False(t, last.Priced())

	priced := PricedHoldings(pv)
	assert.Len(t, priced, 3)
}

func TestValuePortfolio_IntegrityErrorIsolatedPerTicker(t *testing.T) {
	svc, repo := newTestService(t, map[string]float64{"AAPL": 170})
	mustCreate(t, repo, "AAPL", ledger.TypeBuy, 10, 150, "2024-01-02")
	// Oversell: BADD's history is inconsistent
	mustCreate(t, repo, "BADD", ledger.TypeBuy, 5, 10, "2024-01-02")
	mustCreate(t, repo, "BADD", ledger.TypeSell, 9, 12, "2024-02-01")

	pv, err := svc.ValuePortfolio(context.Background(), "default")
	require.NoError(t, err, "one bad ticker must not fail the portfolio")

	require.Len(t, pv.Holdings, 1)
	assert.Equal(t, "AAPL", pv.Holdings[0].Ticker)

	require.Len(t, pv.IntegrityErrors, 1)
	assert.Equal(t, "BADD", pv.IntegrityErrors[0].Ticker)
	assert.Contains(t, pv.IntegrityErrors[0].Error, "insufficient lots")
}

func TestValuePortfolio_ManualOverridePropagatesSource(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := logger.New(logger.Config{Level: "error"})
	ledgerRepo := ledger.NewRepository(db.Conn(), log)
	holdingsSvc := holdings.NewService(ledgerRepo, log)
	priceRepo := marketdata.NewRepository(db.Conn(), log)
	resolver := marketdata.NewResolver(priceRepo, nil, 60, time.Second, log)
	svc := NewService(holdingsSvc, resolver, log)

	mustCreate(t, ledgerRepo, "AAPL", ledger.TypeBuy, 10, 150, "2024-01-02")
	require.NoError(t, priceRepo.SetManual(&marketdata.ManualPrice{
		UserID: "default",
		Ticker: "AAPL",
		Price:  decimal.NewFromInt(180),
		SetAt:  time.Now(),
	}))

	pv, err := svc.ValuePortfolio(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, pv.Holdings, 1)

	v := pv.Holdings[0]
	require.True(t, v.Priced())
	assert.Equal(t, marketdata.SourceManual, v.PriceSource)
	assert.True(t, v.CurrentValue.Equal(decimal.NewFromInt(1800)))
}
