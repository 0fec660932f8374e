package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mkarlis/folio/internal/modules/ledger"
	"github.com/mkarlis/folio/internal/modules/marketdata"
)

// RefreshJob refreshes cached prices for every ticker present in the ledger.
// Each ticker commits independently, so a run that is cancelled partway leaves
// already-refreshed tickers with their new price and the rest untouched.
type RefreshJob struct {
	ledgerRepo  *ledger.Repository
	priceRepo   *marketdata.Repository
	resolver    *marketdata.Resolver
	concurrency int
	log         zerolog.Logger
}

// NewRefreshJob creates the batch price refresh job
func NewRefreshJob(
	ledgerRepo *ledger.Repository,
	priceRepo *marketdata.Repository,
	resolver *marketdata.Resolver,
	concurrency int,
	log zerolog.Logger,
) *RefreshJob {
	return &RefreshJob{
		ledgerRepo:  ledgerRepo,
		priceRepo:   priceRepo,
		resolver:    resolver,
		concurrency: concurrency,
		log:         log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name implements scheduler.Job
func (j *RefreshJob) Name() string {
	return "price_refresh"
}

// Run implements scheduler.Job
func (j *RefreshJob) Run() error {
	_, err := j.RunContext(context.Background())
	return err
}

// RunContext executes one refresh pass. Per-ticker provider failures are
// counted, not raised: an exhausted provider chain for one ticker must not
// abort the batch.
func (j *RefreshJob) RunContext(ctx context.Context) (*marketdata.RefreshSummary, error) {
	started := time.Now()
	summary := &marketdata.RefreshSummary{
		JobID:     uuid.NewString(),
		StartedAt: started,
	}

	tickers, err := j.ledgerRepo.ListAllTickers()
	if err != nil {
		return nil, err
	}
	summary.Requested = len(tickers)

	if len(tickers) == 0 {
		j.log.Info().Str("job_id", summary.JobID).Msg("No tickers in ledger, nothing to refresh")
		return summary, nil
	}

	var succeeded, failed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			// A ticker under an active manual override resolves manually
			// anyway; skip the provider round-trip.
			hasManual, err := j.priceRepo.HasActiveManual(ticker)
			if err != nil {
				j.log.Error().Err(err).Str("ticker", ticker).Msg("Manual override check failed")
				failed.Add(1)
				return nil
			}
			if hasManual {
				skipped.Add(1)
				return nil
			}

			if _, err := j.resolver.RefreshTicker(gctx, ticker); err != nil {
				j.log.Warn().Err(err).Str("ticker", ticker).Msg("Price refresh failed")
				failed.Add(1)
				return nil
			}

			succeeded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return nil, err
	}

	summary.Succeeded = int(succeeded.Load())
	summary.Failed = int(failed.Load())
	summary.Skipped = int(skipped.Load())
	summary.Duration = time.Since(started)

	j.log.Info().
		Str("job_id", summary.JobID).
		Int("requested", summary.Requested).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("duration", summary.Duration).
		Msg("Price refresh completed")

	return summary, nil
}
