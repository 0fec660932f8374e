package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Provider is a single external market data source. Rate limits and latencies
// are the provider's own business; the resolver only imposes a timeout.
type Provider interface {
	Name() string
	FetchPrice(ctx context.Context, ticker string) (price float64, currency string, err error)
}

// Resolver resolves a current price for a ticker through three tiers:
// an unexpired manual override, then a live fetch through the configured
// provider chain, then the most recent cached price regardless of age.
// A nil record with a nil error means the price is unresolved; callers must
// treat that as missing data, not zero.
type Resolver struct {
	repo      *Repository
	providers []Provider
	limiters  map[string]*rate.Limiter
	timeout   time.Duration
	log       zerolog.Logger

	now func() time.Time
}

// NewResolver creates a resolver. Providers are tried in slice order; each
// gets its own rate limiter so one noisy source cannot starve another.
func NewResolver(repo *Repository, providers []Provider, perMinute int, timeout time.Duration, log zerolog.Logger) *Resolver {
	limiters := make(map[string]*rate.Limiter, len(providers))
	for _, p := range providers {
		limiters[p.Name()] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}

	return &Resolver{
		repo:      repo,
		providers: providers,
		limiters:  limiters,
		timeout:   timeout,
		log:       log.With().Str("service", "price_resolver").Logger(),
		now:       time.Now,
	}
}

// Resolve returns a price record with exactly one source, or (nil, nil) when
// no tier can produce a price. Provider failures are logged and advance the
// fallback; they never surface to the caller.
func (r *Resolver) Resolve(ctx context.Context, userID, ticker string) (*PriceRecord, error) {
	now := r.now()

	// Tier 1: manual override
	manual, err := r.repo.GetManual(userID, ticker)
	if err != nil {
		return nil, fmt.Errorf("manual price lookup failed for %s: %w", ticker, err)
	}
	if manual != nil {
		return &PriceRecord{
			Ticker:    manual.Ticker,
			Price:     manual.Price,
			Currency:  manual.Currency,
			Source:    SourceManual,
			FetchedAt: manual.SetAt,
			Age:       now.Sub(manual.SetAt),
			ExpiresAt: manual.ExpiresAt,
		}, nil
	}

	// Tier 2: live fetch through the provider chain
	if rec := r.fetchLive(ctx, ticker); rec != nil {
		return rec, nil
	}

	// Tier 3: newest cached price, any age, tagged with its true age
	cached, err := r.repo.GetCached(ticker)
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed for %s: %w", ticker, err)
	}
	if cached != nil {
		cached.Age = now.Sub(cached.FetchedAt)
		return cached, nil
	}

	// Unresolved: a valid terminal state, not an error
	return nil, nil
}

// RefreshTicker forces a live fetch for one ticker, bypassing manual and cache
// tiers. A successful fetch lands in the cache; failure leaves the previous
// cached price untouched, which keeps batch refreshes re-entrant.
func (r *Resolver) RefreshTicker(ctx context.Context, ticker string) (*PriceRecord, error) {
	if rec := r.fetchLive(ctx, ticker); rec != nil {
		return rec, nil
	}
	return nil, fmt.Errorf("all providers failed for %s", ticker)
}

func (r *Resolver) fetchLive(ctx context.Context, ticker string) *PriceRecord {
	for _, provider := range r.providers {
		rec, err := r.fetchFrom(ctx, provider, ticker)
		if err != nil {
			// Non-fatal: advance to the next provider
			r.log.Warn().Err(err).
				Str("ticker", ticker).
				Str("provider", provider.Name()).
				Msg("Provider fetch failed")
			continue
		}
		return rec
	}
	return nil
}

func (r *Resolver) fetchFrom(parent context.Context, provider Provider, ticker string) (*PriceRecord, error) {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	if limiter := r.limiters[provider.Name()]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	price, currency, err := provider.FetchPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, fmt.Errorf("provider %s returned non-positive price", provider.Name())
	}

	fetchedAt := r.now()
	dec := decimal.NewFromFloat(price)

	// Last-writer-wins cache write; a failed write degrades the next fallback
	// but must not fail this resolution
	if err := r.repo.UpsertCached(ticker, dec, currency, provider.Name(), fetchedAt); err != nil {
		r.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to write price cache")
	}

	return &PriceRecord{
		Ticker:    ticker,
		Price:     dec,
		Currency:  currency,
		Source:    SourceLive,
		Provider:  provider.Name(),
		FetchedAt: fetchedAt,
	}, nil
}
