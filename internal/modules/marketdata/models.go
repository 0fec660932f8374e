package marketdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource tells the caller how a price was resolved
type PriceSource string

const (
	SourceLive   PriceSource = "LIVE"   // fresh provider fetch
	SourceCached PriceSource = "CACHED" // fallback to the last stored fetch
	SourceManual PriceSource = "MANUAL" // user-supplied override
)

// PriceRecord is a resolved price for one ticker with exactly one source.
type PriceRecord struct {
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Source    PriceSource     `json:"source"`
	Provider  string          `json:"provider,omitempty"` // which client produced a LIVE/CACHED price
	FetchedAt time.Time       `json:"fetched_at"`
	Age       time.Duration   `json:"-"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"` // MANUAL only
}

// Staleness buckets a price's age for the UI
func (p *PriceRecord) Staleness() string {
	if p.Source == SourceManual {
		return "manual"
	}
	switch age := p.Age; {
	case age < 15*time.Minute:
		return "live"
	case age < 4*time.Hour:
		return "recent"
	case age < 24*time.Hour:
		return "stale"
	case age < 7*24*time.Hour:
		return "very_stale"
	default:
		return "ancient"
	}
}

// ManualPrice is a user-supplied override. At most one exists per
// (user, ticker); setting a new one supersedes the old.
type ManualPrice struct {
	UserID    string          `json:"user_id"`
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Note      string          `json:"note,omitempty"`
	SetAt     time.Time       `json:"set_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"` // nil = never expires
}

// Expired reports whether the override has lapsed as of now.
func (m *ManualPrice) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// RefreshSummary reports the outcome of one batch price refresh run.
type RefreshSummary struct {
	JobID     string        `json:"job_id"`
	Requested int           `json:"requested"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"` // tickers under an active manual override
	Duration  time.Duration `json:"-"`
	StartedAt time.Time     `json:"started_at"`
}
