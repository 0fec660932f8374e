package marketdata

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository stores cached prices and manual overrides. Cached prices are
// informational snapshots, not ledger entries: upserts are last-writer-wins
// keyed by ticker.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new market data repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "marketdata").Logger(),
	}
}

// UpsertCached stores the latest fetched price for a ticker.
func (r *Repository) UpsertCached(ticker string, price decimal.Decimal, currency, provider string, fetchedAt time.Time) error {
	query := `
		INSERT INTO price_cache (ticker, price, currency, provider, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET
			price = excluded.price,
			currency = excluded.currency,
			provider = excluded.provider,
			fetched_at = excluded.fetched_at
	`

	_, err := r.db.Exec(query,
		strings.ToUpper(ticker),
		price.String(),
		currency,
		provider,
		fetchedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to cache price for %s: %w", ticker, err)
	}
	return nil
}

// GetCached returns the most recent cached price for a ticker regardless of
// age, or (nil, nil) when none exists.
func (r *Repository) GetCached(ticker string) (*PriceRecord, error) {
	query := `SELECT ticker, price, currency, provider, fetched_at FROM price_cache WHERE ticker = ?`

	var (
		rec              PriceRecord
		price, fetchedAt string
	)
	err := r.db.QueryRow(query, strings.ToUpper(ticker)).
		Scan(&rec.Ticker, &price, &rec.Currency, &rec.Provider, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached price for %s: %w", ticker, err)
	}

	if rec.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("bad cached price %q: %w", price, err)
	}
	if rec.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt); err != nil {
		return nil, fmt.Errorf("bad cached timestamp %q: %w", fetchedAt, err)
	}

	rec.Source = SourceCached
	return &rec, nil
}

// SetManual stores a manual override, replacing any existing one for the same
// (user, ticker). expiresAt nil means the override never expires.
func (r *Repository) SetManual(m *ManualPrice) error {
	m.Ticker = strings.ToUpper(m.Ticker)
	if m.Currency == "" {
		m.Currency = "USD"
	}

	var expires interface{}
	if m.ExpiresAt != nil {
		expires = m.ExpiresAt.UTC().Format(time.RFC3339)
	}

	query := `
		INSERT INTO manual_prices (user_id, ticker, price, currency, note, set_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, ticker) DO UPDATE SET
			price = excluded.price,
			currency = excluded.currency,
			note = excluded.note,
			set_at = excluded.set_at,
			expires_at = excluded.expires_at
	`

	_, err := r.db.Exec(query,
		m.UserID,
		m.Ticker,
		m.Price.String(),
		m.Currency,
		nullString(m.Note),
		m.SetAt.UTC().Format(time.RFC3339),
		expires,
	)
	if err != nil {
		return fmt.Errorf("failed to set manual price for %s: %w", m.Ticker, err)
	}

	r.log.Info().
		Str("ticker", m.Ticker).
		Str("price", m.Price.String()).
		Msg("Manual price override set")
	return nil
}

// GetManual returns the active (unexpired) manual override for a ticker, or
// (nil, nil) when none exists. Expired rows are treated as absent but left in
// place; SetManual replaces them.
func (r *Repository) GetManual(userID, ticker string) (*ManualPrice, error) {
	query := `
		SELECT user_id, ticker, price, currency, note, set_at, expires_at
		FROM manual_prices
		WHERE user_id = ? AND ticker = ?
	`

	m, err := r.scanManual(r.db.QueryRow(query, userID, strings.ToUpper(ticker)))
	if err != nil {
		return nil, err
	}
	if m == nil || m.Expired(time.Now()) {
		return nil, nil
	}
	return m, nil
}

// ListManual returns every active manual override for a user.
func (r *Repository) ListManual(userID string) ([]ManualPrice, error) {
	query := `
		SELECT user_id, ticker, price, currency, note, set_at, expires_at
		FROM manual_prices
		WHERE user_id = ?
		ORDER BY ticker
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list manual prices: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var result []ManualPrice
	for rows.Next() {
		m, err := r.scanManualRows(rows)
		if err != nil {
			return nil, err
		}
		if m.Expired(now) {
			continue
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

// RemoveManual deletes a manual override. Removing a nonexistent override is
// not an error.
func (r *Repository) RemoveManual(userID, ticker string) error {
	_, err := r.db.Exec(`DELETE FROM manual_prices WHERE user_id = ? AND ticker = ?`,
		userID, strings.ToUpper(ticker))
	if err != nil {
		return fmt.Errorf("failed to remove manual price for %s: %w", ticker, err)
	}

	r.log.Info().Str("ticker", ticker).Msg("Manual price override removed")
	return nil
}

// HasActiveManual reports whether any user holds an unexpired override for the
// ticker; the refresh job uses this to skip overridden tickers.
func (r *Repository) HasActiveManual(ticker string) (bool, error) {
	query := `
		SELECT 1 FROM manual_prices
		WHERE ticker = ? AND (expires_at IS NULL OR expires_at > ?)
		LIMIT 1
	`

	var one int
	err := r.db.QueryRow(query, strings.ToUpper(ticker), time.Now().UTC().Format(time.RFC3339)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check manual price for %s: %w", ticker, err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanManual(row *sql.Row) (*ManualPrice, error) {
	m, err := scanManualFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *Repository) scanManualRows(rows *sql.Rows) (*ManualPrice, error) {
	return scanManualFrom(rows)
}

func scanManualFrom(s rowScanner) (*ManualPrice, error) {
	var (
		m             ManualPrice
		price, setAt  string
		note, expires sql.NullString
	)

	if err := s.Scan(&m.UserID, &m.Ticker, &price, &m.Currency, &note, &setAt, &expires); err != nil {
		return nil, err
	}

	var err error
	if m.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("bad manual price %q: %w", price, err)
	}
	if m.SetAt, err = time.Parse(time.RFC3339, setAt); err != nil {
		return nil, fmt.Errorf("bad manual timestamp %q: %w", setAt, err)
	}
	if note.Valid {
		m.Note = note.String
	}
	if expires.Valid {
		t, err := time.Parse(time.RFC3339, expires.String)
		if err != nil {
			return nil, fmt.Errorf("bad manual expiry %q: %w", expires.String, err)
		}
		m.ExpiresAt = &t
	}

	return &m, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
