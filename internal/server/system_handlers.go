package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkarlis/folio/internal/database"
)

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	db        *database.DB
	startedAt time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, db *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		db:        db,
		startedAt: time.Now(),
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status           string  `json:"status"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	TransactionCount int     `json:"transaction_count"`
	TickerCount      int     `json:"ticker_count"`
	CachedPrices     int     `json:"cached_prices"`
	ManualOverrides  int     `json:"manual_overrides"`
	LastPriceFetch   string  `json:"last_price_fetch,omitempty"`
	Goroutines       int     `json:"goroutines"`
	AllocMB          uint64  `json:"alloc_mb"`
}

// HandleSystemStatus returns ledger and price cache counts alongside process
// health figures.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	conn := h.db.Conn()

	var txCount, tickerCount int
	err := conn.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT ticker) FROM transactions
	`).Scan(&txCount, &tickerCount)
	if err != nil && err != sql.ErrNoRows {
		h.log.Error().Err(err).Msg("Failed to query transactions")
	}

	var cachedCount int
	var lastFetch sql.NullString
	err = conn.QueryRow(`
		SELECT COUNT(*), MAX(fetched_at) FROM price_cache
	`).Scan(&cachedCount, &lastFetch)
	if err != nil && err != sql.ErrNoRows {
		h.log.Error().Err(err).Msg("Failed to query price cache")
	}

	var manualCount int
	err = conn.QueryRow(`
		SELECT COUNT(*) FROM manual_prices
		WHERE expires_at IS NULL OR expires_at > ?
	`, time.Now().UTC().Format(time.RFC3339)).Scan(&manualCount)
	if err != nil && err != sql.ErrNoRows {
		h.log.Error().Err(err).Msg("Failed to query manual overrides")
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := SystemStatusResponse{
		Status:           "running",
		UptimeSeconds:    time.Since(h.startedAt).Seconds(),
		TransactionCount: txCount,
		TickerCount:      tickerCount,
		CachedPrices:     cachedCount,
		ManualOverrides:  manualCount,
		Goroutines:       runtime.NumGoroutine(),
		AllocMB:          m.Alloc / 1024 / 1024,
	}
	if lastFetch.Valid {
		if t, err := time.Parse(time.RFC3339, lastFetch.String); err == nil {
			response.LastPriceFetch = t.Format("2006-01-02 15:04")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
