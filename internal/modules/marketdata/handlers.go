package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// refreshRunner lets the handler trigger the batch job without importing it
type refreshRunner interface {
	RunContext(ctx context.Context) (*RefreshSummary, error)
}

// Handler handles price HTTP requests
type Handler struct {
	repo     *Repository
	resolver *Resolver
	refresh  refreshRunner
	log      zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(repo *Repository, resolver *Resolver, refresh refreshRunner, log zerolog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		resolver: resolver,
		refresh:  refresh,
		log:      log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleGetPrice resolves the current price for one ticker
func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))

	rec, err := h.resolver.Resolve(r.Context(), userFrom(r), ticker)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if rec == nil {
		// Unresolved is a state, not an error; the UI renders it distinctly
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"ticker":   ticker,
			"resolved": false,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, priceResponse(rec))
}

type manualPriceRequest struct {
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Note         string          `json:"note"`
	ExpiresHours int             `json:"expires_hours"` // 0 = never expires
}

// HandleSetManual creates or replaces a manual price override
func (h *Handler) HandleSetManual(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))

	var req manualPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Price.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}

	now := time.Now()
	manual := &ManualPrice{
		UserID:   userFrom(r),
		Ticker:   ticker,
		Price:    req.Price,
		Currency: req.Currency,
		Note:     req.Note,
		SetAt:    now,
	}
	if req.ExpiresHours > 0 {
		expires := now.Add(time.Duration(req.ExpiresHours) * time.Hour)
		manual.ExpiresAt = &expires
	}

	if err := h.repo.SetManual(manual); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, manual)
}

// HandleRemoveManual deletes a manual price override
func (h *Handler) HandleRemoveManual(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))

	if err := h.repo.RemoveManual(userFrom(r), ticker); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"ticker": ticker, "status": "removed"})
}

// HandleListManual returns every active manual override for the user
func (h *Handler) HandleListManual(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.repo.ListManual(userFrom(r))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if overrides == nil {
		overrides = []ManualPrice{}
	}
	h.writeJSON(w, http.StatusOK, overrides)
}

// HandleRefresh runs the batch price refresh immediately
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	summary, err := h.refresh.RunContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":           summary.JobID,
		"requested":        summary.Requested,
		"succeeded":        summary.Succeeded,
		"failed":           summary.Failed,
		"skipped":          summary.Skipped,
		"duration_seconds": summary.Duration.Seconds(),
	})
}

func priceResponse(rec *PriceRecord) map[string]interface{} {
	resp := map[string]interface{}{
		"ticker":      rec.Ticker,
		"resolved":    true,
		"price":       rec.Price.InexactFloat64(),
		"currency":    rec.Currency,
		"source":      rec.Source,
		"fetched_at":  rec.FetchedAt,
		"age_seconds": rec.Age.Seconds(),
		"staleness":   rec.Staleness(),
	}
	if rec.Provider != "" {
		resp["provider"] = rec.Provider
	}
	if rec.ExpiresAt != nil {
		resp["expires_at"] = rec.ExpiresAt
	}
	return resp
}

func userFrom(r *http.Request) string {
	if u := r.Header.Get("X-User-ID"); u != "" {
		return u
	}
	return "default"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
