package holdings

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/rs/zerolog"
)

// Handler handles holdings HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new holdings handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "holdings").Logger(),
	}
}

// HandleGetHoldings returns current holdings derived from the transaction log,
// with per-ticker integrity errors reported alongside (never merged into the
// holdings themselves).
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = "default"
	}

	hs, integrity, err := h.service.ComputeAll(userID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Largest cost basis first
	sort.Slice(hs, func(i, j int) bool {
		return hs[i].CostBasis.GreaterThan(hs[j].CostBasis)
	})

	if hs == nil {
		hs = []Holding{}
	}
	if integrity == nil {
		integrity = []TickerError{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"holdings":         hs,
		"integrity_errors": integrity,
	})
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
