package stats

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/rs/zerolog"
)

// Handler handles portfolio statistics HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new stats handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "stats").Logger(),
	}
}

// HandleGetStats returns the cross-sectional statistics report
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ComputeStats(r.Context(), userFrom(r))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if stats.SampleSize == 0 {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"sample_size":    0,
			"excluded_count": stats.ExcludedCount,
			"message":        "no priced holdings to analyze",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sample_size":    stats.SampleSize,
		"excluded_count": stats.ExcludedCount,
		"returns": map[string]interface{}{
			"mean":       round2(stats.MeanReturn),
			"median":     round2(stats.MedianReturn),
			"min":        round2(stats.MinReturn),
			"max":        round2(stats.MaxReturn),
			"dispersion": round2(stats.ReturnDispersion),
			"win_rate":   round2(stats.WinRate),
		},
		"concentration": map[string]interface{}{
			"top_position_ticker": stats.TopPositionTicker,
			"top_position_weight": round2(stats.TopPositionWeight),
			"top_3_weight":        round2(stats.Top3Weight),
			"hhi":                 round2(stats.HHI),
			"level":               stats.ConcentrationLevel,
			"risk":                stats.ConcentrationRisk,
		},
		"risk_level":            stats.RiskLevel,
		"diversification_score": round2(stats.DiversificationScore),
	})
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0
	}
	return r
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
