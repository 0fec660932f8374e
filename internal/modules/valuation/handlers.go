package valuation

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles portfolio valuation HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new valuation handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "valuation").Logger(),
	}
}

// HandleGetPortfolio returns per-holding valuations. The three UI states are
// kept distinct: valued holdings carry numbers, unpriced holdings carry nulls,
// and integrity errors are listed separately.
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	pv, err := h.service.ValuePortfolio(r.Context(), userFrom(r))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rows := make([]map[string]interface{}, 0, len(pv.Holdings))
	for _, v := range pv.Holdings {
		row := map[string]interface{}{
			"ticker":            v.Ticker,
			"quantity":          v.Quantity.InexactFloat64(),
			"avg_cost":          roundDec(v.AvgCost, 4),
			"cost_basis":        roundDec(v.CostBasis, 2),
			"currency":          v.Currency,
			"dividend_income":   roundDec(v.DividendIncome, 2),
			"current_price":     roundDecPtr(v.CurrentPrice, 4),
			"current_value":     roundDecPtr(v.CurrentValue, 2),
			"unrealized_return": roundDecPtr(v.UnrealizedReturn, 2),
			"return_percentage": roundDecPtr(v.ReturnPercentage, 2),
			"has_price":         v.Priced(),
		}
		if v.Priced() {
			row["price_source"] = v.PriceSource
			row["price_staleness"] = v.PriceStaleness
		}
		rows = append(rows, row)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"holdings":         rows,
		"integrity_errors": pv.IntegrityErrors,
	})
}

// HandleGetSummary returns the aggregate portfolio view
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	pv, err := h.service.ValuePortfolio(r.Context(), userFrom(r))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_cost_basis":      roundDec(pv.TotalCostBasis, 2),
		"total_current_value":   roundDecPtr(pv.TotalCurrentValue, 2),
		"total_return":          roundDecPtr(pv.TotalReturn, 2),
		"return_percentage":     roundDecPtr(pv.ReturnPercentage, 2),
		"total_dividend_income": roundDec(pv.TotalDividendIncome, 2),
		"holdings_count":        len(pv.Holdings),
		"holdings_with_data":    pv.HoldingsWithData,
		"holdings_without_data": pv.HoldingsWithoutData,
		"integrity_error_count": len(pv.IntegrityErrors),
	})
}

// roundDec rounds for display only; all upstream arithmetic stays decimal.
func roundDec(d decimal.Decimal, places int32) float64 {
	f := d.Round(places).InexactFloat64()
	// Normalize negative zero for JSON output
	if f == 0 {
		return 0
	}
	return f
}

func roundDecPtr(d *decimal.Decimal, places int32) *float64 {
	if d == nil {
		return nil
	}
	f := roundDec(*d, places)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
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
