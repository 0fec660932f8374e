package ledger

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles transaction HTTP requests
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

// transactionRequest is the wire format for creating transactions. Numeric
// fields arrive already type-coerced by the upload collaborator; trade_date is
// a plain calendar date.
type transactionRequest struct {
	Ticker    string          `json:"ticker"`
	Type      string          `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fees      decimal.Decimal `json:"fees"`
	TradeDate string          `json:"trade_date"`
	Currency  string          `json:"currency"`
}

func (req *transactionRequest) toTransaction(userID string) (*Transaction, error) {
	tradeDate, err := time.Parse(dateFormat, req.TradeDate)
	if err != nil {
		return nil, err
	}

	return &Transaction{
		UserID:    userID,
		Ticker:    req.Ticker,
		Type:      TransactionType(req.Type),
		Quantity:  req.Quantity,
		Price:     req.Price,
		Fees:      req.Fees,
		TradeDate: tradeDate,
		Currency:  req.Currency,
	}, nil
}

// HandleCreate records a single manually entered transaction
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := req.toTransaction(userFrom(r))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid trade_date, expected YYYY-MM-DD")
		return
	}

	if err := h.repo.Create(tx); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, tx)
}

// HandleImport records a batch of transactions from the CSV upload collaborator
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var reqs []transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(reqs) == 0 {
		h.writeError(w, http.StatusBadRequest, "no transactions in request")
		return
	}

	userID := userFrom(r)
	txs := make([]*Transaction, 0, len(reqs))
	for _, req := range reqs {
		tx, err := req.toTransaction(userID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid trade_date, expected YYYY-MM-DD")
			return
		}
		txs = append(txs, tx)
	}

	if err := h.repo.CreateBatch(txs); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"imported": len(txs),
	})
}

// HandleList returns the user's full transaction history in trade-date order
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	txs, err := h.repo.GetAll(userFrom(r))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if txs == nil {
		txs = []Transaction{}
	}
	h.writeJSON(w, http.StatusOK, txs)
}

// HandleClear deletes the user's entire ledger ("clear portfolio")
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.repo.Clear(userFrom(r))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	})
}

// userFrom extracts the acting user. Auth is an external collaborator; it sets
// the X-User-ID header upstream, and a single-operator deployment omits it.
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
