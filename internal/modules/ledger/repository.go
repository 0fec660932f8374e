package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const dateFormat = "2006-01-02"

// Repository handles transaction database operations. The transactions table
// is append-only: there is no update path, and rows are only removed by Clear.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Create inserts a new transaction record
func (r *Repository) Create(tx *Transaction) error {
	tx.Normalize()
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO transactions
		(user_id, ticker, type, quantity, price, fees, trade_date, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.db.Exec(query,
		tx.UserID,
		tx.Ticker,
		string(tx.Type),
		tx.Quantity.String(),
		tx.Price.String(),
		tx.Fees.String(),
		tx.TradeDate.Format(dateFormat),
		tx.Currency,
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	tx.ID, _ = res.LastInsertId()
	tx.CreatedAt = now

	r.log.Info().
		Str("ticker", tx.Ticker).
		Str("type", string(tx.Type)).
		Str("quantity", tx.Quantity.String()).
		Msg("Transaction created")

	return nil
}

// CreateBatch inserts a set of transactions atomically. Used by the CSV import
// endpoint: either the whole file lands in the ledger or none of it does.
func (r *Repository) CreateBatch(txs []*Transaction) error {
	for _, tx := range txs {
		tx.Normalize()
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("invalid transaction for %s: %w", tx.Ticker, err)
		}
	}

	dbTx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin batch insert: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO transactions
		(user_id, ticker, type, quantity, price, fees, trade_date, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, tx := range txs {
		if _, err := stmt.Exec(
			tx.UserID,
			tx.Ticker,
			string(tx.Type),
			tx.Quantity.String(),
			tx.Price.String(),
			tx.Fees.String(),
			tx.TradeDate.Format(dateFormat),
			tx.Currency,
			now.Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to insert transaction for %s: %w", tx.Ticker, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch insert: %w", err)
	}

	r.log.Info().Int("count", len(txs)).Msg("Transaction batch imported")
	return nil
}

// GetByTicker returns the full transaction history for one ticker, sorted
// ascending by trade date with insertion order breaking ties. This ordering is
// what the lot accounting engine depends on.
func (r *Repository) GetByTicker(userID, ticker string) ([]Transaction, error) {
	query := `
		SELECT id, user_id, ticker, type, quantity, price, fees, trade_date, currency, created_at
		FROM transactions
		WHERE user_id = ? AND ticker = ?
		ORDER BY trade_date ASC, id ASC
	`

	rows, err := r.db.Query(query, userID, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for %s: %w", ticker, err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// GetAll returns every transaction for a user in trade-date order.
func (r *Repository) GetAll(userID string) ([]Transaction, error) {
	query := `
		SELECT id, user_id, ticker, type, quantity, price, fees, trade_date, currency, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY trade_date ASC, id ASC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListTickers returns the distinct tickers present in a user's ledger.
func (r *Repository) ListTickers(userID string) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT ticker FROM transactions WHERE user_id = ? ORDER BY ticker`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// ListAllTickers returns the distinct tickers across every user's ledger.
// The batch price refresh job works off this set.
func (r *Repository) ListAllTickers() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT ticker FROM transactions ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// Count returns the number of ledger entries for a user.
func (r *Repository) Count(userID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// Clear removes every transaction for a user. This is the only delete path:
// the explicit "clear portfolio" operation.
func (r *Repository) Clear(userID string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear transactions: %w", err)
	}

	deleted, _ := res.RowsAffected()
	r.log.Info().Str("user", userID).Int64("deleted", deleted).Msg("Portfolio cleared")
	return deleted, nil
}

func (r *Repository) collect(rows *sql.Rows) ([]Transaction, error) {
	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(rows *sql.Rows) (Transaction, error) {
	var (
		tx                             Transaction
		typ                            string
		quantity, price, fees          string
		tradeDate, createdAt, currency string
	)

	if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Ticker, &typ,
		&quantity, &price, &fees, &tradeDate, &currency, &createdAt); err != nil {
		return Transaction{}, err
	}

	tx.Type = TransactionType(typ)
	tx.Currency = currency

	var err error
	if tx.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return Transaction{}, fmt.Errorf("bad quantity %q: %w", quantity, err)
	}
	if tx.Price, err = decimal.NewFromString(price); err != nil {
		return Transaction{}, fmt.Errorf("bad price %q: %w", price, err)
	}
	if tx.Fees, err = decimal.NewFromString(fees); err != nil {
		return Transaction{}, fmt.Errorf("bad fees %q: %w", fees, err)
	}
	if tx.TradeDate, err = time.Parse(dateFormat, tradeDate); err != nil {
		return Transaction{}, fmt.Errorf("bad trade date %q: %w", tradeDate, err)
	}
	if tx.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Transaction{}, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}

	return tx, nil
}
