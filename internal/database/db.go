package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	if !strings.HasPrefix(dbPath, ":memory:") {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency between the refresh job and request handlers
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Migrate creates the schema if it does not exist yet. The transaction log is
// append-only; holdings are always recomputed from it and never stored.
func (db *DB) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL DEFAULT 'default',
			ticker      TEXT NOT NULL,
			type        TEXT NOT NULL CHECK (type IN ('BUY', 'SELL', 'DIVIDEND', 'FEE')),
			quantity    TEXT NOT NULL,
			price       TEXT NOT NULL,
			fees        TEXT NOT NULL DEFAULT '0',
			trade_date  TEXT NOT NULL,
			currency    TEXT NOT NULL DEFAULT 'USD',
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_ticker_date
			ON transactions (user_id, ticker, trade_date, id)`,
		`CREATE TABLE IF NOT EXISTS price_cache (
			ticker      TEXT PRIMARY KEY,
			price       TEXT NOT NULL,
			currency    TEXT NOT NULL DEFAULT 'USD',
			provider    TEXT NOT NULL,
			fetched_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS manual_prices (
			user_id     TEXT NOT NULL,
			ticker      TEXT NOT NULL,
			price       TEXT NOT NULL,
			currency    TEXT NOT NULL DEFAULT 'USD',
			note        TEXT,
			set_at      TEXT NOT NULL,
			expires_at  TEXT,
			PRIMARY KEY (user_id, ticker)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}
