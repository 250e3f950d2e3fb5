package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection turns
	// concurrent writes into queued writes instead of SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	// Money columns are decimal strings, not REAL: settlement math must be
	// exact, and the sums happen in Go with shopspring/decimal anyway.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_reports (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			machine_id TEXT NOT NULL,
			employee_id TEXT,
			report_date TEXT NOT NULL,
			counts_json TEXT NOT NULL,
			receipt_json TEXT,
			operator_cut_pct TEXT NOT NULL,
			counted_total TEXT NOT NULL,
			computed_balance TEXT NOT NULL,
			balance_source TEXT NOT NULL,
			variance TEXT NOT NULL,
			computed_commission TEXT NOT NULL,
			operator_share TEXT NOT NULL,
			retailer_share TEXT NOT NULL,
			commission_withdrawn TEXT NOT NULL DEFAULT '0',
			is_loss INTEGER NOT NULL DEFAULT 0,
			is_paid INTEGER NOT NULL DEFAULT 0,
			paid_in_batch_id TEXT,
			supersedes_report_id TEXT,
			superseded INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		// One live report per machine per collection day; corrections must
		// supersede the existing one.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_live_machine_date
			ON daily_reports(tenant_id, machine_id, report_date) WHERE superseded = 0`,
		`CREATE INDEX IF NOT EXISTS idx_reports_unpaid ON daily_reports(tenant_id, is_paid)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_batch ON daily_reports(paid_in_batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_date ON daily_reports(report_date)`,

		`CREATE TABLE IF NOT EXISTS payout_batches (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			total_amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			report_count INTEGER NOT NULL,
			notes TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_tenant ON payout_batches(tenant_id)`,

		`CREATE TABLE IF NOT EXISTS commission_withdrawals (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			notes TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_tenant ON commission_withdrawals(tenant_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}
