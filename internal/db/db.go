package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a required row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPendingExists is returned when an order already has a pending reschedule request.
	ErrPendingExists = errors.New("pending reschedule request already exists")
	// ErrNotPending is returned when a conditional transition matched no pending row.
	ErrNotPending = errors.New("reschedule request is no longer pending")
)

// querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// policyRows reads and writes shop policy rows and ledger counts through q.
type policyRows struct {
	q querier
}

// DB wraps sql.DB for the booking engine.
type DB struct {
	*sql.DB
	policyRows
	path   string
	logger *zerolog.Logger
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Writers take the lock at BEGIN so concurrent transitions queue on busy_timeout.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: sqlDB, policyRows: policyRows{q: sqlDB}, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	instance.ensureNewColumns()

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS shop_availability (
			shop_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
			is_open BOOLEAN NOT NULL DEFAULT 0,
			open_time TEXT,
			close_time TEXT,
			break_start_time TEXT,
			break_end_time TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (shop_id, day_of_week)
		)`,

		`CREATE TABLE IF NOT EXISTS shop_time_slot_config (
			shop_id TEXT PRIMARY KEY,
			slot_duration_minutes INTEGER NOT NULL DEFAULT 60,
			buffer_time_minutes INTEGER NOT NULL DEFAULT 15,
			max_concurrent_bookings INTEGER NOT NULL DEFAULT 1,
			booking_advance_days INTEGER NOT NULL DEFAULT 30,
			min_booking_hours INTEGER NOT NULL DEFAULT 2,
			allow_weekend_booking BOOLEAN NOT NULL DEFAULT 1,
			timezone TEXT NOT NULL DEFAULT 'America/New_York',
			allow_reschedule BOOLEAN NOT NULL DEFAULT 1,
			max_reschedules_per_order INTEGER NOT NULL DEFAULT 2,
			reschedule_expiration_hours INTEGER NOT NULL DEFAULT 48,
			auto_approve_reschedule BOOLEAN NOT NULL DEFAULT 0,
			require_reschedule_reason BOOLEAN NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS service_durations (
			service_id TEXT PRIMARY KEY,
			duration_minutes INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS shop_date_overrides (
			shop_id TEXT NOT NULL,
			override_date TEXT NOT NULL,
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			custom_open_time TEXT,
			custom_close_time TEXT,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (shop_id, override_date)
		)`,

		`CREATE TABLE IF NOT EXISTS service_orders (
			order_id TEXT PRIMARY KEY,
			shop_id TEXT NOT NULL,
			service_id TEXT,
			customer_address TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			booking_date TEXT,
			booking_time_slot TEXT,
			booking_end_time TEXT,
			reschedule_count INTEGER NOT NULL DEFAULT 0,
			shop_name TEXT,
			service_name TEXT,
			customer_name TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS reschedule_requests (
			request_id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			shop_id TEXT NOT NULL,
			customer_address TEXT NOT NULL,
			original_date TEXT NOT NULL,
			original_time_slot TEXT NOT NULL,
			original_end_time TEXT,
			requested_date TEXT NOT NULL,
			requested_time_slot TEXT NOT NULL,
			requested_end_time TEXT,
			customer_reason TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			shop_response_reason TEXT,
			responded_at DATETIME,
			responded_by TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (order_id) REFERENCES service_orders(order_id)
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_orders_shop_date ON service_orders(shop_id, booking_date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_shop_date ON shop_date_overrides(shop_id, override_date)`,
		`CREATE INDEX IF NOT EXISTS idx_reschedule_status_expires ON reschedule_requests(status, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reschedule_shop ON reschedule_requests(shop_id, created_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reschedule_one_pending ON reschedule_requests(order_id) WHERE status = 'pending'`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

// ensureNewColumns adds audit columns to order tables created by older releases.
func (db *DB) ensureNewColumns() {
	migrations := []string{
		`ALTER TABLE service_orders ADD COLUMN original_booking_date TEXT`,
		`ALTER TABLE service_orders ADD COLUMN original_booking_time_slot TEXT`,
		`ALTER TABLE service_orders ADD COLUMN last_rescheduled_at DATETIME`,
		`ALTER TABLE service_orders ADD COLUMN reschedule_reason TEXT`,
	}

	for _, m := range migrations {
		_, err := db.Exec(m)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			db.logger.Debug().Err(err).Str("migration", trimSQL(m)).Msg("Migration skipped")
		}
	}
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// HealthCheck verifies the connection for readiness checks.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func isMissingColumn(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such column")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
