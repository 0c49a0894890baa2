/*
Package sqlite provides a SQLite-backed implementation of sales.Store.

PURPOSE:
  Local and development data store. Holds the same collections the hosted
  backend serves, so the engine can run end to end on a laptop. The Postgres
  store (store/postgres) uses the same table layout.

INTERFACES IMPLEMENTED:
  sales.Source:              Read side for snapshots
  sales.AuditExceptionStore: Payment suppressions

KEY TABLES:
  payments:         Canonical payment rows (amount as decimal text)
  leads:            Chat handles with the comment flag (NULL = unknown)
  managers:         Manager directory
  schedules:        One row per shift, geo_codes comma-joined
  rate_overrides:   UNIQUE(manager_id, scope)
  product_rates:    Ordered by position; order is the first-match order
  kpi_settings:     Single JSON document row, decoded by factory
  audit_exceptions: UNIQUE(payment_id)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, database-level
  concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/sales.db", logger)
  if err != nil {
      return err
  }
  defer store.Close()

SEE ALSO:
  - sales/store.go: Interface definitions
  - factory/settings.go: KPI settings document decoding
  - sales/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/factory"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// Store implements sales.Store using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	settings *factory.SettingsFactory
	logger   *zap.Logger
}

var _ sales.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open database")
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, settings: factory.NewSettingsFactory(logger), logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate database")
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		client_handle TEXT,
		transaction_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		product_name TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		manager_id TEXT,
		country TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_payments_date ON payments(transaction_date);

	CREATE TABLE IF NOT EXISTS leads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_handle TEXT NOT NULL,
		is_comment INTEGER
	);

	CREATE TABLE IF NOT EXISTS managers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		primary_geo TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		manager_id TEXT NOT NULL,
		date TEXT NOT NULL,
		geo_codes TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_schedules_date ON schedules(date);

	CREATE TABLE IF NOT EXISTS rate_overrides (
		manager_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		base_rate TEXT NOT NULL,
		bonus TEXT NOT NULL,
		penalty TEXT NOT NULL,
		PRIMARY KEY (manager_id, scope)
	);

	CREATE TABLE IF NOT EXISTS product_rates (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		pattern TEXT NOT NULL,
		reward_per_sale TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kpi_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		settings_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_exceptions (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL UNIQUE,
		reason TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// READ SIDE - sales.Source
// =============================================================================

// ListPayments returns every payment ordered by date.
func (s *Store) ListPayments(ctx context.Context) ([]sales.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_handle, transaction_date, amount, product_name,
		       payment_method, manager_id, country
		FROM payments
		ORDER BY transaction_date ASC, id ASC
	`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list payments")
	}
	defer rows.Close()

	var out []sales.Payment
	for rows.Next() {
		var (
			p               sales.Payment
			handle, manager sql.NullString
			date, amount    string
		)
		if err := rows.Scan(&p.ID, &handle, &date, &amount, &p.ProductName, &p.PaymentMethod, &manager, &p.Country); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan payment")
		}
		p.ClientHandle = handle.String
		p.ManagerID = generic.ManagerID(manager.String)

		// A zero date would rank the row first for its client.
		when, perr := time.Parse(time.RFC3339, date)
		if perr != nil {
			s.logger.Warn("sqlite: skipping payment row with bad date",
				zap.String("id", string(p.ID)), zap.String("date", date))
			continue
		}
		amt, perr := decimal.NewFromString(amount)
		if perr != nil {
			s.logger.Warn("sqlite: skipping payment row with bad amount",
				zap.String("id", string(p.ID)), zap.String("amount", amount))
			continue
		}
		p.TransactionDate = when
		p.Amount = amt
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate payments")
}

// ListLeads returns every lead in insertion order.
func (s *Store) ListLeads(ctx context.Context) ([]sales.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT chat_handle, is_comment FROM leads ORDER BY id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var out []sales.Lead
	for rows.Next() {
		var (
			l         sales.Lead
			isComment sql.NullBool
		)
		if err := rows.Scan(&l.ChatHandle, &isComment); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		if isComment.Valid {
			v := isComment.Bool
			l.IsComment = &v
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

// ListManagers returns every manager ordered by name.
func (s *Store) ListManagers(ctx context.Context) ([]sales.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, role, primary_geo, created_at FROM managers ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list managers")
	}
	defer rows.Close()

	var out []sales.Manager
	for rows.Next() {
		var (
			m         sales.Manager
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.PrimaryGeo, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan manager")
		}
		m.CreatedAt = s.parseCreatedAt("manager", string(m.ID), createdAt)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate managers")
}

// ListSchedules returns shifts in period ordered by date.
func (s *Store) ListSchedules(ctx context.Context, period generic.Period) ([]sales.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT manager_id, date, geo_codes FROM schedules
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, id ASC
	`, period.Start.String(), period.End.String())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list schedules")
	}
	defer rows.Close()

	var out []sales.ScheduleEntry
	for rows.Next() {
		var (
			e    sales.ScheduleEntry
			date string
		)
		if err := rows.Scan(&e.ManagerID, &date, &e.GeoCodes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan schedule")
		}
		if e.Date, err = generic.ParseDay(date); err != nil {
			s.logger.Warn("sqlite: skipping schedule row with bad date", zap.String("date", date))
			continue
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate schedules")
}

// ListRateOverrides returns every override.
func (s *Store) ListRateOverrides(ctx context.Context) ([]sales.RateOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT manager_id, scope, base_rate, bonus, penalty FROM rate_overrides
		ORDER BY manager_id ASC, scope ASC
	`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rate overrides")
	}
	defer rows.Close()

	var out []sales.RateOverride
	for rows.Next() {
		var (
			o                    sales.RateOverride
			base, bonus, penalty string
		)
		if err := rows.Scan(&o.ManagerID, &o.Scope, &base, &bonus, &penalty); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rate override")
		}
		o.BaseRate = generic.MustParseDecimal(base)
		o.Bonus = generic.MustParseDecimal(bonus)
		o.Penalty = generic.MustParseDecimal(penalty)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate rate overrides")
}

// ListProductRates returns rates in first-match order.
func (s *Store) ListProductRates(ctx context.Context) ([]sales.ProductRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT pattern, reward_per_sale FROM product_rates ORDER BY position ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list product rates")
	}
	defer rows.Close()

	var out []sales.ProductRate
	for rows.Next() {
		var (
			r      sales.ProductRate
			reward string
		)
		if err := rows.Scan(&r.Pattern, &reward); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product rate")
		}
		r.RewardPerSale = generic.MustParseDecimal(reward)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate product rates")
}

// GetKPISettings decodes the settings document. Malformed tier lists are
// logged by the factory and come back empty.
func (s *Store) GetKPISettings(ctx context.Context) (sales.KPISettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT settings_json FROM kpi_settings WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return sales.KPISettings{}, false, nil
	}
	if err != nil {
		return sales.KPISettings{}, false, eris.Wrap(err, "sqlite: get kpi settings")
	}
	return s.settings.ParseSettings(raw, generic.NewMoneyFromInt(0)), true, nil
}

// ListAuditExceptions returns suppressions, newest first.
func (s *Store) ListAuditExceptions(ctx context.Context) ([]sales.AuditException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payment_id, reason, created_by, created_at FROM audit_exceptions
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit exceptions")
	}
	defer rows.Close()

	var out []sales.AuditException
	for rows.Next() {
		var (
			e         sales.AuditException
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Reason, &e.CreatedBy, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit exception")
		}
		e.CreatedAt = s.parseCreatedAt("audit exception", string(e.ID), createdAt)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate audit exceptions")
}

// =============================================================================
// WRITE SIDE - sales.AuditExceptionStore
// =============================================================================

// AddAuditException suppresses a payment. The payment must exist.
func (s *Store) AddAuditException(ctx context.Context, paymentID generic.PaymentID, reason, createdBy string) (sales.AuditException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE id = ?`, paymentID).Scan(&count); err != nil {
		return sales.AuditException{}, eris.Wrap(err, "sqlite: check payment")
	}
	if count == 0 {
		return sales.AuditException{}, generic.ErrPaymentNotFound
	}

	e := sales.AuditException{
		ID:        generic.ExceptionID(uuid.NewString()),
		PaymentID: paymentID,
		Reason:    reason,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_exceptions (id, payment_id, reason, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.PaymentID, e.Reason, e.CreatedBy, e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return sales.AuditException{}, generic.ErrDuplicateException
		}
		return sales.AuditException{}, eris.Wrap(err, "sqlite: add audit exception")
	}
	return e, nil
}

// RemoveAuditException deletes a suppression.
func (s *Store) RemoveAuditException(ctx context.Context, id generic.ExceptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_exceptions WHERE id = ?`, id)
	if err != nil {
		return eris.Wrap(err, "sqlite: remove audit exception")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrExceptionNotFound
	}
	return nil
}

// =============================================================================
// SEEDING - sales.Importer
// =============================================================================

var _ sales.Importer = (*Store)(nil)

// Import writes every row of ds atomically. Payments, managers and overrides
// are upserted; leads, schedules and product rates are appended.
func (s *Store) Import(ctx context.Context, ds sales.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback()

	for _, p := range ds.Payments {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO payments
			(id, client_handle, transaction_date, amount, product_name, payment_method, manager_id, country)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, nullString(p.ClientHandle), p.TransactionDate.UTC().Format(time.RFC3339), p.Amount.String(),
			p.ProductName, p.PaymentMethod, nullString(string(p.ManagerID)), p.Country); err != nil {
			return eris.Wrapf(err, "sqlite: import payment %s", p.ID)
		}
	}
	for _, l := range ds.Leads {
		var isComment any
		if l.IsComment != nil {
			isComment = *l.IsComment
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO leads (chat_handle, is_comment) VALUES (?, ?)`, l.ChatHandle, isComment); err != nil {
			return eris.Wrap(err, "sqlite: import lead")
		}
	}
	for _, m := range ds.Managers {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO managers (id, name, role, primary_geo, created_at) VALUES (?, ?, ?, ?, ?)
		`, m.ID, m.Name, m.Role, m.PrimaryGeo, createdAt.UTC().Format(time.RFC3339)); err != nil {
			return eris.Wrapf(err, "sqlite: import manager %s", m.ID)
		}
	}
	for _, e := range ds.Schedules {
		if _, err := tx.ExecContext(ctx, `INSERT INTO schedules (manager_id, date, geo_codes) VALUES (?, ?, ?)`,
			e.ManagerID, e.Date.String(), e.GeoCodes); err != nil {
			return eris.Wrap(err, "sqlite: import schedule")
		}
	}
	for _, o := range ds.RateOverrides {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rate_overrides (manager_id, scope, base_rate, bonus, penalty) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(manager_id, scope) DO UPDATE SET
				base_rate = excluded.base_rate, bonus = excluded.bonus, penalty = excluded.penalty
		`, o.ManagerID, o.Scope, o.BaseRate.String(), o.Bonus.String(), o.Penalty.String()); err != nil {
			return eris.Wrapf(err, "sqlite: import rate override %s/%s", o.ManagerID, o.Scope)
		}
	}
	for _, r := range ds.ProductRates {
		if _, err := tx.ExecContext(ctx, `INSERT INTO product_rates (pattern, reward_per_sale) VALUES (?, ?)`,
			r.Pattern, r.RewardPerSale.String()); err != nil {
			return eris.Wrap(err, "sqlite: import product rate")
		}
	}
	if ds.Settings != nil {
		if err := saveSettings(ctx, tx, factory.EncodeSettings(*ds.Settings)); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit import")
}

// SaveRawSettings stores a settings document as-is. The dashboard writes
// tier lists double-encoded; this keeps that form intact.
func (s *Store) SaveRawSettings(ctx context.Context, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSettings(ctx, s.db, raw)
}

func saveSettings(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, raw string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kpi_settings (id, settings_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET settings_json = excluded.settings_json, updated_at = excluded.updated_at
	`, raw, time.Now().UTC().Format(time.RFC3339))
	return eris.Wrap(err, "sqlite: save kpi settings")
}

// Reset deletes all data (for scenario switching).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"audit_exceptions", "kpi_settings", "product_rates", "rate_overrides", "schedules", "managers", "leads", "payments"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "sqlite: reset %s", table)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// parseCreatedAt reads an informational timestamp. The row is still usable
// without it, so a bad value is logged and left zero.
func (s *Store) parseCreatedAt(kind, id, value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		s.logger.Warn("sqlite: bad created_at",
			zap.String("kind", kind), zap.String("id", id), zap.String("value", value))
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
