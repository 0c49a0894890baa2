/*
Package postgres implements sales.Store on the hosted PostgreSQL backend.

PURPOSE:
  Production data store. Reads full collections for snapshots and writes
  audit exceptions. The table layout matches store/sqlite so both backends
  can be seeded from the same scenario files.

MONEY:
  Amounts are NUMERIC columns read back as text (::text) and parsed into
  decimals, so no value ever passes through float64.

TESTING:
  The store depends on the Pool interface rather than *pgxpool.Pool, which
  lets tests substitute pgxmock.

SEE ALSO:
  - sales/store.go: Interface definitions
  - store/sqlite/sqlite.go: Local backend with the same schema
*/
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/factory"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgreSQL error codes the store maps to sentinels.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store implements sales.Store using a pgx pool.
type Store struct {
	pool     Pool
	settings *factory.SettingsFactory
	logger   *zap.Logger
}

var _ sales.Store = (*Store)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// New connects to connString and verifies the connection.
func New(ctx context.Context, connString string, poolCfg *PoolConfig, logger *zap.Logger) (*Store, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return NewWithPool(pool, logger), nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, settings: factory.NewSettingsFactory(logger), logger: logger}
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const migration = `
CREATE TABLE IF NOT EXISTS payments (
	id               TEXT PRIMARY KEY,
	client_handle    TEXT,
	transaction_date TIMESTAMPTZ NOT NULL,
	amount           NUMERIC(12, 2) NOT NULL,
	product_name     TEXT NOT NULL DEFAULT '',
	payment_method   TEXT NOT NULL DEFAULT '',
	manager_id       TEXT,
	country          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_payments_date ON payments(transaction_date);

CREATE TABLE IF NOT EXISTS leads (
	id          BIGSERIAL PRIMARY KEY,
	chat_handle TEXT NOT NULL,
	is_comment  BOOLEAN
);

CREATE TABLE IF NOT EXISTS managers (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	role        TEXT NOT NULL,
	primary_geo TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS schedules (
	id         BIGSERIAL PRIMARY KEY,
	manager_id TEXT NOT NULL,
	date       DATE NOT NULL,
	geo_codes  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_schedules_date ON schedules(date);

CREATE TABLE IF NOT EXISTS rate_overrides (
	manager_id TEXT NOT NULL,
	scope      TEXT NOT NULL,
	base_rate  NUMERIC(12, 2) NOT NULL,
	bonus      NUMERIC(12, 2) NOT NULL DEFAULT 0,
	penalty    NUMERIC(12, 2) NOT NULL DEFAULT 0,
	PRIMARY KEY (manager_id, scope)
);

CREATE TABLE IF NOT EXISTS product_rates (
	position        BIGSERIAL PRIMARY KEY,
	pattern         TEXT NOT NULL,
	reward_per_sale NUMERIC(12, 2) NOT NULL
);

CREATE TABLE IF NOT EXISTS kpi_settings (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	settings_json JSONB NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_exceptions (
	id         TEXT PRIMARY KEY,
	payment_id TEXT NOT NULL UNIQUE REFERENCES payments(id) ON DELETE CASCADE,
	reason     TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migration)
	return eris.Wrap(err, "postgres: migrate")
}

// =============================================================================
// READ SIDE - sales.Source
// =============================================================================

func (s *Store) ListPayments(ctx context.Context) ([]sales.Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(client_handle, ''), transaction_date, amount::text, product_name,
		       payment_method, COALESCE(manager_id, ''), country
		FROM payments ORDER BY transaction_date ASC, id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list payments")
	}
	defer rows.Close()

	var out []sales.Payment
	for rows.Next() {
		var (
			p                   sales.Payment
			id, manager, amount string
		)
		if err := rows.Scan(&id, &p.ClientHandle, &p.TransactionDate, &amount, &p.ProductName, &p.PaymentMethod, &manager, &p.Country); err != nil {
			return nil, eris.Wrap(err, "postgres: scan payment")
		}
		p.ID = generic.PaymentID(id)
		p.ManagerID = generic.ManagerID(manager)
		p.Amount = generic.MustParseDecimal(amount)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate payments")
}

func (s *Store) ListLeads(ctx context.Context) ([]sales.Lead, error) {
	rows, err := s.pool.Query(ctx, `SELECT chat_handle, is_comment FROM leads ORDER BY id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var out []sales.Lead
	for rows.Next() {
		var l sales.Lead
		if err := rows.Scan(&l.ChatHandle, &l.IsComment); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate leads")
}

func (s *Store) ListManagers(ctx context.Context) ([]sales.Manager, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, role, primary_geo, created_at FROM managers ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list managers")
	}
	defer rows.Close()

	var out []sales.Manager
	for rows.Next() {
		var (
			m        sales.Manager
			id, role string
		)
		if err := rows.Scan(&id, &m.Name, &role, &m.PrimaryGeo, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan manager")
		}
		m.ID = generic.ManagerID(id)
		m.Role = sales.Role(role)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate managers")
}

func (s *Store) ListSchedules(ctx context.Context, period generic.Period) ([]sales.ScheduleEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT manager_id, date, geo_codes FROM schedules
		WHERE date BETWEEN $1 AND $2
		ORDER BY date ASC, id ASC`, period.Start.Time, period.End.Time)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list schedules")
	}
	defer rows.Close()

	var out []sales.ScheduleEntry
	for rows.Next() {
		var (
			e       sales.ScheduleEntry
			manager string
			date    time.Time
		)
		if err := rows.Scan(&manager, &date, &e.GeoCodes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan schedule")
		}
		e.ManagerID = generic.ManagerID(manager)
		e.Date = generic.NewTimePoint(date.Year(), date.Month(), date.Day())
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate schedules")
}

func (s *Store) ListRateOverrides(ctx context.Context) ([]sales.RateOverride, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT manager_id, scope, base_rate::text, bonus::text, penalty::text
		FROM rate_overrides ORDER BY manager_id ASC, scope ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rate overrides")
	}
	defer rows.Close()

	var out []sales.RateOverride
	for rows.Next() {
		var (
			o                             sales.RateOverride
			manager, base, bonus, penalty string
		)
		if err := rows.Scan(&manager, &o.Scope, &base, &bonus, &penalty); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rate override")
		}
		o.ManagerID = generic.ManagerID(manager)
		o.BaseRate = generic.MustParseDecimal(base)
		o.Bonus = generic.MustParseDecimal(bonus)
		o.Penalty = generic.MustParseDecimal(penalty)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate rate overrides")
}

func (s *Store) ListProductRates(ctx context.Context) ([]sales.ProductRate, error) {
	rows, err := s.pool.Query(ctx, `SELECT pattern, reward_per_sale::text FROM product_rates ORDER BY position ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list product rates")
	}
	defer rows.Close()

	var out []sales.ProductRate
	for rows.Next() {
		var (
			r      sales.ProductRate
			reward string
		)
		if err := rows.Scan(&r.Pattern, &reward); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product rate")
		}
		r.RewardPerSale = generic.MustParseDecimal(reward)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate product rates")
}

// GetKPISettings decodes the settings document through the factory, which
// logs and empties malformed tier lists.
func (s *Store) GetKPISettings(ctx context.Context) (sales.KPISettings, bool, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT settings_json::text FROM kpi_settings WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return sales.KPISettings{}, false, nil
	}
	if err != nil {
		return sales.KPISettings{}, false, eris.Wrap(err, "postgres: get kpi settings")
	}
	return s.settings.ParseSettings(raw, generic.NewMoneyFromInt(0)), true, nil
}

func (s *Store) ListAuditExceptions(ctx context.Context) ([]sales.AuditException, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, payment_id, reason, created_by, created_at
		FROM audit_exceptions ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit exceptions")
	}
	defer rows.Close()

	var out []sales.AuditException
	for rows.Next() {
		var (
			e             sales.AuditException
			id, paymentID string
		)
		if err := rows.Scan(&id, &paymentID, &e.Reason, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit exception")
		}
		e.ID = generic.ExceptionID(id)
		e.PaymentID = generic.PaymentID(paymentID)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate audit exceptions")
}

// =============================================================================
// WRITE SIDE - sales.AuditExceptionStore
// =============================================================================

// AddAuditException relies on the UNIQUE and REFERENCES constraints to
// detect duplicates and unknown payments.
func (s *Store) AddAuditException(ctx context.Context, paymentID generic.PaymentID, reason, createdBy string) (sales.AuditException, error) {
	e := sales.AuditException{
		ID:        generic.ExceptionID(uuid.NewString()),
		PaymentID: paymentID,
		Reason:    reason,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_exceptions (id, payment_id, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(e.ID), string(e.PaymentID), e.Reason, e.CreatedBy, e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return sales.AuditException{}, generic.ErrDuplicateException
			case foreignKeyViolation:
				return sales.AuditException{}, generic.ErrPaymentNotFound
			}
		}
		return sales.AuditException{}, eris.Wrap(err, "postgres: add audit exception")
	}
	return e, nil
}

func (s *Store) RemoveAuditException(ctx context.Context, id generic.ExceptionID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_exceptions WHERE id = $1`, string(id))
	if err != nil {
		return eris.Wrap(err, "postgres: remove audit exception")
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrExceptionNotFound
	}
	return nil
}

// =============================================================================
// SEEDING - sales.Importer
// =============================================================================

var _ sales.Importer = (*Store)(nil)

// Import writes every row of ds in one transaction. Payments, managers and
// overrides are upserted; leads, schedules and product rates are appended.
func (s *Store) Import(ctx context.Context, ds sales.Dataset) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin import")
	}
	defer tx.Rollback(ctx)

	for _, p := range ds.Payments {
		_, err := tx.Exec(ctx, `
			INSERT INTO payments (id, client_handle, transaction_date, amount, product_name, payment_method, manager_id, country)
			VALUES ($1, NULLIF($2, ''), $3, $4::numeric, $5, $6, NULLIF($7, ''), $8)
			ON CONFLICT (id) DO UPDATE SET
				client_handle = EXCLUDED.client_handle, transaction_date = EXCLUDED.transaction_date,
				amount = EXCLUDED.amount, product_name = EXCLUDED.product_name,
				payment_method = EXCLUDED.payment_method, manager_id = EXCLUDED.manager_id,
				country = EXCLUDED.country`,
			string(p.ID), p.ClientHandle, p.TransactionDate, p.Amount.String(), p.ProductName,
			p.PaymentMethod, string(p.ManagerID), p.Country)
		if err != nil {
			return eris.Wrapf(err, "postgres: import payment %s", p.ID)
		}
	}
	for _, l := range ds.Leads {
		if _, err := tx.Exec(ctx, `INSERT INTO leads (chat_handle, is_comment) VALUES ($1, $2)`, l.ChatHandle, l.IsComment); err != nil {
			return eris.Wrap(err, "postgres: import lead")
		}
	}
	for _, m := range ds.Managers {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO managers (id, name, role, primary_geo, created_at) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, primary_geo = EXCLUDED.primary_geo`,
			string(m.ID), m.Name, string(m.Role), m.PrimaryGeo, createdAt)
		if err != nil {
			return eris.Wrapf(err, "postgres: import manager %s", m.ID)
		}
	}
	for _, e := range ds.Schedules {
		if _, err := tx.Exec(ctx, `INSERT INTO schedules (manager_id, date, geo_codes) VALUES ($1, $2, $3)`,
			string(e.ManagerID), e.Date.Time, e.GeoCodes); err != nil {
			return eris.Wrap(err, "postgres: import schedule")
		}
	}
	for _, o := range ds.RateOverrides {
		_, err := tx.Exec(ctx, `
			INSERT INTO rate_overrides (manager_id, scope, base_rate, bonus, penalty)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric)
			ON CONFLICT (manager_id, scope) DO UPDATE SET
				base_rate = EXCLUDED.base_rate, bonus = EXCLUDED.bonus, penalty = EXCLUDED.penalty`,
			string(o.ManagerID), o.Scope, o.BaseRate.String(), o.Bonus.String(), o.Penalty.String())
		if err != nil {
			return eris.Wrapf(err, "postgres: import rate override %s/%s", o.ManagerID, o.Scope)
		}
	}
	for _, r := range ds.ProductRates {
		if _, err := tx.Exec(ctx, `INSERT INTO product_rates (pattern, reward_per_sale) VALUES ($1, $2::numeric)`,
			r.Pattern, r.RewardPerSale.String()); err != nil {
			return eris.Wrap(err, "postgres: import product rate")
		}
	}
	if ds.Settings != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO kpi_settings (id, settings_json, updated_at) VALUES (1, $1::jsonb, now())
			ON CONFLICT (id) DO UPDATE SET settings_json = EXCLUDED.settings_json, updated_at = now()`,
			factory.EncodeSettings(*ds.Settings))
		if err != nil {
			return eris.Wrap(err, "postgres: save kpi settings")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit import")
}

// Reset deletes all data (for scenario switching).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE audit_exceptions, kpi_settings, product_rates, rate_overrides, schedules, managers, leads, payments`)
	return eris.Wrap(err, "postgres: reset")
}
