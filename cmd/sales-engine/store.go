package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/engine"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/payroll"
	"github.com/astropanel/sales-engine/sales"
	"github.com/astropanel/sales-engine/sales/store"
	"github.com/astropanel/sales-engine/store/postgres"
	"github.com/astropanel/sales-engine/store/sqlite"
)

// appStore is what every backend offers: reads, exception writes and
// dataset import.
type appStore interface {
	sales.Store
	sales.Importer
	Close() error
}

type memoryStore struct{ *store.Memory }

func (memoryStore) Close() error { return nil }

func initStore(ctx context.Context) (appStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "sales.db"
		}
		st, err := sqlite.New(path, zap.L())
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return st, nil
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("postgres store requires a database URL (SALES_STORE_DATABASE_URL)")
		}
		st, err := postgres.New(ctx, cfg.Store.DatabaseURL, nil, zap.L())
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	case "memory":
		return memoryStore{store.NewMemory()}, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// engineOptions builds the compute options from config. month may be zero, in
// which case the engine uses the current month on every call.
func engineOptions(month generic.MonthKey) (func() engine.Options, error) {
	loc, err := cfg.Payroll.Location()
	if err != nil {
		return nil, err
	}
	opts := engine.Options{
		Month:              month,
		Clock:              generic.SystemClock,
		Location:           loc,
		FallbackBaseSalary: cfg.Payroll.BaseSalaryDecimal(),
		TeamGroups:         payroll.TeamGroups(cfg.Payroll.TeamGroups),
		TeamAward:          cfg.Payroll.TeamAwardDecimal(),
		RequiredGeos:       cfg.Audit.RequiredGeos,
		ExcludedTargets:    cfg.Audit.ExcludedTargets,
		Logger:             zap.L(),
	}
	return func() engine.Options { return opts }, nil
}

// parseMonthFlag parses a YYYY-MM flag value. Empty means zero.
func parseMonthFlag(name, value string) (generic.MonthKey, error) {
	if value == "" {
		return "", nil
	}
	m, err := generic.ParseMonthKey(value)
	if err != nil {
		return "", eris.Wrapf(err, "--%s", name)
	}
	return m, nil
}
