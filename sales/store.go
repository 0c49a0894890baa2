/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the boundary between the engine and the hosted data store. The
  engine never queries; it asks a Source for full collections and computes
  everything from that snapshot.

KEY INTERFACES:
  Source:              Read access to every collection the engine needs
  AuditExceptionStore: Add/remove payment suppressions
  Store:               Both, as implemented by every backend
  Importer:            Bulk seeding used by the seed command and scenarios

MUTATION CONTRACT:
  AddAuditException and RemoveAuditException only change the suppression
  set. They never trigger recomputation themselves; the caller decides when
  to recompute.

IMPLEMENTATIONS:
  - sales/store/memory.go: In-memory for tests and demos
  - store/sqlite/sqlite.go: Local SQLite database
  - store/postgres/postgres.go: Hosted PostgreSQL backend

SEE ALSO:
  - engine/snapshot.go: Loads a Snapshot from a Source
*/
package sales

import (
	"context"

	"github.com/astropanel/sales-engine/generic"
)

// =============================================================================
// SOURCE - Read side
// =============================================================================

// Source returns full, unfiltered collections.
type Source interface {
	ListPayments(ctx context.Context) ([]Payment, error)
	ListLeads(ctx context.Context) ([]Lead, error)
	ListManagers(ctx context.Context) ([]Manager, error)

	// ListSchedules returns schedule rows whose date falls in period.
	ListSchedules(ctx context.Context, period generic.Period) ([]ScheduleEntry, error)

	ListRateOverrides(ctx context.Context) ([]RateOverride, error)
	ListProductRates(ctx context.Context) ([]ProductRate, error)

	// GetKPISettings returns the global settings. found is false when no
	// settings row exists; callers fall back to configured defaults.
	GetKPISettings(ctx context.Context) (settings KPISettings, found bool, err error)

	ListAuditExceptions(ctx context.Context) ([]AuditException, error)
}

// =============================================================================
// AUDIT EXCEPTION STORE - Write side
// =============================================================================

type AuditExceptionStore interface {
	// AddAuditException suppresses a payment. Returns ErrDuplicateException
	// if the payment is already suppressed.
	AddAuditException(ctx context.Context, paymentID generic.PaymentID, reason, createdBy string) (AuditException, error)

	// RemoveAuditException deletes a suppression. Returns ErrExceptionNotFound
	// for unknown ids.
	RemoveAuditException(ctx context.Context, id generic.ExceptionID) error
}

// Store is implemented by every backend.
type Store interface {
	Source
	AuditExceptionStore
}

// =============================================================================
// IMPORTER - Seeding
// =============================================================================

// Dataset is a full set of rows written in one call.
type Dataset struct {
	Payments      []Payment
	Leads         []Lead
	Managers      []Manager
	Schedules     []ScheduleEntry
	RateOverrides []RateOverride
	ProductRates  []ProductRate
	Settings      *KPISettings
}

// Importer bulk-loads datasets. Reset empties every collection.
type Importer interface {
	Import(ctx context.Context, ds Dataset) error
	Reset(ctx context.Context) error
}
