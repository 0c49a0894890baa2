// Package store provides an in-memory sales.Store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	payments     []sales.Payment
	leads        []sales.Lead
	managers     []sales.Manager
	schedules    []sales.ScheduleEntry
	overrides    []sales.RateOverride
	productRates []sales.ProductRate
	settings     *sales.KPISettings
	exceptions   []sales.AuditException

	now func() time.Time
}

var (
	_ sales.Store    = (*Memory)(nil)
	_ sales.Importer = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) AddPayments(ps ...sales.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, ps...)
}

func (m *Memory) AddLeads(ls ...sales.Lead) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = append(m.leads, ls...)
}

func (m *Memory) AddManagers(ms ...sales.Manager) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.managers = append(m.managers, ms...)
}

func (m *Memory) AddSchedules(ss ...sales.ScheduleEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = append(m.schedules, ss...)
}

// SetRateOverride inserts or replaces the override for (manager, scope).
func (m *Memory) SetRateOverride(o sales.RateOverride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.overrides {
		if existing.ManagerID == o.ManagerID && existing.Scope == o.Scope {
			m.overrides[i] = o
			return
		}
	}
	m.overrides = append(m.overrides, o)
}

func (m *Memory) AddProductRates(rs ...sales.ProductRate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productRates = append(m.productRates, rs...)
}

func (m *Memory) SetKPISettings(s sales.KPISettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
}

// Import appends ds. Overrides go through SetRateOverride so (manager, scope)
// stays unique.
func (m *Memory) Import(_ context.Context, ds sales.Dataset) error {
	m.AddPayments(ds.Payments...)
	m.AddLeads(ds.Leads...)
	m.AddManagers(ds.Managers...)
	m.AddSchedules(ds.Schedules...)
	for _, o := range ds.RateOverrides {
		m.SetRateOverride(o)
	}
	m.AddProductRates(ds.ProductRates...)
	if ds.Settings != nil {
		m.SetKPISettings(*ds.Settings)
	}
	return nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments, m.leads, m.managers, m.schedules = nil, nil, nil, nil
	m.overrides, m.productRates, m.exceptions = nil, nil, nil
	m.settings = nil
	return nil
}

// =============================================================================
// SOURCE
// =============================================================================

func (m *Memory) ListPayments(_ context.Context) ([]sales.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sales.Payment(nil), m.payments...), nil
}

func (m *Memory) ListLeads(_ context.Context) ([]sales.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sales.Lead(nil), m.leads...), nil
}

func (m *Memory) ListManagers(_ context.Context) ([]sales.Manager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sales.Manager(nil), m.managers...), nil
}

func (m *Memory) ListSchedules(_ context.Context, period generic.Period) ([]sales.ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []sales.ScheduleEntry
	for _, s := range m.schedules {
		if period.Contains(s.Date) {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (m *Memory) ListRateOverrides(_ context.Context) ([]sales.RateOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sales.RateOverride(nil), m.overrides...), nil
}

func (m *Memory) ListProductRates(_ context.Context) ([]sales.ProductRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sales.ProductRate(nil), m.productRates...), nil
}

func (m *Memory) GetKPISettings(_ context.Context) (sales.KPISettings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return sales.KPISettings{}, false, nil
	}
	return *m.settings, true, nil
}

func (m *Memory) ListAuditExceptions(_ context.Context) ([]sales.AuditException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sales.AuditException(nil), m.exceptions...), nil
}

// =============================================================================
// AUDIT EXCEPTIONS
// =============================================================================

func (m *Memory) AddAuditException(_ context.Context, paymentID generic.PaymentID, reason, createdBy string) (sales.AuditException, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.exceptions {
		if e.PaymentID == paymentID {
			return sales.AuditException{}, generic.ErrDuplicateException
		}
	}

	e := sales.AuditException{
		ID:        generic.ExceptionID(uuid.NewString()),
		PaymentID: paymentID,
		Reason:    reason,
		CreatedBy: createdBy,
		CreatedAt: m.now().UTC(),
	}
	m.exceptions = append(m.exceptions, e)
	return e, nil
}

func (m *Memory) RemoveAuditException(_ context.Context, id generic.ExceptionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.exceptions {
		if e.ID == id {
			m.exceptions = append(m.exceptions[:i], m.exceptions[i+1:]...)
			return nil
		}
	}
	return generic.ErrExceptionNotFound
}
