// Package store provides RecordStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lustra/fiscal-engine/fiscal"
	"github.com/lustra/fiscal-engine/weekly"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	tax  map[string]fiscal.WeeklyTaxRecord
	perf map[perfKey]fiscal.WeeklyPerformanceRecord
}

type perfKey struct {
	EmployeeID  string
	PeriodStart string
}

func NewMemory() *Memory {
	return &Memory{
		tax:  make(map[string]fiscal.WeeklyTaxRecord),
		perf: make(map[perfKey]fiscal.WeeklyPerformanceRecord),
	}
}

func (m *Memory) GetTaxRecord(_ context.Context, periodStart fiscal.Date) (*fiscal.WeeklyTaxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.tax[periodStart.String()]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) PutTaxRecord(_ context.Context, rec fiscal.WeeklyTaxRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tax[rec.PeriodStart.String()] = rec
	return nil
}

func (m *Memory) ListTaxRecords(_ context.Context, finalized *bool) ([]fiscal.WeeklyTaxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []fiscal.WeeklyTaxRecord
	for _, rec := range m.tax {
		if finalized != nil && rec.IsFinalized != *finalized {
			continue
		}
		out = append(out, rec)
	}
	// Newest period first.
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodStart.After(out[j].PeriodStart)
	})
	return out, nil
}

func (m *Memory) GetPerformanceRecord(_ context.Context, employeeID string, periodStart fiscal.Date) (*fiscal.WeeklyPerformanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.perf[perfKey{employeeID, periodStart.String()}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) PutPerformanceRecord(_ context.Context, rec fiscal.WeeklyPerformanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.perf[perfKey{rec.EmployeeID, rec.PeriodStart.String()}] = rec
	return nil
}

func (m *Memory) ListPerformanceRecords(_ context.Context, periodStart fiscal.Date) ([]fiscal.WeeklyPerformanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []fiscal.WeeklyPerformanceRecord
	for k, rec := range m.perf {
		if k.PeriodStart == periodStart.String() {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

func (m *Memory) OpenPerformancePeriods(_ context.Context) ([]fiscal.Date, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []fiscal.Date
	for _, rec := range m.perf {
		if rec.IsFinalized || seen[rec.PeriodStart.String()] {
			continue
		}
		seen[rec.PeriodStart.String()] = true
		out = append(out, rec.PeriodStart)
	}
	// Oldest first.
	sort.Slice(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out, nil
}

// WithTx runs fn against the store directly. The memory store has no
// rollback; tests that need transactional failure inject a failing store.
func (m *Memory) WithTx(ctx context.Context, fn func(weekly.RecordStore) error) error {
	return fn(m)
}
