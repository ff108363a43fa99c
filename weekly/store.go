/*
store.go - Persistence interface for weekly records

PURPOSE:
  Defines the interface between the orchestrator and the database. All
  records are written as keyed upserts: WeeklyTaxRecord by period start,
  WeeklyPerformanceRecord by (employee, period start). Full history is
  retained; nothing is ever deleted.

UPSERT CONTRACT:
  PutTaxRecord / PutPerformanceRecord insert-or-replace by key. Running the
  same calculation twice with unchanged ledgers converges to one identical
  row rather than accumulating versions.

TRANSACTIONS:
  WithTx groups the finalize pair - mark the record finalized and seed the
  next period's zero record - so a concurrent reader never observes one
  without the other.

IMPLEMENTATIONS:
  - store/sqlite:       production SQLite store
  - weekly/store:       in-memory store for tests

SEE ALSO:
  - orchestrator.go: the only writer of these records
*/
package weekly

import (
	"context"

	"github.com/lustra/fiscal-engine/fiscal"
)

// RecordStore persists the weekly records owned by the orchestrator.
type RecordStore interface {
	// GetTaxRecord returns the record for the period, or nil if absent.
	GetTaxRecord(ctx context.Context, periodStart fiscal.Date) (*fiscal.WeeklyTaxRecord, error)

	// PutTaxRecord upserts a record keyed by period start.
	PutTaxRecord(ctx context.Context, rec fiscal.WeeklyTaxRecord) error

	// ListTaxRecords returns records, optionally filtered by finalized
	// status, newest period first.
	ListTaxRecords(ctx context.Context, finalized *bool) ([]fiscal.WeeklyTaxRecord, error)

	// GetPerformanceRecord returns one employee's row, or nil if absent.
	GetPerformanceRecord(ctx context.Context, employeeID string, periodStart fiscal.Date) (*fiscal.WeeklyPerformanceRecord, error)

	// PutPerformanceRecord upserts a row keyed by (employee, period start).
	PutPerformanceRecord(ctx context.Context, rec fiscal.WeeklyPerformanceRecord) error

	// ListPerformanceRecords returns every employee's row for the period.
	ListPerformanceRecords(ctx context.Context, periodStart fiscal.Date) ([]fiscal.WeeklyPerformanceRecord, error)

	// OpenPerformancePeriods returns the distinct period starts that still
	// hold at least one non-finalized performance row, oldest first. This is
	// the source of truth for what remains to be finalized; tax-record state
	// plays no part in it.
	OpenPerformancePeriods(ctx context.Context) ([]fiscal.Date, error)
}

// TxRecordStore wraps RecordStore with transaction support for the finalize
// pair. If fn returns an error the writes are rolled back.
type TxRecordStore interface {
	RecordStore

	WithTx(ctx context.Context, fn func(RecordStore) error) error
}
