/*
orchestrator.go - Weekly calculation workflows

PURPOSE:
  Drives the two tracks of the weekly fiscal batch for a given period:

  Tax track:          Uncalculated -> Calculated (repeatable) -> Finalized
  Performance track:  per-employee rows, Calculated (repeatable) -> Finalized

  The orchestrator pulls aggregates from the external ledgers, runs the
  fiscal engines over an explicit configuration snapshot, and upserts the
  resulting records. It is the only writer of weekly records.

IDEMPOTENCE:
  Every calculate is an idempotent upsert. Recomputation with unchanged
  ledgers detects identical figures and leaves the stored row untouched,
  including its CalculatedAt stamp.

CONCURRENCY:
  Each calculation or finalize runs to completion synchronously as one unit
  of work. Concurrent invocations for the same period are serialized through
  a per-period lock so overlapping runs converge to one consistent value.
  The finalize pair (mark finalized + seed next period) commits in a single
  store transaction.

FAILURE SEMANTICS:
  A ledger read failure aborts the run with nothing written for it and is
  safe to retry. The performance track commits per employee; each employee's
  row is an independent write target.

SEE ALSO:
  - ledgers.go: the read contracts
  - store.go: the record store contract
  - fiscal: the pure engines this orchestrator drives
*/
package weekly

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lustra/fiscal-engine/fiscal"
)

// Orchestrator coordinates weekly tax and performance calculations.
type Orchestrator struct {
	Calendar  fiscal.Calendar
	Records   TxRecordStore
	Employees EmployeeDirectory
	Sales     SalesLedger
	Services  ServiceLedger
	Config    ConfigSource

	// Now is the wall clock; injectable for deterministic tests.
	Now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an orchestrator over the given collaborators.
func New(records TxRecordStore, employees EmployeeDirectory, sales SalesLedger, services ServiceLedger, config ConfigSource) *Orchestrator {
	return &Orchestrator{
		Calendar:  fiscal.DefaultCalendar(),
		Records:   records,
		Employees: employees,
		Sales:     sales,
		Services:  services,
		Config:    config,
		Now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockPeriod serializes operations touching the same period. Entries are
// never evicted; the map grows by one per calendar week ever touched.
func (o *Orchestrator) lockPeriod(start fiscal.Date) func() {
	o.mu.Lock()
	l, ok := o.locks[start.String()]
	if !ok {
		l = &sync.Mutex{}
		o.locks[start.String()] = l
	}
	o.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (o *Orchestrator) snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := o.Config.ConfigSnapshot(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load configuration: %w", err)
	}
	return snap, nil
}

// =============================================================================
// TAX TRACK
// =============================================================================

// CalculateTax aggregates the period's sales revenue and completed-service
// salary into total revenue, runs the tax engine, and upserts the period's
// WeeklyTaxRecord. Allowed any number of times while the period is open.
func (o *Orchestrator) CalculateTax(ctx context.Context, period fiscal.WeeklyPeriod) (fiscal.WeeklyTaxRecord, error) {
	period = o.Calendar.PeriodStartingAt(period.Start)
	unlock := o.lockPeriod(period.Start)
	defer unlock()

	snap, err := o.snapshot(ctx)
	if err != nil {
		return fiscal.WeeklyTaxRecord{}, err
	}
	if err := snap.Brackets.Validate(); err != nil {
		return fiscal.WeeklyTaxRecord{}, err
	}

	existing, err := o.Records.GetTaxRecord(ctx, period.Start)
	if err != nil {
		return fiscal.WeeklyTaxRecord{}, fmt.Errorf("load tax record: %w", err)
	}
	if existing != nil && existing.IsFinalized {
		return *existing, &fiscal.AlreadyFinalizedError{PeriodStart: period.Start}
	}

	salesRevenue, err := o.Sales.RevenueTotal(ctx, period)
	if err != nil {
		return fiscal.WeeklyTaxRecord{}, &fiscal.LedgerError{Ledger: "sales", PeriodStart: period.Start, Err: err}
	}
	serviceSalary, err := o.Services.SalaryTotal(ctx, period)
	if err != nil {
		return fiscal.WeeklyTaxRecord{}, &fiscal.LedgerError{Ledger: "services", PeriodStart: period.Start, Err: err}
	}

	total := salesRevenue.Add(serviceSalary)

	engine := fiscal.TaxEngine{Brackets: snap.Brackets}
	result, err := engine.Compute(total)
	if err != nil {
		return fiscal.WeeklyTaxRecord{}, err
	}

	rec := fiscal.WeeklyTaxRecord{
		PeriodStart:   period.Start,
		TotalRevenue:  result.TotalRevenue,
		TaxAmount:     result.TaxAmount,
		EffectiveRate: result.EffectiveRate,
		Breakdown:     result.Breakdown,
		CalculatedAt:  o.Now().UTC(),
	}

	// Unchanged ledgers make recomputation a no-op: keep the stored row
	// byte-identical, original CalculatedAt included.
	if existing != nil && rec.SameFigures(*existing) {
		return *existing, nil
	}

	if err := o.Records.PutTaxRecord(ctx, rec); err != nil {
		return fiscal.WeeklyTaxRecord{}, fmt.Errorf("upsert tax record: %w", err)
	}
	return rec, nil
}

// FinalizeTax irreversibly locks the period's tax figures and guarantees a
// zero-initialized record exists for the next period. The pair commits as one
// transaction; a pre-existing next-period record is never clobbered. Calling
// finalize twice is a no-op error.
func (o *Orchestrator) FinalizeTax(ctx context.Context, period fiscal.WeeklyPeriod) (fiscal.WeeklyTaxRecord, error) {
	period = o.Calendar.PeriodStartingAt(period.Start)
	unlock := o.lockPeriod(period.Start)
	defer unlock()

	now := o.Now().UTC()
	var finalized fiscal.WeeklyTaxRecord

	err := o.Records.WithTx(ctx, func(s RecordStore) error {
		rec, err := s.GetTaxRecord(ctx, period.Start)
		if err != nil {
			return fmt.Errorf("load tax record: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("tax record for period %s: %w", period.Start, fiscal.ErrRecordNotFound)
		}
		if rec.IsFinalized {
			return &fiscal.AlreadyFinalizedError{PeriodStart: period.Start}
		}

		rec.IsFinalized = true
		rec.FinalizedAt = &now
		if err := s.PutTaxRecord(ctx, *rec); err != nil {
			return fmt.Errorf("mark finalized: %w", err)
		}
		finalized = *rec

		next := o.Calendar.Next(period)
		nextRec, err := s.GetTaxRecord(ctx, next.Start)
		if err != nil {
			return fmt.Errorf("load next period record: %w", err)
		}
		if nextRec == nil {
			if err := s.PutTaxRecord(ctx, fiscal.ZeroTaxRecord(next.Start, now)); err != nil {
				return fmt.Errorf("seed next period record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fiscal.WeeklyTaxRecord{}, err
	}
	return finalized, nil
}

// =============================================================================
// PERFORMANCE TRACK
// =============================================================================

// CalculatePerformance computes and upserts one WeeklyPerformanceRecord per
// active employee in the recognized role set. Rows commit per employee; a
// ledger failure aborts the run but earlier employees' rows stand, since each
// row is an independent write target. Refused once the period is finalized.
func (o *Orchestrator) CalculatePerformance(ctx context.Context, period fiscal.WeeklyPeriod) ([]fiscal.WeeklyPerformanceRecord, error) {
	period = o.Calendar.PeriodStartingAt(period.Start)
	unlock := o.lockPeriod(period.Start)
	defer unlock()

	snap, err := o.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := snap.Bonus.Validate(); err != nil {
		return nil, err
	}

	existingRows, err := o.Records.ListPerformanceRecords(ctx, period.Start)
	if err != nil {
		return nil, fmt.Errorf("load performance records: %w", err)
	}
	existing := make(map[string]fiscal.WeeklyPerformanceRecord, len(existingRows))
	for _, row := range existingRows {
		if row.IsFinalized {
			return nil, &fiscal.AlreadyFinalizedError{PeriodStart: period.Start}
		}
		existing[row.EmployeeID] = row
	}

	employees, err := o.Employees.ActiveEmployees(ctx)
	if err != nil {
		return nil, &fiscal.LedgerError{Ledger: "employees", PeriodStart: period.Start, Err: err}
	}

	engine := fiscal.PerformanceEngine{Params: snap.Bonus}
	now := o.Now().UTC()

	var out []fiscal.WeeklyPerformanceRecord
	for _, emp := range employees {
		if !fiscal.IsRecognizedRole(emp.Role) {
			continue
		}

		svc, err := o.Services.ActivityFor(ctx, emp.ID, period)
		if err != nil {
			return out, &fiscal.LedgerError{Ledger: "services", PeriodStart: period.Start, EmployeeID: emp.ID, Err: err}
		}
		sales, err := o.Sales.ActivityFor(ctx, emp.ID, period)
		if err != nil {
			return out, &fiscal.LedgerError{Ledger: "sales", PeriodStart: period.Start, EmployeeID: emp.ID, Err: err}
		}

		bonus := engine.Compute(fiscal.PerformanceInput{
			Role:             emp.Role,
			ServiceCount:     svc.Count,
			SalesProfitTotal: sales.ProfitTotal,
		})

		rec := fiscal.WeeklyPerformanceRecord{
			EmployeeID:           emp.ID,
			PeriodStart:          period.Start,
			ServiceCount:         svc.Count,
			ServiceSalaryTotal:   svc.SalaryTotal.Round(2),
			ServiceHoursTotal:    svc.HoursTotal,
			SalesCount:           sales.Count,
			SalesRevenueTotal:    sales.RevenueTotal.Round(2),
			SalesCommissionTotal: sales.CommissionTotal.Round(2),
			SalesProfitTotal:     sales.ProfitTotal.Round(2),
			ServiceBonus:         bonus.ServiceBonus,
			SalesBonus:           bonus.SalesBonus,
			TotalBonus:           bonus.TotalBonus,
			CalculatedAt:         now,
		}

		if prev, ok := existing[emp.ID]; ok && rec.SameFigures(prev) {
			out = append(out, prev)
			continue
		}
		if err := o.Records.PutPerformanceRecord(ctx, rec); err != nil {
			return out, fmt.Errorf("upsert performance record for %s: %w", emp.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// FinalizePerformance marks every row of the period finalized, closing the
// period to recomputation. An explicit action rather than an inference from
// the wall clock, so records cannot silently change after presentation.
func (o *Orchestrator) FinalizePerformance(ctx context.Context, period fiscal.WeeklyPeriod) error {
	period = o.Calendar.PeriodStartingAt(period.Start)
	unlock := o.lockPeriod(period.Start)
	defer unlock()

	return o.Records.WithTx(ctx, func(s RecordStore) error {
		rows, err := s.ListPerformanceRecords(ctx, period.Start)
		if err != nil {
			return fmt.Errorf("load performance records: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("performance records for period %s: %w", period.Start, fiscal.ErrRecordNotFound)
		}

		open := false
		for _, row := range rows {
			if !row.IsFinalized {
				open = true
				break
			}
		}
		if !open {
			return &fiscal.AlreadyFinalizedError{PeriodStart: period.Start}
		}

		for _, row := range rows {
			if row.IsFinalized {
				continue
			}
			row.IsFinalized = true
			if err := s.PutPerformanceRecord(ctx, row); err != nil {
				return fmt.Errorf("mark finalized for %s: %w", row.EmployeeID, err)
			}
		}
		return nil
	})
}

// =============================================================================
// PERIOD RESOLUTION
// =============================================================================

// CurrentPeriod resolves the period containing today.
func (o *Orchestrator) CurrentPeriod() fiscal.WeeklyPeriod {
	return o.Calendar.PeriodContaining(fiscal.DateOf(o.Now().UTC()))
}

// PastDuePerformancePeriods returns the start dates of performance periods
// whose end has passed but whose rows are still open. Consumed by the
// background sweeper to apply the explicit finalize action.
//
// Derived from the open performance rows themselves: a period stays visible
// regardless of its tax record's state, so finalizing tax first (or never
// calculating it) cannot hide open rows from the sweeper.
func (o *Orchestrator) PastDuePerformancePeriods(ctx context.Context) ([]fiscal.Date, error) {
	today := fiscal.DateOf(o.Now().UTC())

	starts, err := o.Records.OpenPerformancePeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open performance periods: %w", err)
	}

	var due []fiscal.Date
	for _, start := range starts {
		period := o.Calendar.PeriodStartingAt(start)
		// End is exclusive: the period has elapsed once today reaches it.
		if today.AfterOrEqual(period.End) {
			due = append(due, period.Start)
		}
	}
	return due, nil
}
