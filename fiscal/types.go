/*
Package fiscal provides the periodic financial calculation core.

PURPOSE:
  This package contains the pure types and algorithms behind the weekly
  fiscal batch: aggregating a week's transactional activity into a tax
  liability via a tiered-bracket lookup, and deriving per-employee incentive
  bonuses from role-dependent formulas.

KEY CONCEPTS IN THIS FILE (types.go):
  - WeeklyTaxRecord: the tax outcome for one period, keyed by period start
  - WeeklyPerformanceRecord: one employee's weekly aggregate and bonuses,
    keyed by (employee, period start)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift on
     repeated recomputation
  2. Snapshots: configuration (brackets, bonus parameters) is passed
     explicitly per run, never read mid-calculation
  3. Pure transforms: nothing here touches storage or the wall clock

SEE ALSO:
  - period.go: weekly period math
  - brackets.go / tax.go: bracket table and tax engine
  - performance.go: bonus parameters and formulas
  - weekly/: orchestration against the external ledgers
*/
package fiscal

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WEEKLY TAX RECORD - One row per period, full history retained
// =============================================================================

// WeeklyTaxRecord is the persisted tax outcome for one period. It is
// created or overwritten by the calculate step any number of times while
// open; Finalize flips IsFinalized exactly once, after which the record is
// immutable and the next period's record is guaranteed to exist.
type WeeklyTaxRecord struct {
	PeriodStart   Date
	TotalRevenue  decimal.Decimal
	TaxAmount     decimal.Decimal
	EffectiveRate decimal.Decimal
	Breakdown     []BracketShare
	IsFinalized   bool
	CalculatedAt  time.Time
	FinalizedAt   *time.Time
}

// ZeroTaxRecord returns the zero-initialized record seeded for a freshly
// rolled-forward period.
func ZeroTaxRecord(periodStart Date, calculatedAt time.Time) WeeklyTaxRecord {
	return WeeklyTaxRecord{
		PeriodStart:   periodStart,
		TotalRevenue:  decimal.Zero,
		TaxAmount:     decimal.Zero,
		EffectiveRate: decimal.Zero,
		CalculatedAt:  calculatedAt,
	}
}

// SameFigures reports whether two records carry identical computed values,
// ignoring timestamps. Used to keep recomputation a true no-op when the
// underlying ledgers have not changed.
func (r WeeklyTaxRecord) SameFigures(other WeeklyTaxRecord) bool {
	if !r.PeriodStart.Equal(other.PeriodStart) ||
		!r.TotalRevenue.Equal(other.TotalRevenue) ||
		!r.TaxAmount.Equal(other.TaxAmount) ||
		!r.EffectiveRate.Equal(other.EffectiveRate) ||
		r.IsFinalized != other.IsFinalized ||
		len(r.Breakdown) != len(other.Breakdown) {
		return false
	}
	for i := range r.Breakdown {
		a, b := r.Breakdown[i], other.Breakdown[i]
		if !a.TaxableAmount.Equal(b.TaxableAmount) ||
			!a.TaxAmount.Equal(b.TaxAmount) ||
			!a.Bracket.Min.Equal(b.Bracket.Min) ||
			!a.Bracket.Rate.Equal(b.Bracket.Rate) {
			return false
		}
	}
	return true
}

// =============================================================================
// WEEKLY PERFORMANCE RECORD - One row per (employee, period)
// =============================================================================

// WeeklyPerformanceRecord is one employee's persisted weekly aggregate and
// computed bonuses. Upserted on each recalculation while the period is open.
type WeeklyPerformanceRecord struct {
	EmployeeID  string
	PeriodStart Date

	ServiceCount       int64
	ServiceSalaryTotal decimal.Decimal
	ServiceHoursTotal  decimal.Decimal

	SalesCount           int64
	SalesRevenueTotal    decimal.Decimal
	SalesCommissionTotal decimal.Decimal
	SalesProfitTotal     decimal.Decimal

	ServiceBonus decimal.Decimal
	SalesBonus   decimal.Decimal
	TotalBonus   decimal.Decimal

	IsFinalized  bool
	CalculatedAt time.Time
}

// SameFigures reports whether two performance rows carry identical computed
// values, ignoring CalculatedAt.
func (r WeeklyPerformanceRecord) SameFigures(other WeeklyPerformanceRecord) bool {
	return r.EmployeeID == other.EmployeeID &&
		r.PeriodStart.Equal(other.PeriodStart) &&
		r.ServiceCount == other.ServiceCount &&
		r.ServiceSalaryTotal.Equal(other.ServiceSalaryTotal) &&
		r.ServiceHoursTotal.Equal(other.ServiceHoursTotal) &&
		r.SalesCount == other.SalesCount &&
		r.SalesRevenueTotal.Equal(other.SalesRevenueTotal) &&
		r.SalesCommissionTotal.Equal(other.SalesCommissionTotal) &&
		r.SalesProfitTotal.Equal(other.SalesProfitTotal) &&
		r.ServiceBonus.Equal(other.ServiceBonus) &&
		r.SalesBonus.Equal(other.SalesBonus) &&
		r.TotalBonus.Equal(other.TotalBonus) &&
		r.IsFinalized == other.IsFinalized
}
