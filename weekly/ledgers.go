/*
ledgers.go - Read-only contracts over the external activity ledgers

PURPOSE:
  The calculation engine never owns raw transactional data. Employees, sales
  and service sessions live in the surrounding panel's ledgers; this file
  defines the narrow read contracts the orchestrator consumes.

CONTRACTS:
  EmployeeDirectory: active employees in the recognized role set
  SalesLedger:       period revenue total + per-employee sales activity
  ServiceLedger:     period completed-service salary total + per-employee
                     session activity

All range queries are half-open on the period, matching the definition in
the fiscal package: a timestamp counts when Start <= day < End. The End day
opens the following period, so the shared anchor day is never counted twice.
Service queries are additionally restricted to sessions with completed
status.

SEE ALSO:
  - orchestrator.go: drives these contracts
  - store/sqlite: production implementation over the panel's tables
*/
package weekly

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lustra/fiscal-engine/fiscal"
)

// Employee is the read-only identity slice the engine needs: who is active
// and under which contract role.
type Employee struct {
	ID     string
	Name   string
	Role   string
	Status string
}

// SalesActivity is one employee's point-of-sale aggregate for a period.
// ProfitTotal sums (unit_sell_price - unit_supply_cost) * quantity over the
// period's sold line items.
type SalesActivity struct {
	Count           int64
	RevenueTotal    decimal.Decimal
	CommissionTotal decimal.Decimal
	ProfitTotal     decimal.Decimal
}

// ServiceActivity is one employee's completed-session aggregate for a period.
type ServiceActivity struct {
	Count       int64
	SalaryTotal decimal.Decimal
	HoursTotal  decimal.Decimal
}

// EmployeeDirectory exposes the active employees eligible for bonus runs.
type EmployeeDirectory interface {
	ActiveEmployees(ctx context.Context) ([]Employee, error)
}

// SalesLedger exposes point-of-sale aggregates for a period.
type SalesLedger interface {
	// RevenueTotal sums final sale amounts recorded inside the period.
	RevenueTotal(ctx context.Context, period fiscal.WeeklyPeriod) (decimal.Decimal, error)

	// ActivityFor aggregates one employee's sales inside the period.
	ActivityFor(ctx context.Context, employeeID string, period fiscal.WeeklyPeriod) (SalesActivity, error)
}

// ServiceLedger exposes completed-service aggregates for a period.
type ServiceLedger interface {
	// SalaryTotal sums the salary amounts of completed sessions in the period.
	SalaryTotal(ctx context.Context, period fiscal.WeeklyPeriod) (decimal.Decimal, error)

	// ActivityFor aggregates one employee's completed sessions in the period.
	ActivityFor(ctx context.Context, employeeID string, period fiscal.WeeklyPeriod) (ServiceActivity, error)
}

// ConfigSource provides the configuration snapshot for one run. Brackets and
// bonus parameters are owned by the administration workflow; the orchestrator
// reads them once per run and passes them explicitly.
type ConfigSource interface {
	ConfigSnapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is an immutable configuration view for a single calculation run.
type Snapshot struct {
	Brackets fiscal.BracketTable
	Bonus    fiscal.BonusParams
}
