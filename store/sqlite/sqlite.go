/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence contract the engine consumes using SQLite.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  weekly.TxRecordStore:     weekly tax and performance records (keyed upserts)
  weekly.EmployeeDirectory: active employees in the recognized role set
  weekly.SalesLedger:       point-of-sale aggregates per period
  weekly.ServiceLedger:     completed-session aggregates per period
  weekly.ConfigSource:      bracket table and bonus parameter snapshots

KEY TABLES:
  employees:                  panel-owned employee directory
  sales, sale_items:          point-of-sale ledger
  service_sessions:           service ledger
  weekly_tax_records:         one row per period, upserted, never deleted
  weekly_performance_records: one row per (employee, period)
  tax_brackets, bonus_params: administration-owned configuration

DECIMAL HANDLING:
  Money values are stored as decimal strings and summed in Go with
  shopspring/decimal. SQL SUM() over floats would reintroduce the drift the
  engine exists to avoid.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, plus WAL mode for better read
  concurrency. The finalize pair runs inside a database transaction via
  WithTx; a concurrent reader never observes the finalized flag without the
  rolled-forward record.

USAGE:
  st, err := sqlite.New("./data/fiscal.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  orch := weekly.New(st, st, st, st.ServiceLedger(), st)

SEE ALSO:
  - weekly/store.go: interface definitions
  - weekly/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lustra/fiscal-engine/fiscal"
	"github.com/lustra/fiscal-engine/weekly"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx abstracts *sql.DB and *sql.Tx for queries that run in both.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
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
	-- Employee directory (panel-owned, read-only for the engine)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_status
		ON employees(status, role);

	-- Point-of-sale ledger
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		final_amount TEXT NOT NULL,
		employee_commission TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_recorded_at
		ON sales(recorded_at);
	CREATE INDEX IF NOT EXISTS idx_sales_employee_date
		ON sales(employee_id, recorded_at);

	CREATE TABLE IF NOT EXISTS sale_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id TEXT NOT NULL,
		unit_sell_price TEXT NOT NULL,
		unit_supply_cost TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		FOREIGN KEY (sale_id) REFERENCES sales(id)
	);

	CREATE INDEX IF NOT EXISTS idx_sale_items_sale
		ON sale_items(sale_id);

	-- Service ledger
	CREATE TABLE IF NOT EXISTS service_sessions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		status TEXT NOT NULL,
		unit_count INTEGER NOT NULL DEFAULT 1,
		salary_amount TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_employee_date
		ON service_sessions(employee_id, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_status_date
		ON service_sessions(status, recorded_at);

	-- Weekly tax records (one per period, full history retained)
	CREATE TABLE IF NOT EXISTS weekly_tax_records (
		period_start TEXT PRIMARY KEY,
		total_revenue TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		effective_rate TEXT NOT NULL,
		breakdown_json TEXT NOT NULL DEFAULT '[]',
		is_finalized BOOLEAN NOT NULL DEFAULT FALSE,
		calculated_at TEXT NOT NULL,
		finalized_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tax_records_finalized
		ON weekly_tax_records(is_finalized, period_start);

	-- Weekly performance records (one per employee per period)
	CREATE TABLE IF NOT EXISTS weekly_performance_records (
		employee_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		service_count INTEGER NOT NULL DEFAULT 0,
		service_salary_total TEXT NOT NULL DEFAULT '0',
		service_hours_total TEXT NOT NULL DEFAULT '0',
		sales_count INTEGER NOT NULL DEFAULT 0,
		sales_revenue_total TEXT NOT NULL DEFAULT '0',
		sales_commission_total TEXT NOT NULL DEFAULT '0',
		sales_profit_total TEXT NOT NULL DEFAULT '0',
		service_bonus TEXT NOT NULL DEFAULT '0',
		sales_bonus TEXT NOT NULL DEFAULT '0',
		total_bonus TEXT NOT NULL DEFAULT '0',
		is_finalized BOOLEAN NOT NULL DEFAULT FALSE,
		calculated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, period_start)
	);

	CREATE INDEX IF NOT EXISTS idx_perf_records_period
		ON weekly_performance_records(period_start);

	-- Configuration (administration-owned)
	CREATE TABLE IF NOT EXISTS tax_brackets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		min_revenue TEXT NOT NULL,
		max_revenue TEXT,
		rate TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bonus_params (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (weekly.RecordStore interface)
// =============================================================================

// breakdown line persisted as JSON; decimals kept as strings for stability.
type breakdownLine struct {
	MinRevenue    string  `json:"min_revenue"`
	MaxRevenue    *string `json:"max_revenue,omitempty"`
	Rate          string  `json:"rate"`
	TaxableAmount string  `json:"taxable_amount"`
	TaxAmount     string  `json:"tax_amount"`
}

func marshalBreakdown(shares []fiscal.BracketShare) string {
	lines := make([]breakdownLine, 0, len(shares))
	for _, sh := range shares {
		line := breakdownLine{
			MinRevenue:    sh.Bracket.Min.String(),
			Rate:          sh.Bracket.Rate.String(),
			TaxableAmount: sh.TaxableAmount.String(),
			TaxAmount:     sh.TaxAmount.String(),
		}
		if sh.Bracket.Max != nil {
			m := sh.Bracket.Max.String()
			line.MaxRevenue = &m
		}
		lines = append(lines, line)
	}
	b, _ := json.Marshal(lines)
	return string(b)
}

func unmarshalBreakdown(raw string) ([]fiscal.BracketShare, error) {
	var lines []breakdownLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, fmt.Errorf("corrupt breakdown json: %w", err)
	}
	var ds decimalScan
	var shares []fiscal.BracketShare
	for _, line := range lines {
		sh := fiscal.BracketShare{
			Bracket: fiscal.TaxBracket{
				Min:  ds.parse(line.MinRevenue),
				Rate: ds.parse(line.Rate),
			},
			TaxableAmount: ds.parse(line.TaxableAmount),
			TaxAmount:     ds.parse(line.TaxAmount),
		}
		if line.MaxRevenue != nil {
			m := ds.parse(*line.MaxRevenue)
			sh.Bracket.Max = &m
		}
		shares = append(shares, sh)
	}
	return shares, ds.err
}

// GetTaxRecord returns the record for the period, or nil if absent.
func (s *Store) GetTaxRecord(ctx context.Context, periodStart fiscal.Date) (*fiscal.WeeklyTaxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getTaxRecord(ctx, s.db, periodStart)
}

func getTaxRecord(ctx context.Context, db dbtx, periodStart fiscal.Date) (*fiscal.WeeklyTaxRecord, error) {
	query := `
		SELECT period_start, total_revenue, tax_amount, effective_rate,
		       breakdown_json, is_finalized, calculated_at, finalized_at
		FROM weekly_tax_records
		WHERE period_start = ?
	`

	rec, err := scanTaxRecord(db.QueryRowContext(ctx, query, periodStart.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaxRecord(row rowScanner) (*fiscal.WeeklyTaxRecord, error) {
	var (
		rec           fiscal.WeeklyTaxRecord
		periodStart   string
		totalRevenue  string
		taxAmount     string
		effectiveRate string
		breakdownJSON string
		calculatedAt  string
		finalizedAt   sql.NullString
	)

	if err := row.Scan(&periodStart, &totalRevenue, &taxAmount, &effectiveRate,
		&breakdownJSON, &rec.IsFinalized, &calculatedAt, &finalizedAt); err != nil {
		return nil, err
	}

	var ds decimalScan
	rec.PeriodStart, _ = fiscal.ParseDate(periodStart)
	rec.TotalRevenue = ds.parse(totalRevenue)
	rec.TaxAmount = ds.parse(taxAmount)
	rec.EffectiveRate = ds.parse(effectiveRate)
	breakdown, err := unmarshalBreakdown(breakdownJSON)
	if err != nil {
		return nil, err
	}
	rec.Breakdown = breakdown
	rec.CalculatedAt, _ = time.Parse(time.RFC3339, calculatedAt)
	if finalizedAt.Valid {
		t, _ := time.Parse(time.RFC3339, finalizedAt.String)
		rec.FinalizedAt = &t
	}

	if ds.err != nil {
		return nil, ds.err
	}
	return &rec, nil
}

// PutTaxRecord upserts a record keyed by period start.
func (s *Store) PutTaxRecord(ctx context.Context, rec fiscal.WeeklyTaxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return putTaxRecord(ctx, s.db, rec)
}

func putTaxRecord(ctx context.Context, db dbtx, rec fiscal.WeeklyTaxRecord) error {
	query := `
		INSERT INTO weekly_tax_records
		(period_start, total_revenue, tax_amount, effective_rate, breakdown_json,
		 is_finalized, calculated_at, finalized_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(period_start) DO UPDATE SET
			total_revenue = excluded.total_revenue,
			tax_amount = excluded.tax_amount,
			effective_rate = excluded.effective_rate,
			breakdown_json = excluded.breakdown_json,
			is_finalized = excluded.is_finalized,
			calculated_at = excluded.calculated_at,
			finalized_at = excluded.finalized_at
	`

	var finalizedAt *string
	if rec.FinalizedAt != nil {
		t := rec.FinalizedAt.UTC().Format(time.RFC3339)
		finalizedAt = &t
	}

	_, err := db.ExecContext(ctx, query,
		rec.PeriodStart.String(),
		rec.TotalRevenue.String(),
		rec.TaxAmount.String(),
		rec.EffectiveRate.String(),
		marshalBreakdown(rec.Breakdown),
		rec.IsFinalized,
		rec.CalculatedAt.UTC().Format(time.RFC3339),
		finalizedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tax record: %w", err)
	}
	return nil
}

// ListTaxRecords returns records, newest period first, optionally filtered by
// finalized status.
func (s *Store) ListTaxRecords(ctx context.Context, finalized *bool) ([]fiscal.WeeklyTaxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listTaxRecords(ctx, s.db, finalized)
}

func listTaxRecords(ctx context.Context, db dbtx, finalized *bool) ([]fiscal.WeeklyTaxRecord, error) {
	query := `
		SELECT period_start, total_revenue, tax_amount, effective_rate,
		       breakdown_json, is_finalized, calculated_at, finalized_at
		FROM weekly_tax_records
	`
	var args []any
	if finalized != nil {
		query += " WHERE is_finalized = ?"
		args = append(args, *finalized)
	}
	query += " ORDER BY period_start DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tax records: %w", err)
	}
	defer rows.Close()

	var records []fiscal.WeeklyTaxRecord
	for rows.Next() {
		rec, err := scanTaxRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetPerformanceRecord returns one employee's row, or nil if absent.
func (s *Store) GetPerformanceRecord(ctx context.Context, employeeID string, periodStart fiscal.Date) (*fiscal.WeeklyPerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getPerformanceRecord(ctx, s.db, employeeID, periodStart)
}

func getPerformanceRecord(ctx context.Context, db dbtx, employeeID string, periodStart fiscal.Date) (*fiscal.WeeklyPerformanceRecord, error) {
	query := perfSelect + " WHERE employee_id = ? AND period_start = ?"
	rec, err := scanPerformanceRecord(db.QueryRowContext(ctx, query, employeeID, periodStart.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

const perfSelect = `
	SELECT employee_id, period_start, service_count, service_salary_total,
	       service_hours_total, sales_count, sales_revenue_total,
	       sales_commission_total, sales_profit_total, service_bonus,
	       sales_bonus, total_bonus, is_finalized, calculated_at
	FROM weekly_performance_records
`

func scanPerformanceRecord(row rowScanner) (*fiscal.WeeklyPerformanceRecord, error) {
	var (
		rec          fiscal.WeeklyPerformanceRecord
		periodStart  string
		salary       string
		hours        string
		revenue      string
		commission   string
		profit       string
		serviceBonus string
		salesBonus   string
		totalBonus   string
		calculatedAt string
	)

	if err := row.Scan(&rec.EmployeeID, &periodStart, &rec.ServiceCount, &salary,
		&hours, &rec.SalesCount, &revenue, &commission, &profit,
		&serviceBonus, &salesBonus, &totalBonus, &rec.IsFinalized, &calculatedAt); err != nil {
		return nil, err
	}

	var ds decimalScan
	rec.PeriodStart, _ = fiscal.ParseDate(periodStart)
	rec.ServiceSalaryTotal = ds.parse(salary)
	rec.ServiceHoursTotal = ds.parse(hours)
	rec.SalesRevenueTotal = ds.parse(revenue)
	rec.SalesCommissionTotal = ds.parse(commission)
	rec.SalesProfitTotal = ds.parse(profit)
	rec.ServiceBonus = ds.parse(serviceBonus)
	rec.SalesBonus = ds.parse(salesBonus)
	rec.TotalBonus = ds.parse(totalBonus)
	rec.CalculatedAt, _ = time.Parse(time.RFC3339, calculatedAt)

	if ds.err != nil {
		return nil, ds.err
	}
	return &rec, nil
}

// PutPerformanceRecord upserts a row keyed by (employee, period start).
func (s *Store) PutPerformanceRecord(ctx context.Context, rec fiscal.WeeklyPerformanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return putPerformanceRecord(ctx, s.db, rec)
}

func putPerformanceRecord(ctx context.Context, db dbtx, rec fiscal.WeeklyPerformanceRecord) error {
	query := `
		INSERT INTO weekly_performance_records
		(employee_id, period_start, service_count, service_salary_total,
		 service_hours_total, sales_count, sales_revenue_total,
		 sales_commission_total, sales_profit_total, service_bonus,
		 sales_bonus, total_bonus, is_finalized, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, period_start) DO UPDATE SET
			service_count = excluded.service_count,
			service_salary_total = excluded.service_salary_total,
			service_hours_total = excluded.service_hours_total,
			sales_count = excluded.sales_count,
			sales_revenue_total = excluded.sales_revenue_total,
			sales_commission_total = excluded.sales_commission_total,
			sales_profit_total = excluded.sales_profit_total,
			service_bonus = excluded.service_bonus,
			sales_bonus = excluded.sales_bonus,
			total_bonus = excluded.total_bonus,
			is_finalized = excluded.is_finalized,
			calculated_at = excluded.calculated_at
	`

	_, err := db.ExecContext(ctx, query,
		rec.EmployeeID,
		rec.PeriodStart.String(),
		rec.ServiceCount,
		rec.ServiceSalaryTotal.String(),
		rec.ServiceHoursTotal.String(),
		rec.SalesCount,
		rec.SalesRevenueTotal.String(),
		rec.SalesCommissionTotal.String(),
		rec.SalesProfitTotal.String(),
		rec.ServiceBonus.String(),
		rec.SalesBonus.String(),
		rec.TotalBonus.String(),
		rec.IsFinalized,
		rec.CalculatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert performance record: %w", err)
	}
	return nil
}

// ListPerformanceRecords returns every employee's row for the period.
func (s *Store) ListPerformanceRecords(ctx context.Context, periodStart fiscal.Date) ([]fiscal.WeeklyPerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listPerformanceRecords(ctx, s.db, periodStart)
}

func listPerformanceRecords(ctx context.Context, db dbtx, periodStart fiscal.Date) ([]fiscal.WeeklyPerformanceRecord, error) {
	query := perfSelect + " WHERE period_start = ? ORDER BY employee_id ASC"

	rows, err := db.QueryContext(ctx, query, periodStart.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query performance records: %w", err)
	}
	defer rows.Close()

	var records []fiscal.WeeklyPerformanceRecord
	for rows.Next() {
		rec, err := scanPerformanceRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// OpenPerformancePeriods returns the distinct period starts that still hold
// at least one non-finalized performance row, oldest first.
func (s *Store) OpenPerformancePeriods(ctx context.Context) ([]fiscal.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return openPerformancePeriods(ctx, s.db)
}

func openPerformancePeriods(ctx context.Context, db dbtx) ([]fiscal.Date, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT period_start FROM weekly_performance_records
		WHERE is_finalized = FALSE
		ORDER BY period_start ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open performance periods: %w", err)
	}
	defer rows.Close()

	var starts []fiscal.Date
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		start, err := fiscal.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt period start %q: %w", raw, err)
		}
		starts = append(starts, start)
	}
	return starts, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (weekly.TxRecordStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(weekly.RecordStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetTaxRecord(ctx context.Context, periodStart fiscal.Date) (*fiscal.WeeklyTaxRecord, error) {
	return getTaxRecord(ctx, ts.tx, periodStart)
}

func (ts *txStore) PutTaxRecord(ctx context.Context, rec fiscal.WeeklyTaxRecord) error {
	return putTaxRecord(ctx, ts.tx, rec)
}

func (ts *txStore) ListTaxRecords(ctx context.Context, finalized *bool) ([]fiscal.WeeklyTaxRecord, error) {
	return listTaxRecords(ctx, ts.tx, finalized)
}

func (ts *txStore) GetPerformanceRecord(ctx context.Context, employeeID string, periodStart fiscal.Date) (*fiscal.WeeklyPerformanceRecord, error) {
	return getPerformanceRecord(ctx, ts.tx, employeeID, periodStart)
}

func (ts *txStore) PutPerformanceRecord(ctx context.Context, rec fiscal.WeeklyPerformanceRecord) error {
	return putPerformanceRecord(ctx, ts.tx, rec)
}

func (ts *txStore) ListPerformanceRecords(ctx context.Context, periodStart fiscal.Date) ([]fiscal.WeeklyPerformanceRecord, error) {
	return listPerformanceRecords(ctx, ts.tx, periodStart)
}

func (ts *txStore) OpenPerformancePeriods(ctx context.Context) ([]fiscal.Date, error) {
	return openPerformancePeriods(ctx, ts.tx)
}

// =============================================================================
// EMPLOYEE DIRECTORY (weekly.EmployeeDirectory interface)
// =============================================================================

// SaveEmployee upserts an employee record.
func (s *Store) SaveEmployee(ctx context.Context, emp weekly.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, role, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			status = excluded.status
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Role, emp.Status,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ActiveEmployees returns active employees in the recognized role set.
func (s *Store) ActiveEmployees(ctx context.Context) ([]weekly.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, role, status
		FROM employees
		WHERE status = 'active'
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []weekly.Employee
	for rows.Next() {
		var e weekly.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Role, &e.Status); err != nil {
			return nil, err
		}
		if !fiscal.IsRecognizedRole(e.Role) {
			continue
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// ListEmployees returns all employees regardless of status (admin view).
func (s *Store) ListEmployees(ctx context.Context) ([]weekly.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, role, status FROM employees ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []weekly.Employee
	for rows.Next() {
		var e weekly.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Role, &e.Status); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// =============================================================================
// SALES LEDGER (weekly.SalesLedger interface)
// =============================================================================

// SaleItem is one sold line item on a sale.
type SaleItem struct {
	UnitSellPrice  decimal.Decimal
	UnitSupplyCost decimal.Decimal
	Quantity       int64
}

// Sale is one point-of-sale transaction with its line items.
type Sale struct {
	ID         string
	EmployeeID string
	RecordedAt time.Time
	Amount     decimal.Decimal
	Commission decimal.Decimal
	Items      []SaleItem
}

// RecordSale writes a sale and its line items atomically.
func (s *Store) RecordSale(ctx context.Context, sale Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO sales (id, employee_id, recorded_at, final_amount, employee_commission, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		sale.ID, sale.EmployeeID,
		sale.RecordedAt.UTC().Format(time.RFC3339),
		sale.Amount.String(), sale.Commission.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for _, item := range sale.Items {
		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, unit_sell_price, unit_supply_cost, quantity)
			VALUES (?, ?, ?, ?)
		`, sale.ID, item.UnitSellPrice.String(), item.UnitSupplyCost.String(), item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}
	}

	return sqlTx.Commit()
}

// RevenueTotal sums final sale amounts recorded inside the period.
func (s *Store) RevenueTotal(ctx context.Context, period fiscal.WeeklyPeriod) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT final_amount FROM sales
		WHERE DATE(recorded_at) >= ? AND DATE(recorded_at) < ?
	`

	return s.sumColumn(ctx, query, period.Start.String(), period.End.String())
}

// ActivityFor aggregates one employee's sales inside the period.
func (s *Store) ActivityFor(ctx context.Context, employeeID string, period fiscal.WeeklyPeriod) (weekly.SalesActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity := weekly.SalesActivity{
		RevenueTotal:    decimal.Zero,
		CommissionTotal: decimal.Zero,
		ProfitTotal:     decimal.Zero,
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, final_amount, employee_commission FROM sales
		WHERE employee_id = ?
		  AND DATE(recorded_at) >= ? AND DATE(recorded_at) < ?
	`, employeeID, period.Start.String(), period.End.String())
	if err != nil {
		return activity, err
	}
	defer rows.Close()

	var ds decimalScan
	var saleIDs []string
	for rows.Next() {
		var id, amount, commission string
		if err := rows.Scan(&id, &amount, &commission); err != nil {
			return activity, err
		}
		activity.Count++
		activity.RevenueTotal = activity.RevenueTotal.Add(ds.parse(amount))
		activity.CommissionTotal = activity.CommissionTotal.Add(ds.parse(commission))
		saleIDs = append(saleIDs, id)
	}
	if err := rows.Err(); err != nil {
		return activity, err
	}
	if ds.err != nil {
		return activity, ds.err
	}

	for _, saleID := range saleIDs {
		profit, err := s.saleProfit(ctx, saleID)
		if err != nil {
			return activity, err
		}
		activity.ProfitTotal = activity.ProfitTotal.Add(profit)
	}

	return activity, nil
}

// saleProfit sums (unit_sell_price - unit_supply_cost) * quantity over the
// sale's line items.
func (s *Store) saleProfit(ctx context.Context, saleID string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_sell_price, unit_supply_cost, quantity
		FROM sale_items WHERE sale_id = ?
	`, saleID)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	var ds decimalScan
	profit := decimal.Zero
	for rows.Next() {
		var sell, cost string
		var qty int64
		if err := rows.Scan(&sell, &cost, &qty); err != nil {
			return decimal.Zero, err
		}
		margin := ds.parse(sell).Sub(ds.parse(cost))
		profit = profit.Add(margin.Mul(decimal.NewFromInt(qty)))
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}
	return profit, ds.err
}

// =============================================================================
// SERVICE LEDGER (weekly.ServiceLedger interface)
// =============================================================================

// ServiceSession is one cleaning/service session recorded by the panel.
type ServiceSession struct {
	ID              string
	EmployeeID      string
	RecordedAt      time.Time
	Status          string
	UnitCount       int64
	SalaryAmount    decimal.Decimal
	DurationMinutes int64
}

// SessionCompleted is the only status the engine aggregates over.
const SessionCompleted = "completed"

// RecordServiceSession writes or updates a service session.
func (s *Store) RecordServiceSession(ctx context.Context, sess ServiceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_sessions
		(id, employee_id, recorded_at, status, unit_count, salary_amount, duration_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			unit_count = excluded.unit_count,
			salary_amount = excluded.salary_amount,
			duration_minutes = excluded.duration_minutes
	`,
		sess.ID, sess.EmployeeID,
		sess.RecordedAt.UTC().Format(time.RFC3339),
		sess.Status, sess.UnitCount,
		sess.SalaryAmount.String(), sess.DurationMinutes,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// SalaryTotal sums the salary amounts of completed sessions in the period.
func (s *Store) SalaryTotal(ctx context.Context, period fiscal.WeeklyPeriod) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT salary_amount FROM service_sessions
		WHERE status = ?
		  AND DATE(recorded_at) >= ? AND DATE(recorded_at) < ?
	`

	return s.sumColumn(ctx, query, SessionCompleted, period.Start.String(), period.End.String())
}

// ServiceActivityFor aggregates one employee's completed sessions in the
// period. Named to avoid colliding with the sales ActivityFor; the weekly
// package binds it through the ServiceLedger adapter.
func (s *Store) ServiceActivityFor(ctx context.Context, employeeID string, period fiscal.WeeklyPeriod) (weekly.ServiceActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity := weekly.ServiceActivity{
		SalaryTotal: decimal.Zero,
		HoursTotal:  decimal.Zero,
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_count, salary_amount, duration_minutes FROM service_sessions
		WHERE employee_id = ? AND status = ?
		  AND DATE(recorded_at) >= ? AND DATE(recorded_at) < ?
	`, employeeID, SessionCompleted, period.Start.String(), period.End.String())
	if err != nil {
		return activity, err
	}
	defer rows.Close()

	var ds decimalScan
	minutes := int64(0)
	for rows.Next() {
		var units, duration int64
		var salary string
		if err := rows.Scan(&units, &salary, &duration); err != nil {
			return activity, err
		}
		activity.Count += units
		activity.SalaryTotal = activity.SalaryTotal.Add(ds.parse(salary))
		minutes += duration
	}
	if err := rows.Err(); err != nil {
		return activity, err
	}
	if ds.err != nil {
		return activity, ds.err
	}

	activity.HoursTotal = decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60)).Round(2)
	return activity, nil
}

// ServiceLedger returns the store viewed as a weekly.ServiceLedger.
func (s *Store) ServiceLedger() weekly.ServiceLedger {
	return &serviceLedger{s}
}

type serviceLedger struct{ s *Store }

func (l *serviceLedger) SalaryTotal(ctx context.Context, period fiscal.WeeklyPeriod) (decimal.Decimal, error) {
	return l.s.SalaryTotal(ctx, period)
}

func (l *serviceLedger) ActivityFor(ctx context.Context, employeeID string, period fiscal.WeeklyPeriod) (weekly.ServiceActivity, error) {
	return l.s.ServiceActivityFor(ctx, employeeID, period)
}

// =============================================================================
// CONFIG SOURCE (weekly.ConfigSource interface)
// =============================================================================

// SaveBrackets replaces the configured bracket table. The table is validated
// before anything is written.
func (s *Store) SaveBrackets(ctx context.Context, table fiscal.BracketTable) error {
	if err := table.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM tax_brackets"); err != nil {
		return err
	}
	for _, b := range table.Brackets() {
		var max *string
		if b.Max != nil {
			m := b.Max.String()
			max = &m
		}
		_, err := sqlTx.ExecContext(ctx,
			"INSERT INTO tax_brackets (min_revenue, max_revenue, rate) VALUES (?, ?, ?)",
			b.Min.String(), max, b.Rate.String())
		if err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// SaveBonusParams upserts the bonus parameter set.
func (s *Store) SaveBonusParams(ctx context.Context, params fiscal.BonusParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	values := map[string]decimal.Decimal{
		"service_bonus_rate_cdd":   params.ServiceRateCDD,
		"service_bonus_rate_other": params.ServiceRateOther,
		"service_bonus_threshold":  params.ServiceThreshold,
		"service_bonus_extra_rate": params.ServiceExtraRate,
		"sales_bonus_percentage":   params.SalesBonusPct,
		"sales_bonus_threshold":    params.SalesThreshold,
		"sales_bonus_extra_rate":   params.SalesExtraRate,
		"base_rate_per_service":    params.BaseRatePerService,
	}
	for name, value := range values {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO bonus_params (name, value) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value
		`, name, value.String())
		if err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// ConfigSnapshot reads the bracket table and bonus parameters once, for one
// calculation run.
func (s *Store) ConfigSnapshot(ctx context.Context) (weekly.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap weekly.Snapshot

	rows, err := s.db.QueryContext(ctx,
		"SELECT min_revenue, max_revenue, rate FROM tax_brackets")
	if err != nil {
		return snap, err
	}
	defer rows.Close()

	var ds decimalScan
	var brackets []fiscal.TaxBracket
	for rows.Next() {
		var min, rate string
		var max sql.NullString
		if err := rows.Scan(&min, &max, &rate); err != nil {
			return snap, err
		}
		b := fiscal.TaxBracket{Min: ds.parse(min), Rate: ds.parse(rate)}
		if max.Valid {
			m := ds.parse(max.String)
			b.Max = &m
		}
		brackets = append(brackets, b)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	if ds.err != nil {
		return snap, ds.err
	}
	snap.Brackets = fiscal.NewBracketTable(brackets)

	params, err := s.loadBonusParams(ctx)
	if err != nil {
		return snap, err
	}
	snap.Bonus = params

	return snap, nil
}

func (s *Store) loadBonusParams(ctx context.Context) (fiscal.BonusParams, error) {
	var params fiscal.BonusParams

	rows, err := s.db.QueryContext(ctx, "SELECT name, value FROM bonus_params")
	if err != nil {
		return params, err
	}
	defer rows.Close()

	var ds decimalScan
	values := make(map[string]decimal.Decimal)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return params, err
		}
		values[name] = ds.parse(value)
	}
	if err := rows.Err(); err != nil {
		return params, err
	}
	if ds.err != nil {
		return params, ds.err
	}

	params.ServiceRateCDD = values["service_bonus_rate_cdd"]
	params.ServiceRateOther = values["service_bonus_rate_other"]
	params.ServiceThreshold = values["service_bonus_threshold"]
	params.ServiceExtraRate = values["service_bonus_extra_rate"]
	params.SalesBonusPct = values["sales_bonus_percentage"]
	params.SalesThreshold = values["sales_bonus_threshold"]
	params.SalesExtraRate = values["sales_bonus_extra_rate"]
	params.BaseRatePerService = values["base_rate_per_service"]
	return params, nil
}

// SeedDefaults installs the establishment's standard brackets and bonus
// parameters when the configuration tables are empty. Existing configuration
// is never touched.
func (s *Store) SeedDefaults(ctx context.Context) error {
	snap, err := s.ConfigSnapshot(ctx)
	if err != nil {
		return err
	}

	if len(snap.Brackets.Brackets()) == 0 {
		max1 := decimal.NewFromInt(200000)
		max2 := decimal.NewFromInt(400000)
		max3 := decimal.NewFromInt(600000)
		table := fiscal.NewBracketTable([]fiscal.TaxBracket{
			{Min: decimal.Zero, Max: &max1, Rate: decimal.Zero},
			{Min: max1, Max: &max2, Rate: decimal.NewFromInt(6)},
			{Min: max2, Max: &max3, Rate: decimal.NewFromInt(10)},
			{Min: max3, Rate: decimal.NewFromInt(15)},
		})
		if err := s.SaveBrackets(ctx, table); err != nil {
			return err
		}
	}

	if err := snap.Bonus.Validate(); err != nil {
		defaults := fiscal.BonusParams{
			ServiceRateCDD:     decimal.NewFromFloat(0.30),
			ServiceRateOther:   decimal.NewFromFloat(0.25),
			ServiceThreshold:   decimal.NewFromInt(80),
			ServiceExtraRate:   decimal.NewFromInt(10),
			SalesBonusPct:      decimal.NewFromFloat(0.20),
			SalesThreshold:     decimal.NewFromInt(100000),
			SalesExtraRate:     decimal.NewFromFloat(0.05),
			BaseRatePerService: decimal.NewFromInt(60),
		}
		if err := s.SaveBonusParams(ctx, defaults); err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// sumColumn sums a single decimal-string column returned by the query.
func (s *Store) sumColumn(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	var ds decimalScan
	total := decimal.Zero
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(ds.parse(value))
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}
	return total, ds.err
}

// decimalScan collects the first decimal parse failure across a row scan.
// A corrupt stored value must surface as an error, never as a silently
// zeroed amount.
type decimalScan struct{ err error }

func (d *decimalScan) parse(raw string) decimal.Decimal {
	if d.err != nil {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		d.err = fmt.Errorf("corrupt decimal value %q: %w", raw, err)
		return decimal.Zero
	}
	return v
}
