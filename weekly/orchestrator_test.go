package weekly_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lustra/fiscal-engine/fiscal"
	"github.com/lustra/fiscal-engine/weekly"
	"github.com/lustra/fiscal-engine/weekly/store"
)

// =============================================================================
// TEST FAKES
// =============================================================================

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeDirectory struct {
	employees []weekly.Employee
	err       error
}

func (f *fakeDirectory) ActiveEmployees(context.Context) ([]weekly.Employee, error) {
	return f.employees, f.err
}

type fakeSales struct {
	revenue  decimal.Decimal
	activity map[string]weekly.SalesActivity
	err      error
}

func (f *fakeSales) RevenueTotal(context.Context, fiscal.WeeklyPeriod) (decimal.Decimal, error) {
	return f.revenue, f.err
}

func (f *fakeSales) ActivityFor(_ context.Context, employeeID string, _ fiscal.WeeklyPeriod) (weekly.SalesActivity, error) {
	if f.err != nil {
		return weekly.SalesActivity{}, f.err
	}
	return f.activity[employeeID], nil
}

type fakeServices struct {
	salary   decimal.Decimal
	activity map[string]weekly.ServiceActivity
	err      error
}

func (f *fakeServices) SalaryTotal(context.Context, fiscal.WeeklyPeriod) (decimal.Decimal, error) {
	return f.salary, f.err
}

func (f *fakeServices) ActivityFor(_ context.Context, employeeID string, _ fiscal.WeeklyPeriod) (weekly.ServiceActivity, error) {
	if f.err != nil {
		return weekly.ServiceActivity{}, f.err
	}
	return f.activity[employeeID], nil
}

type fakeConfig struct {
	snap weekly.Snapshot
	err  error
}

func (f *fakeConfig) ConfigSnapshot(context.Context) (weekly.Snapshot, error) {
	return f.snap, f.err
}

func testSnapshot() weekly.Snapshot {
	max1 := d("200000")
	max2 := d("400000")
	max3 := d("600000")
	return weekly.Snapshot{
		Brackets: fiscal.NewBracketTable([]fiscal.TaxBracket{
			{Min: d("0"), Max: &max1, Rate: d("0")},
			{Min: max1, Max: &max2, Rate: d("6")},
			{Min: max2, Max: &max3, Rate: d("10")},
			{Min: max3, Rate: d("15")},
		}),
		Bonus: fiscal.BonusParams{
			BaseRatePerService: d("60"),
			ServiceRateCDD:     d("0.30"),
			ServiceRateOther:   d("0.25"),
			ServiceThreshold:   d("80"),
			ServiceExtraRate:   d("10"),
			SalesBonusPct:      d("0.20"),
			SalesThreshold:     d("100000"),
			SalesExtraRate:     d("0.05"),
		},
	}
}

type harness struct {
	orch      *weekly.Orchestrator
	records   *store.Memory
	directory *fakeDirectory
	sales     *fakeSales
	services  *fakeServices
	config    *fakeConfig
	period    fiscal.WeeklyPeriod
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		records:   store.NewMemory(),
		directory: &fakeDirectory{},
		sales:     &fakeSales{revenue: decimal.Zero, activity: map[string]weekly.SalesActivity{}},
		services:  &fakeServices{salary: decimal.Zero, activity: map[string]weekly.ServiceActivity{}},
		config:    &fakeConfig{snap: testSnapshot()},
	}
	h.orch = weekly.New(h.records, h.directory, h.sales, h.services, h.config)
	h.orch.Now = func() time.Time {
		return time.Date(2026, time.September, 2, 12, 0, 0, 0, time.UTC)
	}
	h.period = h.orch.Calendar.PeriodContaining(fiscal.NewDate(2026, time.August, 28))
	return h
}

// =============================================================================
// TAX TRACK TESTS
// =============================================================================

func TestCalculateTax_SumsBothLedgers(t *testing.T) {
	// GIVEN: 300000 in sales revenue and 150000 in completed-service salary
	// WHEN: Calculating the period's tax
	// THEN: Total revenue 450000 lands in the 10% band -> 45000 tax

	h := newHarness(t)
	h.sales.revenue = d("300000")
	h.services.salary = d("150000")

	rec, err := h.orch.CalculateTax(context.Background(), h.period)
	require.NoError(t, err)

	assert.True(t, rec.TotalRevenue.Equal(d("450000")))
	assert.True(t, rec.TaxAmount.Equal(d("45000")))
	assert.True(t, rec.EffectiveRate.Equal(d("10")))
	assert.False(t, rec.IsFinalized)
}

func TestCalculateTax_RecomputeWithUnchangedLedgers_IsNoOp(t *testing.T) {
	// GIVEN: A calculated period
	// WHEN: Recomputing later with unchanged ledgers
	// THEN: The stored row is untouched, original CalculatedAt included

	h := newHarness(t)
	h.sales.revenue = d("300000")

	first, err := h.orch.CalculateTax(context.Background(), h.period)
	require.NoError(t, err)

	// Advance the clock; figures have not changed
	h.orch.Now = func() time.Time {
		return time.Date(2026, time.September, 3, 9, 0, 0, 0, time.UTC)
	}
	second, err := h.orch.CalculateTax(context.Background(), h.period)
	require.NoError(t, err)

	assert.True(t, second.CalculatedAt.Equal(first.CalculatedAt))
	assert.True(t, second.SameFigures(first))
}

func TestCalculateTax_RecomputeAfterLedgerChange_Overwrites(t *testing.T) {
	h := newHarness(t)
	h.sales.revenue = d("300000")

	_, err := h.orch.CalculateTax(context.Background(), h.period)
	require.NoError(t, err)

	// A late sale arrives
	h.sales.revenue = d("500000")
	rec, err := h.orch.CalculateTax(context.Background(), h.period)
	require.NoError(t, err)

	assert.True(t, rec.TotalRevenue.Equal(d("500000")))
	assert.True(t, rec.TaxAmount.Equal(d("50000")))

	stored, err := h.records.GetTaxRecord(context.Background(), h.period.Start)
	require.NoError(t, err)
	assert.True(t, stored.TotalRevenue.Equal(d("500000")))
}

func TestCalculateTax_RefusedAfterFinalize(t *testing.T) {
	h := newHarness(t)
	h.sales.revenue = d("300000")

	_, err := h.orch.CalculateTax(context.Background(), h.period)
	require.NoError(t, err)
	_, err = h.orch.FinalizeTax(context.Background(), h.period)
	require.NoError(t, err)

	_, err = h.orch.CalculateTax(context.Background(), h.period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fiscal.ErrAlreadyFinalized))
}

func TestCalculateTax_LedgerFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.sales.err = errors.New("pos export timed out")

	_, err := h.orch.CalculateTax(context.Background(), h.period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fiscal.ErrLedgerUnavailable))
	assert.True(t, fiscal.IsRetryable(err))

	stored, err := h.records.GetTaxRecord(context.Background(), h.period.Start)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestCalculateTax_InvalidBrackets_Refused(t *testing.T) {
	h := newHarness(t)
	h.config.snap.Brackets = fiscal.NewBracketTable(nil)

	_, err := h.orch.CalculateTax(context.Background(), h.period)
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}

func TestFinalizeTax_SeedsNextPeriod(t *testing.T) {
	// GIVEN: A calculated period
	// WHEN: Finalizing it
	// THEN: The record is frozen and a zeroed next-period record exists

	h := newHarness(t)
	h.sales.revenue = d("300000")

	_, err := h.orch.CalculateTax(context.Background(), h.period)
	require.NoError(t, err)

	rec, err := h.orch.FinalizeTax(context.Background(), h.period)
	require.NoError(t, err)
	assert.True(t, rec.IsFinalized)
	require.NotNil(t, rec.FinalizedAt)

	next := h.orch.Calendar.Next(h.period)
	seeded, err := h.records.GetTaxRecord(context.Background(), next.Start)
	require.NoError(t, err)
	require.NotNil(t, seeded)
	assert.True(t, seeded.TotalRevenue.IsZero())
	assert.False(t, seeded.IsFinalized)
}

func TestFinalizeTax_DoesNotClobberExistingNextPeriod(t *testing.T) {
	h := newHarness(t)
	h.sales.revenue = d("300000")

	_, err := h.orch.CalculateTax(context.Background(), h.period)
	require.NoError(t, err)

	// The next period was already calculated out of order
	next := h.orch.Calendar.Next(h.period)
	existing := fiscal.WeeklyTaxRecord{
		PeriodStart:  next.Start,
		TotalRevenue: d("50000"),
		CalculatedAt: h.orch.Now(),
	}
	require.NoError(t, h.records.PutTaxRecord(context.Background(), existing))

	_, err = h.orch.FinalizeTax(context.Background(), h.period)
	require.NoError(t, err)

	kept, err := h.records.GetTaxRecord(context.Background(), next.Start)
	require.NoError(t, err)
	assert.True(t, kept.TotalRevenue.Equal(d("50000")))
}

func TestFinalizeTax_TwiceIsAnError(t *testing.T) {
	h := newHarness(t)
	h.sales.revenue = d("300000")

	_, err := h.orch.CalculateTax(context.Background(), h.period)
	require.NoError(t, err)
	_, err = h.orch.FinalizeTax(context.Background(), h.period)
	require.NoError(t, err)

	_, err = h.orch.FinalizeTax(context.Background(), h.period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fiscal.ErrAlreadyFinalized))
	assert.True(t, fiscal.IsClientError(err))
}

func TestFinalizeTax_WithoutCalculation(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.FinalizeTax(context.Background(), h.period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fiscal.ErrRecordNotFound))
}

func TestCalculateTax_ConcurrentRunsConverge(t *testing.T) {
	// Concurrent calculations for the same period serialize through the
	// per-period lock and converge on one consistent row.
	h := newHarness(t)
	h.sales.revenue = d("300000")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.CalculateTax(context.Background(), h.period)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := h.records.GetTaxRecord(context.Background(), h.period.Start)
	require.NoError(t, err)
	assert.True(t, stored.TaxAmount.Equal(d("18000")))
}

// =============================================================================
// PERFORMANCE TRACK TESTS
// =============================================================================

func TestCalculatePerformance_OneRowPerActiveEmployee(t *testing.T) {
	h := newHarness(t)
	h.directory.employees = []weekly.Employee{
		{ID: "emp-1", Name: "Aya", Role: fiscal.RoleCDD, Status: "active"},
		{ID: "emp-2", Name: "Selim", Role: fiscal.RoleCDI, Status: "active"},
	}
	h.services.activity = map[string]weekly.ServiceActivity{
		"emp-1": {Count: 50, SalaryTotal: d("3000"), HoursTotal: d("40")},
		"emp-2": {Count: 20, SalaryTotal: d("1500"), HoursTotal: d("18")},
	}
	h.sales.activity = map[string]weekly.SalesActivity{
		"emp-2": {Count: 4, RevenueTotal: d("130000"), ProfitTotal: d("120000")},
	}

	records, err := h.orch.CalculatePerformance(context.Background(), h.period)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := map[string]fiscal.WeeklyPerformanceRecord{}
	for _, rec := range records {
		byID[rec.EmployeeID] = rec
	}

	// CDD with 50 services: 50*60*0.30 = 900, no sales
	assert.True(t, byID["emp-1"].ServiceBonus.Equal(d("900")))
	assert.True(t, byID["emp-1"].SalesBonus.IsZero())
	assert.True(t, byID["emp-1"].TotalBonus.Equal(d("900")))

	// CDI with 20 services and 120000 profit: 300 + 25000
	assert.True(t, byID["emp-2"].ServiceBonus.Equal(d("300")))
	assert.True(t, byID["emp-2"].SalesBonus.Equal(d("25000")))
	assert.True(t, byID["emp-2"].TotalBonus.Equal(d("25300")))
}

func TestCalculatePerformance_SkipsUnrecognizedRoles(t *testing.T) {
	h := newHarness(t)
	h.directory.employees = []weekly.Employee{
		{ID: "emp-1", Role: fiscal.RoleCDD, Status: "active"},
		{ID: "emp-x", Role: "stagiaire", Status: "active"},
	}

	records, err := h.orch.CalculatePerformance(context.Background(), h.period)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "emp-1", records[0].EmployeeID)
}

func TestCalculatePerformance_RecomputeIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.directory.employees = []weekly.Employee{
		{ID: "emp-1", Role: fiscal.RoleCDD, Status: "active"},
	}
	h.services.activity = map[string]weekly.ServiceActivity{
		"emp-1": {Count: 50, SalaryTotal: d("3000")},
	}

	first, err := h.orch.CalculatePerformance(context.Background(), h.period)
	require.NoError(t, err)

	h.orch.Now = func() time.Time {
		return time.Date(2026, time.September, 3, 9, 0, 0, 0, time.UTC)
	}
	second, err := h.orch.CalculatePerformance(context.Background(), h.period)
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.True(t, second[0].CalculatedAt.Equal(first[0].CalculatedAt))
}

func TestCalculatePerformance_LedgerFailureCarriesEmployee(t *testing.T) {
	h := newHarness(t)
	h.directory.employees = []weekly.Employee{
		{ID: "emp-1", Role: fiscal.RoleCDD, Status: "active"},
	}
	h.services.err = errors.New("planning db unreachable")

	_, err := h.orch.CalculatePerformance(context.Background(), h.period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fiscal.ErrLedgerUnavailable))

	var lerr *fiscal.LedgerError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "emp-1", lerr.EmployeeID)
	assert.Equal(t, "services", lerr.Ledger)
}

func TestCalculatePerformance_InvalidBonusParams_Refused(t *testing.T) {
	h := newHarness(t)
	h.config.snap.Bonus.BaseRatePerService = decimal.Zero
	h.directory.employees = []weekly.Employee{
		{ID: "emp-1", Role: fiscal.RoleCDD, Status: "active"},
	}

	_, err := h.orch.CalculatePerformance(context.Background(), h.period)
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}

func TestFinalizePerformance_ClosesThePeriod(t *testing.T) {
	h := newHarness(t)
	h.directory.employees = []weekly.Employee{
		{ID: "emp-1", Role: fiscal.RoleCDD, Status: "active"},
		{ID: "emp-2", Role: fiscal.RoleCDI, Status: "active"},
	}

	_, err := h.orch.CalculatePerformance(context.Background(), h.period)
	require.NoError(t, err)

	require.NoError(t, h.orch.FinalizePerformance(context.Background(), h.period))

	rows, err := h.records.ListPerformanceRecords(context.Background(), h.period.Start)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.True(t, row.IsFinalized)
	}

	// Recalculation is now refused
	_, err = h.orch.CalculatePerformance(context.Background(), h.period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fiscal.ErrAlreadyFinalized))
}

func TestFinalizePerformance_TwiceIsAnError(t *testing.T) {
	h := newHarness(t)
	h.directory.employees = []weekly.Employee{
		{ID: "emp-1", Role: fiscal.RoleCDD, Status: "active"},
	}

	_, err := h.orch.CalculatePerformance(context.Background(), h.period)
	require.NoError(t, err)
	require.NoError(t, h.orch.FinalizePerformance(context.Background(), h.period))

	err = h.orch.FinalizePerformance(context.Background(), h.period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fiscal.ErrAlreadyFinalized))
}

func TestFinalizePerformance_EmptyPeriod(t *testing.T) {
	h := newHarness(t)

	err := h.orch.FinalizePerformance(context.Background(), h.period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fiscal.ErrRecordNotFound))
}

// =============================================================================
// PERIOD RESOLUTION TESTS
// =============================================================================

func TestCurrentPeriod_UsesInjectedClock(t *testing.T) {
	h := newHarness(t)

	p := h.orch.CurrentPeriod()
	assert.True(t, p.Start.Equal(fiscal.NewDate(2026, time.August, 28)))
	assert.True(t, p.Contains(fiscal.NewDate(2026, time.September, 2)))
}

func TestPastDuePerformancePeriods(t *testing.T) {
	// GIVEN: An open period whose end has passed, with open performance rows
	// WHEN: Listing past-due periods
	// THEN: That period's start is reported; a current period is not

	h := newHarness(t)
	h.directory.employees = []weekly.Employee{
		{ID: "emp-1", Role: fiscal.RoleCDD, Status: "active"},
	}

	old := h.orch.Calendar.PeriodContaining(fiscal.NewDate(2026, time.August, 14))
	_, err := h.orch.CalculateTax(context.Background(), old)
	require.NoError(t, err)
	_, err = h.orch.CalculatePerformance(context.Background(), old)
	require.NoError(t, err)

	// Current period, still running
	_, err = h.orch.CalculateTax(context.Background(), h.period)
	require.NoError(t, err)
	_, err = h.orch.CalculatePerformance(context.Background(), h.period)
	require.NoError(t, err)

	due, err := h.orch.PastDuePerformancePeriods(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.True(t, due[0].Equal(old.Start))

	// Once finalized it disappears from the past-due list
	require.NoError(t, h.orch.FinalizePerformance(context.Background(), old))
	due, err = h.orch.PastDuePerformancePeriods(context.Background())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestPastDuePerformancePeriods_SurvivesTaxFinalize(t *testing.T) {
	// GIVEN: An elapsed period closed out in the usual order - calculate tax,
	//        calculate performance, finalize tax
	// WHEN: Listing past-due periods
	// THEN: The open performance rows still surface the period

	h := newHarness(t)
	h.directory.employees = []weekly.Employee{
		{ID: "emp-1", Role: fiscal.RoleCDD, Status: "active"},
	}

	old := h.orch.Calendar.PeriodContaining(fiscal.NewDate(2026, time.August, 14))
	_, err := h.orch.CalculateTax(context.Background(), old)
	require.NoError(t, err)
	_, err = h.orch.CalculatePerformance(context.Background(), old)
	require.NoError(t, err)
	_, err = h.orch.FinalizeTax(context.Background(), old)
	require.NoError(t, err)

	due, err := h.orch.PastDuePerformancePeriods(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.True(t, due[0].Equal(old.Start))
}

func TestPastDuePerformancePeriods_WithoutTaxRecord(t *testing.T) {
	// Performance can run before tax has ever been calculated for the
	// period; the open rows alone make it due.
	h := newHarness(t)
	h.directory.employees = []weekly.Employee{
		{ID: "emp-1", Role: fiscal.RoleCDD, Status: "active"},
	}

	old := h.orch.Calendar.PeriodContaining(fiscal.NewDate(2026, time.August, 14))
	_, err := h.orch.CalculatePerformance(context.Background(), old)
	require.NoError(t, err)

	due, err := h.orch.PastDuePerformancePeriods(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.True(t, due[0].Equal(old.Start))
}
