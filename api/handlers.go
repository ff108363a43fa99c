/*
handlers.go - HTTP API handlers for the weekly fiscal engine

PURPOSE:
  Exposes the calculation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Tax track:
    POST   /api/tax/calculate          Compute (or recompute) a period's tax
    POST   /api/tax/finalize           Freeze a period and roll forward
    GET    /api/tax                    List tax records (?finalized=true|false)
    GET    /api/tax/{date}             Get the record for the period containing date

  Performance track:
    POST   /api/performance/calculate  Compute the period's bonus batch
    POST   /api/performance/finalize   Freeze the period's bonus batch
    GET    /api/performance            List records (?date=YYYY-MM-DD)

  Configuration (admin):
    GET    /api/config/brackets        Current bracket table
    PUT    /api/config/brackets        Replace bracket table (validated)
    GET    /api/config/bonus           Current bonus parameters
    PUT    /api/config/bonus           Replace bonus parameters (validated)

  Ledger ingestion (panel-owned writes):
    GET    /api/employees              List employees
    POST   /api/employees              Create/update employee
    POST   /api/sales                  Record a sale with line items
    POST   /api/services               Record a service session

  Periods:
    GET    /api/periods/current        The period containing today

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the target period from the request date
  3. Call domain logic (orchestrator, store, factory)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the domain
  error taxonomy:
  - 400: Malformed input (bad JSON, bad dates)
  - 404: No record for the requested period
  - 409: Period already finalized
  - 422: Invalid configuration (bracket gaps, negative rates)
  - 503: A source ledger was unreachable
  - 500: Everything else

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  Deploy behind the panel's session middleware.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - weekly/orchestrator.go: Domain logic these handlers delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lustra/fiscal-engine/factory"
	"github.com/lustra/fiscal-engine/fiscal"
	"github.com/lustra/fiscal-engine/store/sqlite"
	"github.com/lustra/fiscal-engine/weekly"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	Orchestrator  *weekly.Orchestrator
	ConfigFactory *factory.ConfigFactory
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, orch *weekly.Orchestrator) *Handler {
	return &Handler{
		Store:         store,
		Orchestrator:  orch,
		ConfigFactory: factory.NewConfigFactory(),
	}
}

// resolvePeriod turns an optional request date into a normalized period.
// An empty date means the period containing today.
func (h *Handler) resolvePeriod(dateStr string) (fiscal.WeeklyPeriod, error) {
	if dateStr == "" {
		return h.Orchestrator.CurrentPeriod(), nil
	}
	date, err := fiscal.ParseDate(dateStr)
	if err != nil {
		return fiscal.WeeklyPeriod{}, err
	}
	return h.Orchestrator.Calendar.PeriodContaining(date), nil
}

// =============================================================================
// TAX HANDLERS
// =============================================================================

// CalculateTax computes (or recomputes) the tax record for a period.
// POST /api/tax/calculate
func (h *Handler) CalculateTax(w http.ResponseWriter, r *http.Request) {
	period, ok := h.periodFromBody(w, r)
	if !ok {
		return
	}

	rec, err := h.Orchestrator.CalculateTax(r.Context(), period)
	if err != nil {
		writeDomainError(w, "Failed to calculate tax", err)
		return
	}

	writeJSON(w, http.StatusOK, toTaxRecordDTO(rec, period.End))
}

// FinalizeTax freezes a period's tax record and seeds the next period.
// POST /api/tax/finalize
func (h *Handler) FinalizeTax(w http.ResponseWriter, r *http.Request) {
	period, ok := h.periodFromBody(w, r)
	if !ok {
		return
	}

	rec, err := h.Orchestrator.FinalizeTax(r.Context(), period)
	if err != nil {
		writeDomainError(w, "Failed to finalize tax", err)
		return
	}

	writeJSON(w, http.StatusOK, toTaxRecordDTO(rec, period.End))
}

// ListTaxRecords returns tax records, newest first.
// GET /api/tax?finalized=true|false
func (h *Handler) ListTaxRecords(w http.ResponseWriter, r *http.Request) {
	var finalized *bool
	switch r.URL.Query().Get("finalized") {
	case "true":
		v := true
		finalized = &v
	case "false":
		v := false
		finalized = &v
	}

	records, err := h.Store.ListTaxRecords(r.Context(), finalized)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tax records", err)
		return
	}

	dtos := make([]TaxRecordDTO, len(records))
	for i, rec := range records {
		period := h.Orchestrator.Calendar.PeriodStartingAt(rec.PeriodStart)
		dtos[i] = toTaxRecordDTO(rec, period.End)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTaxRecord returns the record for the period containing the given date.
// GET /api/tax/{date}
func (h *Handler) GetTaxRecord(w http.ResponseWriter, r *http.Request) {
	period, err := h.resolvePeriod(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	rec, err := h.Store.GetTaxRecord(r.Context(), period.Start)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get tax record", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "No tax record for period "+period.String(), nil)
		return
	}

	writeJSON(w, http.StatusOK, toTaxRecordDTO(*rec, period.End))
}

// =============================================================================
// PERFORMANCE HANDLERS
// =============================================================================

// CalculatePerformance computes the bonus batch for a period.
// POST /api/performance/calculate
func (h *Handler) CalculatePerformance(w http.ResponseWriter, r *http.Request) {
	period, ok := h.periodFromBody(w, r)
	if !ok {
		return
	}

	records, err := h.Orchestrator.CalculatePerformance(r.Context(), period)
	if err != nil {
		writeDomainError(w, "Failed to calculate performance", err)
		return
	}

	writeJSON(w, http.StatusOK, toPerformanceDTOs(records))
}

// FinalizePerformance freezes the bonus batch for a period.
// POST /api/performance/finalize
func (h *Handler) FinalizePerformance(w http.ResponseWriter, r *http.Request) {
	period, ok := h.periodFromBody(w, r)
	if !ok {
		return
	}

	if err := h.Orchestrator.FinalizePerformance(r.Context(), period); err != nil {
		writeDomainError(w, "Failed to finalize performance", err)
		return
	}

	records, err := h.Store.ListPerformanceRecords(r.Context(), period.Start)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list performance records", err)
		return
	}
	writeJSON(w, http.StatusOK, toPerformanceDTOs(records))
}

// ListPerformanceRecords returns the bonus batch for a period.
// GET /api/performance?date=YYYY-MM-DD
func (h *Handler) ListPerformanceRecords(w http.ResponseWriter, r *http.Request) {
	period, err := h.resolvePeriod(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	records, err := h.Store.ListPerformanceRecords(r.Context(), period.Start)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list performance records", err)
		return
	}
	writeJSON(w, http.StatusOK, toPerformanceDTOs(records))
}

// =============================================================================
// CONFIG HANDLERS
// =============================================================================

// GetBrackets returns the configured bracket table.
// GET /api/config/brackets
func (h *Handler) GetBrackets(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.ConfigSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ConfigFactory.BracketsToJSON(snap.Brackets))
}

// PutBrackets replaces the bracket table. The payload is validated as a
// complete partition of revenue before anything is written.
// PUT /api/config/brackets
func (h *Handler) PutBrackets(w http.ResponseWriter, r *http.Request) {
	var bj factory.BracketTableJSON
	if err := json.NewDecoder(r.Body).Decode(&bj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	table, err := h.ConfigFactory.BracketsFromJSON(bj)
	if err != nil {
		writeDomainError(w, "Invalid bracket table", err)
		return
	}

	if err := h.Store.SaveBrackets(r.Context(), table); err != nil {
		writeDomainError(w, "Failed to save bracket table", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ConfigFactory.BracketsToJSON(table))
}

// GetBonusParams returns the configured bonus parameters.
// GET /api/config/bonus
func (h *Handler) GetBonusParams(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.ConfigSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ConfigFactory.BonusParamsToJSON(snap.Bonus))
}

// PutBonusParams replaces the bonus parameter set.
// PUT /api/config/bonus
func (h *Handler) PutBonusParams(w http.ResponseWriter, r *http.Request) {
	var pj factory.BonusParamsJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	params, err := h.ConfigFactory.BonusParamsFromJSON(pj)
	if err != nil {
		writeDomainError(w, "Invalid bonus parameters", err)
		return
	}

	if err := h.Store.SaveBonusParams(r.Context(), params); err != nil {
		writeDomainError(w, "Failed to save bonus parameters", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ConfigFactory.BonusParamsToJSON(params))
}

// =============================================================================
// LEDGER INGESTION HANDLERS
// =============================================================================

// ListEmployees returns all employees.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{ID: e.ID, Name: e.Name, Role: e.Role, Status: e.Status}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates or updates an employee.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "id, name and role are required", nil)
		return
	}
	if req.Status == "" {
		req.Status = "active"
	}

	emp := weekly.Employee{ID: req.ID, Name: req.Name, Role: req.Role, Status: req.Status}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}

	writeJSON(w, http.StatusCreated, EmployeeDTO{
		ID: emp.ID, Name: emp.Name, Role: emp.Role, Status: emp.Status,
	})
}

// RecordSale records a point-of-sale transaction with its line items.
// POST /api/sales
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	recordedAt, err := parseTimestamp(req.RecordedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recorded_at (use RFC3339 or YYYY-MM-DD)", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	commission := decimal.Zero
	if req.Commission != "" {
		commission, err = decimal.NewFromString(req.Commission)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid commission", err)
			return
		}
	}

	sale := sqlite.Sale{
		ID:         req.ID,
		EmployeeID: req.EmployeeID,
		RecordedAt: recordedAt,
		Amount:     amount,
		Commission: commission,
	}
	for _, item := range req.Items {
		sell, err := decimal.NewFromString(item.UnitSellPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unit_sell_price", err)
			return
		}
		cost, err := decimal.NewFromString(item.UnitSupplyCost)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unit_supply_cost", err)
			return
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		sale.Items = append(sale.Items, sqlite.SaleItem{
			UnitSellPrice:  sell,
			UnitSupplyCost: cost,
			Quantity:       qty,
		})
	}

	if err := h.Store.RecordSale(r.Context(), sale); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": sale.ID})
}

// RecordSession records a service session.
// POST /api/services
func (h *Handler) RecordSession(w http.ResponseWriter, r *http.Request) {
	var req RecordSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	recordedAt, err := parseTimestamp(req.RecordedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recorded_at (use RFC3339 or YYYY-MM-DD)", err)
		return
	}
	salary, err := decimal.NewFromString(req.SalaryAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid salary_amount", err)
		return
	}
	units := req.UnitCount
	if units <= 0 {
		units = 1
	}

	sess := sqlite.ServiceSession{
		ID:              req.ID,
		EmployeeID:      req.EmployeeID,
		RecordedAt:      recordedAt,
		Status:          req.Status,
		UnitCount:       units,
		SalaryAmount:    salary,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.Store.RecordServiceSession(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record session", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": sess.ID})
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// GetCurrentPeriod returns the period containing today.
// GET /api/periods/current
func (h *Handler) GetCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	period := h.Orchestrator.CurrentPeriod()
	writeJSON(w, http.StatusOK, PeriodDTO{
		Start: period.Start.String(),
		End:   period.End.String(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// periodFromBody reads an optional PeriodRequest body and resolves the
// period it names. Writes the error response itself on failure.
func (h *Handler) periodFromBody(w http.ResponseWriter, r *http.Request) (fiscal.WeeklyPeriod, bool) {
	var req PeriodRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return fiscal.WeeklyPeriod{}, false
		}
	}

	period, err := h.resolvePeriod(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return fiscal.WeeklyPeriod{}, false
	}
	return period, true
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := fiscal.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}

func toTaxRecordDTO(rec fiscal.WeeklyTaxRecord, periodEnd fiscal.Date) TaxRecordDTO {
	dto := TaxRecordDTO{
		PeriodStart:   rec.PeriodStart.String(),
		PeriodEnd:     periodEnd.String(),
		TotalRevenue:  rec.TotalRevenue.String(),
		TaxAmount:     rec.TaxAmount.String(),
		EffectiveRate: rec.EffectiveRate.String(),
		Breakdown:     []BracketShareDTO{},
		IsFinalized:   rec.IsFinalized,
		CalculatedAt:  rec.CalculatedAt.UTC().Format(time.RFC3339),
	}
	if rec.FinalizedAt != nil {
		s := rec.FinalizedAt.UTC().Format(time.RFC3339)
		dto.FinalizedAt = &s
	}
	for _, sh := range rec.Breakdown {
		line := BracketShareDTO{
			MinRevenue:    sh.Bracket.Min.String(),
			Rate:          sh.Bracket.Rate.String(),
			TaxableAmount: sh.TaxableAmount.String(),
			TaxAmount:     sh.TaxAmount.String(),
		}
		if sh.Bracket.Max != nil {
			m := sh.Bracket.Max.String()
			line.MaxRevenue = &m
		}
		dto.Breakdown = append(dto.Breakdown, line)
	}
	return dto
}

func toPerformanceDTOs(records []fiscal.WeeklyPerformanceRecord) []PerformanceRecordDTO {
	dtos := make([]PerformanceRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = PerformanceRecordDTO{
			EmployeeID:           rec.EmployeeID,
			PeriodStart:          rec.PeriodStart.String(),
			ServiceCount:         rec.ServiceCount,
			ServiceSalaryTotal:   rec.ServiceSalaryTotal.String(),
			ServiceHoursTotal:    rec.ServiceHoursTotal.String(),
			SalesCount:           rec.SalesCount,
			SalesRevenueTotal:    rec.SalesRevenueTotal.String(),
			SalesCommissionTotal: rec.SalesCommissionTotal.String(),
			SalesProfitTotal:     rec.SalesProfitTotal.String(),
			ServiceBonus:         rec.ServiceBonus.String(),
			SalesBonus:           rec.SalesBonus.String(),
			TotalBonus:           rec.TotalBonus.String(),
			IsFinalized:          rec.IsFinalized,
			CalculatedAt:         rec.CalculatedAt.UTC().Format(time.RFC3339),
		}
	}
	return dtos
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the domain error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case fiscal.IsConfiguration(err):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case errors.Is(err, fiscal.ErrAlreadyFinalized):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, fiscal.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, fiscal.ErrLedgerUnavailable):
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
