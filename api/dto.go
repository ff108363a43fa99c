/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMAL HANDLING:
  All money and rate fields are JSON strings ("1234.56"), never numbers.
  JSON numbers round-trip through float64 and lose exactness, which this
  engine exists to avoid.

TYPES:
  Periods:
    PeriodDTO, PeriodRequest

  Tax:
    TaxRecordDTO, BracketShareDTO

  Performance:
    PerformanceRecordDTO

  Ledger ingestion:
    CreateEmployeeRequest, EmployeeDTO,
    RecordSaleRequest, SaleItemRequest,
    RecordSessionRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: BracketTableJSON, BonusParamsJSON (config payloads)
*/
package api

// =============================================================================
// PERIOD TYPES
// =============================================================================

// PeriodDTO represents a weekly period in API responses.
type PeriodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PeriodRequest selects a period by any date inside it. When Date is empty
// the current period is used.
type PeriodRequest struct {
	Date string `json:"date,omitempty"`
}

// =============================================================================
// TAX TYPES
// =============================================================================

// BracketShareDTO is one line of a tax breakdown.
type BracketShareDTO struct {
	MinRevenue    string  `json:"min_revenue"`
	MaxRevenue    *string `json:"max_revenue,omitempty"`
	Rate          string  `json:"rate"`
	TaxableAmount string  `json:"taxable_amount"`
	TaxAmount     string  `json:"tax_amount"`
}

// TaxRecordDTO represents a weekly tax record in API responses.
type TaxRecordDTO struct {
	PeriodStart   string            `json:"period_start"`
	PeriodEnd     string            `json:"period_end"`
	TotalRevenue  string            `json:"total_revenue"`
	TaxAmount     string            `json:"tax_amount"`
	EffectiveRate string            `json:"effective_rate"`
	Breakdown     []BracketShareDTO `json:"breakdown"`
	IsFinalized   bool              `json:"is_finalized"`
	CalculatedAt  string            `json:"calculated_at"`
	FinalizedAt   *string           `json:"finalized_at,omitempty"`
}

// =============================================================================
// PERFORMANCE TYPES
// =============================================================================

// PerformanceRecordDTO represents one employee's weekly performance record.
type PerformanceRecordDTO struct {
	EmployeeID           string `json:"employee_id"`
	PeriodStart          string `json:"period_start"`
	ServiceCount         int64  `json:"service_count"`
	ServiceSalaryTotal   string `json:"service_salary_total"`
	ServiceHoursTotal    string `json:"service_hours_total"`
	SalesCount           int64  `json:"sales_count"`
	SalesRevenueTotal    string `json:"sales_revenue_total"`
	SalesCommissionTotal string `json:"sales_commission_total"`
	SalesProfitTotal     string `json:"sales_profit_total"`
	ServiceBonus         string `json:"service_bonus"`
	SalesBonus           string `json:"sales_bonus"`
	TotalBonus           string `json:"total_bonus"`
	IsFinalized          bool   `json:"is_finalized"`
	CalculatedAt         string `json:"calculated_at"`
}

// =============================================================================
// LEDGER INGESTION TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// CreateEmployeeRequest is the request to create or update an employee.
type CreateEmployeeRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status,omitempty"`
}

// SaleItemRequest is one sold line item on a sale.
type SaleItemRequest struct {
	UnitSellPrice  string `json:"unit_sell_price"`
	UnitSupplyCost string `json:"unit_supply_cost"`
	Quantity       int64  `json:"quantity"`
}

// RecordSaleRequest is the request to record a point-of-sale transaction.
type RecordSaleRequest struct {
	ID         string            `json:"id"`
	EmployeeID string            `json:"employee_id"`
	RecordedAt string            `json:"recorded_at"`
	Amount     string            `json:"amount"`
	Commission string            `json:"commission,omitempty"`
	Items      []SaleItemRequest `json:"items,omitempty"`
}

// RecordSessionRequest is the request to record a service session.
type RecordSessionRequest struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	RecordedAt      string `json:"recorded_at"`
	Status          string `json:"status"`
	UnitCount       int64  `json:"unit_count,omitempty"`
	SalaryAmount    string `json:"salary_amount"`
	DurationMinutes int64  `json:"duration_minutes,omitempty"`
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
