package fiscal

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLES
// =============================================================================

// Employee contract roles recognized by the bonus formulas.
const (
	RoleCDD = "CDD"
	RoleCDI = "CDI"
)

// RecognizedRoles is the role set eligible for weekly performance rows.
var RecognizedRoles = []string{RoleCDD, RoleCDI}

// IsRecognizedRole reports whether the role participates in bonus runs.
func IsRecognizedRole(role string) bool {
	for _, r := range RecognizedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// =============================================================================
// BONUS PARAMETERS - Named numeric knobs controlling the bonus formulas
// =============================================================================

// BonusParams is the snapshot of bonus configuration used for one run.
// Persistence is owned by the administration workflow; the engine only reads.
type BonusParams struct {
	// Percentage of the base rate per completed service, tiered by role.
	ServiceRateCDD   decimal.Decimal
	ServiceRateOther decimal.Decimal

	// Above this many services in a week, each extra service pays ServiceExtraRate.
	ServiceThreshold decimal.Decimal
	ServiceExtraRate decimal.Decimal

	// Fraction of weekly sales profit paid as bonus.
	SalesBonusPct decimal.Decimal

	// Above this much profit, the excess additionally pays SalesExtraRate.
	SalesThreshold decimal.Decimal
	SalesExtraRate decimal.Decimal

	// Fixed base rate credited per completed service.
	BaseRatePerService decimal.Decimal
}

// Validate fails fast on missing or negative parameters. Missing values must
// not silently default: a zero base rate or zero percentage silently wipes out
// every bonus, which is indistinguishable from an unconfigured system.
func (p BonusParams) Validate() error {
	checks := []struct {
		name  string
		value decimal.Decimal
	}{
		{"service_bonus_rate_cdd", p.ServiceRateCDD},
		{"service_bonus_rate_other", p.ServiceRateOther},
		{"service_bonus_threshold", p.ServiceThreshold},
		{"service_bonus_extra_rate", p.ServiceExtraRate},
		{"sales_bonus_percentage", p.SalesBonusPct},
		{"sales_bonus_threshold", p.SalesThreshold},
		{"sales_bonus_extra_rate", p.SalesExtraRate},
		{"base_rate_per_service", p.BaseRatePerService},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return &ConfigurationError{Field: c.name, Reason: "must not be negative"}
		}
	}
	if p.BaseRatePerService.IsZero() {
		return &ConfigurationError{Field: "base_rate_per_service", Reason: "missing"}
	}
	if p.SalesBonusPct.IsZero() {
		return &ConfigurationError{Field: "sales_bonus_percentage", Reason: "missing"}
	}
	if p.ServiceRateCDD.IsZero() || p.ServiceRateOther.IsZero() {
		return &ConfigurationError{Field: "service_bonus_rate", Reason: "missing"}
	}
	return nil
}

// =============================================================================
// PERFORMANCE ENGINE - Per-employee incentive bonuses for one period
// =============================================================================

// PerformanceInput is one employee's weekly activity aggregate.
type PerformanceInput struct {
	Role             string
	ServiceCount     int64
	SalesProfitTotal decimal.Decimal
}

// BonusResult is the computed incentive outcome for one employee.
type BonusResult struct {
	ServiceBonus decimal.Decimal
	SalesBonus   decimal.Decimal
	TotalBonus   decimal.Decimal
}

// PerformanceEngine computes bonuses from a parameter snapshot.
type PerformanceEngine struct {
	Params BonusParams
}

// ServiceBonus pays a role-tiered percentage of the fixed base rate per
// completed service, plus a per-unit extra above the weekly threshold.
// Unrecognized roles fall back to the CDD rate.
func (e PerformanceEngine) ServiceBonus(role string, serviceCount int64) decimal.Decimal {
	if serviceCount <= 0 {
		return decimal.Zero
	}

	var pct decimal.Decimal
	switch role {
	case RoleCDD:
		pct = e.Params.ServiceRateCDD
	case RoleCDI:
		pct = e.Params.ServiceRateOther
	default:
		pct = e.Params.ServiceRateCDD
	}

	count := decimal.NewFromInt(serviceCount)
	bonus := count.Mul(e.Params.BaseRatePerService).Mul(pct)

	if count.GreaterThan(e.Params.ServiceThreshold) {
		extra := count.Sub(e.Params.ServiceThreshold).Mul(e.Params.ServiceExtraRate)
		bonus = bonus.Add(extra)
	}

	return bonus.Round(2)
}

// SalesBonus pays a fraction of weekly sales profit, plus an extra rate on
// the profit above the threshold. Zero or negative profit yields zero, never
// a negative bonus.
func (e PerformanceEngine) SalesBonus(salesProfit decimal.Decimal) decimal.Decimal {
	if !salesProfit.IsPositive() {
		return decimal.Zero
	}

	bonus := salesProfit.Mul(e.Params.SalesBonusPct)

	if salesProfit.GreaterThan(e.Params.SalesThreshold) {
		extra := salesProfit.Sub(e.Params.SalesThreshold).Mul(e.Params.SalesExtraRate)
		bonus = bonus.Add(extra)
	}

	return bonus.Round(2)
}

// Compute derives both bonuses and their total for one employee.
func (e PerformanceEngine) Compute(in PerformanceInput) BonusResult {
	service := e.ServiceBonus(in.Role, in.ServiceCount)
	sales := e.SalesBonus(in.SalesProfitTotal)
	return BonusResult{
		ServiceBonus: service,
		SalesBonus:   sales,
		TotalBonus:   service.Add(sales).Round(2),
	}
}
