package fiscal

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// TAX ENGINE - Derives the weekly tax liability from total revenue
// =============================================================================

// BracketShare is one line of the auditable tax breakdown: how much revenue
// was taxed under which bracket, and the resulting tax.
type BracketShare struct {
	Bracket       TaxBracket
	TaxableAmount decimal.Decimal
	TaxAmount     decimal.Decimal
}

// TaxResult is the outcome of a tax computation for one revenue figure.
type TaxResult struct {
	TotalRevenue  decimal.Decimal
	TaxAmount     decimal.Decimal
	EffectiveRate decimal.Decimal // percentage, 0-100
	Breakdown     []BracketShare
}

// TaxEngine computes tax from a bracket table snapshot.
type TaxEngine struct {
	Brackets BracketTable
}

var hundred = decimal.NewFromInt(100)

// Compute derives the tax amount, effective rate, and per-band breakdown for
// the given revenue.
//
// The whole revenue is taxed at the single matched bracket's rate: a flat,
// not marginal, scheme. The breakdown therefore normally carries exactly one
// entry. Negative revenue clamps to zero before lookup.
//
// All amounts round half-up to 2 decimal places, so recomputation with the
// same input is byte-identical.
func (e TaxEngine) Compute(revenue decimal.Decimal) (TaxResult, error) {
	if revenue.IsNegative() {
		revenue = decimal.Zero
	}

	bracket, err := e.Brackets.Lookup(revenue)
	if err != nil {
		return TaxResult{}, err
	}

	tax := revenue.Mul(bracket.Rate).Div(hundred).Round(2)

	effective := decimal.Zero
	if !revenue.IsZero() {
		effective = tax.Div(revenue).Mul(hundred).Round(2)
	}

	return TaxResult{
		TotalRevenue:  revenue.Round(2),
		TaxAmount:     tax,
		EffectiveRate: effective,
		Breakdown: []BracketShare{{
			Bracket:       bracket,
			TaxableAmount: revenue.Round(2),
			TaxAmount:     tax,
		}},
	}, nil
}
