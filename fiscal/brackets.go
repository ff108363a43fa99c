package fiscal

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TAX BRACKET - Contiguous revenue band with a flat rate
// =============================================================================

// TaxBracket is a revenue band carrying a tax rate. Max is nil for the
// unbounded top band. Rate is a percentage (0-100).
type TaxBracket struct {
	Min  decimal.Decimal
	Max  *decimal.Decimal
	Rate decimal.Decimal
}

// Covers returns true if the revenue falls inside this band.
func (b TaxBracket) Covers(revenue decimal.Decimal) bool {
	if revenue.LessThan(b.Min) {
		return false
	}
	return b.Max == nil || revenue.LessThanOrEqual(*b.Max)
}

// =============================================================================
// BRACKET TABLE - Ordered, non-overlapping partition of [0, inf)
// =============================================================================

// BracketTable is the configured set of brackets, held sorted by Min
// descending so Lookup scans from the highest band down. Mutated only by the
// administration workflow; calculations receive it as an immutable snapshot.
type BracketTable struct {
	brackets []TaxBracket
}

// NewBracketTable builds a table from the given bands, sorting them by Min
// descending. Validation is separate so admin input errors carry detail.
func NewBracketTable(brackets []TaxBracket) BracketTable {
	sorted := make([]TaxBracket, len(brackets))
	copy(sorted, brackets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Min.GreaterThan(sorted[j].Min)
	})
	return BracketTable{brackets: sorted}
}

// Brackets returns the bands in lookup order (Min descending).
func (t BracketTable) Brackets() []TaxBracket {
	out := make([]TaxBracket, len(t.brackets))
	copy(out, t.brackets)
	return out
}

// Validate checks that the brackets partition [0, inf) without gaps or
// overlaps: exactly one unbounded top band, the lowest band starting at 0,
// and each band's Max abutting the next band's Min.
func (t BracketTable) Validate() error {
	if len(t.brackets) == 0 {
		return &ConfigurationError{Field: "brackets", Reason: "no brackets configured"}
	}

	// Walk ascending: reverse of lookup order.
	for i := len(t.brackets) - 1; i >= 0; i-- {
		b := t.brackets[i]

		if b.Rate.IsNegative() || b.Rate.GreaterThan(decimal.NewFromInt(100)) {
			return &ConfigurationError{Field: "brackets", Reason: "rate must be between 0 and 100"}
		}
		if b.Min.IsNegative() {
			return &ConfigurationError{Field: "brackets", Reason: "min_revenue must be >= 0"}
		}

		if i == len(t.brackets)-1 {
			if !b.Min.IsZero() {
				return &ConfigurationError{Field: "brackets", Reason: "lowest bracket must start at 0"}
			}
		}

		if i == 0 {
			if b.Max != nil {
				return &ConfigurationError{Field: "brackets", Reason: "highest bracket must be unbounded"}
			}
			continue
		}

		if b.Max == nil {
			return &ConfigurationError{Field: "brackets", Reason: "only the highest bracket may be unbounded"}
		}
		next := t.brackets[i-1]
		if !next.Min.Equal(*b.Max) {
			return &ConfigurationError{Field: "brackets", Reason: "brackets must abut without gaps or overlaps"}
		}
		if b.Max.LessThan(b.Min) {
			return &ConfigurationError{Field: "brackets", Reason: "max_revenue must be >= min_revenue"}
		}
	}

	return nil
}

// Lookup returns the single bracket covering the given revenue. Negative
// revenue clamps to zero, landing in the lowest band. A table that covers
// nothing is a setup invariant violation, not a per-call user error.
func (t BracketTable) Lookup(revenue decimal.Decimal) (TaxBracket, error) {
	if revenue.IsNegative() {
		revenue = decimal.Zero
	}
	for _, b := range t.brackets {
		if b.Covers(revenue) {
			return b, nil
		}
	}
	return TaxBracket{}, &ConfigurationError{
		Field:  "brackets",
		Reason: "no bracket covers revenue " + revenue.String(),
	}
}
