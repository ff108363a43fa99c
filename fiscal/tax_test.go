package fiscal_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lustra/fiscal-engine/fiscal"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// standardBrackets mirrors the establishment's default table:
//
//	[0, 200000]        0%
//	(200000, 400000]   6%
//	(400000, 600000]  10%
//	(600000, inf)     15%
func standardBrackets() fiscal.BracketTable {
	max1 := d("200000")
	max2 := d("400000")
	max3 := d("600000")
	return fiscal.NewBracketTable([]fiscal.TaxBracket{
		{Min: d("0"), Max: &max1, Rate: d("0")},
		{Min: max1, Max: &max2, Rate: d("6")},
		{Min: max2, Max: &max3, Rate: d("10")},
		{Min: max3, Rate: d("15")},
	})
}

// =============================================================================
// TAX COMPUTATION TESTS
// =============================================================================

func TestTaxEngine_FlatRateOnWholeRevenue(t *testing.T) {
	// GIVEN: Revenue of 450000, which falls in the 10% band
	// WHEN: Computing tax
	// THEN: The whole revenue is taxed at 10% - flat, not marginal

	engine := fiscal.TaxEngine{Brackets: standardBrackets()}

	result, err := engine.Compute(d("450000"))
	require.NoError(t, err)

	assert.True(t, result.TaxAmount.Equal(d("45000")), "got %s", result.TaxAmount)
	assert.True(t, result.EffectiveRate.Equal(d("10")), "got %s", result.EffectiveRate)
	require.Len(t, result.Breakdown, 1)
	assert.True(t, result.Breakdown[0].TaxableAmount.Equal(d("450000")))
	assert.True(t, result.Breakdown[0].TaxAmount.Equal(d("45000")))
}

func TestTaxEngine_ZeroRevenue(t *testing.T) {
	engine := fiscal.TaxEngine{Brackets: standardBrackets()}

	result, err := engine.Compute(decimal.Zero)
	require.NoError(t, err)

	assert.True(t, result.TaxAmount.IsZero())
	assert.True(t, result.EffectiveRate.IsZero())
}

func TestTaxEngine_NegativeRevenueClampsToZero(t *testing.T) {
	// A refund-heavy week can aggregate below zero; it must not produce a
	// negative liability.
	engine := fiscal.TaxEngine{Brackets: standardBrackets()}

	result, err := engine.Compute(d("-5000"))
	require.NoError(t, err)

	assert.True(t, result.TotalRevenue.IsZero())
	assert.True(t, result.TaxAmount.IsZero())
}

func TestTaxEngine_BoundaryLandsInHigherBand(t *testing.T) {
	// The lookup scans from the highest band down, so an exact boundary
	// value belongs to the band that starts there.
	engine := fiscal.TaxEngine{Brackets: standardBrackets()}

	result, err := engine.Compute(d("200000"))
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(d("12000")), "got %s", result.TaxAmount)

	result, err = engine.Compute(d("600000"))
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(d("90000")), "got %s", result.TaxAmount)
}

func TestTaxEngine_UnboundedTopBand(t *testing.T) {
	engine := fiscal.TaxEngine{Brackets: standardBrackets()}

	result, err := engine.Compute(d("2000000"))
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(d("300000")))
	assert.True(t, result.EffectiveRate.Equal(d("15")))
}

func TestTaxEngine_EffectiveRateMatchesBracketRate(t *testing.T) {
	// Within one band the effective rate equals the bracket rate, because
	// the whole revenue is taxed at that single rate.
	engine := fiscal.TaxEngine{Brackets: standardBrackets()}

	for _, revenue := range []string{"250000", "300000", "399999.99"} {
		result, err := engine.Compute(d(revenue))
		require.NoError(t, err)
		assert.True(t, result.EffectiveRate.Equal(d("6")),
			"revenue %s: got effective rate %s", revenue, result.EffectiveRate)
	}
}

func TestTaxEngine_RoundsToTwoDecimals(t *testing.T) {
	engine := fiscal.TaxEngine{Brackets: standardBrackets()}

	// 333333.33 * 6% = 19999.9998 -> 20000.00
	result, err := engine.Compute(d("333333.33"))
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(d("20000")), "got %s", result.TaxAmount)
}

// =============================================================================
// BRACKET VALIDATION TESTS
// =============================================================================

func TestBracketTable_Validate_Gap(t *testing.T) {
	max1 := d("200000")
	table := fiscal.NewBracketTable([]fiscal.TaxBracket{
		{Min: d("0"), Max: &max1, Rate: d("0")},
		{Min: d("300000"), Rate: d("10")}, // gap between 200000 and 300000
	})

	err := table.Validate()
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}

func TestBracketTable_Validate_LowestMustStartAtZero(t *testing.T) {
	table := fiscal.NewBracketTable([]fiscal.TaxBracket{
		{Min: d("100"), Rate: d("10")},
	})

	err := table.Validate()
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}

func TestBracketTable_Validate_TopMustBeUnbounded(t *testing.T) {
	max1 := d("200000")
	table := fiscal.NewBracketTable([]fiscal.TaxBracket{
		{Min: d("0"), Max: &max1, Rate: d("0")},
	})

	err := table.Validate()
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}

func TestBracketTable_Validate_RateRange(t *testing.T) {
	table := fiscal.NewBracketTable([]fiscal.TaxBracket{
		{Min: d("0"), Rate: d("150")},
	})

	err := table.Validate()
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}

func TestBracketTable_Validate_Empty(t *testing.T) {
	err := fiscal.NewBracketTable(nil).Validate()
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}

func TestBracketTable_Validate_StandardTableOK(t *testing.T) {
	assert.NoError(t, standardBrackets().Validate())
}
