package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lustra/fiscal-engine/factory"
	"github.com/lustra/fiscal-engine/fiscal"
)

const standardBracketsJSON = `{
	"brackets": [
		{"min_revenue": "0", "max_revenue": "200000", "rate": "0"},
		{"min_revenue": "200000", "max_revenue": "400000", "rate": "6"},
		{"min_revenue": "400000", "max_revenue": "600000", "rate": "10"},
		{"min_revenue": "600000", "rate": "15"}
	]
}`

const standardBonusJSON = `{
	"base_rate_per_service": "60",
	"service_bonus_rate_cdd": "0.30",
	"service_bonus_rate_other": "0.25",
	"service_bonus_threshold": "80",
	"service_bonus_extra_rate": "10",
	"sales_bonus_percentage": "0.20",
	"sales_bonus_threshold": "100000",
	"sales_bonus_extra_rate": "0.05"
}`

// =============================================================================
// BRACKET PARSING TESTS
// =============================================================================

func TestParseBrackets_Standard(t *testing.T) {
	f := factory.NewConfigFactory()

	table, err := f.ParseBrackets(standardBracketsJSON)
	require.NoError(t, err)
	require.NoError(t, table.Validate())

	brackets := table.Brackets()
	require.Len(t, brackets, 4)
	// Lookup order is Min descending
	assert.Equal(t, "600000", brackets[0].Min.String())
	assert.Nil(t, brackets[0].Max)
	assert.Equal(t, "0", brackets[3].Min.String())
}

func TestParseBrackets_RoundTrip(t *testing.T) {
	f := factory.NewConfigFactory()

	table, err := f.ParseBrackets(standardBracketsJSON)
	require.NoError(t, err)

	again, err := f.BracketsFromJSON(f.BracketsToJSON(table))
	require.NoError(t, err)

	a, b := table.Brackets(), again.Brackets()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.True(t, a[i].Min.Equal(b[i].Min))
		assert.True(t, a[i].Rate.Equal(b[i].Rate))
	}
}

func TestParseBrackets_GapRejected(t *testing.T) {
	f := factory.NewConfigFactory()

	_, err := f.ParseBrackets(`{
		"brackets": [
			{"min_revenue": "0", "max_revenue": "200000", "rate": "0"},
			{"min_revenue": "300000", "rate": "10"}
		]
	}`)
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}

func TestParseBrackets_BadDecimal(t *testing.T) {
	f := factory.NewConfigFactory()

	_, err := f.ParseBrackets(`{
		"brackets": [
			{"min_revenue": "zero", "rate": "10"}
		]
	}`)
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}

func TestParseBrackets_MalformedJSON(t *testing.T) {
	f := factory.NewConfigFactory()

	_, err := f.ParseBrackets(`{"brackets": [`)
	assert.Error(t, err)
}

// =============================================================================
// BONUS PARAMETER PARSING TESTS
// =============================================================================

func TestParseBonusParams_Standard(t *testing.T) {
	f := factory.NewConfigFactory()

	params, err := f.ParseBonusParams(standardBonusJSON)
	require.NoError(t, err)
	require.NoError(t, params.Validate())

	assert.Equal(t, "60", params.BaseRatePerService.String())
	assert.Equal(t, "0.3", params.ServiceRateCDD.String())
	assert.Equal(t, "100000", params.SalesThreshold.String())
}

func TestParseBonusParams_RoundTrip(t *testing.T) {
	f := factory.NewConfigFactory()

	params, err := f.ParseBonusParams(standardBonusJSON)
	require.NoError(t, err)

	again, err := f.BonusParamsFromJSON(f.BonusParamsToJSON(params))
	require.NoError(t, err)
	assert.True(t, params.SalesBonusPct.Equal(again.SalesBonusPct))
	assert.True(t, params.ServiceThreshold.Equal(again.ServiceThreshold))
}

func TestParseBonusParams_MissingFieldRejected(t *testing.T) {
	// An absent knob must fail loudly, not default to zero and silently
	// wipe out every bonus.
	f := factory.NewConfigFactory()

	_, err := f.ParseBonusParams(`{"base_rate_per_service": "60"}`)
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}

func TestParseBonusParams_NegativeRejected(t *testing.T) {
	f := factory.NewConfigFactory()

	_, err := f.ParseBonusParams(`{
		"base_rate_per_service": "60",
		"service_bonus_rate_cdd": "0.30",
		"service_bonus_rate_other": "0.25",
		"service_bonus_threshold": "80",
		"service_bonus_extra_rate": "-10",
		"sales_bonus_percentage": "0.20",
		"sales_bonus_threshold": "100000",
		"sales_bonus_extra_rate": "0.05"
	}`)
	require.Error(t, err)
	assert.True(t, fiscal.IsConfiguration(err))
}
