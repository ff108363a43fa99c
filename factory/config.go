/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON bracket-table and bonus-parameter definitions into
  fiscal.BracketTable and fiscal.BonusParams objects. This enables fiscal
  configuration without code changes - administrators define the values in
  JSON, and the factory creates validated Go structs.

WHY JSON?
  - Non-developers can modify tax brackets and bonus rates
  - Easy integration with the admin panel
  - Version control for fiscal configurations
  - Database storage of configuration payloads

JSON SCHEMA (brackets):
  {
    "brackets": [
      {"min_revenue": "0", "max_revenue": "200000", "rate": "0"},
      {"min_revenue": "200000", "max_revenue": "400000", "rate": "6"},
      {"min_revenue": "400000", "max_revenue": "600000", "rate": "10"},
      {"min_revenue": "600000", "rate": "15"}
    ]
  }

JSON SCHEMA (bonus parameters):
  {
    "base_rate_per_service": "60",
    "service_bonus_rate_cdd": "0.30",
    "service_bonus_rate_other": "0.25",
    "service_bonus_threshold": "80",
    "service_bonus_extra_rate": "10",
    "sales_bonus_percentage": "0.20",
    "sales_bonus_threshold": "100000",
    "sales_bonus_extra_rate": "0.05"
  }

KEY FEATURES:
  - Decimal values carried as strings, never parsed through float64
  - Validates the parsed result before returning it
  - Round-trips: ToJSON output re-parses to an equal table

USAGE:
  factory := NewConfigFactory()

  table, err := factory.ParseBrackets(jsonString)
  params, err := factory.ParseBonusParams(jsonString)

  // Persist through the store
  store.SaveBrackets(ctx, table)

SEE ALSO:
  - fiscal/brackets.go: BracketTable type and validation
  - fiscal/performance.go: BonusParams type and validation
  - api/handlers.go: config admin endpoints using this factory
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lustra/fiscal-engine/fiscal"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// BracketTableJSON is the JSON representation of a bracket table.
type BracketTableJSON struct {
	Brackets []BracketJSON `json:"brackets"`
}

// BracketJSON is one revenue band. Decimal values are strings to avoid
// float64 round-tripping.
type BracketJSON struct {
	MinRevenue string  `json:"min_revenue"`
	MaxRevenue *string `json:"max_revenue,omitempty"`
	Rate       string  `json:"rate"`
}

// BonusParamsJSON is the JSON representation of the bonus parameter set.
type BonusParamsJSON struct {
	BaseRatePerService    string `json:"base_rate_per_service"`
	ServiceBonusRateCDD   string `json:"service_bonus_rate_cdd"`
	ServiceBonusRateOther string `json:"service_bonus_rate_other"`
	ServiceBonusThreshold string `json:"service_bonus_threshold"`
	ServiceBonusExtraRate string `json:"service_bonus_extra_rate"`
	SalesBonusPercentage  string `json:"sales_bonus_percentage"`
	SalesBonusThreshold   string `json:"sales_bonus_threshold"`
	SalesBonusExtraRate   string `json:"sales_bonus_extra_rate"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts JSON fiscal configuration to Go structs.
type ConfigFactory struct{}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// ParseBrackets parses a JSON string into a validated BracketTable.
func (f *ConfigFactory) ParseBrackets(jsonStr string) (fiscal.BracketTable, error) {
	var bj BracketTableJSON
	if err := json.Unmarshal([]byte(jsonStr), &bj); err != nil {
		return fiscal.BracketTable{}, fmt.Errorf("failed to parse bracket JSON: %w", err)
	}
	return f.BracketsFromJSON(bj)
}

// BracketsFromJSON converts BracketTableJSON to a validated BracketTable.
func (f *ConfigFactory) BracketsFromJSON(bj BracketTableJSON) (fiscal.BracketTable, error) {
	brackets := make([]fiscal.TaxBracket, 0, len(bj.Brackets))
	for i, b := range bj.Brackets {
		min, err := parseDecimal(b.MinRevenue, fmt.Sprintf("brackets[%d].min_revenue", i))
		if err != nil {
			return fiscal.BracketTable{}, err
		}
		rate, err := parseDecimal(b.Rate, fmt.Sprintf("brackets[%d].rate", i))
		if err != nil {
			return fiscal.BracketTable{}, err
		}

		bracket := fiscal.TaxBracket{Min: min, Rate: rate}
		if b.MaxRevenue != nil {
			max, err := parseDecimal(*b.MaxRevenue, fmt.Sprintf("brackets[%d].max_revenue", i))
			if err != nil {
				return fiscal.BracketTable{}, err
			}
			bracket.Max = &max
		}
		brackets = append(brackets, bracket)
	}

	table := fiscal.NewBracketTable(brackets)
	if err := table.Validate(); err != nil {
		return fiscal.BracketTable{}, err
	}
	return table, nil
}

// BracketsToJSON converts a BracketTable to its JSON representation.
func (f *ConfigFactory) BracketsToJSON(table fiscal.BracketTable) BracketTableJSON {
	var bj BracketTableJSON
	for _, b := range table.Brackets() {
		line := BracketJSON{
			MinRevenue: b.Min.String(),
			Rate:       b.Rate.String(),
		}
		if b.Max != nil {
			m := b.Max.String()
			line.MaxRevenue = &m
		}
		bj.Brackets = append(bj.Brackets, line)
	}
	return bj
}

// ParseBonusParams parses a JSON string into a validated BonusParams.
func (f *ConfigFactory) ParseBonusParams(jsonStr string) (fiscal.BonusParams, error) {
	var pj BonusParamsJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return fiscal.BonusParams{}, fmt.Errorf("failed to parse bonus params JSON: %w", err)
	}
	return f.BonusParamsFromJSON(pj)
}

// BonusParamsFromJSON converts BonusParamsJSON to a validated BonusParams.
func (f *ConfigFactory) BonusParamsFromJSON(pj BonusParamsJSON) (fiscal.BonusParams, error) {
	type binding struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}

	var params fiscal.BonusParams
	bindings := []binding{
		{"base_rate_per_service", pj.BaseRatePerService, &params.BaseRatePerService},
		{"service_bonus_rate_cdd", pj.ServiceBonusRateCDD, &params.ServiceRateCDD},
		{"service_bonus_rate_other", pj.ServiceBonusRateOther, &params.ServiceRateOther},
		{"service_bonus_threshold", pj.ServiceBonusThreshold, &params.ServiceThreshold},
		{"service_bonus_extra_rate", pj.ServiceBonusExtraRate, &params.ServiceExtraRate},
		{"sales_bonus_percentage", pj.SalesBonusPercentage, &params.SalesBonusPct},
		{"sales_bonus_threshold", pj.SalesBonusThreshold, &params.SalesThreshold},
		{"sales_bonus_extra_rate", pj.SalesBonusExtraRate, &params.SalesExtraRate},
	}

	for _, b := range bindings {
		value, err := parseDecimal(b.raw, b.name)
		if err != nil {
			return fiscal.BonusParams{}, err
		}
		*b.dst = value
	}

	if err := params.Validate(); err != nil {
		return fiscal.BonusParams{}, err
	}
	return params, nil
}

// BonusParamsToJSON converts BonusParams to its JSON representation.
func (f *ConfigFactory) BonusParamsToJSON(params fiscal.BonusParams) BonusParamsJSON {
	return BonusParamsJSON{
		BaseRatePerService:    params.BaseRatePerService.String(),
		ServiceBonusRateCDD:   params.ServiceRateCDD.String(),
		ServiceBonusRateOther: params.ServiceRateOther.String(),
		ServiceBonusThreshold: params.ServiceThreshold.String(),
		ServiceBonusExtraRate: params.ServiceExtraRate.String(),
		SalesBonusPercentage:  params.SalesBonusPct.String(),
		SalesBonusThreshold:   params.SalesThreshold.String(),
		SalesBonusExtraRate:   params.SalesExtraRate.String(),
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseDecimal(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, &fiscal.ConfigurationError{
			Field:  field,
			Reason: "value is required",
		}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &fiscal.ConfigurationError{
			Field:  field,
			Reason: fmt.Sprintf("invalid decimal %q", raw),
		}
	}
	return d, nil
}
