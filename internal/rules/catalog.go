package rules

import "github.com/datavet-systems/datavet/pkg/types"

// KindDoc describes one built-in rule kind for catalog listings.
type KindDoc struct {
	Kind    types.RuleKind `json:"kind"`
	Columns string         `json:"columns"`
	Params  string         `json:"params,omitempty"`
	Summary string         `json:"summary"`
}

// Catalog documents the built-in rule kinds in display order.
func Catalog() []KindDoc {
	return []KindDoc{
		{types.RuleNotNull, "1+", "", "every value in the target columns is non-null"},
		{types.RuleUnique, "1+", "", "no duplicate values; multiple columns form a composite key"},
		{types.RuleRange, "1", "min, max (either optional)", "numeric values fall within [min, max]"},
		{types.RulePattern, "1", "pattern (RE2)", "string values match the regular expression"},
		{types.RuleInSet, "1", "values", "values belong to the allowed set"},
		{types.RuleCompare, "2 or 1", "operator (<, <=, >, >=, ==, !=); value when comparing to a constant", "row-wise comparison between two columns, or one column and a constant"},
		{types.RuleLength, "1", "min, max (either optional)", "string length falls within [min, max]"},
		{types.RuleDateNotFuture, "1", "", "dates are not in the future"},
		{types.RuleDateNotPast, "1", "", "dates are not in the past"},
		{types.RuleDateRange, "1", "min, max (either optional)", "dates fall within [min, max]"},
		{types.RuleEmail, "1", "", "values look like email addresses"},
		{types.RulePhone, "1", "", "values look like international phone numbers"},
		{types.RuleURL, "1", "", "values parse as http(s) URLs"},
	}
}
