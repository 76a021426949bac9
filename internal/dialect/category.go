package dialect

import "strings"

// Category classifies a masked sub-expression.
type Category string

const (
	CategoryTable    Category = "table"
	CategoryColumn   Category = "column"
	CategorySubquery Category = "subquery"
	CategoryExpr     Category = "expr"
)

var categories = map[Dialect]map[string]Category{
	MySQL: {
		"table_name": CategoryTable,
		"table_wild": CategoryColumn,
		"column_ref": CategoryColumn,
		"subquery":   CategorySubquery,
	},
	PostgreSQL: {
		"table_name": CategoryTable,
		"table_wild": CategoryColumn,
		"column_ref": CategoryColumn,
		"subquery":   CategorySubquery,
	},
	// column_ref also covers the (+) outer join marker.
	Oracle: {
		"table_name": CategoryTable,
		"table_wild": CategoryColumn,
		"column_ref": CategoryColumn,
		"subquery":   CategorySubquery,
	},
}

// Classify returns the masking category of a parser rule, if it has one.
func Classify(d Dialect, rule string) (Category, bool) {
	c, ok := categories[d][strings.ToLower(rule)]
	return c, ok
}
