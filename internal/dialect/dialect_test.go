package dialect

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cracksql/internal/grammar"
)

func TestParse(t *testing.T) {
	cases := map[string]Dialect{
		"mysql":      MySQL,
		"MariaDB":    MySQL,
		" postgres ": PostgreSQL,
		"PostgreSQL": PostgreSQL,
		"pg":         PostgreSQL,
		"Oracle":     Oracle,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("sqlite")
	require.Error(t, err)
	assert.True(t, ErrUnknownDialect.Is(err))
}

func TestGrammarsBuild(t *testing.T) {
	expected := map[Dialect][]string{
		MySQL:      {"ifnull_function", "limit_clause", "group_concat_function", "column_ref"},
		PostgreSQL: {"coalesce_function", "typecast_expr", "string_agg_function", "fetch_clause"},
		Oracle:     {"nvl_function", "pseudo_column", "fetch_clause", "hierarchical_clause"},
	}
	for _, d := range Supported() {
		t.Run(d.String(), func(t *testing.T) {
			tree, err := Grammar(d)
			require.NoError(t, err)
			assert.Equal(t, "sql_statement", tree.Node(tree.Root()).Name)
			for _, name := range expected[d] {
				id, ok := tree.Rule(name)
				require.True(t, ok, name)
				assert.NotEqual(t, grammar.Keyword, tree.Node(id).Kind, name)
			}
			assert.True(t, tree.Reserved()["SELECT"])
			assert.False(t, tree.Reserved()["ID"])

			again, err := Grammar(d)
			require.NoError(t, err)
			assert.Same(t, tree, again)
		})
	}

	_, err := Grammar(Dialect("db2"))
	assert.True(t, ErrUnknownDialect.Is(err))
}

func TestClassify(t *testing.T) {
	c, ok := Classify(MySQL, "table_name")
	require.True(t, ok)
	assert.Equal(t, CategoryTable, c)

	c, ok = Classify(Oracle, "Column_Ref")
	require.True(t, ok)
	assert.Equal(t, CategoryColumn, c)

	_, ok = Classify(PostgreSQL, "expression")
	assert.False(t, ok)
}

func TestCategoryTablesFollowGrammars(t *testing.T) {
	for _, d := range Supported() {
		tree, err := Grammar(d)
		require.NoError(t, err)
		for rule := range categories[d] {
			_, ok := tree.Rule(rule)
			assert.True(t, ok, "%s: %s", d, rule)
		}
	}

	categories[MySQL]["json_path"] = CategoryExpr
	defer delete(categories[MySQL], "json_path")
	_, ok := Classify(Oracle, "json_path")
	assert.False(t, ok)
	_, ok = Classify(PostgreSQL, "json_path")
	assert.False(t, ok)
}

func TestSupportedOrder(t *testing.T) {
	assert.Equal(t, []Dialect{MySQL, PostgreSQL, Oracle}, Supported())
}

func TestByteOffset(t *testing.T) {
	sql := "SELECT nvl(a, 0)\nFROM t LIMIT 1"
	assert.Equal(t, 7, Location{Offset: 8}.ByteOffset(sql))
	assert.Equal(t, 17, Location{Line: 2, Column: 1}.ByteOffset(sql))
	assert.Equal(t, 24, Location{Near: "limit 1"}.ByteOffset(sql))
	assert.Equal(t, 24, Location{Near: "LIMIT 1, 2"}.ByteOffset(sql))
	assert.Equal(t, -1, Location{Near: "OFFSET"}.ByteOffset(sql))
	assert.Equal(t, -1, Location{}.ByteOffset(sql))

	// A MySQL near-error carries both a line and the echoed text; the text
	// picks the column.
	two := "SELECT COALESCE(a, 0), COALESCE(b, 1) FROM t"
	assert.Equal(t, 7, Location{Line: 1, Near: "COALESCE(a, 0), COALESCE(b, 1) FROM t"}.ByteOffset(two))
	assert.Equal(t, 23, Location{Line: 1, Near: "COALESCE(b, 1) FROM t"}.ByteOffset(two))

	multi := "SELECT nvl(a, 0)\nFROM t WHERE nvl(b, 0) > 1"
	assert.Equal(t, 30, Location{Line: 2, Near: "nvl(b, 0) > 1"}.ByteOffset(multi))
	assert.Equal(t, 7, Location{Line: 2, Near: "nvl(a, 0)"}.ByteOffset(multi))
	assert.Equal(t, 17, Location{Line: 2, Near: "OFFSET"}.ByteOffset(multi))
}

type fakePositioned struct{}

func (fakePositioned) Error() string { return "syntax error" }
func (fakePositioned) Position() (line, col int) { return 3, 4 }

func TestLocators(t *testing.T) {
	loc, ok := Locator(MySQL).Locate(&mysql.MySQLError{
		Number:  1064,
		Message: "You have an error in your SQL syntax; check the manual that corresponds to your MySQL server version for the right syntax to use near 'FETCH FIRST 1 ROWS ONLY' at line 1",
	})
	require.True(t, ok)
	assert.Equal(t, Location{Line: 1, Near: "FETCH FIRST 1 ROWS ONLY"}, loc)

	loc, ok = Locator(MySQL).Locate(errors.New("Error 1305: FUNCTION shop.nvl does not exist"))
	require.True(t, ok)
	assert.Equal(t, "nvl", loc.Near)

	loc, ok = Locator(MySQL).Locate(errors.New("syntax error at position 22 near 'FETCH'"))
	require.True(t, ok)
	assert.Equal(t, Location{Near: "FETCH"}, loc)

	loc, ok = Locator(PostgreSQL).Locate(&pq.Error{Message: `function ifnull(integer, integer) does not exist`, Position: "8"})
	require.True(t, ok)
	assert.Equal(t, 8, loc.Offset)

	loc, ok = Locator(PostgreSQL).Locate(errors.New("syntax error\nLINE 1: SELECT a FROM t LIMIT 1, 2\n                                ^"))
	require.True(t, ok)
	assert.Equal(t, 1, loc.Line)
	assert.Equal(t, 25, loc.Column)

	loc, ok = Locator(PostgreSQL).Locate(errors.New(`pq: syntax error at or near ","`))
	require.True(t, ok)
	assert.Equal(t, ",", loc.Near)

	loc, ok = Locator(Oracle).Locate(errors.New(`ORA-00904: "IFNULL": invalid identifier`))
	require.True(t, ok)
	assert.Equal(t, "IFNULL", loc.Near)

	loc, ok = Locator(Oracle).Locate(errors.New("ORA-00923: FROM keyword not found where expected, Error at Line: 1 Column: 15"))
	require.True(t, ok)
	assert.Equal(t, 1, loc.Line)
	assert.Equal(t, 15, loc.Column)

	_, ok = Locator(Oracle).Locate(errors.New("ORA-00933: SQL command not properly ended"))
	assert.False(t, ok)

	loc, ok = Locator(Oracle).Locate(fakePositioned{})
	require.True(t, ok)
	assert.Equal(t, Location{Line: 3, Column: 4}, loc)
}
