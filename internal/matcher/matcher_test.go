package matcher

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cracksql/internal/dialect"
	"cracksql/internal/knowledge"
	"cracksql/internal/parser"
	"cracksql/internal/signature"
	"cracksql/internal/syntax"
)

func newStore(t *testing.T) *knowledge.Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s, err := knowledge.NewStore(knowledge.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func parse(t *testing.T, d dialect.Dialect, sql string) *syntax.Tree {
	t.Helper()
	p, err := parser.New(d)
	require.NoError(t, err)
	tree, err := p.Parse(sql)
	require.NoError(t, err)
	return tree
}

func catalog(t *testing.T, s *knowledge.Store, d dialect.Dialect) *knowledge.Catalog {
	t.Helper()
	c, err := s.Catalog(d)
	require.NoError(t, err)
	return c
}

type pieceView struct {
	Keyword string
	Rule    string
	Father  string
}

func view(f *Forest) []pieceView {
	var out []pieceView
	for _, p := range f.Pieces() {
		if !f.Active(p.ID) {
			continue
		}
		v := pieceView{Keyword: p.Keyword(), Rule: f.Tree.Node(p.Node).Label()}
		if p.Father != NoPiece {
			v.Father = f.Piece(p.Father).Keyword()
		}
		out = append(out, v)
	}
	return out
}

func TestMatchAll(t *testing.T) {
	s := newStore(t)
	tree := parse(t, dialect.MySQL, "SELECT IFNULL(a, 0), COUNT(*) FROM t LIMIT 1, 2")
	f := MatchAll(tree, catalog(t, s, dialect.MySQL))

	want := []pieceView{
		{Keyword: "IFNULL", Rule: "ifnull_function", Father: "<statement>"},
		{Keyword: "COUNT", Rule: "aggregate_function", Father: "<statement>"},
		{Keyword: "LIMIT_COMMA", Rule: "limit_clause", Father: "<statement>"},
		{Keyword: "<statement>", Rule: "sql_statement"},
	}
	if diff := cmp.Diff(want, view(f)); diff != "" {
		t.Fatalf("pieces mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, f.Check())

	limit, ok := f.ByNode(f.Piece(2).Node)
	require.True(t, ok)
	var names []string
	for _, e := range limit.Candidates {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"LIMIT_COMMA", "LIMIT"}, names)
	assert.Equal(t, KindKeyword, limit.Kind)
	assert.Equal(t, "LIMIT 1, 2", tree.Render(limit.Node))

	ifnull := f.Piece(0)
	assert.Equal(t, KindFunction, ifnull.Kind)
	assert.NotEmpty(t, ifnull.Detail)
	assert.Len(t, ifnull.Skeleton, 2)

	root := f.Piece(f.Root)
	assert.Equal(t, KindRoot, root.Kind)
	assert.Equal(t, []PieceID{0, 1, 2}, root.SubPieces)
	assert.Equal(t, 0, f.Depth(f.Root))
	assert.Equal(t, 1, f.Depth(0))
}

func TestNestedPieces(t *testing.T) {
	s := newStore(t)
	tree := parse(t, dialect.MySQL, "SELECT IFNULL(CONCAT(a, 'x'), 'y') FROM t")
	f := MatchAll(tree, catalog(t, s, dialect.MySQL))
	require.NoError(t, f.Check())

	want := []pieceView{
		{Keyword: "CONCAT", Rule: "concat_function", Father: "IFNULL"},
		{Keyword: "IFNULL", Rule: "ifnull_function", Father: "<statement>"},
		{Keyword: "<statement>", Rule: "sql_statement"},
	}
	if diff := cmp.Diff(want, view(f)); diff != "" {
		t.Fatalf("pieces mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, f.Depth(0))
	assert.Equal(t, []PieceID{0, 1}, f.Descendants(f.Root))
	assert.Equal(t, PieceID(0), f.Next())
}

type reversed struct {
	inner Catalog
}

func (r reversed) Lookup(rule string) []*knowledge.Entry {
	in := r.inner.Lookup(rule)
	out := make([]*knowledge.Entry, len(in))
	for i, e := range in {
		out[len(in)-1-i] = e
	}
	return out
}

func TestMatchingIsIdempotent(t *testing.T) {
	s := newStore(t)
	c := catalog(t, s, dialect.MySQL)
	tree := parse(t, dialect.MySQL, "SELECT GROUP_CONCAT(name SEPARATOR ';'), DATE_FORMAT(NOW(), '%Y') FROM t GROUP BY k WITH ROLLUP LIMIT 10 OFFSET 5")

	first := view(MatchAll(tree, c))
	second := view(MatchAll(tree, c))
	shuffled := view(MatchAll(tree, reversed{c}))

	assert.Equal(t, first, second)
	assert.Equal(t, first, shuffled)
	assert.Len(t, first, 6)
}

func TestNothingToRewrite(t *testing.T) {
	s := newStore(t)
	tree := parse(t, dialect.MySQL, "SELECT a FROM t WHERE x > 1")
	f := MatchAll(tree, catalog(t, s, dialect.MySQL))

	require.Equal(t, 1, f.Len())
	assert.Equal(t, KindRoot, f.Piece(f.Root).Kind)
	assert.Zero(t, f.MarkCompatible(catalog(t, s, dialect.PostgreSQL)))
	assert.Equal(t, NoPiece, f.Next())
}

func TestMarkCompatible(t *testing.T) {
	s := newStore(t)
	pg := catalog(t, s, dialect.PostgreSQL)

	tree := parse(t, dialect.MySQL, "SELECT COUNT(*) FROM t LIMIT 5")
	f := MatchAll(tree, catalog(t, s, dialect.MySQL))
	assert.Zero(t, f.MarkCompatible(pg))
	assert.Equal(t, NoPiece, f.Next())

	tree = parse(t, dialect.MySQL, "SELECT COUNT(*), IFNULL(a, 1) FROM t LIMIT 1, 5")
	f = MatchAll(tree, catalog(t, s, dialect.MySQL))
	assert.Equal(t, 2, f.MarkCompatible(pg))
	assert.Equal(t, Compatible, f.Piece(0).State)
	assert.Equal(t, Pending, f.Piece(1).State)
	assert.Equal(t, PieceID(1), f.Next())
}

type fakeCatalog map[string][]*knowledge.Entry

func (c fakeCatalog) Lookup(rule string) []*knowledge.Entry {
	return c[strings.ToLower(rule)]
}

func entry(t *testing.T, name string, category knowledge.Category, freq, order int, sig string) *knowledge.Entry {
	t.Helper()
	tree, err := signature.Parse(sig)
	require.NoError(t, err)
	return &knowledge.Entry{Name: name, Category: category, Frequency: freq, Order: order, Signature: tree}
}

func TestPickPrecedence(t *testing.T) {
	tree := parse(t, dialect.MySQL, "SELECT IFNULL(a, b) FROM t")

	cases := []struct {
		name    string
		entries []*knowledge.Entry
		want    string
	}{
		{
			name: "function beats keyword",
			entries: []*knowledge.Entry{
				entry(t, "KW", knowledge.CategoryKeyword, 500, 0, "(ifnull_function (IFNULL))"),
				entry(t, "FN", knowledge.CategoryFunction, 1, 1, "(ifnull_function (IFNULL))"),
			},
			want: "FN",
		},
		{
			name: "frequency",
			entries: []*knowledge.Entry{
				entry(t, "RARE", knowledge.CategoryFunction, 3, 0, "(ifnull_function (IFNULL))"),
				entry(t, "COMMON", knowledge.CategoryFunction, 30, 1, "(ifnull_function (IFNULL) (,))"),
			},
			want: "COMMON",
		},
		{
			name: "catalog order",
			entries: []*knowledge.Entry{
				entry(t, "SECOND", knowledge.CategoryFunction, 0, 1, "(ifnull_function (IFNULL))"),
				entry(t, "FIRST", knowledge.CategoryFunction, 0, 0, "(ifnull_function (IFNULL))"),
			},
			want: "FIRST",
		},
		{
			name: "non matching ignored",
			entries: []*knowledge.Entry{
				entry(t, "NVL", knowledge.CategoryFunction, 100, 0, "(ifnull_function (NVL))"),
				entry(t, "IFNULL", knowledge.CategoryFunction, 1, 1, "(ifnull_function (IFNULL))"),
			},
			want: "IFNULL",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := MatchAll(tree, fakeCatalog{"ifnull_function": tc.entries})
			require.Equal(t, 2, f.Len())
			assert.Equal(t, tc.want, f.Piece(0).Keyword())
		})
	}
}

func TestDualDFS(t *testing.T) {
	tree := parse(t, dialect.MySQL, "SELECT a FROM t LIMIT 1, 2")
	var limit syntax.NodeID = syntax.NoNode
	for _, id := range tree.PostOrder(tree.Root) {
		if tree.Node(id).Rule == "limit_clause" {
			limit = id
		}
	}
	require.NotEqual(t, syntax.NoNode, limit)

	cases := []struct {
		sig  string
		want bool
	}{
		{"(limit_clause (LIMIT) (,))", true},
		{"(LIMIT_CLAUSE (limit))", true},
		{"(limit_clause (LIMIT) (NUMBER) (,) (NUMBER))", true},
		{"(limit_clause (,) (LIMIT))", false},
		{"(limit_clause (OFFSET))", false},
		{"(where_clause (LIMIT))", false},
	}
	for _, tc := range cases {
		sig, err := signature.Parse(tc.sig)
		require.NoError(t, err)
		aligned, ok := DualDFS(tree, limit, sig)
		assert.Equal(t, tc.want, ok, tc.sig)
		if ok {
			assert.Len(t, aligned, sig.Size(), tc.sig)
		}
	}
}

func TestSpliceRevertRestore(t *testing.T) {
	s := newStore(t)
	tree := parse(t, dialect.MySQL, "SELECT IFNULL(CONCAT(a, 'x'), 'y') FROM t")
	f := MatchAll(tree, catalog(t, s, dialect.MySQL))
	original := tree.String()

	concat, err := f.Splice(0, tree.AddGenerated("a || 'x'"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT IFNULL(a || 'x', 'y') FROM t", tree.String())
	assert.Equal(t, KindTranslated, concat.Kind)
	assert.Equal(t, PieceID(1), concat.Father)
	assert.Equal(t, []PieceID{concat.ID}, f.Piece(1).SubPieces)
	assert.False(t, f.Active(0))
	require.NoError(t, f.Check())
	require.NoError(t, tree.Check())

	ifnull, err := f.Splice(1, tree.AddGenerated("COALESCE(a || 'x', 'y')"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT COALESCE(a || 'x', 'y') FROM t", tree.String())
	assert.False(t, f.Active(concat.ID))
	assert.Equal(t, []PieceID{ifnull.ID}, f.Piece(f.Root).SubPieces)

	require.NoError(t, f.Restore(f.Root))
	assert.Equal(t, original, tree.String())
	require.NoError(t, tree.Check())
	root := f.Piece(f.Root)
	assert.Empty(t, root.SubPieces)
	assert.Equal(t, Pending, root.State)
	assert.ElementsMatch(t, []PieceID{0, 1}, root.TrackPieces)
	assert.Equal(t, f.Root, f.Next())
	require.NoError(t, f.Check())
}

func TestSpliceRejectsDetachedPiece(t *testing.T) {
	s := newStore(t)
	tree := parse(t, dialect.MySQL, "SELECT IFNULL(CONCAT(a, 'x'), 'y') FROM t")
	f := MatchAll(tree, catalog(t, s, dialect.MySQL))

	_, err := f.Splice(1, tree.AddGenerated("COALESCE(CONCAT(a, 'x'), 'y')"))
	require.NoError(t, err)
	rendered := tree.String()
	pieces := f.Len()

	// CONCAT left the statement with its father; splicing it again would
	// hang a leaf under a subtree nobody renders.
	_, err = f.Splice(0, tree.AddGenerated("a || 'x'"))
	require.Error(t, err)
	assert.True(t, syntax.ErrTreeInvariant.Is(err))
	assert.Equal(t, rendered, tree.String())
	assert.Equal(t, pieces, f.Len())
	require.NoError(t, tree.Check())
}

func TestOwner(t *testing.T) {
	s := newStore(t)
	tree := parse(t, dialect.MySQL, "SELECT IFNULL(a, 1) FROM t LIMIT 1, 2")
	f := MatchAll(tree, catalog(t, s, dialect.MySQL))

	owners := make(map[string]string)
	for _, leaf := range tree.Terminals(tree.Root) {
		owners[tree.Node(leaf).Text] = f.Piece(f.Owner(leaf)).Keyword()
	}
	assert.Equal(t, "IFNULL", owners["a"])
	assert.Equal(t, "LIMIT_COMMA", owners["2"])
	assert.Equal(t, "<statement>", owners["FROM"])
}
