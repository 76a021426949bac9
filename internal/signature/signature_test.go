package signature

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringAndParse(t *testing.T) {
	cases := []struct {
		text string
		want *Tree
	}{
		{"(stmt (FROM))", &Tree{Name: "stmt", Children: []*Tree{{Name: "FROM"}}}},
		{"(limit_clause (LIMIT) (,))", &Tree{Name: "limit_clause", Children: []*Tree{{Name: "LIMIT"}, {Name: ","}}}},
		{"(f ('(') (')'))", &Tree{Name: "f", Children: []*Tree{{Name: "("}, {Name: ")"}}}},
		{"(a (b (c) (d)) (e))", &Tree{Name: "a", Children: []*Tree{
			{Name: "b", Children: []*Tree{{Name: "c"}, {Name: "d"}}},
			{Name: "e"},
		}}},
		{"(q ('it''s'))", &Tree{Name: "q", Children: []*Tree{{Name: "it's"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, err := Parse(tc.text)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tc.text, got.String())
		})
	}
}

func TestParseToleratesLayout(t *testing.T) {
	got, err := Parse("  ( a\n  ( b )\t)  ")
	require.NoError(t, err)
	assert.Equal(t, "(a (b))", got.String())
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{"", "a", "(a", "(a (b)", "()", "(a) b", "('x"} {
		_, err := Parse(text)
		require.Error(t, err, text)
		assert.True(t, ErrMalformed.Is(err), text)
	}
}

func TestHelpers(t *testing.T) {
	tree, err := Parse("(limit_clause (LIMIT) (OFFSET))")
	require.NoError(t, err)
	assert.Equal(t, []string{"LIMIT", "OFFSET"}, tree.Terminals())
	assert.Equal(t, 3, tree.Size())
	assert.False(t, tree.Leaf())
	assert.True(t, tree.Children[0].Leaf())

	other, err := Parse("(LIMIT_CLAUSE (limit) (offset))")
	require.NoError(t, err)
	assert.True(t, tree.Equal(other))
	assert.False(t, tree.Equal(tree.Children[0]))
}
