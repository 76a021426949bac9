package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// builds: SELECT IFNULL(a, 0) FROM t
func buildSample(t *testing.T) (*Tree, NodeID) {
	t.Helper()
	tr := New("mysql")
	root := tr.AddRule("select_stmt")
	tr.Root = root

	leaf := func(parent NodeID, text, prefix string) NodeID {
		id := tr.AddTerminal(Node{Text: text, Prefix: prefix})
		require.NoError(t, tr.AppendChild(parent, id))
		return id
	}
	leaf(root, "SELECT", "")
	fn := tr.AddRule("ifnull_function")
	require.NoError(t, tr.AppendChild(root, fn))
	leaf(fn, "IFNULL", " ")
	leaf(fn, "(", "")
	col := tr.AddRule("column_ref")
	require.NoError(t, tr.AppendChild(fn, col))
	leaf(col, "a", "")
	leaf(fn, ",", "")
	leaf(fn, "0", " ")
	leaf(fn, ")", "")
	leaf(root, "FROM", " ")
	leaf(root, "t", " ")
	require.NoError(t, tr.Check())
	return tr, fn
}

func TestRender(t *testing.T) {
	tr, fn := buildSample(t)
	assert.Equal(t, "SELECT IFNULL(a, 0) FROM t", tr.String())
	assert.Equal(t, "IFNULL(a, 0)", tr.Render(fn))
	assert.Equal(t, "(select_stmt SELECT (ifnull_function IFNULL ( (column_ref a) , 0 )) FROM t)", tr.Dump(tr.Root))

	text, spans := tr.Layout(fn)
	require.Len(t, spans, 6)
	assert.Equal(t, "a", text[spans[2].Start:spans[2].End])
}

func TestReplaceAndRestore(t *testing.T) {
	tr, fn := buildSample(t)

	gen := tr.AddGenerated("COALESCE(a, 0)")
	require.NoError(t, tr.ReplaceChild(fn, gen))
	require.NoError(t, tr.Check())
	assert.Equal(t, "SELECT COALESCE(a, 0) FROM t", tr.String())
	assert.True(t, tr.Node(gen).ModelGenerated)
	assert.True(t, tr.Attached(gen))
	assert.False(t, tr.Attached(fn))

	require.NoError(t, tr.ReplaceChild(gen, fn))
	require.NoError(t, tr.Check())
	assert.Equal(t, "SELECT IFNULL(a, 0) FROM t", tr.String())
	assert.False(t, tr.Attached(gen))
}

func TestReplaceRoot(t *testing.T) {
	tr, _ := buildSample(t)
	old := tr.Root
	gen := tr.AddGenerated("SELECT 1 FROM DUAL")
	require.NoError(t, tr.ReplaceChild(old, gen))
	assert.Equal(t, gen, tr.Root)
	assert.Equal(t, "SELECT 1 FROM DUAL", tr.String())
	require.NoError(t, tr.Check())
}

func TestGeneratedLeafSpacing(t *testing.T) {
	tr := New("oracle")
	root := tr.AddRule("r")
	tr.Root = root
	a := tr.AddTerminal(Node{Text: "SELECT"})
	b := tr.AddTerminal(Node{Text: "x"})
	require.NoError(t, tr.AppendChild(root, a))
	require.NoError(t, tr.AppendChild(root, b))
	assert.Equal(t, "SELECT x", tr.String())
}

func TestCheckDetectsBrokenLinks(t *testing.T) {
	tr, fn := buildSample(t)
	tr.Node(fn).Parent = NoNode
	err := tr.Check()
	require.Error(t, err)
	assert.True(t, ErrTreeInvariant.Is(err))

	empty := New("mysql")
	assert.True(t, ErrTreeInvariant.Is(empty.Check()))
}

func TestReplaceRejectsAttachedNode(t *testing.T) {
	tr := New("mysql")
	root := tr.AddRule("r")
	tr.Root = root
	a := tr.AddRule("a")
	b := tr.AddRule("b")
	x := tr.AddTerminal(Node{Text: "x"})
	y := tr.AddTerminal(Node{Text: "y", Prefix: " "})
	require.NoError(t, tr.AppendChild(root, a))
	require.NoError(t, tr.AppendChild(root, b))
	require.NoError(t, tr.AppendChild(a, x))
	require.NoError(t, tr.AppendChild(b, y))
	before := tr.Dump(tr.Root)

	// x still hangs under a, so it cannot take the place of b as well.
	err := tr.ReplaceChild(b, x)
	require.Error(t, err)
	assert.True(t, ErrTreeInvariant.Is(err))
	assert.Equal(t, before, tr.Dump(tr.Root))
	assert.Equal(t, a, tr.Node(x).Parent)
	require.NoError(t, tr.Check())

	err = tr.ReplaceChild(a, root)
	assert.True(t, ErrTreeInvariant.Is(err))
	assert.Equal(t, root, tr.Root)
	require.NoError(t, tr.Check())
}

func TestReplaceRejectsStaleParent(t *testing.T) {
	tr, fn := buildSample(t)
	gen := tr.AddGenerated("COALESCE(a, 0)")
	require.NoError(t, tr.ReplaceChild(fn, gen))

	// fn is detached now; a second replacement of it has no slot to fill.
	other := tr.AddGenerated("NVL(a, 0)")
	err := tr.ReplaceChild(fn, other)
	require.Error(t, err)
	assert.True(t, ErrTreeInvariant.Is(err))
	assert.Equal(t, "SELECT COALESCE(a, 0) FROM t", tr.String())

	// A parent link that its parent does not list back.
	tr.Node(fn).Parent = tr.Root
	err = tr.ReplaceChild(fn, other)
	assert.True(t, ErrTreeInvariant.Is(err))
	assert.Equal(t, "SELECT COALESCE(a, 0) FROM t", tr.String())
	assert.Equal(t, NoNode, tr.Node(other).Parent)
	tr.Node(fn).Parent = NoNode
	require.NoError(t, tr.Check())
}

func TestAppendRejectsBadChild(t *testing.T) {
	tr, fn := buildSample(t)
	col := tr.Node(fn).Children[2]

	err := tr.AppendChild(tr.Root, col)
	assert.True(t, ErrTreeInvariant.Is(err))
	assert.Equal(t, fn, tr.Node(col).Parent)

	assert.True(t, ErrTreeInvariant.Is(tr.AppendChild(col, tr.Root)))

	loose := tr.AddRule("loose")
	assert.True(t, ErrTreeInvariant.Is(tr.AppendChild(loose, loose)))

	leaf := tr.Terminals(tr.Root)[0]
	assert.True(t, ErrTreeInvariant.Is(tr.AppendChild(leaf, loose)))

	assert.Equal(t, "SELECT IFNULL(a, 0) FROM t", tr.String())
	require.NoError(t, tr.Check())
}

func TestTraversal(t *testing.T) {
	tr, fn := buildSample(t)
	post := tr.PostOrder(tr.Root)
	assert.Equal(t, tr.Root, post[len(post)-1])
	assert.Len(t, tr.Terminals(tr.Root), 9)
	assert.True(t, tr.IsAncestor(tr.Root, fn))
	assert.False(t, tr.IsAncestor(fn, tr.Root))
	assert.Equal(t, "ifnull_function", tr.Node(fn).Label())
}

func TestRenderFunc(t *testing.T) {
	tr, fn := buildSample(t)
	col := tr.Node(fn).Children[2]

	got := tr.RenderFunc(tr.Root, func(n NodeID) (string, bool) {
		if n == col {
			return "column_0", true
		}
		return "", false
	})
	assert.Equal(t, "SELECT IFNULL(column_0, 0) FROM t", got)

	whole := tr.RenderFunc(fn, func(n NodeID) (string, bool) { return "X", n == fn })
	assert.Equal(t, "X", whole)
}
