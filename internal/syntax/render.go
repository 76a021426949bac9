package syntax

import "strings"

// Span is the byte range a terminal occupies in rendered text.
type Span struct {
	Node       NodeID
	Start, End int
}

// Render returns the SQL text of the subtree at id. Tokens keep the
// whitespace they were parsed with; the subtree's leading whitespace is
// dropped.
func (t *Tree) Render(id NodeID) string {
	text, _ := t.Layout(id)
	return text
}

// String renders the whole tree.
func (t *Tree) String() string {
	if t.Root == NoNode {
		return ""
	}
	return t.Render(t.Root)
}

// Layout renders the subtree at id and reports where every terminal ended
// up in the output.
func (t *Tree) Layout(id NodeID) (string, []Span) {
	var (
		w     writer
		spans []Span
	)
	for _, leaf := range t.Terminals(id) {
		n := &t.nodes[leaf]
		start := w.write(n.Prefix, n.Text)
		spans = append(spans, Span{Node: leaf, Start: start, End: w.b.Len()})
	}
	return w.b.String(), spans
}

// RenderFunc renders the subtree at id, letting sub replace whole subtrees.
// A replaced subtree is written as the returned text preceded by the
// whitespace of its first token.
func (t *Tree) RenderFunc(id NodeID, sub func(NodeID) (string, bool)) string {
	var w writer
	var walk func(NodeID)
	walk = func(n NodeID) {
		node := &t.nodes[n]
		if text, ok := sub(n); ok {
			prefix := ""
			if first := t.firstTerminal(n); first != NoNode {
				prefix = t.nodes[first].Prefix
			}
			w.write(prefix, text)
			return
		}
		if node.Terminal {
			w.write(node.Prefix, node.Text)
			return
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(id)
	return w.b.String()
}

// writer joins tokens. The first token's prefix is dropped.
type writer struct {
	b       strings.Builder
	started bool
}

func (w *writer) write(prefix, text string) int {
	if w.started {
		if prefix == "" && needsSpace(w.b.String(), text) {
			prefix = " "
		}
		w.b.WriteString(prefix)
	}
	w.started = true
	start := w.b.Len()
	w.b.WriteString(text)
	return start
}

// needsSpace keeps two adjacent words from fusing when a leaf was created
// without layout information.
func needsSpace(before, next string) bool {
	if before == "" || next == "" {
		return false
	}
	return isWordByte(before[len(before)-1]) && isWordByte(next[0])
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c == '\'' || c == '"' || c == '`' ||
		('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// Dump prints the subtree at id in bracket notation, for debugging and
// tests: non-terminals as (rule children...), terminals as their text.
func (t *Tree) Dump(id NodeID) string {
	var b strings.Builder
	var walk func(NodeID)
	walk = func(n NodeID) {
		node := &t.nodes[n]
		if node.Terminal {
			b.WriteString(node.Text)
			return
		}
		b.WriteString("(")
		b.WriteString(node.Rule)
		for _, c := range node.Children {
			b.WriteString(" ")
			walk(c)
		}
		b.WriteString(")")
	}
	walk(id)
	return b.String()
}
