// Package masker renders a piece with its free sub-expressions replaced by
// typed placeholders such as column_0 or expr_1.
package masker

import (
	"fmt"
	"regexp"

	"cracksql/internal/dialect"
	"cracksql/internal/matcher"
	"cracksql/internal/syntax"
)

var placeholderPattern = regexp.MustCompile(`\b(?:table|column|subquery|expr)_\d+\b`)

// Classifier maps a parser rule to a placeholder category.
type Classifier func(rule string) (dialect.Category, bool)

// ForDialect returns the classification table of d.
func ForDialect(d dialect.Dialect) Classifier {
	return func(rule string) (dialect.Category, bool) {
		return dialect.Classify(d, rule)
	}
}

// PlaceholderMap maps a placeholder back to the subtree it stands for.
type PlaceholderMap map[string]syntax.NodeID

// Masked is the oracle-facing rendering of a piece.
type Masked struct {
	Text         string
	Placeholders PlaceholderMap
	// Names lists the placeholders in text order.
	Names []string
}

// Mask renders piece id of f. Sub-pieces and classified subtrees that are
// not aligned with the piece signature are replaced by placeholders,
// numbered per category in text order. Equal subtrees get distinct
// placeholders.
func Mask(f *matcher.Forest, id matcher.PieceID, classify Classifier) *Masked {
	tree := f.Tree
	piece := f.Piece(id)

	skeleton := make(map[syntax.NodeID]bool, len(piece.Skeleton))
	for _, n := range piece.Skeleton {
		skeleton[n] = true
	}
	subs := make(map[syntax.NodeID]bool, len(piece.SubPieces))
	for _, sub := range piece.SubPieces {
		if f.Active(sub) {
			subs[f.Piece(sub).Node] = true
		}
	}
	// Words of the original text that look like placeholders are never
	// handed out.
	taken := make(map[string]bool)
	for _, word := range placeholderPattern.FindAllString(tree.Render(piece.Node), -1) {
		taken[word] = true
	}

	m := &Masked{Placeholders: make(PlaceholderMap)}
	counters := make(map[dialect.Category]int)
	next := func(c dialect.Category) string {
		for {
			name := fmt.Sprintf("%s_%d", c, counters[c])
			counters[c]++
			if !taken[name] {
				return name
			}
		}
	}

	m.Text = tree.RenderFunc(piece.Node, func(n syntax.NodeID) (string, bool) {
		if n == piece.Node || skeleton[n] {
			return "", false
		}
		node := tree.Node(n)
		if node.Terminal && !subs[n] {
			return "", false
		}
		category, ok := classify(node.Rule)
		if !ok {
			if !subs[n] {
				return "", false
			}
			category = dialect.CategoryExpr
		}
		name := next(category)
		m.Placeholders[name] = n
		m.Names = append(m.Names, name)
		return name, true
	})
	return m
}

// Expand replaces the placeholders of text with the rendering of the
// subtrees they stand for. Unknown placeholder-like words are left alone.
func Expand(tree *syntax.Tree, text string, placeholders PlaceholderMap) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(word string) string {
		if n, ok := placeholders[word]; ok {
			return tree.Render(n)
		}
		return word
	})
}

// Unmask is Expand applied to the masked text itself. It reproduces the
// rendering of the piece.
func (m *Masked) Unmask(tree *syntax.Tree) string {
	return Expand(tree, m.Text, m.Placeholders)
}

// Used returns the placeholders that occur in text.
func Used(text string, placeholders PlaceholderMap) []string {
	var out []string
	seen := make(map[string]bool)
	for _, word := range placeholderPattern.FindAllString(text, -1) {
		if _, ok := placeholders[word]; ok && !seen[word] {
			seen[word] = true
			out = append(out, word)
		}
	}
	return out
}
