// Package signature defines the bracketed shape a catalogued keyword,
// function or operator takes inside a syntax tree.
//
// The textual form nests every node in parentheses with its name first:
//
//	(limit_clause (LIMIT) (,))
//
// Leaves are terminals and match token text; inner nodes are grammar rule
// names. Names containing blanks, parentheses or quotes are single-quoted.
package signature

import (
	"fmt"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"
)

// ErrMalformed is returned when a textual signature cannot be read.
var ErrMalformed = errors.NewKind("malformed signature %q: %s")

// Tree is one node of a signature.
type Tree struct {
	Name     string
	Children []*Tree
}

// Leaf reports whether t stands for a terminal.
func (t *Tree) Leaf() bool {
	return len(t.Children) == 0
}

// Terminals returns the leaf names from left to right.
func (t *Tree) Terminals() []string {
	if t.Leaf() {
		return []string{t.Name}
	}
	var out []string
	for _, c := range t.Children {
		out = append(out, c.Terminals()...)
	}
	return out
}

// Size returns the number of nodes in t.
func (t *Tree) Size() int {
	n := 1
	for _, c := range t.Children {
		n += c.Size()
	}
	return n
}

// Equal compares names case-insensitively.
func (t *Tree) Equal(o *Tree) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !strings.EqualFold(t.Name, o.Name) || len(t.Children) != len(o.Children) {
		return false
	}
	for i := range t.Children {
		if !t.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

func (t *Tree) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Tree) write(b *strings.Builder) {
	b.WriteByte('(')
	b.WriteString(quote(t.Name))
	for _, c := range t.Children {
		b.WriteByte(' ')
		c.write(b)
	}
	b.WriteByte(')')
}

func quote(name string) string {
	if name != "" && !strings.ContainsAny(name, " \t\n()'") {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// Parse reads the textual form produced by String.
func Parse(s string) (*Tree, error) {
	r := &reader{src: s}
	r.skip()
	t, err := r.node()
	if err != nil {
		return nil, ErrMalformed.New(s, err.Error())
	}
	r.skip()
	if r.pos != len(r.src) {
		return nil, ErrMalformed.New(s, "trailing text")
	}
	return t, nil
}

type reader struct {
	src string
	pos int
}

func (r *reader) skip() {
	for r.pos < len(r.src) && strings.IndexByte(" \t\r\n", r.src[r.pos]) >= 0 {
		r.pos++
	}
}

func (r *reader) node() (*Tree, error) {
	if r.pos >= len(r.src) || r.src[r.pos] != '(' {
		return nil, fmt.Errorf("expected '(' at offset %d", r.pos)
	}
	r.pos++
	r.skip()
	name, err := r.name()
	if err != nil {
		return nil, err
	}
	t := &Tree{Name: name}
	for {
		r.skip()
		if r.pos >= len(r.src) {
			return nil, fmt.Errorf("unbalanced parentheses")
		}
		if r.src[r.pos] == ')' {
			r.pos++
			return t, nil
		}
		child, err := r.node()
		if err != nil {
			return nil, err
		}
		t.Children = append(t.Children, child)
	}
}

func (r *reader) name() (string, error) {
	if r.pos < len(r.src) && r.src[r.pos] == '\'' {
		var b strings.Builder
		i := r.pos + 1
		for i < len(r.src) {
			if r.src[i] == '\'' {
				if i+1 < len(r.src) && r.src[i+1] == '\'' {
					b.WriteByte('\'')
					i += 2
					continue
				}
				r.pos = i + 1
				return b.String(), nil
			}
			b.WriteByte(r.src[i])
			i++
		}
		return "", fmt.Errorf("unterminated quoted name")
	}
	start := r.pos
	for r.pos < len(r.src) && strings.IndexByte(" \t\r\n()'", r.src[r.pos]) < 0 {
		r.pos++
	}
	if r.pos == start {
		return "", fmt.Errorf("missing name at offset %d", start)
	}
	return r.src[start:r.pos], nil
}
