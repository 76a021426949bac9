// Package grammar builds an in-memory grammar tree from a dialect grammar
// description.
//
// A grammar description is a list of rules, one per logical line:
//
//	select_stmt = SELECT select_list FROM table_ref [where_clause]
//	select_list = select_item ( ',' select_item )*
//	SELECT      = 'SELECT'
//
// A rule starts at column zero with its name followed by '='. Lines that start
// with whitespace or '|' continue the previous rule. Lines starting with '#' or
// '//' are comments. Rules whose name is all upper case and whose body is a
// single quoted literal are lexer rules and become Keyword nodes; every other
// rule is a parser rule.
//
// Body syntax: juxtaposition is a sequence, '|' separates alternatives,
// '( )' groups, '[ ]' and a trailing '?' mark an optional part, '*' and '+'
// repeat. Quoted text is a literal token. A bare name that does not resolve to
// any rule is kept as an opaque literal (ID, NUMBER and STRING are the usual
// examples); this laxity is deliberate and not reported as an error.
package grammar

import (
	"fmt"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrGrammarBuild is returned when a grammar description is malformed.
	ErrGrammarBuild = errors.NewKind("grammar %s: line %d: %s")

	// ErrUnknownRule is returned when a rule lookup fails.
	ErrUnknownRule = errors.NewKind("grammar %s: unknown rule %q")
)

// NodeID is a handle to a node inside a Tree.
type NodeID int

// NoNode is the zero value for an unset link.
const NoNode NodeID = -1

// Kind is the type tag of a grammar node.
type Kind int

const (
	// Keyword is a lexer rule producing a single fixed token.
	Keyword Kind = iota
	// NonTerminalRef points at another rule through Link.
	NonTerminalRef
	// Alternation matches exactly one of its children.
	Alternation
	// Sequence matches all of its children in order.
	Sequence
	// Optional matches its single child or nothing.
	Optional
	// Repeated matches its single child Min or more times.
	Repeated
	// Literal is a quoted token or an unresolved opaque name.
	Literal
)

func (k Kind) String() string {
	switch k {
	case Keyword:
		return "Keyword"
	case NonTerminalRef:
		return "NonTerminalRef"
	case Alternation:
		return "Alternation"
	case Sequence:
		return "Sequence"
	case Optional:
		return "Optional"
	case Repeated:
		return "Repeated"
	case Literal:
		return "Literal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is one node of a grammar tree.
type Node struct {
	ID   NodeID
	Kind Kind
	// Name is the rule name for rule roots and references, and the token
	// text for literals.
	Name string
	// Text is the token a Keyword produces.
	Text string
	// Quoted is set on literals that were written between quotes.
	Quoted   bool
	Children []NodeID
	// Link is the resolved rule root of a NonTerminalRef.
	Link NodeID
	// Rule is set on rule roots.
	Rule bool
	// Min is the minimum repetition count of a Repeated node.
	Min int
}

// Terminal returns the token text a Keyword or Literal stands for.
func (n *Node) Terminal() string {
	switch n.Kind {
	case Keyword:
		return n.Text
	case Literal:
		return n.Name
	}
	return ""
}

// CanBlank reports whether the node may match the empty string without
// looking any further into its children.
func (n *Node) CanBlank() bool {
	return n.Kind == Optional || (n.Kind == Repeated && n.Min == 0)
}

// Tree is an immutable grammar. Cycles through NonTerminalRef links are
// expected; traversals must keep a visited set.
type Tree struct {
	Dialect string

	nodes []Node
	rules map[string]NodeID
	folds map[string]NodeID
	order []string
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node for id. It panics on an out of range id.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Rule looks up a rule root by name. Exact matches win over
// case-insensitive ones.
func (t *Tree) Rule(name string) (NodeID, bool) {
	if id, ok := t.rules[name]; ok {
		return id, true
	}
	id, ok := t.folds[strings.ToLower(name)]
	return id, ok
}

// MustRule is like Rule but returns ErrUnknownRule.
func (t *Tree) MustRule(name string) (NodeID, error) {
	id, ok := t.Rule(name)
	if !ok {
		return NoNode, ErrUnknownRule.New(t.Dialect, name)
	}
	return id, nil
}

// RuleNames returns rule names in declaration order.
func (t *Tree) RuleNames() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Root returns the first declared parser rule.
func (t *Tree) Root() NodeID {
	for _, name := range t.order {
		id := t.rules[name]
		if t.nodes[id].Kind != Keyword {
			return id
		}
	}
	return NoNode
}

// IsTerminalFor reports whether node id produces exactly the token text.
// Comparison is case-insensitive.
func (t *Tree) IsTerminalFor(id NodeID, text string) bool {
	n := &t.nodes[id]
	switch n.Kind {
	case Keyword, Literal:
		return strings.EqualFold(n.Terminal(), text)
	}
	return false
}

// Keywords returns the ids of every Keyword rule producing text.
func (t *Tree) Keywords(text string) []NodeID {
	var out []NodeID
	for _, name := range t.order {
		id := t.rules[name]
		if t.nodes[id].Kind == Keyword && strings.EqualFold(t.nodes[id].Text, text) {
			out = append(out, id)
		}
	}
	return out
}

// Reserved returns the upper-cased text of every word-like Keyword rule.
// Identifiers must not match these.
func (t *Tree) Reserved() map[string]bool {
	out := make(map[string]bool)
	for _, name := range t.order {
		n := &t.nodes[t.rules[name]]
		if n.Kind == Keyword && isWord(n.Text) {
			out[strings.ToUpper(n.Text)] = true
		}
	}
	return out
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r == '$' || r == '#' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')) {
			return false
		}
	}
	return true
}

func (t *Tree) add(n Node) NodeID {
	n.ID = NodeID(len(t.nodes))
	if n.Kind != NonTerminalRef {
		n.Link = NoNode
	}
	t.nodes = append(t.nodes, n)
	return n.ID
}
