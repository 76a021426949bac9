// Package syntax holds the concrete syntax tree of one SQL statement.
//
// Nodes live in an arena owned by the Tree and refer to each other through
// NodeID handles. Substitution never frees nodes: a replaced subtree stays in
// the arena, detached, so that it can be put back later.
package syntax

import (
	"fmt"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"
)

// ErrTreeInvariant is returned when parent and child links disagree, or a
// mutation would make them disagree.
var ErrTreeInvariant = errors.NewKind("syntax tree invariant violated: %s")

// NodeID is a handle to a node inside a Tree.
type NodeID int

// NoNode marks a missing parent.
const NoNode NodeID = -1

// Node is a syntax tree node. Non-terminals carry the parser rule that
// produced them in Rule; terminals carry the token text in Text.
type Node struct {
	ID       NodeID
	Rule     string
	Text     string
	Terminal bool
	// Class is the grammar symbol a terminal matched, such as a keyword rule
	// name or the ID and NUMBER token classes.
	Class string
	// Prefix is the whitespace and comments that preceded the token.
	Prefix string
	Line   int
	Column int
	// ModelGenerated marks leaves spliced in from a rewrite reply.
	ModelGenerated bool

	Parent   NodeID
	Children []NodeID
}

// Label returns the rule name of a non-terminal or the text of a terminal.
func (n *Node) Label() string {
	if n.Terminal {
		return n.Text
	}
	return n.Rule
}

// Tree is the syntax tree of a statement in one dialect.
type Tree struct {
	Dialect string
	Root    NodeID

	nodes []Node
}

// New returns an empty tree.
func New(dialect string) *Tree {
	return &Tree{Dialect: dialect, Root: NoNode}
}

// Len returns the number of nodes ever allocated, detached ones included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node for id.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// AddRule allocates a detached non-terminal.
func (t *Tree) AddRule(rule string) NodeID {
	return t.add(Node{Rule: rule})
}

// AddTerminal allocates a detached terminal.
func (t *Tree) AddTerminal(n Node) NodeID {
	n.Terminal = true
	n.Children = nil
	return t.add(n)
}

// AddGenerated allocates a detached terminal holding a rewrite reply.
func (t *Tree) AddGenerated(text string) NodeID {
	return t.add(Node{
		Text:           strings.TrimSpace(text),
		Terminal:       true,
		ModelGenerated: true,
		Prefix:         " ",
	})
}

func (t *Tree) add(n Node) NodeID {
	n.ID = NodeID(len(t.nodes))
	n.Parent = NoNode
	t.nodes = append(t.nodes, n)
	return n.ID
}

// AppendChild attaches child as the last child of parent. child must be
// detached and must not contain parent.
func (t *Tree) AppendChild(parent, child NodeID) error {
	if t.nodes[parent].Terminal {
		return ErrTreeInvariant.New(fmt.Sprintf("terminal %d cannot take child %d", parent, child))
	}
	if err := t.detached(child); err != nil {
		return err
	}
	if t.IsAncestor(child, parent) {
		return ErrTreeInvariant.New(fmt.Sprintf("node %d would become its own ancestor", child))
	}
	t.nodes[parent].Children = append(t.nodes[parent].Children, child)
	t.nodes[child].Parent = parent
	return nil
}

// ReplaceChild puts repl where old is, detaching old. The replacement
// inherits the leading whitespace of old so that rendering keeps its layout.
// repl must be detached and old must be the root or listed by its parent;
// nothing changes when either does not hold.
func (t *Tree) ReplaceChild(old, repl NodeID) error {
	if old == repl {
		return nil
	}
	if err := t.detached(repl); err != nil {
		return err
	}
	if t.IsAncestor(repl, old) {
		return ErrTreeInvariant.New(fmt.Sprintf("node %d would become its own ancestor", repl))
	}

	parent := t.nodes[old].Parent
	slot := -1
	if parent == NoNode {
		if t.Root != old {
			return ErrTreeInvariant.New(fmt.Sprintf("node %d is detached", old))
		}
	} else {
		for i, c := range t.nodes[parent].Children {
			if c == old {
				slot = i
				break
			}
		}
		if slot < 0 {
			return ErrTreeInvariant.New(fmt.Sprintf("node %d is missing from the children of its parent %d", old, parent))
		}
	}

	if first := t.firstTerminal(old); first != NoNode {
		if r := t.firstTerminal(repl); r != NoNode {
			t.nodes[r].Prefix = t.nodes[first].Prefix
		}
	}
	if slot < 0 {
		t.Root = repl
	} else {
		t.nodes[parent].Children[slot] = repl
	}
	t.nodes[repl].Parent = parent
	t.nodes[old].Parent = NoNode
	return nil
}

func (t *Tree) detached(id NodeID) error {
	if p := t.nodes[id].Parent; p != NoNode {
		return ErrTreeInvariant.New(fmt.Sprintf("node %d is still attached under %d", id, p))
	}
	if id == t.Root {
		return ErrTreeInvariant.New(fmt.Sprintf("node %d is the root", id))
	}
	return nil
}

// Attached reports whether id is reachable from the root.
func (t *Tree) Attached(id NodeID) bool {
	for cur := id; cur != NoNode; cur = t.nodes[cur].Parent {
		if cur == t.Root {
			return true
		}
	}
	return false
}

// IsAncestor reports whether anc is id or one of its ancestors.
func (t *Tree) IsAncestor(anc, id NodeID) bool {
	for cur := id; cur != NoNode; cur = t.nodes[cur].Parent {
		if cur == anc {
			return true
		}
	}
	return false
}

// PostOrder returns the subtree of id in post-order.
func (t *Tree) PostOrder(id NodeID) []NodeID {
	var out []NodeID
	var walk func(NodeID)
	walk = func(n NodeID) {
		for _, c := range t.nodes[n].Children {
			walk(c)
		}
		out = append(out, n)
	}
	walk(id)
	return out
}

// Terminals returns the leaves under id from left to right.
func (t *Tree) Terminals(id NodeID) []NodeID {
	var out []NodeID
	var walk func(NodeID)
	walk = func(n NodeID) {
		if t.nodes[n].Terminal {
			out = append(out, n)
			return
		}
		for _, c := range t.nodes[n].Children {
			walk(c)
		}
	}
	walk(id)
	return out
}

func (t *Tree) firstTerminal(id NodeID) NodeID {
	for {
		n := &t.nodes[id]
		if n.Terminal {
			return id
		}
		if len(n.Children) == 0 {
			return NoNode
		}
		id = n.Children[0]
	}
}

// Check verifies the parent and child links of the attached tree.
func (t *Tree) Check() error {
	if t.Root == NoNode {
		return ErrTreeInvariant.New("tree has no root")
	}
	if p := t.nodes[t.Root].Parent; p != NoNode {
		return ErrTreeInvariant.New(fmt.Sprintf("root %d has parent %d", t.Root, p))
	}
	seen := make(map[NodeID]bool)
	var walk func(NodeID) error
	walk = func(id NodeID) error {
		if seen[id] {
			return ErrTreeInvariant.New(fmt.Sprintf("node %d reachable twice", id))
		}
		seen[id] = true
		n := &t.nodes[id]
		if n.Terminal && len(n.Children) > 0 {
			return ErrTreeInvariant.New(fmt.Sprintf("terminal %d has children", id))
		}
		for _, c := range n.Children {
			if t.nodes[c].Parent != id {
				return ErrTreeInvariant.New(fmt.Sprintf("node %d lists child %d whose parent is %d", id, c, t.nodes[c].Parent))
			}
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t.Root)
}
