package matcher

import (
	"sort"
	"strings"

	"cracksql/internal/knowledge"
	"cracksql/internal/signature"
	"cracksql/internal/syntax"
)

// Catalog is the lookup a Forest is matched against.
type Catalog interface {
	Lookup(rule string) []*knowledge.Entry
}

// MatchAll finds every node of tree that matches a catalog signature and
// links the resulting pieces into a forest under a synthetic root piece.
func MatchAll(tree *syntax.Tree, catalog Catalog) *Forest {
	f := newForest(tree)
	if tree.Root == syntax.NoNode {
		return f
	}

	for _, id := range tree.PostOrder(tree.Root) {
		n := tree.Node(id)
		if n.Terminal {
			continue
		}
		var (
			matched  []*knowledge.Entry
			skeleton = make(map[*knowledge.Entry][]syntax.NodeID)
		)
		for _, e := range catalog.Lookup(n.Rule) {
			if e.Signature == nil {
				continue
			}
			if aligned, ok := DualDFS(tree, id, e.Signature); ok {
				matched = append(matched, e)
				skeleton[e] = aligned
			}
		}
		if len(matched) == 0 {
			continue
		}
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Order < matched[j].Order
		})
		best := pick(matched)
		f.add(&Piece{
			Node:        id,
			Kind:        kindOf(best),
			Entry:       best,
			Candidates:  matched,
			Signature:   best.Signature,
			Description: best.Description,
			Detail:      best.Detail,
			Skeleton:    skeleton[best],
		})
	}

	if p, ok := f.byNode[tree.Root]; ok {
		f.Root = p
	} else {
		root := f.add(&Piece{
			Node:     tree.Root,
			Kind:     KindRoot,
			Skeleton: []syntax.NodeID{tree.Root},
			State:    Compatible,
		})
		f.Root = root.ID
	}
	f.link()
	return f
}

// pick prefers functions over keywords and operators, then the highest
// frequency, then catalog order. matched is in catalog order.
func pick(matched []*knowledge.Entry) *knowledge.Entry {
	pool := matched
	var funcs []*knowledge.Entry
	for _, e := range matched {
		if e.IsFunction() {
			funcs = append(funcs, e)
		}
	}
	if len(funcs) > 0 {
		pool = funcs
	}
	best := pool[0]
	for _, e := range pool[1:] {
		if e.Frequency > best.Frequency {
			best = e
		}
	}
	return best
}

// link sets every piece's father to the nearest piece above its node and
// fills the sub-piece lists. Pieces were created in post-order, so children
// lists come out left to right.
func (f *Forest) link() {
	for _, p := range f.pieces {
		if p.ID == f.Root {
			continue
		}
		for cur := f.Tree.Node(p.Node).Parent; cur != syntax.NoNode; cur = f.Tree.Node(cur).Parent {
			if father, ok := f.byNode[cur]; ok {
				p.Father = father
				f.pieces[father].SubPieces = append(f.pieces[father].SubPieces, p.ID)
				break
			}
		}
	}
}

// DualDFS aligns sig with the subtree at node. Signature children are
// matched in order against syntax children, scanning forward without
// backtracking; unmatched syntax children are allowed. A leaf matches a
// terminal whose text or token class equals its name. On success it returns
// the syntax nodes aligned with the signature, node first.
func DualDFS(tree *syntax.Tree, node syntax.NodeID, sig *signature.Tree) ([]syntax.NodeID, bool) {
	n := tree.Node(node)
	if sig.Leaf() {
		if n.Terminal && (strings.EqualFold(n.Text, sig.Name) || strings.EqualFold(n.Class, sig.Name)) {
			return []syntax.NodeID{node}, true
		}
		return nil, false
	}
	if n.Terminal || !strings.EqualFold(n.Rule, sig.Name) {
		return nil, false
	}

	aligned := []syntax.NodeID{node}
	next := 0
	for _, want := range sig.Children {
		found := false
		for next < len(n.Children) {
			child := n.Children[next]
			next++
			if !strings.EqualFold(tree.Node(child).Label(), want.Name) && !strings.EqualFold(tree.Node(child).Class, want.Name) {
				continue
			}
			if sub, ok := DualDFS(tree, child, want); ok {
				aligned = append(aligned, sub...)
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return aligned, true
}

// Target tells whether a source entry exists as is in the target dialect.
type Target interface {
	Compatible(e *knowledge.Entry) bool
}

// MarkCompatible flags the pieces whose every candidate is available in
// target, leaving them out of the rewrite. It returns how many pieces are
// still pending.
func (f *Forest) MarkCompatible(target Target) int {
	pending := 0
	for _, p := range f.pieces {
		if p.Kind == KindRoot || p.State != Pending {
			continue
		}
		ok := true
		for _, e := range p.Candidates {
			if !target.Compatible(e) {
				ok = false
				break
			}
		}
		if ok {
			p.State = Compatible
		} else {
			pending++
		}
	}
	return pending
}

// Next returns the innermost pending piece, or NoPiece. Sub-pieces come
// before their father and siblings go left to right.
func (f *Forest) Next() PieceID {
	var visit func(PieceID) PieceID
	visit = func(id PieceID) PieceID {
		for _, sub := range f.pieces[id].SubPieces {
			if got := visit(sub); got != NoPiece {
				return got
			}
		}
		if f.pieces[id].State == Pending && f.Active(id) {
			return id
		}
		return NoPiece
	}
	if f.Root == NoPiece {
		return NoPiece
	}
	return visit(f.Root)
}
