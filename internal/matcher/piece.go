// Package matcher finds the catalogued constructs of a statement and layers
// them over its syntax tree as a forest of pieces.
package matcher

import (
	"fmt"

	"cracksql/internal/knowledge"
	"cracksql/internal/signature"
	"cracksql/internal/syntax"
)

// PieceID is a handle to a piece inside a Forest.
type PieceID int

// NoPiece marks a missing father.
const NoPiece PieceID = -1

// Kind tells what a piece stands for.
type Kind int

const (
	// KindRoot is the synthetic piece covering the whole statement.
	KindRoot Kind = iota
	KindKeyword
	KindFunction
	KindOperator
	// KindTranslated is an opaque leaf spliced in by a rewrite.
	KindTranslated
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindKeyword:
		return "keyword"
	case KindFunction:
		return "function"
	case KindOperator:
		return "operator"
	case KindTranslated:
		return "translated"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func kindOf(e *knowledge.Entry) Kind {
	switch e.Category {
	case knowledge.CategoryFunction:
		return KindFunction
	case knowledge.CategoryOperator:
		return KindOperator
	default:
		return KindKeyword
	}
}

// State is where a piece stands in a rewrite session.
type State int

const (
	// Pending pieces still have to be rewritten.
	Pending State = iota
	// Compatible pieces exist as is in the target dialect.
	Compatible
	// Translated pieces are leaves produced by a rewrite.
	Translated
	// Replaced pieces were superseded by a translated leaf or absorbed by a
	// lift. Their node is no longer part of the statement.
	Replaced
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Compatible:
		return "compatible"
	case Translated:
		return "translated"
	case Replaced:
		return "replaced"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Piece is one matched construct.
type Piece struct {
	ID   PieceID
	Node syntax.NodeID
	Kind Kind
	// Entry is the preferred catalog entry; nil for root and translated
	// pieces.
	Entry *knowledge.Entry
	// Candidates lists every entry that matched the node, in catalog order.
	Candidates  []*knowledge.Entry
	Signature   *signature.Tree
	Description string
	// Detail carries the function-only usage notes of the entry.
	Detail string
	// Skeleton holds the syntax nodes aligned with the signature.
	Skeleton []syntax.NodeID

	SubPieces []PieceID
	Father    PieceID

	State      State
	RetryCount int
	// TrackPieces records the pieces this one replaced, most recent last.
	TrackPieces []PieceID
}

// Keyword returns the catalog name of the piece.
func (p *Piece) Keyword() string {
	switch {
	case p.Entry != nil:
		return p.Entry.Name
	case p.Kind == KindRoot:
		return "<statement>"
	default:
		return "<translated>"
	}
}

// Forest is the set of pieces of one statement.
type Forest struct {
	Tree *syntax.Tree
	Root PieceID

	pieces []*Piece
	byNode map[syntax.NodeID]PieceID
}

func newForest(tree *syntax.Tree) *Forest {
	return &Forest{
		Tree:   tree,
		Root:   NoPiece,
		byNode: make(map[syntax.NodeID]PieceID),
	}
}

// Len returns the number of pieces ever created.
func (f *Forest) Len() int {
	return len(f.pieces)
}

// Piece returns the piece for id.
func (f *Forest) Piece(id PieceID) *Piece {
	return f.pieces[id]
}

// Pieces returns every piece, replaced ones included, in creation order.
func (f *Forest) Pieces() []*Piece {
	return f.pieces
}

// ByNode returns the piece rooted at node.
func (f *Forest) ByNode(node syntax.NodeID) (*Piece, bool) {
	id, ok := f.byNode[node]
	if !ok {
		return nil, false
	}
	return f.pieces[id], true
}

func (f *Forest) add(p *Piece) *Piece {
	p.ID = PieceID(len(f.pieces))
	p.Father = NoPiece
	f.pieces = append(f.pieces, p)
	f.byNode[p.Node] = p.ID
	return p
}

// Active reports whether piece id is still part of the statement. Pieces
// under a spliced subtree are inactive until the splice is reverted.
func (f *Forest) Active(id PieceID) bool {
	p := f.pieces[id]
	return p.State != Replaced && f.Tree.Attached(p.Node)
}

// Depth returns the number of fathers above id.
func (f *Forest) Depth(id PieceID) int {
	d := 0
	for cur := f.pieces[id].Father; cur != NoPiece; cur = f.pieces[cur].Father {
		d++
	}
	return d
}

// Descendants returns the active pieces strictly below id, innermost first.
func (f *Forest) Descendants(id PieceID) []PieceID {
	var out []PieceID
	var walk func(PieceID)
	walk = func(p PieceID) {
		for _, sub := range f.pieces[p].SubPieces {
			walk(sub)
			out = append(out, sub)
		}
	}
	walk(id)
	return out
}

// Owner returns the innermost active piece whose node contains node.
func (f *Forest) Owner(node syntax.NodeID) PieceID {
	for cur := node; cur != syntax.NoNode; cur = f.Tree.Node(cur).Parent {
		if p, ok := f.byNode[cur]; ok && f.pieces[p].State != Replaced {
			return p
		}
	}
	return f.Root
}

// Splice puts a translated leaf in place of piece id. The old piece and
// everything under it leave the statement; the returned piece takes their
// place under the same father. Splicing a piece that already left the
// statement, or one the tree refuses, leaves the forest unchanged.
func (f *Forest) Splice(id PieceID, leaf syntax.NodeID) (*Piece, error) {
	old := f.pieces[id]
	if !f.Active(id) {
		return nil, syntax.ErrTreeInvariant.New(fmt.Sprintf("piece %d is not in the statement", id))
	}
	if err := f.Tree.ReplaceChild(old.Node, leaf); err != nil {
		return nil, err
	}

	old.State = Replaced

	p := f.add(&Piece{
		Node:        leaf,
		Kind:        KindTranslated,
		Signature:   old.Signature,
		Description: old.Description,
		Detail:      old.Detail,
		Skeleton:    []syntax.NodeID{leaf},
		State:       Translated,
		RetryCount:  old.RetryCount,
		TrackPieces: []PieceID{id},
	})
	p.Father = old.Father
	if old.Father != NoPiece {
		father := f.pieces[old.Father]
		for i, sub := range father.SubPieces {
			if sub == id {
				father.SubPieces[i] = p.ID
			}
		}
	}
	if f.Root == id {
		f.Root = p.ID
	}
	return p, nil
}

// Revert undoes the splice that produced the translated piece id and returns
// the piece it replaced, back in the forest.
func (f *Forest) Revert(id PieceID) (*Piece, error) {
	p := f.pieces[id]
	if p.Kind != KindTranslated || len(p.TrackPieces) == 0 {
		return p, nil
	}
	old := f.pieces[p.TrackPieces[0]]
	if err := f.Tree.ReplaceChild(p.Node, old.Node); err != nil {
		return nil, err
	}
	p.State = Replaced

	old.State = Pending
	old.Father = p.Father
	if p.Father != NoPiece {
		father := f.pieces[p.Father]
		for i, sub := range father.SubPieces {
			if sub == id {
				father.SubPieces[i] = old.ID
			}
		}
	}
	if f.Root == id {
		f.Root = old.ID
	}
	return old, nil
}

// Restore brings back the original subtree under piece id: every
// translation below it is reverted and every piece below it is absorbed, so
// that id can be rewritten as a whole. The absorbed pieces are appended to
// its TrackPieces.
func (f *Forest) Restore(id PieceID) error {
	for {
		reverted := false
		for _, sub := range f.Descendants(id) {
			if f.pieces[sub].Kind == KindTranslated && f.Active(sub) {
				if _, err := f.Revert(sub); err != nil {
					return err
				}
				reverted = true
				break
			}
		}
		if !reverted {
			break
		}
	}
	p := f.pieces[id]
	for _, sub := range f.Descendants(id) {
		f.pieces[sub].State = Replaced
		p.TrackPieces = append(p.TrackPieces, sub)
	}
	p.SubPieces = nil
	p.State = Pending
	p.RetryCount = 0
	return nil
}

// Check verifies that every active piece hangs under the nearest active
// piece above its node.
func (f *Forest) Check() error {
	for _, p := range f.pieces {
		if p.ID == f.Root || !f.Active(p.ID) {
			continue
		}
		want := NoPiece
		for cur := f.Tree.Node(p.Node).Parent; cur != syntax.NoNode; cur = f.Tree.Node(cur).Parent {
			if q, ok := f.byNode[cur]; ok && f.Active(q) {
				want = q
				break
			}
		}
		if want == NoPiece {
			want = f.Root
		}
		if p.Father != want {
			return fmt.Errorf("piece %d (%s) has father %d, nearest enclosing piece is %d", p.ID, p.Keyword(), p.Father, want)
		}
		listed := false
		for _, sub := range f.pieces[want].SubPieces {
			if sub == p.ID {
				listed = true
			}
		}
		if !listed {
			return fmt.Errorf("piece %d missing from sub-pieces of %d", p.ID, want)
		}
	}
	return nil
}
