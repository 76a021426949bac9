// Package pathfinder derives the signature of a keyword, function or
// operator from a grammar: the minimal set of rule paths leading from a root
// rule to every target terminal, merged into one bracketed tree.
//
// The search walks the grammar once per (rule, left) pair, where left is the
// index of the first target not yet covered. Every grammar node yields
// candidates covering a half-open interval [left, right) of the target list
// together with one path per covered target. Sequences join candidates whose
// intervals abut, alternations take the union, and optional or repeated parts
// may cover nothing. Any node may also cover nothing at all, since terminals
// that are not targets are free.
package pathfinder

import (
	"sort"
	"strconv"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"

	"cracksql/internal/grammar"
	"cracksql/internal/signature"
)

// ErrNoCandidateFound is returned when no derivation of the root rule covers
// every target.
var ErrNoCandidateFound = errors.NewKind("no path from rule %s covers targets %v")

// MaskTarget stands for arbitrary non-target text in a target list. It is
// never matched by a terminal; it may be skipped wherever two candidates
// are joined.
const MaskTarget = "<mask>"

// Finder computes signatures over one immutable grammar. It is safe for
// concurrent use; every call owns its search state.
type Finder struct {
	grammar *grammar.Tree
	beam    int
}

// New returns a Finder over g. It keeps every distinct candidate of every
// interval, so the tie-break sees all fully covering derivations.
func New(g *grammar.Tree) *Finder {
	return &Finder{grammar: g}
}

// WithBeam returns a copy of f keeping at most beam candidates per
// interval; zero or less keeps them all. The tie-break scores do not
// survive joining, so a bounded search may miss the best signature.
func (f *Finder) WithBeam(beam int) *Finder {
	if beam < 0 {
		beam = 0
	}
	return &Finder{grammar: f.grammar, beam: beam}
}

// Find returns the signature of targets under rootRule.
func (f *Finder) Find(rootRule string, targets []string) (*signature.Tree, error) {
	root, err := f.grammar.MustRule(rootRule)
	if err != nil {
		return nil, err
	}
	s := &search{
		g:          f.grammar,
		targets:    targets,
		beam:       f.beam,
		memo:       make(map[memoKey][]candidate),
		inProgress: make(map[memoKey]bool),
	}
	if s.realTargets() == 0 {
		return nil, ErrNoCandidateFound.New(rootRule, targets)
	}

	var finals []candidate
	for _, l0 := range s.skips(0) {
		for _, c := range s.rule(root, l0) {
			if c.right == c.left || !s.allMask(c.right, len(targets)) {
				continue
			}
			finals = append(finals, c)
		}
	}
	if len(finals) == 0 {
		return nil, ErrNoCandidateFound.New(rootRule, targets)
	}
	sort.SliceStable(finals, func(i, j int) bool {
		return finals[i].less(finals[j])
	})
	return emit(finals[0].realPaths()), nil
}

type step struct {
	name string
	node grammar.NodeID
	left int
}

type path []step

type candidate struct {
	left, right int
	// paths holds one entry per target in [left, right); skipped masks
	// have nil entries.
	paths []path
	seq   int
	sc    score
}

type memoKey struct {
	node grammar.NodeID
	left int
}

type search struct {
	g          *grammar.Tree
	targets    []string
	beam       int
	memo       map[memoKey][]candidate
	inProgress map[memoKey]bool
	seq        int
}

func (s *search) isMask(i int) bool {
	return s.targets[i] == MaskTarget
}

func (s *search) realTargets() int {
	n := 0
	for i := range s.targets {
		if !s.isMask(i) {
			n++
		}
	}
	return n
}

func (s *search) allMask(from, to int) bool {
	for i := from; i < to; i++ {
		if !s.isMask(i) {
			return false
		}
	}
	return true
}

// skips lists the positions reachable from left by skipping masks.
func (s *search) skips(left int) []int {
	out := []int{left}
	for j := left; j < len(s.targets) && s.isMask(j); j++ {
		out = append(out, j+1)
	}
	return out
}

func (s *search) newCandidate(left, right int, paths []path) candidate {
	s.seq++
	c := candidate{left: left, right: right, paths: paths, seq: s.seq}
	c.sc = c.score()
	return c
}

func (s *search) trivial(left int) candidate {
	return s.newCandidate(left, left, nil)
}

// rule visits a parser rule and prefixes its name to every path.
func (s *search) rule(id grammar.NodeID, left int) []candidate {
	key := memoKey{node: id, left: left}
	if res, ok := s.memo[key]; ok {
		return res
	}
	if s.inProgress[key] {
		// Cycle cut: re-entering a rule at the same position cannot yield a
		// shorter path than the visit already under way.
		return []candidate{s.trivial(left)}
	}
	s.inProgress[key] = true
	body := s.visit(id, left)
	delete(s.inProgress, key)

	n := s.g.Node(id)
	out := make([]candidate, 0, len(body))
	for _, c := range body {
		if c.right == c.left {
			out = append(out, c)
			continue
		}
		paths := make([]path, len(c.paths))
		for i, p := range c.paths {
			if p == nil {
				continue
			}
			np := make(path, 0, len(p)+1)
			np = append(np, step{name: n.Name, node: id, left: c.left})
			paths[i] = append(np, p...)
		}
		out = append(out, s.newCandidate(c.left, c.right, paths))
	}
	s.memo[key] = out
	return out
}

func (s *search) visit(id grammar.NodeID, left int) []candidate {
	n := s.g.Node(id)
	switch n.Kind {
	case grammar.Keyword, grammar.Literal:
		out := []candidate{s.trivial(left)}
		if left < len(s.targets) && !s.isMask(left) && s.terminalMatches(n, s.targets[left]) {
			p := path{{name: n.Terminal(), node: id, left: left}}
			out = append(out, s.newCandidate(left, left+1, []path{p}))
		}
		return out

	case grammar.NonTerminalRef:
		if s.g.Node(n.Link).Kind == grammar.Keyword {
			return s.visit(n.Link, left)
		}
		return s.rule(n.Link, left)

	case grammar.Sequence:
		frontier := []candidate{s.trivial(left)}
		for _, child := range n.Children {
			var next bucket
			for _, f := range frontier {
				for _, l2 := range s.skips(f.right) {
					for _, c := range s.visit(child, l2) {
						next.add(s.join(f, l2, c))
					}
				}
			}
			frontier = next.items(s.beam)
		}
		return frontier

	case grammar.Alternation:
		var out bucket
		out.add(s.trivial(left))
		for _, child := range n.Children {
			for _, c := range s.visit(child, left) {
				out.add(c)
			}
		}
		return out.items(s.beam)

	case grammar.Optional:
		var out bucket
		out.add(s.trivial(left))
		for _, c := range s.visit(n.Children[0], left) {
			out.add(c)
		}
		return out.items(s.beam)

	case grammar.Repeated:
		var out bucket
		out.add(s.trivial(left))
		frontier := s.visit(n.Children[0], left)
		for _, c := range frontier {
			out.add(c)
		}
		for round := 0; round < len(s.targets) && len(frontier) > 0; round++ {
			var next bucket
			for _, f := range frontier {
				for _, l2 := range s.skips(f.right) {
					for _, c := range s.visit(n.Children[0], l2) {
						if c.right > c.left {
							next.add(s.join(f, l2, c))
						}
					}
				}
			}
			frontier = next.items(s.beam)
			for _, c := range frontier {
				out.add(c)
			}
		}
		return out.items(s.beam)
	}
	return nil
}

func (s *search) terminalMatches(n *grammar.Node, target string) bool {
	if strings.EqualFold(n.Terminal(), target) {
		return true
	}
	return n.Kind == grammar.Keyword && strings.EqualFold(n.Name, target)
}

// join appends c, which starts at l2, to f. Targets between f.right and l2
// are masks and get no path.
func (s *search) join(f candidate, l2 int, c candidate) candidate {
	if f.right == f.left && l2 == f.left {
		return c
	}
	paths := make([]path, 0, c.right-f.left)
	paths = append(paths, f.paths...)
	for i := f.right; i < l2; i++ {
		paths = append(paths, nil)
	}
	paths = append(paths, c.paths...)
	return s.newCandidate(f.left, c.right, paths)
}

// realPaths drops the slots of skipped masks.
func (c candidate) realPaths() []path {
	out := make([]path, 0, len(c.paths))
	for _, p := range c.paths {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type score struct {
	names  int
	prefix int
	maxLen int
	minLen int
}

func (c candidate) score() score {
	paths := c.realPaths()
	if len(paths) == 0 {
		return score{}
	}
	names := make(map[string]bool)
	sc := score{minLen: len(paths[0])}
	for _, p := range paths {
		for _, st := range p {
			names[st.name] = true
		}
		if len(p) > sc.maxLen {
			sc.maxLen = len(p)
		}
		if len(p) < sc.minLen {
			sc.minLen = len(p)
		}
	}
	sc.names = len(names)
	sc.prefix = commonPrefix(paths)
	return sc
}

// less orders candidates by the tie-break policy: fewest distinct names,
// then shortest shared prefix, then shortest longest path, then shortest
// shortest path, then discovery order.
func (c candidate) less(o candidate) bool {
	a, b := c.sc, o.sc
	switch {
	case a.names != b.names:
		return a.names < b.names
	case a.prefix != b.prefix:
		return a.prefix < b.prefix
	case a.maxLen != b.maxLen:
		return a.maxLen < b.maxLen
	case a.minLen != b.minLen:
		return a.minLen < b.minLen
	}
	return c.seq < o.seq
}

func commonPrefix(paths []path) int {
	if len(paths) == 0 {
		return 0
	}
	n := len(paths[0])
	for _, p := range paths[1:] {
		i := 0
		for i < n && i < len(p) && p[i] == paths[0][i] {
			i++
		}
		n = i
	}
	return n
}

// bucket groups candidates by interval and drops those whose path
// assignment is already present for the same interval.
type bucket struct {
	groups map[[2]int][]candidate
	seen   map[string]bool
	order  [][2]int
}

func (b *bucket) add(c candidate) {
	if b.groups == nil {
		b.groups = make(map[[2]int][]candidate)
		b.seen = make(map[string]bool)
	}
	id := pathsKey(c)
	if b.seen[id] {
		return
	}
	b.seen[id] = true
	key := [2]int{c.left, c.right}
	if _, ok := b.groups[key]; !ok {
		b.order = append(b.order, key)
	}
	b.groups[key] = append(b.groups[key], c)
}

// items returns the candidates best first within each interval. A positive
// beam truncates every interval.
func (b *bucket) items(beam int) []candidate {
	var out []candidate
	for _, key := range b.order {
		group := b.groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].less(group[j])
		})
		if beam > 0 && len(group) > beam {
			group = group[:beam]
		}
		out = append(out, group...)
	}
	return out
}

// pathsKey identifies a candidate by its interval and the grammar nodes of
// every path.
func pathsKey(c candidate) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(c.left))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(c.right))
	for _, p := range c.paths {
		b.WriteByte('|')
		for _, st := range p {
			b.WriteString(strconv.Itoa(int(st.node)))
			b.WriteByte('@')
			b.WriteString(strconv.Itoa(st.left))
			b.WriteByte(',')
		}
	}
	return b.String()
}
