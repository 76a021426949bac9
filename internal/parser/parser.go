// Package parser turns SQL text into a syntax tree by interpreting a dialect
// grammar. The parser is generalized: every grammar construct yields the set
// of positions it can end at, so ambiguous prefixes are resolved by whatever
// continuation makes the whole statement parse. Results are memoized per rule
// and position.
package parser

import (
	"fmt"
	"sort"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"

	"cracksql/internal/dialect"
	"cracksql/internal/grammar"
	"cracksql/internal/syntax"
)

// ErrParse wraps every failure to parse a statement.
var ErrParse = errors.NewKind("parse %s")

// ParseError is a syntax error with a 1-based position.
type ParseError struct {
	Line     int
	Column   int
	Near     string
	Message  string
	Expected []string
}

func (e *ParseError) Error() string {
	msg := e.Message
	if e.Near != "" {
		msg = fmt.Sprintf("%s near %q", msg, e.Near)
	}
	if len(e.Expected) > 0 {
		msg = fmt.Sprintf("%s, expected one of %s", msg, strings.Join(e.Expected, " "))
	}
	return fmt.Sprintf("line %d column %d: %s", e.Line, e.Column, msg)
}

// Position reports where the error was found.
func (e *ParseError) Position() (int, int) {
	return e.Line, e.Column
}

// AsParseError digs the positioned syntax error out of err.
func AsParseError(err error) (*ParseError, bool) {
	for err != nil {
		if pe, ok := err.(*ParseError); ok {
			return pe, true
		}
		c, ok := err.(interface{ Cause() error })
		if !ok {
			return nil, false
		}
		err = c.Cause()
	}
	return nil, false
}

// Parser parses statements of one dialect.
type Parser struct {
	dialect           dialect.Dialect
	grammar           *grammar.Tree
	reserved          map[string]bool
	doubleQuoteString bool
}

// New returns a parser for the embedded grammar of d.
func New(d dialect.Dialect) (*Parser, error) {
	g, err := dialect.Grammar(d)
	if err != nil {
		return nil, err
	}
	return NewWithGrammar(d, g), nil
}

// NewWithGrammar returns a parser for an explicit grammar.
func NewWithGrammar(d dialect.Dialect, g *grammar.Tree) *Parser {
	return &Parser{
		dialect:           d,
		grammar:           g,
		reserved:          g.Reserved(),
		doubleQuoteString: d == dialect.MySQL,
	}
}

// Dialect returns the dialect the parser reads.
func (p *Parser) Dialect() dialect.Dialect {
	return p.dialect
}

// Grammar returns the grammar the parser interprets.
func (p *Parser) Grammar() *grammar.Tree {
	return p.grammar
}

// Parse parses a full statement starting at the grammar root.
func (p *Parser) Parse(sql string) (*syntax.Tree, error) {
	return p.parse(sql, p.grammar.Root())
}

// ParseRule parses sql as an instance of the named rule.
func (p *Parser) ParseRule(sql, rule string) (*syntax.Tree, error) {
	id, err := p.grammar.MustRule(rule)
	if err != nil {
		return nil, err
	}
	return p.parse(sql, id)
}

func (p *Parser) parse(sql string, rule grammar.NodeID) (*syntax.Tree, error) {
	tokens, err := Lex(sql, p.doubleQuoteString)
	if err != nil {
		return nil, ErrParse.Wrap(err, p.dialect)
	}
	if len(tokens) == 0 {
		return nil, ErrParse.Wrap(&ParseError{Line: 1, Column: 1, Message: "empty statement"}, p.dialect)
	}

	r := &run{
		p:          p,
		tokens:     tokens,
		memo:       make(map[memoKey][]result),
		inProgress: make(map[memoKey]bool),
		expected:   make(map[string]bool),
	}
	for _, res := range r.rule(rule, 0) {
		if res.end == len(tokens) {
			tree := syntax.New(string(p.dialect))
			root, err := r.build(tree, res.kids[0])
			if err != nil {
				return nil, ErrParse.Wrap(err, p.dialect)
			}
			tree.Root = root
			return tree, nil
		}
	}
	return nil, ErrParse.Wrap(r.failure(), p.dialect)
}

type ptree struct {
	rule  string
	tok   int
	class string
	kids  []*ptree
}

type result struct {
	end  int
	kids []*ptree
}

type memoKey struct {
	node grammar.NodeID
	pos  int
}

type run struct {
	p          *Parser
	tokens     []Token
	memo       map[memoKey][]result
	inProgress map[memoKey]bool

	furthest int
	expected map[string]bool
}

func (r *run) fail(pos int, want string) {
	if pos > r.furthest {
		r.furthest = pos
		r.expected = make(map[string]bool)
	}
	if pos == r.furthest {
		r.expected[want] = true
	}
}

func (r *run) failure() *ParseError {
	perr := &ParseError{Message: "syntax error"}
	if r.furthest < len(r.tokens) {
		tok := r.tokens[r.furthest]
		perr.Line, perr.Column, perr.Near = tok.Line, tok.Column, tok.Text
	} else {
		last := r.tokens[len(r.tokens)-1]
		perr.Line = last.Line
		perr.Column = last.Column + len([]rune(last.Text))
		perr.Message = "unexpected end of statement"
	}
	for want := range r.expected {
		perr.Expected = append(perr.Expected, want)
	}
	sort.Strings(perr.Expected)
	return perr
}

// rule matches a parser rule at pos and wraps every result in one node.
func (r *run) rule(id grammar.NodeID, pos int) []result {
	key := memoKey{node: id, pos: pos}
	if res, ok := r.memo[key]; ok {
		return res
	}
	if r.inProgress[key] {
		// Left recursion: this branch contributes nothing.
		return nil
	}
	r.inProgress[key] = true
	inner := r.match(id, pos)
	delete(r.inProgress, key)

	name := r.p.grammar.Node(id).Name
	out := make([]result, 0, len(inner))
	for _, res := range inner {
		out = append(out, result{end: res.end, kids: []*ptree{{rule: name, tok: -1, kids: res.kids}}})
	}
	r.memo[key] = out
	return out
}

func (r *run) match(id grammar.NodeID, pos int) []result {
	g := r.p.grammar
	n := g.Node(id)
	switch n.Kind {
	case grammar.Keyword:
		if pos < len(r.tokens) && r.keywordMatches(n.Text, r.tokens[pos]) {
			return []result{{end: pos + 1, kids: []*ptree{{tok: pos, class: n.Name}}}}
		}
		r.fail(pos, n.Text)
		return nil

	case grammar.Literal:
		if pos < len(r.tokens) && r.literalMatches(n, r.tokens[pos]) {
			return []result{{end: pos + 1, kids: []*ptree{{tok: pos, class: n.Name}}}}
		}
		r.fail(pos, n.Name)
		return nil

	case grammar.NonTerminalRef:
		target := g.Node(n.Link)
		if target.Kind == grammar.Keyword {
			return r.match(n.Link, pos)
		}
		return r.rule(n.Link, pos)

	case grammar.Sequence:
		frontier := []result{{end: pos}}
		for _, child := range n.Children {
			var next resultSet
			for _, f := range frontier {
				for _, cr := range r.match(child, f.end) {
					next.add(result{end: cr.end, kids: concat(f.kids, cr.kids)})
				}
			}
			if len(next.items) == 0 {
				return nil
			}
			frontier = next.items
		}
		return frontier

	case grammar.Alternation:
		var out resultSet
		for _, child := range n.Children {
			for _, cr := range r.match(child, pos) {
				out.add(cr)
			}
		}
		return out.items

	case grammar.Optional:
		var out resultSet
		for _, cr := range r.match(n.Children[0], pos) {
			out.add(cr)
		}
		out.add(result{end: pos})
		return out.items

	case grammar.Repeated:
		var out resultSet
		if n.Min == 0 {
			out.add(result{end: pos})
		}
		frontier := []result{{end: pos}}
		for count := 1; len(frontier) > 0 && count <= len(r.tokens)+1; count++ {
			var next resultSet
			for _, f := range frontier {
				for _, cr := range r.match(n.Children[0], f.end) {
					if cr.end == f.end {
						continue
					}
					next.add(result{end: cr.end, kids: concat(f.kids, cr.kids)})
				}
			}
			if count >= n.Min {
				for _, res := range next.items {
					out.add(res)
				}
			}
			frontier = next.items
		}
		return out.items
	}
	return nil
}

func (r *run) keywordMatches(text string, tok Token) bool {
	switch tok.Kind {
	case TokWord, TokOperator:
		return strings.EqualFold(tok.Text, text)
	}
	return false
}

func (r *run) literalMatches(n *grammar.Node, tok Token) bool {
	if n.Quoted {
		return (tok.Kind == TokWord || tok.Kind == TokOperator) && strings.EqualFold(tok.Text, n.Name)
	}
	switch strings.ToUpper(n.Name) {
	case "ID", "IDENTIFIER", "NAME":
		if tok.Kind == TokQuotedIdent {
			return true
		}
		return tok.Kind == TokWord && !r.p.reserved[strings.ToUpper(tok.Text)]
	case "NUMBER", "INT", "INTEGER", "DECIMAL", "FLOAT":
		return tok.Kind == TokNumber
	case "STRING", "STRING_LITERAL", "TEXT":
		return tok.Kind == TokString
	}
	return tok.Kind != TokString && strings.EqualFold(tok.Text, n.Name)
}

func (r *run) build(t *syntax.Tree, pt *ptree) (syntax.NodeID, error) {
	if pt.tok >= 0 {
		tok := r.tokens[pt.tok]
		return t.AddTerminal(syntax.Node{
			Text:   tok.Text,
			Class:  pt.class,
			Prefix: tok.Prefix,
			Line:   tok.Line,
			Column: tok.Column,
		}), nil
	}
	id := t.AddRule(pt.rule)
	for _, k := range pt.kids {
		kid, err := r.build(t, k)
		if err != nil {
			return syntax.NoNode, err
		}
		if err := t.AppendChild(id, kid); err != nil {
			return syntax.NoNode, err
		}
	}
	return id, nil
}

// resultSet keeps the first result found for every end position.
type resultSet struct {
	items []result
	seen  map[int]bool
}

func (s *resultSet) add(res result) {
	if s.seen == nil {
		s.seen = make(map[int]bool)
	}
	if s.seen[res.end] {
		return
	}
	s.seen[res.end] = true
	s.items = append(s.items, res)
}

func concat(a, b []*ptree) []*ptree {
	if len(b) == 0 {
		return a
	}
	out := make([]*ptree, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
