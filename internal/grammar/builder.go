package grammar

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var ruleHeader = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=(.*)$`)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokLiteral
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
}

type rawRule struct {
	name string
	line int
	body []token
}

// Build parses a grammar description into a Tree.
func Build(dialect, text string) (*Tree, error) {
	raws, err := splitRules(dialect, text)
	if err != nil {
		return nil, err
	}

	t := &Tree{
		Dialect: dialect,
		rules:   make(map[string]NodeID, len(raws)),
		folds:   make(map[string]NodeID, len(raws)),
	}

	// Roots first so that references can be linked while bodies are emitted.
	for _, r := range raws {
		if _, dup := t.rules[r.name]; dup {
			return nil, ErrGrammarBuild.New(dialect, r.line, fmt.Sprintf("duplicate rule %q", r.name))
		}
		var id NodeID
		if lit, ok := lexerLiteral(r); ok {
			id = t.add(Node{Kind: Keyword, Name: r.name, Text: lit, Rule: true})
		} else {
			id = t.add(Node{Kind: Sequence, Name: r.name, Rule: true})
		}
		t.rules[r.name] = id
		if _, taken := t.folds[strings.ToLower(r.name)]; !taken {
			t.folds[strings.ToLower(r.name)] = id
		}
		t.order = append(t.order, r.name)
	}

	for _, r := range raws {
		root := t.rules[r.name]
		if t.nodes[root].Kind == Keyword {
			continue
		}
		p := &exprParser{tokens: r.body}
		e, err := p.parseAlt()
		if err != nil {
			return nil, ErrGrammarBuild.New(dialect, r.line, err.Error())
		}
		if p.pos < len(p.tokens) {
			return nil, ErrGrammarBuild.New(dialect, r.line, fmt.Sprintf("unexpected %q", p.tokens[p.pos].text))
		}

		var kind Kind
		var children []NodeID
		switch e.kind {
		case exprAlt:
			kind = Alternation
			for _, sub := range e.items {
				children = append(children, t.emit(sub))
			}
		case exprSeq:
			kind = Sequence
			for _, sub := range e.items {
				children = append(children, t.emit(sub))
			}
		default:
			kind = Sequence
			children = []NodeID{t.emit(e)}
		}
		t.nodes[root].Kind = kind
		t.nodes[root].Children = children
	}
	return t, nil
}

func lexerLiteral(r rawRule) (string, bool) {
	if r.name != strings.ToUpper(r.name) {
		return "", false
	}
	if len(r.body) != 1 || r.body[0].kind != tokLiteral {
		return "", false
	}
	return r.body[0].text, true
}

func splitRules(dialect, text string) ([]rawRule, error) {
	var (
		out     []rawRule
		current *rawRule
	)
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}

		var body string
		if m := ruleHeader.FindStringSubmatch(line); m != nil {
			out = append(out, rawRule{name: m[1], line: lineNo})
			current = &out[len(out)-1]
			body = m[2]
		} else if current != nil && (unicode.IsSpace(rune(line[0])) || line[0] == '|') {
			body = line
		} else {
			return nil, ErrGrammarBuild.New(dialect, lineNo, "expected rule definition")
		}

		toks, err := tokenize(body)
		if err != nil {
			return nil, ErrGrammarBuild.New(dialect, lineNo, err.Error())
		}
		current.body = append(current.body, toks...)
	}
	if err := sc.Err(); err != nil {
		return nil, ErrGrammarBuild.New(dialect, lineNo, err.Error())
	}
	return out, nil
}

func tokenize(s string) ([]token, error) {
	var out []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '\'' || c == '"':
			j := i + 1
			var b strings.Builder
			for j < len(s) && s[j] != c {
				if s[j] == '\\' && j+1 < len(s) {
					j++
				}
				b.WriteByte(s[j])
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unterminated literal starting at column %d", i+1)
			}
			out = append(out, token{kind: tokLiteral, text: b.String()})
			i = j + 1
		case strings.IndexByte("()[]|*+?=", c) >= 0:
			out = append(out, token{kind: tokSymbol, text: string(c)})
			i++
		default:
			j := i
			for j < len(s) && !isDelimiter(s[j]) {
				j++
			}
			out = append(out, token{kind: tokWord, text: s[i:j]})
			i = j
		}
	}
	return out, nil
}

func isDelimiter(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\'' || c == '"' ||
		strings.IndexByte("()[]|*+?=", c) >= 0
}

type exprKind int

const (
	exprAlt exprKind = iota
	exprSeq
	exprOpt
	exprStar
	exprPlus
	exprName
	exprLiteral
)

type expr struct {
	kind  exprKind
	text  string
	items []*expr
}

type exprParser struct {
	tokens []token
	pos    int
}

func (p *exprParser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *exprParser) isSymbol(s string) bool {
	tok, ok := p.peek()
	return ok && tok.kind == tokSymbol && tok.text == s
}

func (p *exprParser) parseAlt() (*expr, error) {
	first, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	if !p.isSymbol("|") {
		return first, nil
	}
	alt := &expr{kind: exprAlt, items: []*expr{first}}
	for p.isSymbol("|") {
		p.pos++
		next, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		alt.items = append(alt.items, next)
	}
	return alt, nil
}

func (p *exprParser) parseSeq() (*expr, error) {
	seq := &expr{kind: exprSeq}
	for {
		tok, ok := p.peek()
		if !ok || (tok.kind == tokSymbol && (tok.text == "|" || tok.text == ")" || tok.text == "]")) {
			break
		}
		item, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		seq.items = append(seq.items, item)
	}
	if len(seq.items) == 1 {
		return seq.items[0], nil
	}
	return seq, nil
}

func (p *exprParser) parsePostfix() (*expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isSymbol("*"):
			e = &expr{kind: exprStar, items: []*expr{e}}
		case p.isSymbol("+"):
			e = &expr{kind: exprPlus, items: []*expr{e}}
		case p.isSymbol("?"):
			e = &expr{kind: exprOpt, items: []*expr{e}}
		default:
			return e, nil
		}
		p.pos++
	}
}

func (p *exprParser) parsePrimary() (*expr, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of rule")
	}
	p.pos++
	switch tok.kind {
	case tokWord:
		return &expr{kind: exprName, text: tok.text}, nil
	case tokLiteral:
		return &expr{kind: exprLiteral, text: tok.text}, nil
	}

	switch tok.text {
	case "(", "[":
		closing := ")"
		if tok.text == "[" {
			closing = "]"
		}
		inner, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		if !p.isSymbol(closing) {
			return nil, fmt.Errorf("unbalanced %q", tok.text)
		}
		p.pos++
		if tok.text == "[" {
			return &expr{kind: exprOpt, items: []*expr{inner}}, nil
		}
		return inner, nil
	case "=":
		return nil, fmt.Errorf("unexpected '=' inside rule body")
	default:
		return nil, fmt.Errorf("unexpected %q", tok.text)
	}
}

func (t *Tree) emit(e *expr) NodeID {
	switch e.kind {
	case exprAlt, exprSeq:
		kind := Sequence
		if e.kind == exprAlt {
			kind = Alternation
		}
		children := make([]NodeID, 0, len(e.items))
		for _, sub := range e.items {
			children = append(children, t.emit(sub))
		}
		return t.add(Node{Kind: kind, Children: children})
	case exprOpt:
		child := t.emit(e.items[0])
		return t.add(Node{Kind: Optional, Children: []NodeID{child}})
	case exprStar, exprPlus:
		child := t.emit(e.items[0])
		minCount := 0
		if e.kind == exprPlus {
			minCount = 1
		}
		return t.add(Node{Kind: Repeated, Children: []NodeID{child}, Min: minCount})
	case exprLiteral:
		return t.add(Node{Kind: Literal, Name: e.text, Quoted: true})
	default:
		if target, ok := t.rules[e.text]; ok {
			return t.add(Node{Kind: NonTerminalRef, Name: e.text, Link: target})
		}
		return t.add(Node{Kind: Literal, Name: e.text})
	}
}
