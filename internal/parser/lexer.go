package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokWord TokenKind = iota
	TokQuotedIdent
	TokNumber
	TokString
	TokOperator
)

// Token is one lexical token with the layout that preceded it.
type Token struct {
	Kind   TokenKind
	Text   string
	Prefix string
	Offset int
	Line   int
	Column int
}

var operators = []string{
	"<=>", "->>",
	"<>", "!=", "<=", ">=", "||", "&&", "::", ":=", "^=", "->",
	"=", "<", ">", "+", "-", "*", "/", "%", "(", ")", ",", ".", ";",
	"!", "~", "^", "&", "|", ":", "@", "?", "[", "]", "{", "}",
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
	// doubleQuoteString makes "..." a string literal instead of an
	// identifier, as in MySQL without ANSI_QUOTES.
	doubleQuoteString bool
}

// Lex splits sql into tokens. A trailing semicolon is dropped.
func Lex(sql string, doubleQuoteString bool) ([]Token, error) {
	lx := &lexer{src: sql, line: 1, col: 1, doubleQuoteString: doubleQuoteString}
	var out []Token
	for {
		prefix, err := lx.skipSpace()
		if err != nil {
			return nil, err
		}
		if lx.pos >= len(lx.src) {
			break
		}
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tok.Prefix = prefix
		out = append(out, tok)
	}
	if n := len(out); n > 0 && out[n-1].Kind == TokOperator && out[n-1].Text == ";" {
		out = out[:n-1]
	}
	return out, nil
}

func (lx *lexer) advance(n int) {
	for _, r := range lx.src[lx.pos : lx.pos+n] {
		if r == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
	}
	lx.pos += n
}

func (lx *lexer) errorf(format string, args ...interface{}) error {
	return &ParseError{Line: lx.line, Column: lx.col, Message: fmt.Sprintf(format, args...)}
}

func (lx *lexer) skipSpace() (string, error) {
	start := lx.pos
	for lx.pos < len(lx.src) {
		rest := lx.src[lx.pos:]
		r, size := utf8.DecodeRuneInString(rest)
		switch {
		case unicode.IsSpace(r):
			lx.advance(size)
		case strings.HasPrefix(rest, "--"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				end = len(rest)
			}
			lx.advance(end)
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return "", lx.errorf("unterminated comment")
			}
			lx.advance(end + 4)
		default:
			return lx.src[start:lx.pos], nil
		}
	}
	return lx.src[start:lx.pos], nil
}

func (lx *lexer) next() (Token, error) {
	tok := Token{Offset: lx.pos, Line: lx.line, Column: lx.col}
	rest := lx.src[lx.pos:]
	r, _ := utf8.DecodeRuneInString(rest)

	switch {
	case isIdentStart(r):
		end := 0
		for end < len(rest) {
			c, size := utf8.DecodeRuneInString(rest[end:])
			if !isIdentPart(c) {
				break
			}
			end += size
		}
		tok.Kind = TokWord
		tok.Text = rest[:end]
	case unicode.IsDigit(r) || (r == '.' && len(rest) > 1 && isDigit(rest[1])):
		tok.Kind = TokNumber
		tok.Text = scanNumber(rest)
	case r == '\'':
		text, err := lx.scanQuoted(rest, '\'')
		if err != nil {
			return tok, err
		}
		tok.Kind = TokString
		tok.Text = text
	case r == '"':
		text, err := lx.scanQuoted(rest, '"')
		if err != nil {
			return tok, err
		}
		tok.Kind = TokQuotedIdent
		if lx.doubleQuoteString {
			tok.Kind = TokString
		}
		tok.Text = text
	case r == '`':
		text, err := lx.scanQuoted(rest, '`')
		if err != nil {
			return tok, err
		}
		tok.Kind = TokQuotedIdent
		tok.Text = text
	default:
		for _, op := range operators {
			if strings.HasPrefix(rest, op) {
				tok.Kind = TokOperator
				tok.Text = op
				break
			}
		}
		if tok.Text == "" {
			return tok, lx.errorf("unexpected character %q", r)
		}
	}
	lx.advance(len(tok.Text))
	return tok, nil
}

func (lx *lexer) scanQuoted(rest string, quote byte) (string, error) {
	i := 1
	for i < len(rest) {
		switch {
		case rest[i] == '\\' && quote == '\'' && i+1 < len(rest):
			i += 2
		case rest[i] == quote && i+1 < len(rest) && rest[i+1] == quote:
			i += 2
		case rest[i] == quote:
			return rest[:i+1], nil
		default:
			i++
		}
	}
	return "", lx.errorf("unterminated quoted text")
}

func scanNumber(s string) string {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return s[:i]
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || r == '#' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
