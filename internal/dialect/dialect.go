// Package dialect holds per-dialect resources: the embedded grammar
// descriptions, the masking category table and the error locators.
package dialect

import (
	"embed"
	"strings"
	"sync"

	errors "gopkg.in/src-d/go-errors.v1"

	"cracksql/internal/grammar"
)

// Dialect represents a supported SQL dialect.
type Dialect string

const (
	MySQL      Dialect = "mysql"
	PostgreSQL Dialect = "postgresql"
	Oracle     Dialect = "oracle"
)

// ErrUnknownDialect is returned for dialect names outside the supported set.
var ErrUnknownDialect = errors.NewKind("unknown dialect %q")

//go:embed grammars/*.g
var grammarFS embed.FS

var aliases = map[string]Dialect{
	"mysql":      MySQL,
	"mariadb":    MySQL,
	"postgresql": PostgreSQL,
	"postgres":   PostgreSQL,
	"pg":         PostgreSQL,
	"oracle":     Oracle,
	"ora":        Oracle,
}

// Parse normalizes a dialect name.
func Parse(name string) (Dialect, error) {
	d, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", ErrUnknownDialect.New(name)
	}
	return d, nil
}

// Supported returns every dialect in declaration order.
func Supported() []Dialect {
	return []Dialect{MySQL, PostgreSQL, Oracle}
}

func (d Dialect) String() string {
	return string(d)
}

// Valid reports whether d is one of the supported dialects.
func (d Dialect) Valid() bool {
	switch d {
	case MySQL, PostgreSQL, Oracle:
		return true
	}
	return false
}

// GrammarText returns the embedded grammar description of d.
func GrammarText(d Dialect) (string, error) {
	if !d.Valid() {
		return "", ErrUnknownDialect.New(string(d))
	}
	b, err := grammarFS.ReadFile("grammars/" + string(d) + ".g")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type grammarResult struct {
	tree *grammar.Tree
	err  error
}

var (
	grammarMu    sync.Mutex
	grammarCache = map[Dialect]*grammarResult{}
)

// Grammar returns the built grammar tree of d. Trees are built once and
// shared; they are immutable after construction.
func Grammar(d Dialect) (*grammar.Tree, error) {
	grammarMu.Lock()
	defer grammarMu.Unlock()

	if r, ok := grammarCache[d]; ok {
		return r.tree, r.err
	}
	text, err := GrammarText(d)
	if err != nil {
		return nil, err
	}
	tree, err := grammar.Build(string(d), text)
	grammarCache[d] = &grammarResult{tree: tree, err: err}
	return tree, err
}
