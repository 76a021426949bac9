package parser

import (
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"

	"cracksql/internal/dialect"
	"cracksql/internal/syntax"
)

// Checked is a Parser whose successful parses are confirmed by a second,
// fuller MySQL parser. The embedded grammar covers the statement shapes the
// catalogs talk about; vitess knows the rest of MySQL and catches answers
// that only look valid to the smaller grammar.
type Checked struct {
	*Parser
	vt *sqlparser.Parser
}

// NewChecked returns a Checked parser for MySQL.
func NewChecked() (*Checked, error) {
	p, err := New(dialect.MySQL)
	if err != nil {
		return nil, err
	}
	return &Checked{Parser: p, vt: sqlparser.NewTestParser()}, nil
}

// Parse implements rewrite.Parser.
func (c *Checked) Parse(sql string) (*syntax.Tree, error) {
	tree, err := c.Parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	if _, err := c.vt.Parse(strings.TrimSuffix(strings.TrimSpace(sql), ";")); err != nil {
		return nil, ErrParse.Wrap(err, "mysql")
	}
	return tree, nil
}

// SQLParser is what both Parser and Checked provide.
type SQLParser interface {
	Parse(sql string) (*syntax.Tree, error)
}

// ForTarget returns the parser used to verify statements in d.
func ForTarget(d dialect.Dialect) (SQLParser, error) {
	if d == dialect.MySQL {
		c, err := NewChecked()
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	p, err := New(d)
	if err != nil {
		return nil, err
	}
	return p, nil
}
