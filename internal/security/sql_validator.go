package security

import (
	"fmt"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"
	"vitess.io/vitess/go/vt/sqlparser"

	"cracksql/internal/dialect"
	"cracksql/internal/parser"
)

var (
	ErrEmptyStatement      = errors.NewKind("statement cannot be empty")
	ErrStatementTooLong    = errors.NewKind("statement exceeds %d bytes")
	ErrNotReadOnly         = errors.NewKind("only SELECT statements may run against a target, found %s")
	ErrMultipleStatements  = errors.NewKind("only one statement may run at a time")
	ErrUnreadableStatement = errors.NewKind("statement cannot be tokenized")
)

// writeKeywords never appear in a read-only statement outside of string
// literals and quoted identifiers.
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "REPLACE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true, "RENAME": true,
	"GRANT": true, "REVOKE": true, "COMMIT": true, "ROLLBACK": true, "SAVEPOINT": true,
	"CALL": true, "EXEC": true, "EXECUTE": true, "LOCK": true, "OUTFILE": true, "DUMPFILE": true,
}

// StatementGuard decides whether a translated statement may be executed
// against a live target database for verification.
type StatementGuard struct {
	maxLength int
	vt        *sqlparser.Parser
}

// NewStatementGuard creates a guard. maxLength <= 0 picks 64 KiB.
func NewStatementGuard(maxLength int) *StatementGuard {
	if maxLength <= 0 {
		maxLength = 64 << 10
	}
	return &StatementGuard{
		maxLength: maxLength,
		vt:        sqlparser.NewTestParser(),
	}
}

// Check returns nil when sql is a single read-only statement.
func (g *StatementGuard) Check(d dialect.Dialect, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return ErrEmptyStatement.New()
	}
	if len(sql) > g.maxLength {
		return ErrStatementTooLong.New(g.maxLength)
	}

	toks, err := parser.Lex(sql, d == dialect.MySQL)
	if err != nil {
		return ErrUnreadableStatement.Wrap(err)
	}
	if len(toks) == 0 {
		return ErrEmptyStatement.New()
	}
	for i, tok := range toks {
		if tok.Kind == parser.TokOperator && tok.Text == ";" {
			return ErrMultipleStatements.New()
		}
		if tok.Kind != parser.TokWord || !writeKeywords[strings.ToUpper(tok.Text)] {
			continue
		}
		// REPLACE(...) and friends are functions.
		if i+1 < len(toks) && toks[i+1].Text == "(" {
			continue
		}
		return ErrNotReadOnly.New(strings.ToUpper(tok.Text))
	}
	if first := strings.ToUpper(toks[0].Text); first != "SELECT" && first != "WITH" && first != "(" {
		return ErrNotReadOnly.New(first)
	}

	if d != dialect.MySQL {
		return nil
	}
	stmt, err := g.vt.Parse(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if err != nil {
		return parser.ErrParse.Wrap(err, d)
	}
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return nil
	}
	return ErrNotReadOnly.New(strings.TrimPrefix(fmt.Sprintf("%T", stmt), "*sqlparser."))
}
