// Package sql_translator puts the parsers, the knowledge store and the
// rewrite engine together behind one manager shared by the HTTP API, the
// MCP server and the CLI.
package sql_translator

import (
	"context"

	errors "gopkg.in/src-d/go-errors.v1"

	"cracksql/internal/dialect"
	"cracksql/internal/model"
	"cracksql/internal/rewrite"
	"cracksql/internal/signature"
)

var (
	// ErrEmptyStatement is returned for blank input.
	ErrEmptyStatement = errors.NewKind("empty SQL statement")

	// ErrInvalidStatement is returned by Validate.
	ErrInvalidStatement = errors.NewKind("statement is not valid %s")
)

// SQLTranslator defines the interface for SQL dialect translation
type SQLTranslator interface {
	// Translate rewrites a statement from one dialect into another.
	Translate(ctx context.Context, req Request) (*rewrite.Result, error)

	// Signature derives the signature of targets under rule.
	Signature(d dialect.Dialect, rule string, targets []string) (*signature.Tree, error)

	// Pieces lists the catalogued constructs a statement uses.
	Pieces(sql string, d, target dialect.Dialect) ([]model.PieceInfo, error)

	// SupportedDialects returns a list of supported SQL dialects
	SupportedDialects() []string

	// Validate checks if the SQL is valid for the given dialect
	Validate(sql string, d dialect.Dialect) error
}

// Request is one translation.
type Request struct {
	SQL    string
	Source dialect.Dialect
	Target dialect.Dialect
	// Executor, when set and execution is enabled, verifies candidates
	// against a live target database.
	Executor rewrite.Executor
	// Oracle overrides the manager's oracle for this request.
	Oracle rewrite.Oracle
	// Config overrides the manager's session bounds when non-nil.
	Config *rewrite.Config
}
