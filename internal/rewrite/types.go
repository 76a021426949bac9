// Package rewrite drives the translation of one statement: pieces are
// rewritten innermost first through an oracle, spliced back, verified
// against the target dialect, retried and lifted to their enclosing piece
// when they keep failing.
package rewrite

import (
	"context"
	"fmt"
	"time"

	errors "gopkg.in/src-d/go-errors.v1"

	"cracksql/internal/dialect"
	"cracksql/internal/syntax"
)

// CannotTranslate is the SQL returned when a statement fails terminally.
const CannotTranslate = "Cannot translate!"

var (
	// ErrUnsupportedByOracle is returned by an Oracle that declines a
	// snippet.
	ErrUnsupportedByOracle = errors.NewKind("oracle cannot translate %s")

	// ErrRetryBudgetExceeded is recorded when a piece runs out of retries.
	ErrRetryBudgetExceeded = errors.NewKind("piece %s failed %d times")

	// ErrEngineConfig is returned by New on missing collaborators.
	ErrEngineConfig = errors.NewKind("rewrite engine: %s")
)

// State is a step of the per-statement state machine.
type State string

const (
	StateParsed          State = "Parsed"
	StateMatching        State = "Matching"
	StateAwaitingRewrite State = "AwaitingRewrite"
	StateSubstituting    State = "Substituting"
	StateVerifying       State = "Verifying"
	StateSucceeded       State = "Succeeded"
	StateLifting         State = "Lifting"
	StateFailedTerminal  State = "FailedTerminal"
)

// Request is what the oracle is asked to translate.
type Request struct {
	Keyword     string
	Snippet     string
	Description string
	Detail      string
	Source      dialect.Dialect
	Target      dialect.Dialect
	// Placeholders lists the masked names the reply may reuse verbatim.
	Placeholders []string
	// Hints carries the errors of earlier attempts, oldest first.
	Hints []string
}

// Oracle translates one masked snippet. It returns an error matching
// ErrUnsupportedByOracle to decline.
type Oracle interface {
	TranslateSnippet(ctx context.Context, req Request) (string, error)
}

// Parser parses statements of one dialect.
type Parser interface {
	Parse(sql string) (*syntax.Tree, error)
}

// Executor runs a statement against a target connection.
type Executor interface {
	Execute(ctx context.Context, sql string) error
}

// Config bounds a rewrite session.
type Config struct {
	// MaxRetry is the number of failures a piece may accumulate before
	// the target is lifted to its father.
	MaxRetry int `mapstructure:"max_retry_time" validate:"gte=0"`
	// MaxIterations caps oracle calls per statement.
	MaxIterations int           `mapstructure:"max_iterations" validate:"gte=1"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// Execute verifies rewritten statements against a live database when
	// an Executor is configured.
	Execute     bool `mapstructure:"execute"`
	LiftEnabled bool `mapstructure:"lift_enabled"`
}

// DefaultConfig returns the session bounds used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxRetry:      2,
		MaxIterations: 64,
		Timeout:       2 * time.Minute,
		Execute:       false,
		LiftEnabled:   true,
	}
}

// Exchange is one oracle round trip.
type Exchange struct {
	Piece    string   `json:"piece"`
	Snippet  string   `json:"snippet"`
	Hints    []string `json:"hints,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Error    string   `json:"error,omitempty"`
	Rendered string   `json:"rendered,omitempty"`
}

// Lift documents one escalation to an enclosing piece.
type Lift struct {
	PreExpr  string `json:"pre_expr"`
	LiftExpr string `json:"lift_expr"`
	From     string `json:"from"`
	To       string `json:"to"`
	// Depth is the enclosure depth of the new target; the root piece is 0.
	Depth int `json:"depth"`
	// RetryCount of the new target right after the lift.
	RetryCount int `json:"retry_count"`
}

// UsedPiece is a piece that ended up rewritten.
type UsedPiece struct {
	Keyword string `json:"keyword"`
	Kind    string `json:"kind"`
	Source  string `json:"source"`
	Target  string `json:"target"`
}

// Result is the outcome of a session. A terminal failure is not an error:
// SQL holds CannotTranslate and Reason says why.
type Result struct {
	Session   string          `json:"session"`
	Source    dialect.Dialect `json:"source"`
	Target    dialect.Dialect `json:"target"`
	Input     string          `json:"input"`
	SQL       string          `json:"sql"`
	Succeeded bool            `json:"succeeded"`
	Reason    string          `json:"reason,omitempty"`
	// Exchanges is the ordered oracle log.
	Exchanges  []Exchange    `json:"model_ans_list"`
	Pieces     []UsedPiece   `json:"pieces"`
	Lifts      []Lift        `json:"lifts,omitempty"`
	States     []State       `json:"states"`
	Iterations int           `json:"iterations"`
	Elapsed    time.Duration `json:"elapsed"`
}

func (r *Result) String() string {
	if r.Succeeded {
		return r.SQL
	}
	return fmt.Sprintf("%s (%s)", r.SQL, r.Reason)
}
