package rewrite

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cracksql/internal/dialect"
	"cracksql/internal/masker"
	"cracksql/internal/matcher"
)

// Options wires an Engine to its collaborators.
type Options struct {
	Source dialect.Dialect
	Target dialect.Dialect

	SourceParser Parser
	TargetParser Parser
	// Catalog is the source dialect catalog pieces are matched against.
	Catalog matcher.Catalog
	// TargetCatalog decides which pieces already conform to the target.
	TargetCatalog matcher.Target
	Oracle        Oracle
	// Executor is optional; without it verification only parses.
	Executor Executor
	// Locator maps verification errors to a position. Defaults to the
	// target dialect locator.
	Locator dialect.ErrorLocator

	Config Config
	Logger logrus.FieldLogger
}

// Engine translates statements from one dialect to another. It holds no
// per-statement state and may be shared.
type Engine struct {
	opts     Options
	classify masker.Classifier
	log      logrus.FieldLogger
}

// New returns an Engine.
func New(opts Options) (*Engine, error) {
	switch {
	case !opts.Source.Valid() || !opts.Target.Valid():
		return nil, ErrEngineConfig.New("source and target dialects are required")
	case opts.SourceParser == nil || opts.TargetParser == nil:
		return nil, ErrEngineConfig.New("parsers are required")
	case opts.Catalog == nil || opts.TargetCatalog == nil:
		return nil, ErrEngineConfig.New("catalogs are required")
	case opts.Oracle == nil:
		return nil, ErrEngineConfig.New("an oracle is required")
	}
	if opts.Locator == nil {
		opts.Locator = dialect.Locator(opts.Target)
	}
	if opts.Config.MaxIterations <= 0 {
		opts.Config.MaxIterations = DefaultConfig().MaxIterations
	}
	if opts.Config.MaxRetry < 0 {
		opts.Config.MaxRetry = 0
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		opts:     opts,
		classify: masker.ForDialect(opts.Source),
		log: log.WithFields(logrus.Fields{
			"source": opts.Source,
			"target": opts.Target,
		}),
	}, nil
}

// Source returns the dialect statements are translated from.
func (e *Engine) Source() dialect.Dialect {
	return e.opts.Source
}

// Target returns the dialect statements are translated to.
func (e *Engine) Target() dialect.Dialect {
	return e.opts.Target
}

// Config returns the session bounds in use.
func (e *Engine) Config() Config {
	return e.opts.Config
}

// Translate rewrites sql. The returned error is only set when sql does not
// parse in the source dialect; every other failure yields a Result holding
// CannotTranslate.
func (e *Engine) Translate(ctx context.Context, sql string) (*Result, error) {
	start := time.Now()
	tree, err := e.opts.SourceParser.Parse(sql)
	if err != nil {
		return nil, err
	}

	if e.opts.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Config.Timeout)
		defer cancel()
	}

	id := uuid.New().String()
	s := &session{
		engine: e,
		tree:   tree,
		hints:  make(map[matcher.PieceID][]string),
		seen:   make(map[string]matcher.PieceID),
		last:   matcher.NoPiece,
		log:    e.log.WithField("session", id),
		result: &Result{
			Session: id,
			Source:  e.opts.Source,
			Target:  e.opts.Target,
			Input:   sql,
		},
	}
	s.enter(StateParsed)
	s.run(ctx)
	s.result.Elapsed = time.Since(start)
	return s.result, nil
}
