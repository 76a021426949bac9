package sql_translator

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"cracksql/internal/dialect"
	"cracksql/internal/knowledge"
	"cracksql/internal/matcher"
	"cracksql/internal/middleware"
	"cracksql/internal/model"
	"cracksql/internal/parser"
	"cracksql/internal/rewrite"
	"cracksql/internal/signature"
)

// Options configure a SQLTranslationManager.
type Options struct {
	Store *knowledge.Store
	// Oracle answers snippet translations. Defaults to a RuleOracle.
	Oracle rewrite.Oracle
	Engine rewrite.Config
	Logger logrus.FieldLogger
}

// SQLTranslationManager manages SQL dialect translation
type SQLTranslationManager struct {
	store  *knowledge.Store
	oracle rewrite.Oracle
	engine rewrite.Config
	log    logrus.FieldLogger

	mu      sync.Mutex
	parsers map[dialect.Dialect]*parser.Parser
	targets map[dialect.Dialect]parser.SQLParser
}

var _ SQLTranslator = (*SQLTranslationManager)(nil)

// NewSQLTranslationManager creates a new SQL translation manager
func NewSQLTranslationManager(opts Options) *SQLTranslationManager {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	o := opts.Oracle
	if o == nil {
		o = NewRuleOracle()
	}
	return &SQLTranslationManager{
		store:   opts.Store,
		oracle:  o,
		engine:  opts.Engine,
		log:     log.WithField("component", "translator"),
		parsers: make(map[dialect.Dialect]*parser.Parser),
		targets: make(map[dialect.Dialect]parser.SQLParser),
	}
}

// EngineConfig returns the default session bounds.
func (stm *SQLTranslationManager) EngineConfig() rewrite.Config {
	return stm.engine
}

func (stm *SQLTranslationManager) sourceParser(d dialect.Dialect) (*parser.Parser, error) {
	stm.mu.Lock()
	defer stm.mu.Unlock()
	if p, ok := stm.parsers[d]; ok {
		return p, nil
	}
	p, err := parser.New(d)
	if err != nil {
		return nil, err
	}
	stm.parsers[d] = p
	return p, nil
}

func (stm *SQLTranslationManager) targetParser(d dialect.Dialect) (parser.SQLParser, error) {
	stm.mu.Lock()
	defer stm.mu.Unlock()
	if p, ok := stm.targets[d]; ok {
		return p, nil
	}
	p, err := parser.ForTarget(d)
	if err != nil {
		return nil, err
	}
	stm.targets[d] = p
	return p, nil
}

// Translate translates req.SQL. A statement that cannot be translated is
// not an error; the Result says so.
func (stm *SQLTranslationManager) Translate(ctx context.Context, req Request) (*rewrite.Result, error) {
	if strings.TrimSpace(req.SQL) == "" {
		return nil, ErrEmptyStatement.New()
	}
	for _, d := range []dialect.Dialect{req.Source, req.Target} {
		if !d.Valid() {
			return nil, dialect.ErrUnknownDialect.New(string(d))
		}
	}

	sp, err := stm.sourceParser(req.Source)
	if err != nil {
		return nil, err
	}
	if req.Source == req.Target {
		// Nothing to rewrite, but the statement must still parse.
		if _, err := sp.Parse(req.SQL); err != nil {
			return nil, err
		}
		return &rewrite.Result{
			Source:    req.Source,
			Target:    req.Target,
			Input:     req.SQL,
			SQL:       req.SQL,
			Succeeded: true,
			States:    []rewrite.State{rewrite.StateParsed, rewrite.StateSucceeded},
		}, nil
	}

	tp, err := stm.targetParser(req.Target)
	if err != nil {
		return nil, err
	}
	sc, err := stm.store.Catalog(req.Source)
	if err != nil {
		return nil, err
	}
	tc, err := stm.store.Catalog(req.Target)
	if err != nil {
		return nil, err
	}

	cfg := stm.engine
	if req.Config != nil {
		cfg = *req.Config
	}
	cfg.Execute = cfg.Execute && req.Executor != nil
	o := stm.oracle
	if req.Oracle != nil {
		o = req.Oracle
	}

	engine, err := rewrite.New(rewrite.Options{
		Source:        req.Source,
		Target:        req.Target,
		SourceParser:  sp,
		TargetParser:  tp,
		Catalog:       sc,
		TargetCatalog: tc,
		Oracle:        o,
		Executor:      req.Executor,
		Config:        cfg,
		Logger:        stm.log,
	})
	if err != nil {
		return nil, err
	}

	res, err := engine.Translate(ctx, req.SQL)
	if err != nil {
		return nil, err
	}

	kinds := make([]string, 0, len(res.Pieces))
	for _, p := range res.Pieces {
		kinds = append(kinds, p.Kind)
	}
	middleware.RecordTranslation(middleware.TranslationSample{
		Source:     string(res.Source),
		Target:     string(res.Target),
		Succeeded:  res.Succeeded,
		Duration:   res.Elapsed,
		OracleCall: len(res.Exchanges),
		Lifts:      len(res.Lifts),
		PieceKinds: kinds,
	})
	stm.log.WithFields(logrus.Fields{
		"session":    res.Session,
		"source":     res.Source,
		"target":     res.Target,
		"succeeded":  res.Succeeded,
		"iterations": res.Iterations,
		"elapsed":    res.Elapsed,
	}).Info("Translation finished")
	return res, nil
}

// Signature derives the signature of targets under rule in d.
func (stm *SQLTranslationManager) Signature(d dialect.Dialect, rule string, targets []string) (*signature.Tree, error) {
	if !d.Valid() {
		return nil, dialect.ErrUnknownDialect.New(string(d))
	}
	return stm.store.Signature(d, rule, targets)
}

// Pieces parses sql in d and lists the catalogued constructs it uses. When
// target is set, pieces already valid there are flagged compatible.
func (stm *SQLTranslationManager) Pieces(sql string, d, target dialect.Dialect) ([]model.PieceInfo, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, ErrEmptyStatement.New()
	}
	if !d.Valid() {
		return nil, dialect.ErrUnknownDialect.New(string(d))
	}
	p, err := stm.sourceParser(d)
	if err != nil {
		return nil, err
	}
	tree, err := p.Parse(sql)
	if err != nil {
		return nil, err
	}
	sc, err := stm.store.Catalog(d)
	if err != nil {
		return nil, err
	}

	forest := matcher.MatchAll(tree, sc)
	if target != "" {
		if !target.Valid() {
			return nil, dialect.ErrUnknownDialect.New(string(target))
		}
		tc, err := stm.store.Catalog(target)
		if err != nil {
			return nil, err
		}
		forest.MarkCompatible(tc)
	}

	var out []model.PieceInfo
	for _, pc := range forest.Pieces() {
		if pc.Kind == matcher.KindRoot {
			continue
		}
		info := model.PieceInfo{
			ID:          int(pc.ID),
			Keyword:     pc.Keyword(),
			Kind:        pc.Kind.String(),
			Text:        tree.Render(pc.Node),
			Depth:       forest.Depth(pc.ID),
			Father:      int(pc.Father),
			Description: pc.Description,
			Compatible:  pc.State == matcher.Compatible,
		}
		for _, sub := range pc.SubPieces {
			info.SubPieces = append(info.SubPieces, int(sub))
		}
		for _, e := range pc.Candidates {
			info.Candidates = append(info.Candidates, e.Name)
		}
		out = append(out, info)
	}
	return out, nil
}

// SupportedDialects returns a list of supported SQL dialects
func (stm *SQLTranslationManager) SupportedDialects() []string {
	var out []string
	for _, d := range dialect.Supported() {
		out = append(out, string(d))
	}
	return out
}

// Validate checks if the SQL is valid for the given dialect
func (stm *SQLTranslationManager) Validate(sql string, d dialect.Dialect) error {
	if strings.TrimSpace(sql) == "" {
		return ErrEmptyStatement.New()
	}
	p, err := stm.targetParser(d)
	if err != nil {
		return err
	}
	if _, err := p.Parse(sql); err != nil {
		return ErrInvalidStatement.Wrap(err, d)
	}
	return nil
}
