package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"cracksql/internal/database"
	"cracksql/internal/dialect"
	"cracksql/internal/model"
	"cracksql/internal/repository"
	"cracksql/internal/rewrite"
	"cracksql/internal/utils"
	"cracksql/internal/utils/sql_translator"
)

// TranslationService is the use-case layer over the translation manager:
// it resolves data sources into executors and keeps a history of outcomes.
type TranslationService interface {
	Translate(ctx context.Context, req *model.TranslateRequest) (*rewrite.Result, error)
	Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error)
	Signature(ctx context.Context, req *model.SignatureRequest) (*model.SignatureResponse, error)
	Pieces(ctx context.Context, req *model.PiecesRequest) ([]model.PieceInfo, error)
	SupportedDialects() []string
	ListTranslations(ctx context.Context, req *ListTranslationsRequest) (*ListTranslationsResponse, error)
	GetTranslation(ctx context.Context, id string) (*model.TranslationRecord, error)
	Stats(ctx context.Context) (*model.TranslationStats, error)
}

// VerifyRequest runs a statement against a data source without keeping
// its effects.
type VerifyRequest struct {
	SQL          string `json:"sql" validate:"required"`
	DataSourceID string `json:"dataSourceId" validate:"required,uuid4"`
}

type VerifyResponse struct {
	Dialect  string `json:"dialect"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
	Elapsed  int64  `json:"elapsedMs"`
}

type ListTranslationsRequest struct {
	Source string `form:"source" validate:"omitempty,oneof=mysql postgresql oracle"`
	Target string `form:"target" validate:"omitempty,oneof=mysql postgresql oracle"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
}

type ListTranslationsResponse struct {
	Translations []*model.TranslationRecord `json:"translations"`
	Total        int64                      `json:"total"`
	Limit        int                        `json:"limit"`
	Offset       int                        `json:"offset"`
}

// TranslationServiceOptions wires a TranslationService. DataSources, Pool
// and History are nil when no metadata database is configured.
type TranslationServiceOptions struct {
	Manager     *sql_translator.SQLTranslationManager
	DataSources repository.DataSourceRepository
	History     repository.TranslationRepository
	Pool        *database.ConnectionPool
	Guard       database.Guard
	Logger      logrus.FieldLogger
}

type translationService struct {
	manager     *sql_translator.SQLTranslationManager
	dataSources repository.DataSourceRepository
	history     repository.TranslationRepository
	pool        *database.ConnectionPool
	guard       database.Guard
	log         logrus.FieldLogger
}

// NewTranslationService creates a TranslationService.
func NewTranslationService(opts TranslationServiceOptions) TranslationService {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &translationService{
		manager:     opts.Manager,
		dataSources: opts.DataSources,
		history:     opts.History,
		pool:        opts.Pool,
		guard:       opts.Guard,
		log:         log.WithField("component", "translation_service"),
	}
}

func unavailable(what string) error {
	return utils.NewErrorBuilder(utils.ErrCodeServiceUnavailable).
		WithDetails(what + " requires a configured metadata database").
		Build()
}

// executor resolves a data source id. The connection is opened here so
// that an unreachable database fails the request instead of every
// candidate statement.
func (s *translationService) executor(ctx context.Context, id string) (*database.Executor, *model.DataSource, error) {
	if s.dataSources == nil || s.pool == nil {
		return nil, nil, unavailable("data sources")
	}
	ds, err := s.dataSources.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	x, err := database.NewExecutor(s.pool, ds, s.guard)
	if err != nil {
		return nil, nil, classify(err)
	}
	if err := x.Connect(ctx); err != nil {
		return nil, nil, classify(err)
	}
	return x, ds, nil
}

func (s *translationService) Translate(ctx context.Context, req *model.TranslateRequest) (*rewrite.Result, error) {
	src, err := dialect.Parse(req.Source)
	if err != nil {
		return nil, err
	}
	tgt, err := dialect.Parse(req.Target)
	if err != nil {
		return nil, err
	}

	cfg := s.manager.EngineConfig()
	if req.Timeout > 0 {
		cfg.Timeout = time.Duration(req.Timeout) * time.Second
	}
	treq := sql_translator.Request{SQL: req.SQL, Source: src, Target: tgt, Config: &cfg}

	if req.DataSourceID != "" && cfg.Execute {
		x, ds, err := s.executor(ctx, req.DataSourceID)
		if err != nil {
			return nil, err
		}
		if x.Dialect() != tgt {
			return nil, utils.NewValidationError("data source does not match the target dialect",
				ds.Name+" speaks "+string(x.Dialect()))
		}
		treq.Executor = x
	}

	res, err := s.manager.Translate(ctx, treq)
	if err != nil {
		return nil, classify(err)
	}
	s.record(ctx, req, res)
	return res, nil
}

// record keeps the outcome. A failed write is logged but does not fail the
// translation.
func (s *translationService) record(ctx context.Context, req *model.TranslateRequest, res *rewrite.Result) {
	if s.history == nil {
		return
	}
	rec := &model.TranslationRecord{
		Session:      res.Session,
		Source:       string(res.Source),
		Target:       string(res.Target),
		Input:        res.Input,
		Output:       res.SQL,
		Succeeded:    res.Succeeded,
		Reason:       res.Reason,
		Iterations:   res.Iterations,
		Lifts:        len(res.Lifts),
		DataSourceID: req.DataSourceID,
		ElapsedMs:    res.Elapsed.Milliseconds(),
	}
	if err := s.history.Create(ctx, rec); err != nil {
		s.log.WithError(err).WithField("session", res.Session).Warn("Failed to store translation")
	}
}

// Verify runs one statement through the same guard and rolled back
// transaction translations are verified with.
func (s *translationService) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	x, _, err := s.executor(ctx, req.DataSourceID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp := &VerifyResponse{Dialect: string(x.Dialect()), Accepted: true}
	if err := x.Execute(ctx, req.SQL); err != nil {
		if IsStatementRejected(err) {
			return nil, classify(err)
		}
		resp.Accepted = false
		resp.Error = err.Error()
	}
	resp.Elapsed = time.Since(start).Milliseconds()
	return resp, nil
}

func (s *translationService) Signature(_ context.Context, req *model.SignatureRequest) (*model.SignatureResponse, error) {
	d, err := dialect.Parse(req.Dialect)
	if err != nil {
		return nil, err
	}
	sig, err := s.manager.Signature(d, req.Rule, req.Targets)
	if err != nil {
		return nil, err
	}
	return &model.SignatureResponse{
		Dialect:   string(d),
		Rule:      req.Rule,
		Signature: sig.String(),
		Size:      sig.Size(),
	}, nil
}

func (s *translationService) Pieces(_ context.Context, req *model.PiecesRequest) ([]model.PieceInfo, error) {
	d, err := dialect.Parse(req.Dialect)
	if err != nil {
		return nil, err
	}
	var target dialect.Dialect
	if req.Target != "" {
		if target, err = dialect.Parse(req.Target); err != nil {
			return nil, err
		}
	}
	pieces, err := s.manager.Pieces(req.SQL, d, target)
	if err != nil {
		return nil, classify(err)
	}
	return pieces, nil
}

func (s *translationService) SupportedDialects() []string {
	return s.manager.SupportedDialects()
}

func (s *translationService) ListTranslations(ctx context.Context, req *ListTranslationsRequest) (*ListTranslationsResponse, error) {
	if s.history == nil {
		return nil, unavailable("translation history")
	}
	if req.Limit == 0 {
		req.Limit = 20
	}
	records, total, err := s.history.List(ctx, req.Source, req.Target, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	return &ListTranslationsResponse{
		Translations: records,
		Total:        total,
		Limit:        req.Limit,
		Offset:       req.Offset,
	}, nil
}

func (s *translationService) GetTranslation(ctx context.Context, id string) (*model.TranslationRecord, error) {
	if s.history == nil {
		return nil, unavailable("translation history")
	}
	if !utils.IsValidUUID(id) {
		return nil, invalidID(id)
	}
	return s.history.GetByID(ctx, id)
}

func (s *translationService) Stats(ctx context.Context) (*model.TranslationStats, error) {
	if s.history == nil {
		return nil, unavailable("translation history")
	}
	return s.history.Stats(ctx)
}
