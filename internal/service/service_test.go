package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cracksql/internal/database"
	"cracksql/internal/knowledge"
	"cracksql/internal/model"
	"cracksql/internal/repository"
	"cracksql/internal/rewrite"
	"cracksql/internal/security"
	"cracksql/internal/utils"
	"cracksql/internal/utils/sql_translator"
)

type memDataSources struct {
	mu   sync.Mutex
	byID map[string]*model.DataSource
}

func newMemDataSources() *memDataSources {
	return &memDataSources{byID: make(map[string]*model.DataSource)}
}

func (m *memDataSources) Create(_ context.Context, ds *model.DataSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.byID {
		if other.Name == ds.Name {
			return repository.ErrDataSourceExists.New(ds.Name)
		}
	}
	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	cp := *ds
	m.byID[ds.ID] = &cp
	return nil
}

func (m *memDataSources) GetByID(_ context.Context, id string) (*model.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrDataSourceNotFound.New(id)
	}
	cp := *ds
	return &cp, nil
}

func (m *memDataSources) GetByName(_ context.Context, name string) (*model.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ds := range m.byID {
		if ds.Name == name {
			cp := *ds
			return &cp, nil
		}
	}
	return nil, repository.ErrDataSourceNotFound.New(name)
}

func (m *memDataSources) GetAll(_ context.Context, status model.DataSourceStatus, limit, offset int) ([]*model.DataSource, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.DataSource
	for _, ds := range m.byID {
		if status == "" || ds.Status == status {
			cp := *ds
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memDataSources) Update(_ context.Context, ds *model.DataSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ds
	m.byID[ds.ID] = &cp
	return nil
}

func (m *memDataSources) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrDataSourceNotFound.New(id)
	}
	delete(m.byID, id)
	return nil
}

func (m *memDataSources) SetStatus(_ context.Context, id string, status model.DataSourceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.byID[id]
	if !ok {
		return repository.ErrDataSourceNotFound.New(id)
	}
	ds.Status = status
	return nil
}

func (m *memDataSources) GetActiveByType(_ context.Context, t model.DatabaseType) ([]*model.DataSource, error) {
	return nil, nil
}

type memHistory struct {
	records []*model.TranslationRecord
}

func (m *memHistory) Create(_ context.Context, r *model.TranslationRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memHistory) GetByID(_ context.Context, id string) (*model.TranslationRecord, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, repository.ErrTranslationNotFound.New(id)
}

func (m *memHistory) List(_ context.Context, source, target string, limit, offset int) ([]*model.TranslationRecord, int64, error) {
	return m.records, int64(len(m.records)), nil
}

func (m *memHistory) Stats(context.Context) (*model.TranslationStats, error) {
	st := &model.TranslationStats{ByPair: make(map[string]int64)}
	for _, r := range m.records {
		st.Total++
		if r.Succeeded {
			st.Succeeded++
		} else {
			st.Failed++
		}
		st.ByPair[r.Source+"->"+r.Target]++
	}
	return st, nil
}

func newVault(t *testing.T) *security.CredentialVault {
	t.Helper()
	v, err := security.NewCredentialVaultFromSecret("test-secret")
	require.NoError(t, err)
	return v
}

func TestDataSourceLifecycle(t *testing.T) {
	logger, _ := test.NewNullLogger()
	repo := newMemDataSources()
	vault := newVault(t)
	pool := database.NewConnectionPool(nil, vault, logger)
	svc := NewDataSourceService(repo, pool, vault, logger)
	ctx := context.Background()

	ds, err := svc.CreateDataSource(ctx, &CreateDataSourceRequest{
		Name: "warehouse",
		Type: model.DatabaseTypePostgreSQL,
		Config: model.DataSourceConfig{
			Host: "db.local", Database: "app", Username: "reader", Password: "s3cret",
		},
	})
	require.NoError(t, err)
	assert.Empty(t, ds.Config.Password)
	assert.Equal(t, model.DataSourceStatusActive, ds.Status)

	stored, err := repo.GetByID(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 5432, stored.Config.Port)
	assert.NotEqual(t, "s3cret", stored.Config.Password)
	plain, err := vault.Decrypt(stored.Config.Password)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)

	_, err = svc.CreateDataSource(ctx, &CreateDataSourceRequest{
		Name: "warehouse", Type: model.DatabaseTypeMySQL,
		Config: model.DataSourceConfig{Host: "h", Database: "d", Username: "u"},
	})
	assert.True(t, repository.ErrDataSourceExists.Is(err))

	// Updating without a password keeps the stored one.
	name := "warehouse-2"
	_, err = svc.UpdateDataSource(ctx, ds.ID, &UpdateDataSourceRequest{
		Name:   &name,
		Config: &model.DataSourceConfig{Host: "db2.local", Database: "app", Username: "reader"},
	})
	require.NoError(t, err)
	updated, err := repo.GetByID(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "warehouse-2", updated.Name)
	assert.Equal(t, stored.Config.Password, updated.Config.Password)

	require.NoError(t, svc.DeactivateDataSource(ctx, ds.ID))
	got, err := svc.GetDataSource(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DataSourceStatusInactive, got.Status)

	_, err = svc.GetDataSource(ctx, "nope")
	assert.True(t, utils.IsErrorType(err, utils.ErrCodeInvalidUUID))

	require.NoError(t, svc.DeleteDataSource(ctx, ds.ID))
	_, err = svc.GetDataSource(ctx, ds.ID)
	assert.True(t, repository.ErrDataSourceNotFound.Is(err))
}

func TestDataSourceRejectsIncompleteConfig(t *testing.T) {
	logger, _ := test.NewNullLogger()
	svc := NewDataSourceService(newMemDataSources(), database.NewConnectionPool(nil, nil, logger), nil, logger)

	_, err := svc.CreateDataSource(context.Background(), &CreateDataSourceRequest{
		Name: "x", Type: model.DatabaseTypeOracle,
		Config: model.DataSourceConfig{Host: "h", Username: "u"},
	})
	assert.True(t, utils.IsErrorType(err, utils.ErrCodeValidationFailed))
}

func newTranslationService(t *testing.T, history repository.TranslationRepository, ds repository.DataSourceRepository) TranslationService {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store, err := knowledge.NewStore(knowledge.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := rewrite.DefaultConfig()
	cfg.Execute = true
	mgr := sql_translator.NewSQLTranslationManager(sql_translator.Options{
		Store:  store,
		Engine: cfg,
		Logger: logger,
	})
	var pool *database.ConnectionPool
	if ds != nil {
		pool = database.NewConnectionPool(nil, nil, logger)
	}
	return NewTranslationService(TranslationServiceOptions{
		Manager:     mgr,
		DataSources: ds,
		History:     history,
		Pool:        pool,
		Guard:       security.NewStatementGuard(0),
		Logger:      logger,
	})
}

func TestTranslateRecordsHistory(t *testing.T) {
	history := &memHistory{}
	svc := newTranslationService(t, history, nil)
	ctx := context.Background()

	res, err := svc.Translate(ctx, &model.TranslateRequest{
		SQL:    "SELECT IFNULL(a, 0) FROM t LIMIT 1, 2",
		Source: "mysql",
		Target: "pg",
	})
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.Reason)
	assert.Equal(t, "SELECT COALESCE(a, 0) FROM t LIMIT 2 OFFSET 1", res.SQL)

	require.Len(t, history.records, 1)
	rec := history.records[0]
	assert.Equal(t, res.Session, rec.Session)
	assert.Equal(t, res.SQL, rec.Output)
	assert.True(t, rec.Succeeded)

	got, err := svc.GetTranslation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Succeeded)
}

func TestTranslateErrors(t *testing.T) {
	svc := newTranslationService(t, nil, newMemDataSources())
	ctx := context.Background()

	_, err := svc.Translate(ctx, &model.TranslateRequest{SQL: "SELECT 1", Source: "db2", Target: "mysql"})
	assert.Equal(t, utils.ErrCodeUnsupportedDialect, utils.FromError(err).Code)

	_, err = svc.Translate(ctx, &model.TranslateRequest{
		SQL: "SELECT a FROM t", Source: "mysql", Target: "postgresql",
		DataSourceID: uuid.New().String(),
	})
	assert.True(t, repository.ErrDataSourceNotFound.Is(err))

	_, err = svc.ListTranslations(ctx, &ListTranslationsRequest{})
	assert.True(t, utils.IsErrorType(err, utils.ErrCodeServiceUnavailable))
}

func TestTranslateRejectsInactiveDataSource(t *testing.T) {
	repo := newMemDataSources()
	ds := &model.DataSource{Name: "pg", Type: model.DatabaseTypePostgreSQL, Status: model.DataSourceStatusInactive}
	require.NoError(t, repo.Create(context.Background(), ds))

	svc := newTranslationService(t, nil, repo)
	_, err := svc.Translate(context.Background(), &model.TranslateRequest{
		SQL: "SELECT a FROM t", Source: "mysql", Target: "postgresql", DataSourceID: ds.ID,
	})
	assert.True(t, utils.IsErrorType(err, utils.ErrCodeDataSourceInactive))
}

func TestSignatureAndPieces(t *testing.T) {
	svc := newTranslationService(t, nil, nil)
	ctx := context.Background()

	sig, err := svc.Signature(ctx, &model.SignatureRequest{Dialect: "mysql", Rule: "limit_clause", Targets: []string{"LIMIT", ","}})
	require.NoError(t, err)
	assert.NotEmpty(t, sig.Signature)
	assert.Positive(t, sig.Size)

	pieces, err := svc.Pieces(ctx, &model.PiecesRequest{SQL: "SELECT IFNULL(a, 0) FROM t", Dialect: "mysql", Target: "postgresql"})
	require.NoError(t, err)
	assert.NotEmpty(t, pieces)

	assert.Len(t, svc.SupportedDialects(), 3)
}

func TestClassify(t *testing.T) {
	err := classify(database.ErrConnectionFailed.New("pg"))
	assert.True(t, utils.IsErrorType(err, utils.ErrCodeConnectionFailed))

	err = classify(security.ErrNotReadOnly.New("DELETE"))
	assert.True(t, utils.IsErrorType(err, utils.ErrCodeStatementRejected))
	assert.True(t, IsStatementRejected(security.ErrMultipleStatements.New()))

	plain := repository.ErrDataSourceNotFound.New("x")
	assert.Equal(t, plain, classify(plain))
}
