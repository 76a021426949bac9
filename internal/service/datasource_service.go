package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"cracksql/internal/database"
	"cracksql/internal/model"
	"cracksql/internal/repository"
	"cracksql/internal/utils"
)

// Vault encrypts stored passwords.
type Vault interface {
	Encrypt(plain string) (string, error)
	Decrypt(encoded string) (string, error)
}

type DataSourceService interface {
	CreateDataSource(ctx context.Context, req *CreateDataSourceRequest) (*model.DataSource, error)
	GetDataSource(ctx context.Context, id string) (*model.DataSource, error)
	GetDataSourceByName(ctx context.Context, name string) (*model.DataSource, error)
	ListDataSources(ctx context.Context, req *ListDataSourcesRequest) (*ListDataSourcesResponse, error)
	UpdateDataSource(ctx context.Context, id string, req *UpdateDataSourceRequest) (*model.DataSource, error)
	DeleteDataSource(ctx context.Context, id string) error
	ActivateDataSource(ctx context.Context, id string) error
	DeactivateDataSource(ctx context.Context, id string) error
	TestDataSource(ctx context.Context, id string) (*database.HealthCheckResult, error)
	TestConnection(ctx context.Context, req *TestConnectionRequest) (*database.HealthCheckResult, error)
}

type dataSourceService struct {
	repo   repository.DataSourceRepository
	pool   *database.ConnectionPool
	health *database.HealthChecker
	vault  Vault
	log    logrus.FieldLogger
}

type CreateDataSourceRequest struct {
	Name   string                 `json:"name" validate:"required,min=1,max=255"`
	Type   model.DatabaseType     `json:"type" validate:"required,oneof=mysql mariadb postgresql oracle"`
	Config model.DataSourceConfig `json:"config" validate:"required"`
}

type UpdateDataSourceRequest struct {
	Name   *string                 `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Config *model.DataSourceConfig `json:"config,omitempty"`
	Status *model.DataSourceStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive error"`
}

// TestConnectionRequest checks a configuration before it is saved.
type TestConnectionRequest struct {
	Type   model.DatabaseType     `json:"type" validate:"required,oneof=mysql mariadb postgresql oracle"`
	Config model.DataSourceConfig `json:"config" validate:"required"`
}

type ListDataSourcesRequest struct {
	Status model.DataSourceStatus `form:"status" validate:"omitempty,oneof=active inactive error"`
	Limit  int                    `form:"limit" validate:"omitempty,min=1,max=100"`
	Offset int                    `form:"offset" validate:"omitempty,min=0"`
}

type ListDataSourcesResponse struct {
	DataSources []*model.DataSource `json:"dataSources"`
	Total       int64               `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

// NewDataSourceService creates a new instance of DataSourceService
func NewDataSourceService(repo repository.DataSourceRepository, pool *database.ConnectionPool, vault Vault, log logrus.FieldLogger) DataSourceService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &dataSourceService{
		repo:   repo,
		pool:   pool,
		health: database.NewHealthChecker(pool),
		vault:  vault,
		log:    log.WithField("component", "datasource_service"),
	}
}

// redact hides the stored password from API responses.
func redact(ds *model.DataSource) *model.DataSource {
	if ds != nil {
		ds.Config.Password = ""
	}
	return ds
}

func invalidID(id string) error {
	return utils.NewErrorBuilder(utils.ErrCodeInvalidUUID).WithDetails(id).Build()
}

func (s *dataSourceService) sealPassword(cfg *model.DataSourceConfig) error {
	if cfg.Password == "" || s.vault == nil {
		return nil
	}
	sealed, err := s.vault.Encrypt(cfg.Password)
	if err != nil {
		return err
	}
	cfg.Password = sealed
	return nil
}

func (s *dataSourceService) CreateDataSource(ctx context.Context, req *CreateDataSourceRequest) (*model.DataSource, error) {
	if existing, _ := s.repo.GetByName(ctx, req.Name); existing != nil {
		return nil, repository.ErrDataSourceExists.New(req.Name)
	}

	cfg := req.Config
	if err := s.health.ValidateDataSourceConfiguration(&cfg, req.Type); err != nil {
		return nil, utils.NewValidationError("invalid data source configuration", err.Error())
	}
	if err := s.sealPassword(&cfg); err != nil {
		return nil, err
	}

	dataSource := &model.DataSource{
		Name:   req.Name,
		Type:   req.Type,
		Config: cfg,
		Status: model.DataSourceStatusActive,
	}
	if err := s.repo.Create(ctx, dataSource); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"id": dataSource.ID, "name": dataSource.Name, "type": dataSource.Type}).
		Info("Data source created")
	return redact(dataSource), nil
}

func (s *dataSourceService) GetDataSource(ctx context.Context, id string) (*model.DataSource, error) {
	if !utils.IsValidUUID(id) {
		return nil, invalidID(id)
	}
	ds, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return redact(ds), nil
}

func (s *dataSourceService) GetDataSourceByName(ctx context.Context, name string) (*model.DataSource, error) {
	if name == "" {
		return nil, utils.NewValidationError("name cannot be empty", "")
	}
	ds, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return redact(ds), nil
}

func (s *dataSourceService) ListDataSources(ctx context.Context, req *ListDataSourcesRequest) (*ListDataSourcesResponse, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	dataSources, total, err := s.repo.GetAll(ctx, req.Status, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	for _, ds := range dataSources {
		redact(ds)
	}

	return &ListDataSourcesResponse{
		DataSources: dataSources,
		Total:       total,
		Limit:       req.Limit,
		Offset:      req.Offset,
	}, nil
}

func (s *dataSourceService) UpdateDataSource(ctx context.Context, id string, req *UpdateDataSourceRequest) (*model.DataSource, error) {
	if !utils.IsValidUUID(id) {
		return nil, invalidID(id)
	}
	dataSource, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		dataSource.Name = *req.Name
	}
	if req.Config != nil {
		cfg := *req.Config
		if err := s.health.ValidateDataSourceConfiguration(&cfg, dataSource.Type); err != nil {
			return nil, utils.NewValidationError("invalid data source configuration", err.Error())
		}
		if cfg.Password == "" {
			cfg.Password = dataSource.Config.Password
		} else if err := s.sealPassword(&cfg); err != nil {
			return nil, err
		}
		dataSource.Config = cfg
	}
	if req.Status != nil {
		dataSource.Status = *req.Status
	}

	if err := s.repo.Update(ctx, dataSource); err != nil {
		return nil, err
	}
	// The next execution reconnects with the new settings.
	if err := s.pool.CloseConnection(id); err != nil {
		s.log.WithError(err).WithField("id", id).Warn("Failed to close stale connection")
	}
	return redact(dataSource), nil
}

func (s *dataSourceService) DeleteDataSource(ctx context.Context, id string) error {
	if !utils.IsValidUUID(id) {
		return invalidID(id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.pool.CloseConnection(id); err != nil {
		s.log.WithError(err).WithField("id", id).Warn("Failed to close connection of deleted data source")
	}
	return nil
}

func (s *dataSourceService) ActivateDataSource(ctx context.Context, id string) error {
	if !utils.IsValidUUID(id) {
		return invalidID(id)
	}
	return s.repo.SetStatus(ctx, id, model.DataSourceStatusActive)
}

func (s *dataSourceService) DeactivateDataSource(ctx context.Context, id string) error {
	if !utils.IsValidUUID(id) {
		return invalidID(id)
	}
	if err := s.repo.SetStatus(ctx, id, model.DataSourceStatusInactive); err != nil {
		return err
	}
	return s.pool.CloseConnection(id)
}

// TestDataSource pings a saved data source and moves it to the error status
// when it cannot be reached, or back to active when it recovers.
func (s *dataSourceService) TestDataSource(ctx context.Context, id string) (*database.HealthCheckResult, error) {
	if !utils.IsValidUUID(id) {
		return nil, invalidID(id)
	}
	ds, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := s.health.CheckDataSourceHealth(ctx, ds)
	next := ds.Status
	switch {
	case result.Status == "healthy" && ds.Status == model.DataSourceStatusError:
		next = model.DataSourceStatusActive
	case result.Status != "healthy" && ds.Status == model.DataSourceStatusActive:
		next = model.DataSourceStatusError
	}
	if next != ds.Status {
		if err := s.repo.SetStatus(ctx, id, next); err != nil {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{"id": id, "from": ds.Status, "to": next}).Info("Data source status changed")
	}
	return result, nil
}

func (s *dataSourceService) TestConnection(ctx context.Context, req *TestConnectionRequest) (*database.HealthCheckResult, error) {
	cfg := req.Config
	if err := s.health.ValidateDataSourceConfiguration(&cfg, req.Type); err != nil {
		return nil, utils.NewValidationError("invalid data source configuration", err.Error())
	}
	return s.health.CheckDataSourceConnectivity(ctx, &cfg, req.Type), nil
}
