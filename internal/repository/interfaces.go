package repository

import (
	"context"

	"cracksql/internal/model"
)

// DataSourceRepository defines the interface for data source data operations
type DataSourceRepository interface {
	Create(ctx context.Context, dataSource *model.DataSource) error

	// GetByID retrieves a data source by its UUID
	GetByID(ctx context.Context, id string) (*model.DataSource, error)

	// GetByName retrieves a data source by its name
	GetByName(ctx context.Context, name string) (*model.DataSource, error)

	// GetAll retrieves all data sources with optional filtering
	GetAll(ctx context.Context, status model.DataSourceStatus, limit, offset int) ([]*model.DataSource, int64, error)

	Update(ctx context.Context, dataSource *model.DataSource) error
	Delete(ctx context.Context, id string) error

	// SetStatus moves a data source to status.
	SetStatus(ctx context.Context, id string, status model.DataSourceStatus) error

	// GetActiveByType retrieves all active data sources of a specific type
	GetActiveByType(ctx context.Context, dbType model.DatabaseType) ([]*model.DataSource, error)
}

// TranslationRepository stores translation outcomes.
type TranslationRepository interface {
	Create(ctx context.Context, record *model.TranslationRecord) error
	GetByID(ctx context.Context, id string) (*model.TranslationRecord, error)
	// List returns the most recent records first. Empty source or target
	// match any dialect.
	List(ctx context.Context, source, target string, limit, offset int) ([]*model.TranslationRecord, int64, error)
	Stats(ctx context.Context) (*model.TranslationStats, error)
}
