package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"cracksql/internal/model"
)

type dataSourceRepository struct {
	db *gorm.DB
}

// NewDataSourceRepository creates a new instance of DataSourceRepository
func NewDataSourceRepository(db *gorm.DB) DataSourceRepository {
	return &dataSourceRepository{db: db}
}

func (r *dataSourceRepository) Create(ctx context.Context, dataSource *model.DataSource) error {
	if !model.IsValidDatabaseType(string(dataSource.Type)) {
		return ErrInvalidDatabaseType.New(dataSource.Type)
	}
	err := r.db.WithContext(ctx).Create(dataSource).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
		return ErrDataSourceExists.Wrap(err, dataSource.Name)
	}
	return err
}

func (r *dataSourceRepository) GetByID(ctx context.Context, id string) (*model.DataSource, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *dataSourceRepository) GetByName(ctx context.Context, name string) (*model.DataSource, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *dataSourceRepository) first(ctx context.Context, cond, key string) (*model.DataSource, error) {
	var dataSource model.DataSource
	result := r.db.WithContext(ctx).Where(cond, key).First(&dataSource)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDataSourceNotFound.New(key)
		}
		return nil, result.Error
	}
	return &dataSource, nil
}

func (r *dataSourceRepository) GetAll(ctx context.Context, status model.DataSourceStatus, limit, offset int) ([]*model.DataSource, int64, error) {
	var dataSources []*model.DataSource
	var total int64

	query := r.db.WithContext(ctx).Model(&model.DataSource{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	result := query.Limit(limit).Offset(offset).Order("created_at DESC").Find(&dataSources)
	if result.Error != nil {
		return nil, 0, result.Error
	}
	return dataSources, total, nil
}

func (r *dataSourceRepository) Update(ctx context.Context, dataSource *model.DataSource) error {
	return r.db.WithContext(ctx).Save(dataSource).Error
}

func (r *dataSourceRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.DataSource{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDataSourceNotFound.New(id)
	}
	return nil
}

func (r *dataSourceRepository) SetStatus(ctx context.Context, id string, status model.DataSourceStatus) error {
	result := r.db.WithContext(ctx).Model(&model.DataSource{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDataSourceNotFound.New(id)
	}
	return nil
}

func (r *dataSourceRepository) GetActiveByType(ctx context.Context, dbType model.DatabaseType) ([]*model.DataSource, error) {
	var dataSources []*model.DataSource
	result := r.db.WithContext(ctx).Where("type = ? AND status = ?", dbType, model.DataSourceStatusActive).Find(&dataSources)
	if result.Error != nil {
		return nil, result.Error
	}
	return dataSources, nil
}

// isDuplicate catches unique violations when the dialector does not
// translate errors.
func isDuplicate(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "Duplicate entry") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed"))
}
