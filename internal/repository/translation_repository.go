package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"cracksql/internal/model"
)

type translationRepository struct {
	db *gorm.DB
}

// NewTranslationRepository creates a TranslationRepository on db.
func NewTranslationRepository(db *gorm.DB) TranslationRepository {
	return &translationRepository{db: db}
}

func (r *translationRepository) Create(ctx context.Context, record *model.TranslationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *translationRepository) GetByID(ctx context.Context, id string) (*model.TranslationRecord, error) {
	var record model.TranslationRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTranslationNotFound.New(id)
		}
		return nil, err
	}
	return &record, nil
}

func (r *translationRepository) List(ctx context.Context, source, target string, limit, offset int) ([]*model.TranslationRecord, int64, error) {
	var records []*model.TranslationRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&model.TranslationRecord{})
	if source != "" {
		query = query.Where("source = ?", source)
	}
	if target != "" {
		query = query.Where("target = ?", target)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Limit(limit).Offset(offset).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *translationRepository) Stats(ctx context.Context) (*model.TranslationStats, error) {
	var rows []struct {
		Source    string
		Target    string
		Succeeded bool
		Count     int64
	}
	err := r.db.WithContext(ctx).Model(&model.TranslationRecord{}).
		Select("source, target, succeeded, COUNT(*) as count").
		Group("source, target, succeeded").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &model.TranslationStats{ByPair: make(map[string]int64)}
	for _, row := range rows {
		stats.Total += row.Count
		if row.Succeeded {
			stats.Succeeded += row.Count
		} else {
			stats.Failed += row.Count
		}
		stats.ByPair[row.Source+"->"+row.Target] += row.Count
	}
	return stats, nil
}
