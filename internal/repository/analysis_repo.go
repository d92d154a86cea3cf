package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/maribel/gemlens/internal/domain"
)

// AnalysisRepository handles persistence of finished per-image analyses.
type AnalysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository creates a new analysis repository.
func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create inserts one analysis record.
func (r *AnalysisRepository) Create(ctx context.Context, rec *domain.AnalysisRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// Upsert inserts or replaces an analysis record by primary key.
func (r *AnalysisRepository) Upsert(ctx context.Context, rec *domain.AnalysisRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(rec).Error
}

// GetByID fetches one analysis record.
func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	var rec domain.AnalysisRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByUser returns a user's analysis records, newest first.
func (r *AnalysisRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.AnalysisRecord, error) {
	var recs []domain.AnalysisRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	return recs, err
}

// CountByCategory returns the number of stored analyses per category.
func (r *AnalysisRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Category string
		Count    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.AnalysisRecord{}).
		Select("category, count(*) as count").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.Category] = rw.Count
	}
	return out, nil
}
