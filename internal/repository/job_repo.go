package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/maribel/gemlens/internal/domain"
)

// JobRepository persists the audit row for each upload job. The live,
// polled job state lives in the JobStore; these rows exist for history.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts the audit row at job submission.
func (r *JobRepository) Create(ctx context.Context, rec *domain.JobRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// MarkTerminal records a job's terminal outcome.
func (r *JobRepository) MarkTerminal(ctx context.Context, id string, status domain.JobStatus, processed, failed int, jobErr string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.JobRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          status,
			"processed_files": processed,
			"failed_files":    failed,
			"error":           jobErr,
			"completed_at":    &now,
		}).Error
}

// GetByID fetches one job audit row.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.JobRecord, error) {
	var rec domain.JobRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByUser returns a user's job history, newest first.
func (r *JobRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.JobRecord, error) {
	var recs []domain.JobRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	return recs, err
}
