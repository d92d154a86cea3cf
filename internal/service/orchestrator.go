// Package service contains the orchestrator: the use-case layer between the
// HTTP handlers (or the CLI) and the job manager, repositories, and pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/maribel/gemlens/internal/config"
	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/jobs"
	"github.com/maribel/gemlens/internal/logger"
	"github.com/maribel/gemlens/internal/repository"
)

// RoleAdmin may read any user's jobs and analyses.
const RoleAdmin = "admin"

var (
	ErrInvalidMode      = errors.New("invalid processing mode")
	ErrNoFiles          = errors.New("no files submitted")
	ErrTooManyFiles     = errors.New("too many files for mode")
	ErrFileTooLarge     = errors.New("file exceeds mode size limit")
	ErrJobNotFound      = errors.New("job not found")
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrForbidden        = errors.New("access denied")
)

// Orchestrator drives upload batches end to end: validation, submission to
// the job manager, persistence of finished analyses, and ownership-checked
// reads.
type Orchestrator struct {
	manager  *jobs.Manager
	analyses *repository.AnalysisRepository
	history  *repository.JobRepository
	modes    config.ModesConfig
	log      *logger.Logger
}

// NewOrchestrator wires the orchestrator. The repositories may be nil when
// persistence is disabled (the CLI runs without a database).
func NewOrchestrator(manager *jobs.Manager, analyses *repository.AnalysisRepository, history *repository.JobRepository, modes config.ModesConfig, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Orchestrator{
		manager:  manager,
		analyses: analyses,
		history:  history,
		modes:    modes,
		log:      log,
	}
}

// ProcessBatch validates and submits a batch, returning the queued job
// snapshot immediately. Processing continues in the background; callers poll
// with PollJob.
func (o *Orchestrator) ProcessBatch(ctx context.Context, userID string, mode domain.ProcessingMode, files []jobs.FileInput) (*domain.UploadJob, error) {
	if !domain.ValidMode(mode) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	limits := o.modes.Limits(mode)
	if limits.MaxFiles > 0 && len(files) > limits.MaxFiles {
		return nil, fmt.Errorf("%w: %d files, limit %d", ErrTooManyFiles, len(files), limits.MaxFiles)
	}
	if limits.MaxFileSizeMB > 0 {
		maxBytes := int64(limits.MaxFileSizeMB) << 20
		for _, f := range files {
			if int64(len(f.Data)) > maxBytes {
				return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, f.Filename)
			}
		}
	}

	job, err := o.manager.Submit(ctx, jobs.Batch{
		UserID:  userID,
		Mode:    mode,
		Files:   files,
		PerFile: limits.PerFileSeconds,
	}, o.hooks())
	if err != nil {
		return nil, err
	}
	o.recordSubmission(ctx, job)
	return job, nil
}

// ProcessImage runs a single image synchronously, for the CLI. It reuses the
// full batch machinery so the CLI and the API share one code path.
func (o *Orchestrator) ProcessImage(ctx context.Context, userID string, mode domain.ProcessingMode, file jobs.FileInput) (*domain.PerFileResult, error) {
	if !domain.ValidMode(mode) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}

	done := make(chan *domain.UploadJob, 1)
	hooks := o.hooks()
	hooks.OnJobDone = func(_ context.Context, job *domain.UploadJob) {
		done <- job
	}

	job, err := o.manager.Submit(ctx, jobs.Batch{UserID: userID, Mode: mode, Files: []jobs.FileInput{file}}, hooks)
	if err != nil {
		return nil, err
	}
	o.recordSubmission(ctx, job)

	select {
	case final := <-done:
		if len(final.Results) == 0 {
			return nil, fmt.Errorf("job %s finished without a result", final.ID)
		}
		result := final.Results[0]
		if result.Error != "" {
			return &result, fmt.Errorf("processing failed: %s", result.Error)
		}
		return &result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PollJob returns the live snapshot of a job. Only the owner or an admin may
// read it.
func (o *Orchestrator) PollJob(ctx context.Context, jobID, userID, role string) (*domain.UploadJob, error) {
	job, err := o.manager.Get(ctx, jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if job.UserID != userID && role != RoleAdmin {
		return nil, ErrForbidden
	}
	return job, nil
}

// GetAnalysis returns one stored analysis with the same ownership rule as
// PollJob.
func (o *Orchestrator) GetAnalysis(ctx context.Context, id, userID, role string) (*domain.AnalysisRecord, error) {
	if o.analyses == nil {
		return nil, ErrAnalysisNotFound
	}
	rec, err := o.analyses.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID && role != RoleAdmin {
		return nil, ErrForbidden
	}
	return rec, nil
}

// ListAnalyses returns a page of the user's stored analyses, newest first.
func (o *Orchestrator) ListAnalyses(ctx context.Context, userID string, limit, offset int) ([]domain.AnalysisRecord, error) {
	if o.analyses == nil {
		return []domain.AnalysisRecord{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return o.analyses.ListByUser(ctx, userID, limit, offset)
}

// ListJobs returns a page of the user's job history, newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, userID string, limit, offset int) ([]domain.JobRecord, error) {
	if o.history == nil {
		return []domain.JobRecord{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return o.history.ListByUser(ctx, userID, limit, offset)
}

// CategoryStats returns the stored-analysis counts per category.
func (o *Orchestrator) CategoryStats(ctx context.Context) (map[string]int64, error) {
	if o.analyses == nil {
		return map[string]int64{}, nil
	}
	return o.analyses.CountByCategory(ctx)
}

// hooks builds the persistence callbacks shared by every submission path.
func (o *Orchestrator) hooks() jobs.Hooks {
	return jobs.Hooks{
		OnFileDone: o.persistFile,
		OnJobDone:  o.recordOutcome,
	}
}

func (o *Orchestrator) recordSubmission(ctx context.Context, job *domain.UploadJob) {
	if o.history == nil {
		return
	}
	rec := &domain.JobRecord{
		ID:         job.ID,
		UserID:     job.UserID,
		Mode:       job.Mode,
		Status:     job.Status,
		TotalFiles: job.TotalFiles,
		CreatedAt:  job.CreatedAt,
	}
	if err := o.history.Create(ctx, rec); err != nil {
		o.log.WithError(err).WithField(logger.FieldJobID, job.ID).Warnf("failed to record job submission")
	}
}

// persistFile stores the finished analysis row. Failed files leave no row;
// their outcome lives in the job record only.
func (o *Orchestrator) persistFile(ctx context.Context, job *domain.UploadJob, file *domain.PerFileResult) {
	if o.analyses == nil || file.Error != "" || file.Analysis == nil {
		return
	}

	rec := &domain.AnalysisRecord{
		ID:           file.ID,
		JobID:        job.ID,
		UserID:       job.UserID,
		Filename:     file.Filename,
		Category:     file.Analysis.Category,
		Subcategory:  file.Analysis.Subcategory,
		Price:        file.Analysis.Price.Recommended,
		Analysis:     domain.AnalysisJSON(*file.Analysis),
		ProcessingMs: file.ProcessingMs,
		CreatedAt:    time.Now().UTC(),
	}
	if file.Listing != nil {
		rec.ListingTitle = file.Listing.Title
		rec.Keywords = domain.StringArray(file.Listing.SEO.Keywords)
	}
	// The preprocessing result for this file is still on the job pipeline.
	for _, stage := range job.Pipeline {
		if stage.Name != domain.StagePreprocessing || stage.Result == nil {
			continue
		}
		if p := stage.Result.Payload.Preprocess; p != nil {
			rec.MD5Hash = p.MD5Hash
			rec.StorageKey = p.OriginalURL
			rec.OptimizedURL = p.OptimizedURL
		}
	}

	if err := o.analyses.Upsert(ctx, rec); err != nil {
		o.log.WithError(err).WithField(logger.FieldJobID, job.ID).Warnf("failed to persist analysis %s", file.ID)
	}
}

func (o *Orchestrator) recordOutcome(ctx context.Context, job *domain.UploadJob) {
	if o.history == nil {
		return
	}
	failed := 0
	for _, r := range job.Results {
		if r.Error != "" {
			failed++
		}
	}
	if err := o.history.MarkTerminal(ctx, job.ID, job.Status, job.ProcessedFiles, failed, job.Error); err != nil {
		o.log.WithError(err).WithField(logger.FieldJobID, job.ID).Warnf("failed to record job outcome")
	}
}
