package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/logger"
	"github.com/maribel/gemlens/internal/pipeline"
	"github.com/maribel/gemlens/internal/producer"
)

// perFileEstimate backs the estimated-completion heuristic when the batch
// carries no per-file duration of its own.
var perFileEstimate = map[domain.ProcessingMode]time.Duration{
	domain.ModeStandard: 30 * time.Second,
	domain.ModeAdvanced: 60 * time.Second,
	domain.ModePremium:  120 * time.Second,
}

// FileInput is one file of a submitted batch.
type FileInput struct {
	Filename string
	Format   string
	Data     []byte
}

// Batch is one upload submission. PerFile, when set, overrides the built-in
// per-file duration used for the completion estimate.
type Batch struct {
	UserID  string
	Mode    domain.ProcessingMode
	Files   []FileInput
	PerFile time.Duration
}

// Hooks are optional notifications fired from the driver goroutine. OnFileDone
// fires after each file reaches a terminal state, OnJobDone after the job
// does; both receive snapshots they may retain.
type Hooks struct {
	OnFileDone func(ctx context.Context, job *domain.UploadJob, file *domain.PerFileResult)
	OnJobDone  func(ctx context.Context, job *domain.UploadJob)
}

// Manager owns the lifecycle of upload jobs. Each submitted batch gets one
// driver goroutine that processes files sequentially and commits a whole job
// snapshot to the store after every observable transition; pollers never see
// a half-updated job.
type Manager struct {
	store     JobStore
	sequencer *pipeline.Sequencer
	fusion    *pipeline.Engine
	listing   *pipeline.Synthesizer
	log       *logger.Logger
}

// NewManager wires a manager over its collaborators.
func NewManager(store JobStore, sequencer *pipeline.Sequencer, fusion *pipeline.Engine, listing *pipeline.Synthesizer, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Manager{
		store:     store,
		sequencer: sequencer,
		fusion:    fusion,
		listing:   listing,
		log:       log,
	}
}

// Get returns the current snapshot of a job.
func (m *Manager) Get(ctx context.Context, id string) (*domain.UploadJob, error) {
	return m.store.Get(ctx, id)
}

// Submit registers a batch, commits the queued snapshot, and starts the
// driver goroutine. The returned job is the queued snapshot; processing
// continues independently of the caller's context.
func (m *Manager) Submit(ctx context.Context, batch Batch, hooks Hooks) (*domain.UploadJob, error) {
	if len(batch.Files) == 0 {
		return nil, fmt.Errorf("batch has no files")
	}
	mode := batch.Mode
	if !domain.ValidMode(mode) {
		mode = domain.ModeStandard
	}

	perFile := batch.PerFile
	if perFile <= 0 {
		perFile = perFileEstimate[mode]
	}

	stages := pipeline.StagesForMode(mode)
	now := time.Now().UTC()
	job := &domain.UploadJob{
		ID:                  uuid.New().String(),
		UserID:              batch.UserID,
		Status:              domain.JobStatusQueued,
		Mode:                mode,
		TotalFiles:          len(batch.Files),
		Pipeline:            pendingPipeline(stages),
		Results:             []domain.PerFileResult{},
		EstimatedCompletion: now.Add(perFile * time.Duration(len(batch.Files))),
		CreatedAt:           now,
	}
	if err := m.store.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	// The driver outlives the submitting request.
	driverCtx := logger.SetJobID(m.log.WithContext(context.Background()), job.ID)
	go m.run(driverCtx, job, batch, stages, hooks)

	return job.Clone(), nil
}

// run is the driver goroutine for one job.
func (m *Manager) run(ctx context.Context, job *domain.UploadJob, batch Batch, stages []string, hooks Hooks) {
	job.Status = domain.JobStatusProcessing
	m.commit(ctx, job)

	logger.With(logger.Fields{
		logger.FieldMode:  string(job.Mode),
		logger.FieldCount: job.TotalFiles,
	}).Info(ctx, "Job started")

	failedFiles := 0
	for i, file := range batch.Files {
		fileCtx := logger.SetFile(ctx, file.Filename)
		result := m.processFile(fileCtx, job, i, file, stages)

		job.ProcessedFiles++
		job.Progress = float64(job.ProcessedFiles) / float64(job.TotalFiles) * 100
		job.Results = append(job.Results, *result)
		job.CurrentFile = ""
		m.commit(ctx, job)

		if result.Error != "" {
			failedFiles++
		}
		if hooks.OnFileDone != nil {
			hooks.OnFileDone(fileCtx, job.Clone(), result)
		}
	}

	// Per-file failures never fail the job; failed is reserved for driver
	// errors. An all-fail batch still completes, each result carrying its
	// own error.
	done := time.Now().UTC()
	job.CompletedAt = &done
	job.Progress = 100
	job.Status = domain.JobStatusCompleted
	m.commit(ctx, job)

	logger.With(logger.Fields{
		logger.FieldStatus: string(job.Status),
		logger.FieldCount:  job.ProcessedFiles,
	}).Info(ctx, "Job finished, %d of %d files failed", failedFiles, job.TotalFiles)

	if hooks.OnJobDone != nil {
		hooks.OnJobDone(ctx, job.Clone())
	}
}

// processFile runs the pipeline for one file and returns its terminal result.
// A file failure never aborts the batch; the error is recorded and the driver
// moves on.
func (m *Manager) processFile(ctx context.Context, job *domain.UploadJob, index int, file FileInput, stages []string) *domain.PerFileResult {
	start := time.Now()
	analysisID := uuid.New().String()

	job.CurrentFile = file.Filename
	job.Pipeline = pendingPipeline(stages)
	m.startStage(job, 0)
	m.commit(ctx, job)

	in := &producer.Input{
		ImageData:  file.Data,
		Format:     file.Format,
		Filename:   file.Filename,
		UserID:     job.UserID,
		AnalysisID: analysisID,
	}

	progress := func(percent int, stage string) {
		idx := stageIndex(stages, stage)
		if idx < 0 {
			return
		}
		m.endStage(job, idx, in.Results[stage])
		if idx+1 < len(stages) {
			m.startStage(job, idx+1)
		}
		job.Progress = (float64(index) + float64(percent)/100) / float64(job.TotalFiles) * 100
		m.commit(ctx, job)
	}

	results, err := m.sequencer.Run(ctx, in, stages, progress)
	if err != nil {
		m.failRemainingStages(job, err)
		m.commit(ctx, job)
		logger.With(logger.Fields{
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Warn(ctx, "File failed: %v", err)
		return &domain.PerFileResult{
			ID:           analysisID,
			Filename:     file.Filename,
			ProcessingMs: time.Since(start).Milliseconds(),
			Error:        err.Error(),
		}
	}

	analysis := m.fusion.Fuse(results)
	listing := m.listing.Build(analysis)

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldConfidence: analysis.Quality.AIConfidence,
	}).Info(ctx, "File analyzed as %s", analysis.Category)

	return &domain.PerFileResult{
		ID:           analysisID,
		Filename:     file.Filename,
		Analysis:     analysis,
		Listing:      listing,
		ProcessingMs: time.Since(start).Milliseconds(),
	}
}

func (m *Manager) startStage(job *domain.UploadJob, idx int) {
	now := time.Now().UTC()
	stage := &job.Pipeline[idx]
	stage.Status = domain.StageStatusProcessing
	stage.StartedAt = &now
}

func (m *Manager) endStage(job *domain.UploadJob, idx int, result *domain.ProducerResult) {
	now := time.Now().UTC()
	stage := &job.Pipeline[idx]
	stage.EndedAt = &now
	stage.Progress = 100
	stage.Result = result
	if result != nil && result.Succeeded {
		stage.Status = domain.StageStatusCompleted
	} else {
		stage.Status = domain.StageStatusFailed
		if result != nil {
			stage.Error = result.Error
		}
	}
}

// failRemainingStages marks every non-terminal stage failed after a hard
// pipeline abort, so the poller never sees a stage stuck in processing.
func (m *Manager) failRemainingStages(job *domain.UploadJob, err error) {
	for i := range job.Pipeline {
		stage := &job.Pipeline[i]
		if stage.Status == domain.StageStatusPending || stage.Status == domain.StageStatusProcessing {
			stage.Status = domain.StageStatusFailed
			if stage.Error == "" {
				stage.Error = err.Error()
			}
		}
	}
}

// commit stores the current snapshot. A store failure is logged, not fatal:
// the driver keeps its in-memory truth and retries on the next transition.
func (m *Manager) commit(ctx context.Context, job *domain.UploadJob) {
	if err := m.store.Put(ctx, job); err != nil {
		m.log.WithError(err).WithField(logger.FieldJobID, job.ID).Warnf("failed to commit job snapshot")
	}
}

func pendingPipeline(stages []string) []domain.PipelineStage {
	out := make([]domain.PipelineStage, len(stages))
	for i, name := range stages {
		out[i] = domain.PipelineStage{Name: name, Status: domain.StageStatusPending}
	}
	return out
}

func stageIndex(stages []string, stage string) int {
	for i, s := range stages {
		if s == stage {
			return i
		}
	}
	return -1
}
