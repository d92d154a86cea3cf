package domain

import "time"

// JobStatus represents the status of an upload job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// StageStatus represents the status of one pipeline stage.
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusProcessing StageStatus = "processing"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusFailed     StageStatus = "failed"
)

// ProcessingMode selects which stage subset runs and which limits apply.
type ProcessingMode string

const (
	ModeStandard ProcessingMode = "standard"
	ModeAdvanced ProcessingMode = "advanced"
	ModePremium  ProcessingMode = "premium"
)

// ValidMode reports whether m is a known processing mode.
func ValidMode(m ProcessingMode) bool {
	switch m {
	case ModeStandard, ModeAdvanced, ModePremium:
		return true
	}
	return false
}

// PipelineStage is the job-visible state of one stage. Transitions are
// strictly pending → processing → completed|failed; a terminal stage is
// never re-entered.
type PipelineStage struct {
	Name      string          `json:"name"`
	Status    StageStatus     `json:"status"`
	Progress  int             `json:"progress"` // 0-100
	StartedAt *time.Time      `json:"started_at,omitempty"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Result    *ProducerResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// PerFileResult is the terminal outcome for one file in a batch. Either
// Analysis and Listing are populated, or Error is set; a failed file still
// counts toward ProcessedFiles.
type PerFileResult struct {
	ID           string              `json:"id"`
	Filename     string              `json:"filename"`
	Analysis     *IntegratedAnalysis `json:"analysis,omitempty"`
	Listing      *Listing            `json:"listing,omitempty"`
	ProcessingMs int64               `json:"processing_ms"`
	Error        string              `json:"error,omitempty"`
}

// UploadJob tracks one user-submitted batch. One driver goroutine owns a job;
// pollers only ever see whole snapshots committed through the JobStore.
type UploadJob struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"user_id"`
	Status              JobStatus       `json:"status"`
	Mode                ProcessingMode  `json:"processing_mode"`
	TotalFiles          int             `json:"total_files"`
	ProcessedFiles      int             `json:"processed_files"`
	Progress            float64         `json:"progress"` // 0-100
	Pipeline            []PipelineStage `json:"pipeline"`
	Results             []PerFileResult `json:"results"`
	CurrentFile         string          `json:"current_file,omitempty"`
	Error               string          `json:"error,omitempty"`
	EstimatedCompletion time.Time       `json:"estimated_completion"`
	CreatedAt           time.Time       `json:"created_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the job so that a committed snapshot can never
// be mutated through a poller's reference.
func (j *UploadJob) Clone() *UploadJob {
	if j == nil {
		return nil
	}
	out := *j
	out.Pipeline = clonePipeline(j.Pipeline)
	out.Results = make([]PerFileResult, len(j.Results))
	copy(out.Results, j.Results)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

func clonePipeline(stages []PipelineStage) []PipelineStage {
	out := make([]PipelineStage, len(stages))
	for i, s := range stages {
		out[i] = s
		if s.StartedAt != nil {
			t := *s.StartedAt
			out[i].StartedAt = &t
		}
		if s.EndedAt != nil {
			t := *s.EndedAt
			out[i].EndedAt = &t
		}
	}
	return out
}
