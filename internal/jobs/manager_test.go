package jobs

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/maribel/gemlens/internal/config"
	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/pipeline"
	"github.com/maribel/gemlens/internal/producer"
)

type fakeAdapter struct {
	stage   string
	failFor map[string]bool // filenames this adapter fails on
}

func (a *fakeAdapter) Name() string        { return a.stage }
func (a *fakeAdapter) DependsOn() []string { return nil }

func (a *fakeAdapter) Run(_ context.Context, in *producer.Input) *domain.ProducerResult {
	if a.failFor[in.Filename] {
		return &domain.ProducerResult{
			Stage:   a.stage,
			Error:   "fake failure",
			Payload: producer.FallbackPayload(a.stage),
		}
	}
	r := &domain.ProducerResult{
		Stage:      a.stage,
		Confidence: 0.8,
		Succeeded:  true,
		Payload:    producer.FallbackPayload(a.stage),
	}
	if a.stage == domain.StageSynthesis {
		r.Payload.Synthesis.Category = "ring"
		r.Payload.Synthesis.Price = 150
	}
	return r
}

func newTestManager(failPreprocessFor ...string) (*Manager, *MemoryStore) {
	failing := make(map[string]bool, len(failPreprocessFor))
	for _, f := range failPreprocessFor {
		failing[f] = true
	}
	adapters := make([]producer.Adapter, 0, len(domain.StageOrder))
	for _, stage := range domain.StageOrder {
		a := &fakeAdapter{stage: stage}
		if stage == domain.StagePreprocessing {
			a.failFor = failing
		}
		adapters = append(adapters, a)
	}

	store := NewMemoryStore()
	manager := NewManager(
		store,
		pipeline.NewSequencer(adapters, nil),
		pipeline.NewEngine(config.FusionConfig{
			CategoryWeights: map[string]float64{domain.StageSynthesis: 0.30},
			ConfidenceFloor: 0.15,
		}),
		pipeline.NewSynthesizer(config.ListingConfig{TitleMaxLen: 70, MaxTags: 10, FreeShippingPrice: 100}),
		nil,
	)
	return manager, store
}

func waitForTerminal(t *testing.T, store JobStore, id string) *domain.UploadJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if job.Status == domain.JobStatusCompleted || job.Status == domain.JobStatusFailed {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestSubmitReturnsQueuedSnapshot(t *testing.T) {
	manager, _ := newTestManager()
	job, err := manager.Submit(context.Background(), Batch{
		UserID: "user-1",
		Mode:   domain.ModeStandard,
		Files:  []FileInput{{Filename: "ring.jpg", Format: "jpeg", Data: []byte{1}}},
	}, Hooks{})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if job.ID == "" {
		t.Error("job ID empty")
	}
	if job.Status != domain.JobStatusQueued {
		t.Errorf("status = %q, want queued", job.Status)
	}
	if job.TotalFiles != 1 || job.ProcessedFiles != 0 {
		t.Errorf("file counters = %d/%d, want 0/1", job.ProcessedFiles, job.TotalFiles)
	}
	if len(job.Pipeline) != len(pipeline.StagesForMode(domain.ModeStandard)) {
		t.Errorf("pipeline = %d stages, want the standard subset", len(job.Pipeline))
	}
	for _, s := range job.Pipeline {
		if s.Status != domain.StageStatusPending {
			t.Errorf("stage %s status = %q, want pending", s.Name, s.Status)
		}
	}
	if !job.EstimatedCompletion.After(job.CreatedAt) {
		t.Error("estimated completion not after creation")
	}
}

func TestSubmitRejectsEmptyBatch(t *testing.T) {
	manager, _ := newTestManager()
	if _, err := manager.Submit(context.Background(), Batch{UserID: "u"}, Hooks{}); err == nil {
		t.Error("Submit() accepted an empty batch")
	}
}

func TestJobCompletesWithResults(t *testing.T) {
	manager, store := newTestManager()
	job, err := manager.Submit(context.Background(), Batch{
		UserID: "user-1",
		Mode:   domain.ModeStandard,
		Files: []FileInput{
			{Filename: "a.jpg", Format: "jpeg", Data: []byte{1}},
			{Filename: "b.jpg", Format: "jpeg", Data: []byte{2}},
		},
	}, Hooks{})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	final := waitForTerminal(t, store, job.ID)
	if final.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q (error %q), want completed", final.Status, final.Error)
	}
	if final.ProcessedFiles != 2 || final.Progress != 100 {
		t.Errorf("processed = %d progress = %v, want 2 and 100", final.ProcessedFiles, final.Progress)
	}
	if final.CompletedAt == nil {
		t.Error("completed job has no completion time")
	}
	if len(final.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(final.Results))
	}
	for _, r := range final.Results {
		if r.Error != "" {
			t.Errorf("file %s error = %q, want none", r.Filename, r.Error)
		}
		if r.Analysis == nil || r.Listing == nil {
			t.Errorf("file %s missing analysis or listing", r.Filename)
		}
		if r.ID == "" {
			t.Errorf("file %s missing analysis ID", r.Filename)
		}
	}
	for _, s := range final.Pipeline {
		if s.Status != domain.StageStatusCompleted {
			t.Errorf("stage %s status = %q, want completed", s.Name, s.Status)
		}
	}
}

func TestFileFailureIsIsolated(t *testing.T) {
	manager, store := newTestManager("bad.jpg")
	job, err := manager.Submit(context.Background(), Batch{
		UserID: "user-1",
		Mode:   domain.ModeStandard,
		Files: []FileInput{
			{Filename: "bad.jpg", Format: "jpeg", Data: []byte{1}},
			{Filename: "good.jpg", Format: "jpeg", Data: []byte{2}},
		},
	}, Hooks{})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	final := waitForTerminal(t, store, job.ID)
	if final.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed despite one failed file", final.Status)
	}
	if final.ProcessedFiles != 2 {
		t.Errorf("processed = %d, want failed files counted too", final.ProcessedFiles)
	}
	if final.Results[0].Error == "" {
		t.Error("failed file carries no error")
	}
	if final.Results[0].Analysis != nil {
		t.Error("failed file carries an analysis")
	}
	if final.Results[1].Error != "" || final.Results[1].Analysis == nil {
		t.Errorf("second file should have succeeded: %+v", final.Results[1])
	}
}

func TestAllFilesFailedStillCompletes(t *testing.T) {
	manager, store := newTestManager("a.jpg", "b.jpg")
	job, err := manager.Submit(context.Background(), Batch{
		UserID: "user-1",
		Mode:   domain.ModeStandard,
		Files: []FileInput{
			{Filename: "a.jpg", Format: "jpeg", Data: []byte{1}},
			{Filename: "b.jpg", Format: "jpeg", Data: []byte{2}},
		},
	}, Hooks{})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// Failed is reserved for driver errors; file failures stay per-file.
	final := waitForTerminal(t, store, job.ID)
	if final.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed even when every file failed", final.Status)
	}
	if final.Error != "" {
		t.Errorf("job error = %q, want per-file errors only", final.Error)
	}
	if final.ProcessedFiles != 2 {
		t.Errorf("processed = %d, want 2", final.ProcessedFiles)
	}
	for _, r := range final.Results {
		if r.Error == "" {
			t.Errorf("file %s carries no error", r.Filename)
		}
	}
	// No stage may be left non-terminal after the abort.
	for _, s := range final.Pipeline {
		if s.Status != domain.StageStatusCompleted && s.Status != domain.StageStatusFailed {
			t.Errorf("stage %s left in %q", s.Name, s.Status)
		}
	}
}

func TestPollIsIdempotent(t *testing.T) {
	manager, store := newTestManager()
	job, err := manager.Submit(context.Background(), Batch{
		UserID: "user-1",
		Mode:   domain.ModeStandard,
		Files:  []FileInput{{Filename: "a.jpg", Format: "jpeg", Data: []byte{1}}},
	}, Hooks{})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitForTerminal(t, store, job.ID)

	first, err := manager.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, err := manager.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("consecutive polls of an unchanged job differ:\n%+v\n%+v", first, second)
	}
}

func TestHooksFire(t *testing.T) {
	manager, store := newTestManager("bad.jpg")

	var mu sync.Mutex
	var fileCalls []string
	jobDone := make(chan *domain.UploadJob, 1)

	job, err := manager.Submit(context.Background(), Batch{
		UserID: "user-1",
		Mode:   domain.ModeStandard,
		Files: []FileInput{
			{Filename: "bad.jpg", Format: "jpeg", Data: []byte{1}},
			{Filename: "good.jpg", Format: "jpeg", Data: []byte{2}},
		},
	}, Hooks{
		OnFileDone: func(_ context.Context, _ *domain.UploadJob, file *domain.PerFileResult) {
			mu.Lock()
			fileCalls = append(fileCalls, file.Filename)
			mu.Unlock()
		},
		OnJobDone: func(_ context.Context, job *domain.UploadJob) {
			jobDone <- job
		},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitForTerminal(t, store, job.ID)

	select {
	case final := <-jobDone:
		if final.Status != domain.JobStatusCompleted {
			t.Errorf("OnJobDone status = %q, want completed", final.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnJobDone never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fileCalls) != 2 {
		t.Errorf("OnFileDone fired %d times, want once per file (failed included)", len(fileCalls))
	}
}

func TestUnknownModeFallsBackToStandard(t *testing.T) {
	manager, store := newTestManager()
	job, err := manager.Submit(context.Background(), Batch{
		UserID: "user-1",
		Mode:   domain.ProcessingMode("turbo"),
		Files:  []FileInput{{Filename: "a.jpg", Format: "jpeg", Data: []byte{1}}},
	}, Hooks{})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.Mode != domain.ModeStandard {
		t.Errorf("mode = %q, want fallback to standard", job.Mode)
	}
	waitForTerminal(t, store, job.ID)
}
