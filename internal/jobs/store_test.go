package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maribel/gemlens/internal/domain"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := &domain.UploadJob{
		ID:         "job-1",
		UserID:     "user-1",
		Status:     domain.JobStatusQueued,
		Mode:       domain.ModeStandard,
		TotalFiles: 2,
		Pipeline: []domain.PipelineStage{
			{Name: domain.StagePreprocessing, Status: domain.StageStatusPending},
		},
		Results:   []domain.PerFileResult{},
		CreatedAt: time.Now().UTC(),
	}

	if err := store.Put(ctx, job); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != job.ID || got.Status != job.Status || got.TotalFiles != 2 {
		t.Errorf("Get() = %+v, want the stored job", got)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := &domain.UploadJob{
		ID:     "job-1",
		Status: domain.JobStatusProcessing,
		Pipeline: []domain.PipelineStage{
			{Name: domain.StageVision, Status: domain.StageStatusProcessing},
		},
	}
	if err := store.Put(ctx, job); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Mutating the original after Put must not affect the stored snapshot.
	job.Status = domain.JobStatusFailed
	job.Pipeline[0].Status = domain.StageStatusFailed

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != domain.JobStatusProcessing {
		t.Errorf("stored status = %q, mutated through caller reference", got.Status)
	}
	if got.Pipeline[0].Status != domain.StageStatusProcessing {
		t.Errorf("stored stage status = %q, mutated through caller reference", got.Pipeline[0].Status)
	}

	// Mutating a Get result must not affect the store either.
	got.Status = domain.JobStatusCompleted
	again, _ := store.Get(ctx, "job-1")
	if again.Status != domain.JobStatusProcessing {
		t.Errorf("stored status = %q, mutated through reader reference", again.Status)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Put(ctx, &domain.UploadJob{ID: "job-1"})
	if err := store.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	// Deleting a missing job is a no-op.
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
}

func TestMemoryStoreRejectsAnonymousJob(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Put(context.Background(), &domain.UploadJob{}); err == nil {
		t.Error("Put() accepted a job without an ID")
	}
}
