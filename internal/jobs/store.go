// Package jobs tracks upload jobs: the snapshot store pollers read from and
// the manager that drives each batch through the pipeline.
package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/maribel/gemlens/internal/domain"
)

// ErrNotFound is returned when a job ID is unknown to the store.
var ErrNotFound = errors.New("job not found")

// JobStore holds job snapshots. Put commits a whole snapshot; Get returns a
// copy the caller may inspect freely. Implementations must be safe for
// concurrent use.
type JobStore interface {
	Get(ctx context.Context, id string) (*domain.UploadJob, error)
	Put(ctx context.Context, job *domain.UploadJob) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is the in-process JobStore. Snapshots are deep-copied on both
// Put and Get so no caller ever holds a reference into the stored state.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.UploadJob
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*domain.UploadJob)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.UploadJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, job *domain.UploadJob) error {
	if job == nil || job.ID == "" {
		return errors.New("job must have an ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
	return nil
}
