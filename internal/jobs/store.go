// internal/jobs/store.go
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/divrinavyas/google-form-submitter/internal/submitter"
)

// Status is the lifecycle state of a background submission job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is one job's status snapshot. The background run replaces the whole
// snapshot on every update; readers only ever see a complete copy, so no
// field-level locking is needed.
type Record struct {
	ID        string               `json:"job_id"`
	Status    Status               `json:"status"`
	Message   string               `json:"message,omitempty"`
	Progress  *ProgressSnapshot    `json:"progress,omitempty"`
	Result    *submitter.RunResult `json:"result,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// ProgressSnapshot mirrors the per-row progress callback.
type ProgressSnapshot struct {
	CurrentRow   int    `json:"current_row"`
	TotalRows    int    `json:"total_rows"`
	SuccessCount int    `json:"success_count"`
	FailCount    int    `json:"fail_count"`
	Message      string `json:"message,omitempty"`
}

// Store is an in-memory job registry. Records live for the process lifetime;
// nothing is persisted.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

// Create registers a new pending job and returns its id.
func (s *Store) Create() string {
	id := uuid.NewString()
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = Record{
		ID:        id,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// Get returns a copy of the job's current snapshot.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// SetRunning marks the job as started.
func (s *Store) SetRunning(id string) {
	s.update(id, func(rec *Record) {
		rec.Status = StatusRunning
	})
}

// SetProgress replaces the job's progress snapshot after a processed row.
func (s *Store) SetProgress(id string, progress ProgressSnapshot) {
	s.update(id, func(rec *Record) {
		rec.Progress = &progress
	})
}

// Complete marks the job finished with its final result.
func (s *Store) Complete(id string, result *submitter.RunResult) {
	s.update(id, func(rec *Record) {
		rec.Status = StatusCompleted
		rec.Result = result
	})
}

// Fail marks the job failed with a human-readable reason.
func (s *Store) Fail(id string, message string) {
	s.update(id, func(rec *Record) {
		rec.Status = StatusFailed
		rec.Message = message
	})
}

func (s *Store) update(id string, mutate func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return
	}
	mutate(&rec)
	rec.UpdatedAt = time.Now().UTC()
	s.records[id] = rec
}
