package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/domain"
)

// MemoryStore is an in-process Store used by the memory backend and tests.
// It provides the same claim/transition semantics as PostgresStore under a
// single mutex.
type MemoryStore struct {
	mu           sync.Mutex
	jobs         map[string]*domain.Job
	leaseTimeout time.Duration
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(leaseTimeout time.Duration) *MemoryStore {
	if leaseTimeout <= 0 {
		leaseTimeout = DefaultLeaseTimeout
	}

	return &MemoryStore{
		jobs:         make(map[string]*domain.Job),
		leaseTimeout: leaseTimeout,
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Order.ID]; exists {
		return fmt.Errorf("job %s already exists", job.Order.ID)
	}

	stored := cloneJob(job)
	stored.Status = domain.StatusQueued
	stored.UpdatedAt = time.Now()
	s.jobs[job.Order.ID] = stored

	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, orderID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[orderID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	return cloneJob(job), nil
}

func (s *MemoryStore) ClaimJob(_ context.Context, orderID, workerID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[orderID]
	if !ok {
		return nil, domain.ErrJobAlreadyClaimed
	}

	// An expired processing claim means the holder died mid-lease; the
	// redelivered message may take the job over
	expired := job.Status == domain.StatusProcessing && time.Since(job.UpdatedAt) >= s.leaseTimeout
	if job.Status != domain.StatusQueued && !expired {
		return nil, domain.ErrJobAlreadyClaimed
	}

	job.Status = domain.StatusProcessing
	job.WorkerID = workerID
	job.UpdatedAt = time.Now()

	return cloneJob(job), nil
}

func (s *MemoryStore) ScheduleRetry(_ context.Context, orderID string, attempts int, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[orderID]
	if !ok || job.Status != domain.StatusProcessing {
		return domain.ErrJobNotProcessing
	}

	job.Status = domain.StatusQueued
	job.Order.Attempts = attempts
	job.LastError = lastErr
	job.WorkerID = ""
	job.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) MarkConfirmed(_ context.Context, orderID string, result *domain.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[orderID]
	if !ok || job.Status != domain.StatusProcessing {
		return domain.ErrJobNotProcessing
	}

	job.Status = domain.StatusConfirmed
	if result != nil {
		r := *result
		job.Result = &r
	}
	job.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, orderID string, attempts int, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[orderID]
	if !ok || job.Status != domain.StatusProcessing {
		return domain.ErrJobNotProcessing
	}

	job.Status = domain.StatusFailed
	job.Order.Attempts = attempts
	job.LastError = lastErr
	job.UpdatedAt = time.Now()

	return nil
}

// cloneJob returns a copy so callers never share the stored instance
func cloneJob(job *domain.Job) *domain.Job {
	clone := *job
	if job.Result != nil {
		r := *job.Result
		clone.Result = &r
	}
	return &clone
}
