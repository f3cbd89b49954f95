package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rebook-service/internal/domain/entity"
	"rebook-service/internal/domain/repository"
)

// MemoryResultRepository keeps results in process memory. Writes are published
// atomically with LoadOrStore, so a reader sees either nothing or the full record.
type MemoryResultRepository struct {
	results sync.Map // result id -> entity.RecommendationResult
}

// NewMemoryResultRepository creates an empty in-memory result repository
func NewMemoryResultRepository() repository.ResultRepository {
	return &MemoryResultRepository{}
}

// Put stores result under resultID unless the id is already taken
func (r *MemoryResultRepository) Put(ctx context.Context, resultID string, result *entity.RecommendationResult) error {
	stored := *result
	stored.ResultID = resultID
	if _, loaded := r.results.LoadOrStore(resultID, stored); loaded {
		return fmt.Errorf("result %s: %w", resultID, entity.ErrConflict)
	}
	return nil
}

// Get returns a copy of the stored result
func (r *MemoryResultRepository) Get(ctx context.Context, resultID string) (*entity.RecommendationResult, error) {
	v, ok := r.results.Load(resultID)
	if !ok {
		return nil, fmt.Errorf("result %s: %w", resultID, entity.ErrNotFound)
	}
	result := v.(entity.RecommendationResult)
	return &result, nil
}

// MemoryJobRepository keeps job snapshots in process memory
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]entity.Job
}

// NewMemoryJobRepository creates an empty in-memory job repository
func NewMemoryJobRepository() repository.JobRepository {
	return &MemoryJobRepository{jobs: make(map[string]entity.Job)}
}

// Save upserts a job snapshot
func (r *MemoryJobRepository) Save(ctx context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ResponseID] = *job
	return nil
}

// List returns every saved job ordered by creation time
func (r *MemoryJobRepository) List(ctx context.Context) ([]*entity.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*entity.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		j := job
		jobs = append(jobs, &j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.Before(jobs[k].CreatedAt) })
	return jobs, nil
}
