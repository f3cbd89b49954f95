package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rebook-service/internal/domain/entity"
	"rebook-service/internal/domain/repository"
	"rebook-service/pkg/logger"
)

// interruptedMessage is recorded on jobs that were still running when the process stopped
const interruptedMessage = "interrupted by restart"

type jobEntry struct {
	mu  sync.Mutex
	job entity.Job
	// withdrawn is set when the first save of a new job failed and the entry was removed
	withdrawn bool
	// finish serializes terminal transitions, including a Complete in progress
	finish sync.Mutex
}

// JobRegistry tracks job status per response id. Each job has its own lock, so
// unrelated jobs never contend. Every change is written through to the job
// repository so status and deduplication survive restarts.
type JobRegistry struct {
	jobs   sync.Map // response id -> *jobEntry
	repo   repository.JobRepository
	logger logger.Logger
	now    func() time.Time
}

// NewJobRegistry creates a new job registry backed by repo
func NewJobRegistry(repo repository.JobRepository, logger logger.Logger) *JobRegistry {
	return &JobRegistry{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Restore loads persisted jobs. Jobs that never reached a terminal status are
// failed, since nothing is processing them anymore.
func (r *JobRegistry) Restore(ctx context.Context) error {
	jobs, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	interrupted := 0
	for _, job := range jobs {
		entry := &jobEntry{job: *job}
		if !job.Status.IsTerminal() {
			entry.job.Status = entity.StatusError
			entry.job.ErrorMessage = interruptedMessage
			entry.job.UpdatedAt = r.now().UTC()
			if err := r.repo.Save(ctx, &entry.job); err != nil {
				return fmt.Errorf("failed to save interrupted job %s: %w", job.ResponseID, err)
			}
			interrupted++
		}
		r.jobs.Store(job.ResponseID, entry)
	}

	r.logger.Info("Restored jobs", "count", len(jobs), "interrupted", interrupted)
	return nil
}

// Create registers a pending job. If a job already exists for responseID it is
// returned unchanged with created == false.
func (r *JobRegistry) Create(ctx context.Context, responseID string) (entity.Job, bool, error) {
	now := r.now().UTC()
	entry := &jobEntry{job: entity.Job{
		ResponseID: responseID,
		Status:     entity.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}}

	// Lock before publishing so readers of a fresh entry wait for the first save
	entry.mu.Lock()
	defer entry.mu.Unlock()

	for {
		existing, loaded := r.jobs.LoadOrStore(responseID, entry)
		if !loaded {
			break
		}
		if job, live := existing.(*jobEntry).liveSnapshot(); live {
			return job, false, nil
		}
		// The first delivery could not be saved; take its place
		r.jobs.CompareAndDelete(responseID, existing)
	}

	if err := r.repo.Save(ctx, &entry.job); err != nil {
		entry.withdrawn = true
		r.jobs.CompareAndDelete(responseID, entry)
		return entity.Job{}, false, fmt.Errorf("failed to save job: %w", err)
	}

	return entry.job, true, nil
}

// Get returns a snapshot of the job for responseID
func (r *JobRegistry) Get(responseID string) (entity.Job, bool) {
	v, ok := r.jobs.Load(responseID)
	if !ok {
		return entity.Job{}, false
	}
	return v.(*jobEntry).snapshot(), true
}

// Latest returns the most recently created job that is still pending or processing
func (r *JobRegistry) Latest() (entity.Job, bool) {
	var latest entity.Job
	found := false

	r.jobs.Range(func(_, v interface{}) bool {
		job := v.(*jobEntry).snapshot()
		if job.Status.IsTerminal() {
			return true
		}
		if !found || job.CreatedAt.After(latest.CreatedAt) ||
			(job.CreatedAt.Equal(latest.CreatedAt) && job.ResponseID > latest.ResponseID) {
			latest = job
			found = true
		}
		return true
	})

	return latest, found
}

// MarkProcessing moves a pending job to processing
func (r *JobRegistry) MarkProcessing(ctx context.Context, responseID string) error {
	return r.transition(ctx, responseID, entity.StatusProcessing, nil)
}

// MarkDone completes a job with its result id
func (r *JobRegistry) MarkDone(ctx context.Context, responseID, resultID string) error {
	return r.transition(ctx, responseID, entity.StatusDone, func(job *entity.Job) {
		job.ResultID = resultID
	})
}

// MarkError fails a job. Failing an already finished job returns ErrInvalidTransition.
func (r *JobRegistry) MarkError(ctx context.Context, responseID, message string) error {
	return r.transition(ctx, responseID, entity.StatusError, func(job *entity.Job) {
		job.ErrorMessage = message
	})
}

// Complete stores the job's result through store and marks the job done.
// Other terminal transitions wait until it returns, so a job that failed first
// never gets a result and a stored result always belongs to a done job.
func (r *JobRegistry) Complete(ctx context.Context, responseID, resultID string, store func() error) error {
	entry, err := r.entry(responseID)
	if err != nil {
		return err
	}

	entry.finish.Lock()
	defer entry.finish.Unlock()

	if current := entry.snapshot().Status; !current.CanTransitionTo(entity.StatusDone) {
		return fmt.Errorf("job %s %s -> %s: %w", responseID, current, entity.StatusDone, entity.ErrInvalidTransition)
	}

	if err := store(); err != nil {
		return err
	}

	return r.apply(ctx, entry, entity.StatusDone, func(job *entity.Job) {
		job.ResultID = resultID
	})
}

func (r *JobRegistry) entry(responseID string) (*jobEntry, error) {
	v, ok := r.jobs.Load(responseID)
	if !ok {
		return nil, fmt.Errorf("job %s: %w", responseID, entity.ErrNotFound)
	}
	return v.(*jobEntry), nil
}

func (r *JobRegistry) transition(ctx context.Context, responseID string, next entity.ProcessingStatus, apply func(*entity.Job)) error {
	entry, err := r.entry(responseID)
	if err != nil {
		return err
	}

	if next.IsTerminal() {
		entry.finish.Lock()
		defer entry.finish.Unlock()
	}

	return r.apply(ctx, entry, next, apply)
}

func (r *JobRegistry) apply(ctx context.Context, entry *jobEntry, next entity.ProcessingStatus, apply func(*entity.Job)) error {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	responseID := entry.job.ResponseID
	current := entry.job.Status
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("job %s %s -> %s: %w", responseID, current, next, entity.ErrInvalidTransition)
	}

	entry.job.Status = next
	entry.job.UpdatedAt = r.now().UTC()
	if apply != nil {
		apply(&entry.job)
	}

	// In-memory state stays authoritative for this process when the write fails
	if err := r.repo.Save(ctx, &entry.job); err != nil {
		r.logger.Error("Failed to persist job status",
			"responseID", responseID,
			"status", next,
			"error", err)
	}

	return nil
}

func (e *jobEntry) snapshot() entity.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job
}

// liveSnapshot waits for a pending first save and reports false when it failed
func (e *jobEntry) liveSnapshot() (entity.Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job, !e.withdrawn
}
