package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bolt "github.com/boltdb/bolt"

	"rebook-service/internal/domain/entity"
	"rebook-service/internal/domain/repository"
	"rebook-service/internal/infrastructure/persistence"
)

// BoltResultRepository implements ResultRepository on a BoltDB bucket.
// Bolt runs one write transaction at a time, so the existence check and the
// insert in Put are atomic.
type BoltResultRepository struct {
	db *bolt.DB
}

// NewBoltResultRepository creates a new bolt result repository
func NewBoltResultRepository(db *bolt.DB) repository.ResultRepository {
	return &BoltResultRepository{db: db}
}

// Put persists a result only if its id does not exist yet
func (r *BoltResultRepository) Put(ctx context.Context, resultID string, result *entity.RecommendationResult) error {
	stored := *result
	stored.ResultID = resultID

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(persistence.ResultsBucket))
		if b.Get([]byte(resultID)) != nil {
			return fmt.Errorf("result %s: %w", resultID, entity.ErrConflict)
		}
		return b.Put([]byte(resultID), data)
	})
}

// Get retrieves a result by id
func (r *BoltResultRepository) Get(ctx context.Context, resultID string) (*entity.RecommendationResult, error) {
	var result entity.RecommendationResult

	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(persistence.ResultsBucket)).Get([]byte(resultID))
		if v == nil {
			return fmt.Errorf("result %s: %w", resultID, entity.ErrNotFound)
		}
		return json.Unmarshal(v, &result)
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// BoltJobRepository implements JobRepository on a BoltDB bucket
type BoltJobRepository struct {
	db *bolt.DB
}

// NewBoltJobRepository creates a new bolt job repository
func NewBoltJobRepository(db *bolt.DB) repository.JobRepository {
	return &BoltJobRepository{db: db}
}

// Save upserts a job snapshot
func (r *BoltJobRepository) Save(ctx context.Context, job *entity.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(persistence.JobsBucket)).Put([]byte(job.ResponseID), data)
	})
}

// List returns every stored job ordered by creation time
func (r *BoltJobRepository) List(ctx context.Context) ([]*entity.Job, error) {
	var jobs []*entity.Job

	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(persistence.JobsBucket)).ForEach(func(k, v []byte) error {
			var job entity.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("job %s: %w", k, err)
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.Before(jobs[k].CreatedAt) })
	return jobs, nil
}
