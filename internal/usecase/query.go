package usecase

import (
	"context"
	"fmt"
	"time"

	"rebook-service/internal/domain/entity"
	"rebook-service/internal/domain/repository"

	"github.com/google/uuid"
)

// ResultView is a stored result plus its freshness at read time
type ResultView struct {
	*entity.RecommendationResult
	Expired bool `json:"expired"`
}

// QueryService answers status and result polling
type QueryService struct {
	jobs    *JobRegistry
	results repository.ResultRepository
	now     func() time.Time
}

// NewQueryService creates a new query service
func NewQueryService(jobs *JobRegistry, results repository.ResultRepository) *QueryService {
	return &QueryService{
		jobs:    jobs,
		results: results,
		now:     time.Now,
	}
}

// Status returns the job for responseID. found == false means the submission
// has not been seen yet, which is not an error.
func (q *QueryService) Status(responseID string) (job entity.Job, found bool) {
	return q.jobs.Get(responseID)
}

// Latest returns the most recent job still in flight
func (q *QueryService) Latest() (entity.Job, bool) {
	return q.jobs.Latest()
}

// Result returns a stored result. Ids that are not version 4 UUIDs are never looked up.
func (q *QueryService) Result(ctx context.Context, resultID string) (*ResultView, error) {
	id, err := uuid.Parse(resultID)
	if err != nil || id.Version() != 4 {
		return nil, fmt.Errorf("result %q: %w", resultID, entity.ErrNotFound)
	}

	result, err := q.results.Get(ctx, id.String())
	if err != nil {
		return nil, err
	}

	return &ResultView{
		RecommendationResult: result,
		Expired:              result.IsExpired(q.now()),
	}, nil
}
