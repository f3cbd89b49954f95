package repository

import (
	"context"

	"rebook-service/internal/domain/entity"
)

// ResultRepository stores recommendation results. Put is write-once: an existing
// result id yields entity.ErrConflict. Get yields entity.ErrNotFound for ids that
// were never written.
type ResultRepository interface {
	Put(ctx context.Context, resultID string, result *entity.RecommendationResult) error
	Get(ctx context.Context, resultID string) (*entity.RecommendationResult, error)
}
