package repository

import (
	"context"

	"rebook-service/internal/domain/entity"
)

// JobRepository persists job snapshots so deduplication and status survive restarts
type JobRepository interface {
	Save(ctx context.Context, job *entity.Job) error
	List(ctx context.Context) ([]*entity.Job, error)
}
