package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rebook-service/internal/domain/entity"
	repoimpl "rebook-service/internal/interface/repository"
)

func TestQueryService_Status(t *testing.T) {
	registry := newTestRegistry()
	queries := NewQueryService(registry, repoimpl.NewMemoryResultRepository())

	_, found := queries.Status("resp-1")
	assert.False(t, found)

	_, _, err := registry.Create(context.Background(), "resp-1")
	require.NoError(t, err)

	job, found := queries.Status("resp-1")
	require.True(t, found)
	assert.Equal(t, entity.StatusPending, job.Status)

	latest, ok := queries.Latest()
	require.True(t, ok)
	assert.Equal(t, "resp-1", latest.ResponseID)
}

func TestQueryService_Result(t *testing.T) {
	ctx := context.Background()
	results := repoimpl.NewMemoryResultRepository()
	queries := NewQueryService(newTestRegistry(), results)
	queries.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	fresh := uuid.New().String()
	stale := uuid.New().String()
	later := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	earlier := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)

	require.NoError(t, results.Put(ctx, fresh, &entity.RecommendationResult{Checkout: entity.Checkout{URL: "a", ExpiresAt: &later}}))
	require.NoError(t, results.Put(ctx, stale, &entity.RecommendationResult{Checkout: entity.Checkout{URL: "b", ExpiresAt: &earlier}}))

	view, err := queries.Result(ctx, fresh)
	require.NoError(t, err)
	assert.False(t, view.Expired)
	assert.Equal(t, fresh, view.ResultID)

	view, err = queries.Result(ctx, stale)
	require.NoError(t, err)
	assert.True(t, view.Expired)
	assert.Equal(t, earlier, *view.Checkout.ExpiresAt)

	tests := []struct {
		name string
		id   string
	}{
		{"unknown uuid", uuid.New().String()},
		{"not a uuid", "../../etc/passwd"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := queries.Result(ctx, tt.id)
			assert.ErrorIs(t, err, entity.ErrNotFound)
		})
	}
}
