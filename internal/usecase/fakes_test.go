package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rebook-service/internal/domain/entity"
	"rebook-service/internal/domain/repository"
	repoimpl "rebook-service/internal/interface/repository"
	"rebook-service/pkg/logger"
	"rebook-service/pkg/metrics"
)

var errBackendDown = errors.New("backend down")

// fakeBackend is a TransitSearcher with scripted behaviour
type fakeBackend struct {
	name    string
	options []entity.TransitOption
	err     error
	delay   time.Duration
	// hang ignores the context and blocks until release is closed
	hang    bool
	release chan struct{}
	panics  bool
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Search(ctx context.Context, req entity.TravelRequest) ([]entity.TransitOption, error) {
	if b.panics {
		panic("backend exploded")
	}
	if b.hang {
		<-b.release
		return b.options, nil
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return b.options, b.err
}

// fakeBooking is a BookingProvider with scripted behaviour
type fakeBooking struct {
	err         error
	waitForCtx  bool
	hang        chan struct{}
	panics      bool
	lastProfile entity.TravelerProfile
	mu          sync.Mutex
}

func (b *fakeBooking) CreateCheckout(ctx context.Context, option entity.ScoredOption, traveler entity.TravelerProfile) (entity.Checkout, error) {
	b.mu.Lock()
	b.lastProfile = traveler
	b.mu.Unlock()

	if b.panics {
		panic("checkout exploded")
	}
	if b.hang != nil {
		<-b.hang
	}
	if b.waitForCtx {
		<-ctx.Done()
		return entity.Checkout{}, ctx.Err()
	}
	if b.err != nil {
		return entity.Checkout{}, b.err
	}
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return entity.Checkout{URL: "https://example.com/checkout", ExpiresAt: &expires}, nil
}

// recordingResults wraps a ResultRepository and records the job status seen at write time
type recordingResults struct {
	repository.ResultRepository
	jobs       *JobRegistry
	responseID string

	mu         sync.Mutex
	puts       int
	statusSeen entity.ProcessingStatus
	err        error
	// delay stalls every write without regard to its context
	delay time.Duration
}

func (r *recordingResults) Put(ctx context.Context, resultID string, result *entity.RecommendationResult) error {
	r.mu.Lock()
	r.puts++
	if job, ok := r.jobs.Get(r.responseID); ok {
		r.statusSeen = job.Status
	}
	err := r.err
	delay := r.delay
	r.mu.Unlock()

	time.Sleep(delay)
	if err != nil {
		return err
	}
	return r.ResultRepository.Put(ctx, resultID, result)
}

func (r *recordingResults) putCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.puts
}

func testLogger() logger.Logger {
	return logger.NewNopLogger()
}

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics("test", prometheus.NewRegistry())
}

func sampleRequest(responseID string) entity.TravelRequest {
	return entity.TravelRequest{
		ResponseID:     responseID,
		Origin:         "Paris",
		Destination:    "Berlin",
		DepartureDate:  "2025-03-02",
		DepartureTime:  "08:00",
		PassengerCount: 1,
		Email:          "traveler@example.com",
		Preferences: entity.Preferences{
			PrimaryGoal:    entity.GoalCheapest,
			MaxTransfers:   intPtr(1),
			ModePreference: entity.ModeAny,
		},
	}
}

type pipeline struct {
	registry     *JobRegistry
	results      *recordingResults
	metrics      *metrics.Metrics
	orchestrator *Orchestrator
}

func newPipeline(responseID string, backends []repository.TransitSearcher, booking repository.BookingProvider, cfg OrchestratorConfig) *pipeline {
	registry := newTestRegistry()
	results := &recordingResults{
		ResultRepository: repoimpl.NewMemoryResultRepository(),
		jobs:             registry,
		responseID:       responseID,
	}
	m := newTestMetrics()
	orchestrator := NewOrchestrator(
		context.Background(),
		backends,
		newTestScorer(),
		booking,
		results,
		registry,
		m,
		testLogger(),
		cfg,
	)
	return &pipeline{registry: registry, results: results, metrics: m, orchestrator: orchestrator}
}
