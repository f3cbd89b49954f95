package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rebook-service/internal/domain/entity"
	"rebook-service/internal/domain/repository"
	"rebook-service/pkg/logger"
	"rebook-service/pkg/metrics"

	"github.com/google/uuid"
)

// Messages recorded on failed jobs. They are shown to polling clients.
const (
	msgTimedOut    = "timed out"
	msgCancelled   = "cancelled"
	msgInternal    = "internal error"
	msgScoring     = "failed to score transit options"
	msgCheckout    = "failed to create checkout link"
	msgStoreResult = "failed to store recommendation"
)

const (
	// persistTimeout bounds status writes made after the job context ended
	persistTimeout   = 5 * time.Second
	minJobTimeoutGap = time.Second
)

// OrchestratorConfig bounds the pipeline. JobTimeout must exceed BackendTimeout.
type OrchestratorConfig struct {
	BackendTimeout time.Duration
	JobTimeout     time.Duration
}

// JobRunner starts the pipeline for an accepted job
type JobRunner interface {
	Start(responseID string, req entity.TravelRequest)
}

// Orchestrator runs the search, scoring and persistence pipeline for jobs
type Orchestrator struct {
	backends []repository.TransitSearcher
	scorer   *Scorer
	booking  repository.BookingProvider
	results  repository.ResultRepository
	jobs     *JobRegistry
	metrics  *metrics.Metrics
	logger   logger.Logger
	cfg      OrchestratorConfig

	baseCtx context.Context
	wg      sync.WaitGroup
	newID   func() string
	now     func() time.Time
}

// NewOrchestrator creates a new orchestrator. Jobs started with Start derive
// their context from baseCtx.
func NewOrchestrator(
	baseCtx context.Context,
	backends []repository.TransitSearcher,
	scorer *Scorer,
	booking repository.BookingProvider,
	results repository.ResultRepository,
	jobs *JobRegistry,
	metrics *metrics.Metrics,
	logger logger.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.JobTimeout <= cfg.BackendTimeout {
		cfg.JobTimeout = cfg.BackendTimeout + minJobTimeoutGap
	}
	return &Orchestrator{
		backends: backends,
		scorer:   scorer,
		booking:  booking,
		results:  results,
		jobs:     jobs,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		baseCtx:  baseCtx,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

// Start runs the job in its own goroutine
func (o *Orchestrator) Start(responseID string, req entity.TravelRequest) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Run(o.baseCtx, responseID, req)
	}()
}

// Wait blocks until every started job has returned
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Run processes one job to a terminal status. It never panics and never
// leaves the job in processing.
func (o *Orchestrator) Run(ctx context.Context, responseID string, req entity.TravelRequest) {
	start := o.now()
	log := o.logger.With("responseID", responseID)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout)
	defer cancel()

	// Fires even when a collaborator ignores ctx
	watchdog := time.AfterFunc(o.cfg.JobTimeout, func() {
		log.Warn("Job exceeded its deadline", "timeout", o.cfg.JobTimeout)
		o.fail(responseID, msgTimedOut, log)
	})
	defer watchdog.Stop()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
			o.metrics.ErrorsCount.WithLabelValues("orchestrator_panic").Inc()
			o.fail(responseID, msgInternal, log)
		}
		o.metrics.JobDuration.Observe(o.now().Sub(start).Seconds())
	}()

	if err := o.jobs.MarkProcessing(ctx, responseID); err != nil {
		log.Error("Failed to mark job processing", "error", err)
		return
	}

	pool := o.search(ctx, req, log)

	if err := ctx.Err(); err != nil {
		o.fail(responseID, contextMessage(err), log)
		return
	}

	if len(pool) == 0 {
		log.Warn("No transit options found", "backends", len(o.backends))
		o.fail(responseID, entity.ErrNoOptionsFound.Error(), log)
		return
	}

	best, err := o.scorer.Select(pool, req.Preferences)
	if err != nil {
		log.Error("Failed to score options", "error", err)
		o.fail(responseID, msgScoring, log)
		return
	}

	checkout, err := o.booking.CreateCheckout(ctx, best, req.Traveler())
	if err != nil {
		log.Error("Failed to create checkout", "error", err)
		o.fail(responseID, o.stageMessage(ctx, msgCheckout), log)
		return
	}

	resultID := o.newID()
	result := &entity.RecommendationResult{
		ResultID:       resultID,
		CreatedAt:      o.now().UTC(),
		Request:        req.Summary(),
		Recommendation: best,
		Checkout:       checkout,
	}

	// The result is stored only while the job can still complete, and is
	// readable before the job reports done
	doneCtx, doneCancel := context.WithTimeout(context.Background(), persistTimeout)
	defer doneCancel()
	err = o.jobs.Complete(doneCtx, responseID, resultID, func() error {
		return o.results.Put(ctx, resultID, result)
	})
	if errors.Is(err, entity.ErrInvalidTransition) {
		log.Warn("Job finished before its result was stored, dropping result", "error", err)
		return
	}
	if err != nil {
		log.Error("Failed to store result", "resultID", resultID, "error", err)
		o.metrics.ErrorsCount.WithLabelValues("store_result").Inc()
		o.fail(responseID, o.stageMessage(ctx, msgStoreResult), log)
		return
	}

	o.metrics.JobsFinished.WithLabelValues(string(entity.StatusDone)).Inc()
	log.Info("Job completed",
		"resultID", resultID,
		"candidates", len(pool),
		"mode", best.Option.Mode,
		"provider", best.Option.Provider,
		"score", best.Score,
		"duration", o.now().Sub(start))
}

type searchOutcome struct {
	backend string
	options []entity.TransitOption
	err     error
	elapsed time.Duration
}

// search queries every backend concurrently and pools their options. Failed
// and timed out backends contribute nothing.
func (o *Orchestrator) search(ctx context.Context, req entity.TravelRequest, log logger.Logger) []entity.TransitOption {
	outcomes := make(chan searchOutcome, len(o.backends))

	for _, backend := range o.backends {
		go func(backend repository.TransitSearcher) {
			outcomes <- o.searchBackend(ctx, backend, req)
		}(backend)
	}

	var pool []entity.TransitOption
	for pending := len(o.backends); pending > 0; pending-- {
		select {
		case out := <-outcomes:
			o.metrics.BackendLatency.WithLabelValues(out.backend).Observe(out.elapsed.Seconds())
			if out.err != nil {
				o.metrics.BackendFailures.WithLabelValues(out.backend).Inc()
				log.Warn("Backend search failed", "backend", out.backend, "error", out.err)
				continue
			}
			log.Debug("Backend search finished", "backend", out.backend, "options", len(out.options))
			pool = append(pool, out.options...)
		case <-ctx.Done():
			log.Warn("Abandoning outstanding backend searches", "pending", pending)
			return pool
		}
	}

	return pool
}

// searchBackend enforces the per-backend timeout even when the backend ignores
// its context. A late reply lands in a buffered channel and is dropped.
func (o *Orchestrator) searchBackend(ctx context.Context, backend repository.TransitSearcher, req entity.TravelRequest) searchOutcome {
	started := o.now()
	name := backend.Name()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.BackendTimeout)
	defer cancel()

	reply := make(chan searchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				reply <- searchOutcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		options, err := backend.Search(ctx, req)
		reply <- searchOutcome{options: options, err: err}
	}()

	var out searchOutcome
	select {
	case out = <-reply:
	case <-ctx.Done():
		out = searchOutcome{err: ctx.Err()}
	}

	out.backend = name
	out.elapsed = o.now().Sub(started)
	if out.err != nil {
		out.err = &entity.UpstreamSearchError{Backend: name, Err: out.err}
		out.options = nil
	}
	return out
}

// fail records a terminal error unless the job already finished
func (o *Orchestrator) fail(responseID, message string, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := o.jobs.MarkError(ctx, responseID, message)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidTransition) {
			log.Debug("Job already finished", "message", message)
			return
		}
		log.Error("Failed to mark job error", "error", err)
		return
	}

	o.metrics.JobsFinished.WithLabelValues(string(entity.StatusError)).Inc()
	log.Info("Job failed", "message", message)
}

// stageMessage prefers the timeout message when the stage failed because the job ran out of time
func (o *Orchestrator) stageMessage(ctx context.Context, message string) string {
	if err := ctx.Err(); err != nil {
		return contextMessage(err)
	}
	return message
}

func contextMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimedOut
	}
	return msgCancelled
}
