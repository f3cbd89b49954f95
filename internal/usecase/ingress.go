package usecase

import (
	"context"
	"errors"
	"fmt"

	"rebook-service/internal/domain/entity"
	"rebook-service/pkg/logger"
	"rebook-service/pkg/metrics"
)

// Webhook outcomes used as metric labels
const (
	outcomeAccepted        = "accepted"
	outcomeDuplicate       = "duplicate"
	outcomeUnknownProvider = "unknown_provider"
	outcomeUnauthorized    = "unauthorized"
	outcomeInvalid         = "invalid"
	outcomeFailed          = "failed"
)

// WebhookIngress accepts survey submissions and hands new ones to the pipeline
type WebhookIngress struct {
	router  ProviderRouter
	jobs    *JobRegistry
	runner  JobRunner
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewWebhookIngress creates a new webhook ingress
func NewWebhookIngress(
	router ProviderRouter,
	jobs *JobRegistry,
	runner JobRunner,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *WebhookIngress {
	return &WebhookIngress{
		router:  router,
		jobs:    jobs,
		runner:  runner,
		metrics: metrics,
		logger:  logger,
	}
}

// SignatureHeader returns the header name the provider signs its deliveries with
func (i *WebhookIngress) SignatureHeader(provider string) (string, error) {
	adapter := i.router.GetAdapter(provider)
	if adapter == nil {
		return "", fmt.Errorf("%q: %w", provider, entity.ErrUnknownProvider)
	}
	return adapter.SignatureHeader(), nil
}

// Ingest verifies and parses a delivery, then creates its job. Re-deliveries of
// a known response id return the existing job with created == false and start
// nothing. Processing runs asynchronously.
func (i *WebhookIngress) Ingest(ctx context.Context, provider string, body []byte, signature string) (entity.Job, bool, error) {
	adapter := i.router.GetAdapter(provider)
	if adapter == nil {
		i.count(provider, outcomeUnknownProvider)
		return entity.Job{}, false, fmt.Errorf("%q: %w", provider, entity.ErrUnknownProvider)
	}

	if err := adapter.VerifySignature(body, signature); err != nil {
		i.count(provider, outcomeUnauthorized)
		i.logger.Warn("Rejected webhook signature", "provider", provider, "error", err)
		if !errors.Is(err, entity.ErrAuthentication) {
			err = fmt.Errorf("%w: %v", entity.ErrAuthentication, err)
		}
		return entity.Job{}, false, err
	}

	req, err := adapter.Parse(body)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		i.count(provider, outcomeInvalid)
		i.logger.Warn("Rejected webhook payload", "provider", provider, "error", err)
		if !errors.Is(err, entity.ErrValidation) {
			err = entity.MalformedPayload(err)
		}
		return entity.Job{}, false, err
	}
	req.Preferences = req.Preferences.WithDefaults()

	job, created, err := i.jobs.Create(ctx, req.ResponseID)
	if err != nil {
		i.count(provider, outcomeFailed)
		i.metrics.ErrorsCount.WithLabelValues("create_job").Inc()
		return entity.Job{}, false, err
	}

	if !created {
		i.count(provider, outcomeDuplicate)
		i.logger.Info("Duplicate webhook delivery",
			"provider", provider,
			"responseID", req.ResponseID,
			"status", job.Status)
		return job, false, nil
	}

	i.count(provider, outcomeAccepted)
	i.logger.Info("Accepted survey submission",
		"provider", provider,
		"responseID", req.ResponseID,
		"origin", req.Origin,
		"destination", req.Destination,
		"date", req.DepartureDate)

	i.runner.Start(req.ResponseID, req)
	return job, true, nil
}

func (i *WebhookIngress) count(provider, outcome string) {
	i.metrics.WebhooksReceived.WithLabelValues(provider, outcome).Inc()
}
