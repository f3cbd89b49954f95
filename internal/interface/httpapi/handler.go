package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rebook-service/internal/usecase"
	"rebook-service/pkg/logger"
)

const defaultMaxBodyBytes = 1 << 20

// Options tune the HTTP surface
type Options struct {
	// Per-client webhook rate limit. Zero RPS disables it.
	WebhookRateRPS   int
	WebhookRateBurst int
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Leave it off unless a proxy overwrites those headers.
	TrustProxyHeaders bool
	// MaxBodyBytes caps webhook bodies, zero means 1 MiB
	MaxBodyBytes int64
	// Gatherer backs /metrics, nil means the default registry
	Gatherer prometheus.Gatherer
}

// Handler serves the webhook, polling and operational endpoints
type Handler struct {
	ingress *usecase.WebhookIngress
	query   *usecase.QueryService
	logger  logger.Logger
	opts    Options
}

// NewHandler creates a new HTTP handler
func NewHandler(ingress *usecase.WebhookIngress, query *usecase.QueryService, logger logger.Logger, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		ingress: ingress,
		query:   query,
		logger:  logger,
		opts:    opts,
	}
}

// Routes builds the chi router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if h.opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/webhook", func(r chi.Router) {
		if h.opts.WebhookRateRPS > 0 {
			r.Use(newIPRateLimiter(h.opts.WebhookRateRPS, h.opts.WebhookRateBurst, h.logger).middleware)
		}
		r.Post("/{provider}", h.receiveWebhook)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status/latest", h.latestStatus)
		r.Get("/status/{responseID}", h.status)
		r.Get("/results/{resultID}", h.result)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// receiveWebhook accepts a survey delivery. New and duplicate deliveries both
// answer 200 so the provider stops retrying.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))

	header, err := h.ingress.SignatureHeader(provider)
	if err != nil {
		writeError(w, statusForError(err), "unknown survey provider")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	job, _, err := h.ingress.Ingest(r.Context(), provider, body, r.Header.Get(header))
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to accept webhook", "provider", provider, "error", err)
			writeError(w, status, "internal server error")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Status: "ok", ResponseID: job.ResponseID})
}

// status answers 404 until the submission has been seen; pollers keep polling
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	job, found := h.query.Status(chi.URLParam(r, "responseID"))
	if !found {
		writeError(w, http.StatusNotFound, "status not found")
		return
	}
	writeJSON(w, http.StatusOK, newStatusView(job))
}

func (h *Handler) latestStatus(w http.ResponseWriter, r *http.Request) {
	job, found := h.query.Latest()
	if !found {
		writeError(w, http.StatusNotFound, "no active request found")
		return
	}
	writeJSON(w, http.StatusOK, newStatusView(job))
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	view, err := h.query.Result(r.Context(), chi.URLParam(r, "resultID"))
	if err != nil {
		status := statusForError(err)
		if status == http.StatusNotFound {
			writeError(w, status, "result not found")
			return
		}
		h.logger.Error("Failed to load result", "resultID", chi.URLParam(r, "resultID"), "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
