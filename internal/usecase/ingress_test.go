package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rebook-service/internal/domain/entity"
)

// jsonAdapter accepts a TravelRequest serialized as JSON and a fixed signature
type jsonAdapter struct {
	signature string
}

func (a *jsonAdapter) CanHandle(provider string) bool { return provider == "test" }
func (a *jsonAdapter) SignatureHeader() string        { return "X-Test-Signature" }

func (a *jsonAdapter) VerifySignature(body []byte, signature string) error {
	if a.signature != "" && signature != a.signature {
		return errors.New("signature mismatch")
	}
	return nil
}

func (a *jsonAdapter) Parse(body []byte) (entity.TravelRequest, error) {
	var req entity.TravelRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, err
	}
	return req, nil
}

// singleRouter always serves the same adapter for its provider
type singleRouter struct {
	adapter PayloadAdapter
}

func (r *singleRouter) Register(adapter PayloadAdapter) { r.adapter = adapter }

func (r *singleRouter) GetAdapter(provider string) PayloadAdapter {
	if r.adapter != nil && r.adapter.CanHandle(provider) {
		return r.adapter
	}
	return nil
}

type recordingRunner struct {
	mu      sync.Mutex
	started []string
}

func (r *recordingRunner) Start(responseID string, req entity.TravelRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, responseID)
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func newTestIngress(secret string) (*WebhookIngress, *JobRegistry, *recordingRunner) {
	registry := newTestRegistry()
	runner := &recordingRunner{}
	ingress := NewWebhookIngress(&singleRouter{adapter: &jsonAdapter{signature: secret}}, registry, runner, newTestMetrics(), testLogger())
	return ingress, registry, runner
}

func requestBody(t *testing.T, req entity.TravelRequest) []byte {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return body
}

func TestWebhookIngress_AcceptsNewSubmission(t *testing.T) {
	ingress, registry, runner := newTestIngress("")

	job, created, err := ingress.Ingest(context.Background(), "test", requestBody(t, sampleRequest("resp-1")), "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, entity.StatusPending, job.Status)
	assert.Equal(t, 1, runner.count())

	stored, ok := registry.Get("resp-1")
	require.True(t, ok)
	assert.Equal(t, entity.StatusPending, stored.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(ingress.metrics.WebhooksReceived.WithLabelValues("test", "accepted")))
}

func TestWebhookIngress_Idempotent(t *testing.T) {
	ingress, registry, runner := newTestIngress("")
	body := requestBody(t, sampleRequest("resp-1"))

	first, created, err := ingress.Ingest(context.Background(), "test", body, "")
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, registry.MarkProcessing(context.Background(), "resp-1"))

	second, created, err := ingress.Ingest(context.Background(), "test", body, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ResponseID, second.ResponseID)
	assert.Equal(t, entity.StatusProcessing, second.Status)
	assert.Equal(t, 1, runner.count())
}

func TestWebhookIngress_ConcurrentRedeliveries(t *testing.T) {
	ingress, _, runner := newTestIngress("")
	body := requestBody(t, sampleRequest("resp-1"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := ingress.Ingest(context.Background(), "test", body, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, runner.count())
}

func TestWebhookIngress_Signature(t *testing.T) {
	ingress, registry, runner := newTestIngress("good")
	body := requestBody(t, sampleRequest("resp-1"))

	_, _, err := ingress.Ingest(context.Background(), "test", body, "bad")
	assert.ErrorIs(t, err, entity.ErrAuthentication)
	_, ok := registry.Get("resp-1")
	assert.False(t, ok)
	assert.Zero(t, runner.count())

	_, created, err := ingress.Ingest(context.Background(), "test", body, "good")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, runner.count())
}

func TestWebhookIngress_Rejects(t *testing.T) {
	missingOrigin := sampleRequest("resp-1")
	missingOrigin.Origin = ""
	badDate := sampleRequest("resp-2")
	badDate.DepartureDate = "02/03/2025"

	tests := []struct {
		name     string
		provider string
		body     []byte
		wantErr  error
	}{
		{"unknown provider", "nope", requestBody(t, sampleRequest("resp-1")), entity.ErrUnknownProvider},
		{"not json", "test", []byte("{"), entity.ErrValidation},
		{"missing origin", "test", requestBody(t, missingOrigin), entity.ErrValidation},
		{"bad date", "test", requestBody(t, badDate), entity.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingress, _, runner := newTestIngress("")

			_, created, err := ingress.Ingest(context.Background(), tt.provider, tt.body, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, created)
			assert.Zero(t, runner.count())
		})
	}
}

func TestWebhookIngress_SignatureHeader(t *testing.T) {
	ingress, _, _ := newTestIngress("")

	header, err := ingress.SignatureHeader("test")
	require.NoError(t, err)
	assert.Equal(t, "X-Test-Signature", header)

	_, err = ingress.SignatureHeader("nope")
	assert.ErrorIs(t, err, entity.ErrUnknownProvider)
}
