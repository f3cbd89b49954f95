package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"rebook-service/internal/domain/entity"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type webhookResponse struct {
	Status     string `json:"status"`
	ResponseID string `json:"response_id"`
}

// statusView is the polling shape of a job
type statusView struct {
	Status       entity.ProcessingStatus `json:"status"`
	ResponseID   string                  `json:"response_id"`
	ResultID     string                  `json:"result_id,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
}

func newStatusView(job entity.Job) statusView {
	return statusView{
		Status:       job.Status,
		ResponseID:   job.ResponseID,
		ResultID:     job.ResultID,
		ErrorMessage: job.ErrorMessage,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// statusForError maps domain errors onto HTTP status codes. A body that is not
// the provider's envelope is a 400, a well formed body with bad answers a 422.
func statusForError(err error) int {
	switch {
	case errors.Is(err, entity.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrAuthentication):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrUnknownProvider), errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
