package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/davidbz/liftplan/internal/completion"
	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/observability"
)

// Error kinds reported in the error envelope.
const (
	KindValidation        = "validation_error"
	KindNotFound          = "not_found"
	KindConflict          = "conflict"
	KindGenerationFailed  = "generation_failed"
	KindInvalidGeneration = "invalid_generation"
	KindInternal          = "internal_error"
)

// serverMessages replaces the error text of 5xx responses; the cause is
// logged instead.
var serverMessages = map[string]string{
	KindGenerationFailed:  "plan generation failed",
	KindInvalidGeneration: "model returned an invalid plan",
	KindInternal:          "internal server error",
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps err to an HTTP status and an error kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, KindValidation
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, KindConflict
	}

	switch completion.Kind(err) {
	case completion.KindParse:
		return http.StatusBadGateway, KindInvalidGeneration
	case completion.KindNetwork, completion.KindAPI, completion.KindConfiguration:
		return http.StatusBadGateway, KindGenerationFailed
	}

	return http.StatusInternalServerError, KindInternal
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)

	logger := observability.FromContext(r.Context())
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", observability.String("kind", kind), observability.Error(err))
		message = serverMessages[kind]
	} else {
		logger.Warn("request rejected", observability.String("kind", kind), observability.Error(err))
	}

	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
