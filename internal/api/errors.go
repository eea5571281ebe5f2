package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/czentrix/screenrecording-report/internal/repository"
	"github.com/czentrix/screenrecording-report/internal/response"
)

const msgDatabaseError = "Database error occurred"

// inputError is a client input failure whose message is safe to return to the caller.
type inputError struct {
	message string
	cause   error
}

func (e *inputError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *inputError) Unwrap() error { return e.cause }

func badRequest(message string, cause error) error {
	return &inputError{message: message, cause: cause}
}

// writeError maps err to a status and envelope. Store and unexpected failures are
// logged in full and reported to the caller with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, operation, failureMessage string, err error) {
	logger := loggerFrom(r.Context())

	var input *inputError
	switch {
	case errors.As(err, &input):
		logger.Info("rejected request", zap.String("operation", operation), zap.Error(err))
		writeEnvelope(w, r, http.StatusBadRequest, response.Build(http.StatusBadRequest, input.message, nil))
	case errors.Is(err, repository.ErrStore):
		logger.Error("database error", zap.String("operation", operation), zap.Error(err))
		writeEnvelope(w, r, http.StatusInternalServerError, response.Build(http.StatusInternalServerError, msgDatabaseError, nil))
	default:
		logger.Error("unexpected error", zap.String("operation", operation), zap.Error(err))
		writeEnvelope(w, r, http.StatusInternalServerError, response.Build(http.StatusInternalServerError, failureMessage, nil))
	}
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, httpStatus int, env response.Envelope) {
	if err := response.Write(w, httpStatus, env); err != nil {
		loggerFrom(r.Context()).Warn("failed to write response", zap.Error(err))
	}
}
