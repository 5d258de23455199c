package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deepp5/catrack/internal/adapters/mq/queue"
	service "github.com/deepp5/catrack/internal/app"
	"github.com/deepp5/catrack/internal/domain/model"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps an engine error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMethod):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidKey),
		errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrInsufficientData):
		return http.StatusBadRequest, "insufficient_data"
	case errors.Is(err, model.ErrBaselineNotFound):
		return http.StatusNotFound, "baseline_not_found"
	case errors.Is(err, model.ErrDecode):
		return http.StatusUnprocessableEntity, "decode_error"
	case errors.Is(err, model.ErrRetrieval):
		return http.StatusBadGateway, "retrieval_error"
	case errors.Is(err, model.ErrDimensionMismatch):
		return http.StatusConflict, "dimension_mismatch"
	case errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, queue.ErrClosed),
		errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// fail writes err with the status classify picks for it.
func fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
