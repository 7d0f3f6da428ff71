package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"bilan/internal/core"
	applog "bilan/internal/log"
)

type errorResponse struct {
	Error       string        `json:"error"`
	Field       string        `json:"field,omitempty"`
	Succeeded   []string      `json:"succeeded,omitempty"`
	Failed      []failedWrite `json:"failed,omitempty"`
	Compensated []string      `json:"compensated,omitempty"`
}

type failedWrite struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error to its HTTP status and response body.
// Store failures get a generic message; their cause is only logged.
func statusFor(err error) (int, errorResponse) {
	var (
		partial *core.PartialApplicationError
		invalid *core.ValidationError
		bad     *badRequest
		store   *core.StoreError
	)
	switch {
	case errors.Is(err, errMissingUser):
		return http.StatusUnauthorized, errorResponse{Error: err.Error()}
	case errors.As(err, &bad):
		return http.StatusBadRequest, errorResponse{Error: bad.Error()}
	case errors.As(err, &partial):
		resp := errorResponse{
			Error:       partial.Op + " partially applied",
			Succeeded:   partial.Succeeded,
			Compensated: partial.Compensated,
		}
		for _, f := range partial.Failed {
			resp.Failed = append(resp.Failed, failedWrite{ID: f.ID, Error: "store write failed"})
		}
		return http.StatusInternalServerError, resp
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, errorResponse{Error: invalid.Err.Error(), Field: invalid.Field}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not found"}
	case errors.Is(err, core.ErrGroupCollision):
		return http.StatusConflict, errorResponse{Error: core.ErrGroupCollision.Error()}
	case errors.As(err, &store):
		return http.StatusBadGateway, errorResponse{Error: "storage unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return applog.ErrorTypeValidation
	case http.StatusUnauthorized:
		return applog.ErrorTypeAuth
	case http.StatusNotFound:
		return applog.ErrorTypeNotFound
	case http.StatusBadGateway:
		return applog.ErrorTypeStore
	default:
		return applog.ErrorTypeInternal
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)

	f := applog.NewFields().WithError(err).WithErrorType(errorType(status))
	var partial *core.PartialApplicationError
	if errors.As(err, &partial) {
		f.WithErrorType(applog.ErrorTypePartial)
	}
	logger := applog.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", f.ToSlice()...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", f.ToSlice()...)
	}
	writeJSON(w, status, body)
}
