package server

import (
	"errors"
	"net/http"

	"github.com/revlinehq/scotty/pkg/pipeline"
)

// errorBody is the wire shape for failed requests. Code mirrors the
// cloud-function error taxonomy the mobile clients already handle.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps pipeline errors to HTTP statuses and taxonomy codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid-argument"
	case errors.Is(err, pipeline.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, pipeline.ErrResourceExhausted):
		return http.StatusTooManyRequests, "resource-exhausted"
	case errors.Is(err, pipeline.ErrPrecondition):
		return http.StatusInternalServerError, "failed-precondition"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
