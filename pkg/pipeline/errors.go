package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed input (e.g. an empty
	// message list after cleaning). Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPrecondition is returned when server configuration is missing
	// (e.g. no API credential). Fatal, surfaced as-is.
	ErrPrecondition = errors.New("failed precondition")

	// ErrUnauthenticated is returned when the caller has no identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrResourceExhausted is returned when the AI provider reports
	// quota exhaustion.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInternal wraps any downstream service failure. The upstream
	// message is preserved for diagnostics.
	ErrInternal = errors.New("internal error")
)

// internal wraps an upstream error as ErrInternal, keeping its message.
func internal(err error) error {
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
