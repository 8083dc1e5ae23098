package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrDeviceUnavailable indicates the capture resource is busy or access
	// was denied. Never auto-retried.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrSessionConflict indicates a second concurrent recording was attempted.
	ErrSessionConflict = errors.New("recording session conflict")
	// ErrInvalidInput indicates a request that must be rejected before any
	// side effect: disallowed content type, oversized payload, missing field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransferFailure indicates a network or backend error during upload.
	// Retryable via a new attempt.
	ErrTransferFailure = errors.New("transfer failure")
	// ErrPersistenceFailure indicates a catalog or analytics write failed.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrNotFound indicates a referenced object does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTimeout indicates an operation exceeded its wall-clock bound.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransferFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a classified error to the status code the API boundary
// should return. Unclassified errors map to 500; only truly unexpected
// internal faults should reach that default.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionConflict), errors.Is(err, ErrDeviceUnavailable):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a failure may be retried with a fresh attempt.
// Device, session, and validation errors are surfaced to the caller as-is.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrTransferFailure), errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
