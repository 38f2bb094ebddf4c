package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAdmission marks jobs rejected before anything is persisted.
	ErrAdmission     = errors.New("admission rejected")
	ErrValidation    = errors.New("validation error")
	ErrIncompatible  = errors.New("platform incompatible")
	ErrFinalization  = errors.New("finalization error")
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a per-campaign failure is worth another attempt.
// Validation, compatibility, configuration, and missing-input failures are
// permanent; everything else is retried.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrIncompatible),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAdmission):
		return false
	default:
		return true
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
