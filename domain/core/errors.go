package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)
	ErrJobNotFound     = fmt.Errorf("%w: export job", ErrNotFound)
	ErrTaskNotFound    = fmt.Errorf("%w: merge task", ErrNotFound)
	ErrColumnNotFound  = fmt.Errorf("%w: column", ErrNotFound)

	// Lifecycle errors
	ErrSessionExpired = errors.New("session expired")
	ErrSessionClosed  = errors.New("session closed")
	ErrNoDataset      = errors.New("no dataset loaded")

	// Export errors
	ErrArtifactNotReady = errors.New("artifact not ready")
	ErrArtifactFailed   = errors.New("artifact render failed")

	// Validation errors
	ErrRaggedColumns     = errors.New("columns have unequal lengths")
	ErrEmptyDataset      = errors.New("dataset has no columns")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}
