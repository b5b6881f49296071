package launch

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrMissingModule  = errors.New("module is required")
	ErrInvalidModule  = errors.New("module is not an importable name")
	ErrMissingObject  = errors.New("application object is required")
	ErrInvalidObject  = errors.New("application object is not an identifier")
	ErrInvalidPort    = errors.New("port must be between 1 and 65535")
	ErrInvalidHost    = errors.New("host is not a valid IP address")
	ErrInvalidWorkers = errors.New("workers must not be negative")

	ErrUnknownState      = errors.New("unknown container state")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// LaunchError wraps a validation failure with the offending field.
type LaunchError struct {
	Field string
	Value string
	Err   error
}

func (e *LaunchError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("launch %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("launch %s: %v", e.Field, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NewLaunchError creates a new LaunchError.
func NewLaunchError(field, value string, err error) *LaunchError {
	return &LaunchError{Field: field, Value: value, Err: err}
}
