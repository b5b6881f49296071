package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrInvalidServiceName = errors.New("invalid service name")
	ErrMissingImage       = errors.New("image reference is required")
	ErrInvalidYAML        = errors.New("invalid compose YAML")
	ErrNoServices         = errors.New("compose project defines no services")
)

// ExportError wraps errors with the operation and service that failed.
type ExportError struct {
	Op      string
	Service string
	Message string
	Err     error
}

func (e *ExportError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Service, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewExportError creates a new ExportError.
func NewExportError(op, service, message string, err error) *ExportError {
	return &ExportError{
		Op:      op,
		Service: service,
		Message: message,
		Err:     err,
	}
}
