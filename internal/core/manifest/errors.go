package manifest

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrInvalidName          = errors.New("invalid package name")
	ErrInvalidVersion       = errors.New("invalid version")
	ErrDuplicatePackage     = errors.New("duplicate package")
	ErrUnsupportedDirective = errors.New("unsupported manifest directive")
)

// ParseError wraps errors with the line where parsing failed.
type ParseError struct {
	Line    int
	Entry   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d (%q): %s", e.Line, e.Entry, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(line int, entry, message string, err error) *ParseError {
	return &ParseError{
		Line:    line,
		Entry:   entry,
		Message: message,
		Err:     err,
	}
}
