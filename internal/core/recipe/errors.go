package recipe

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrInvalidYAML         = errors.New("invalid recipe YAML")
	ErrUnreadable          = errors.New("recipe file unreadable")
	ErrUnsupportedRuntime  = errors.New("unsupported runtime")
	ErrInvalidVersion      = errors.New("invalid runtime version tag")
	ErrInvalidWorkDir      = errors.New("invalid workdir")
	ErrInvalidManifestPath = errors.New("invalid manifest path")
	ErrInvalidPipFlag      = errors.New("invalid installer flag")
)

// RecipeError wraps errors with the operation and field that failed.
type RecipeError struct {
	Op      string
	Field   string
	Message string
	Err     error
}

func (e *RecipeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RecipeError) Unwrap() error {
	return e.Err
}

// NewRecipeError creates a new RecipeError.
func NewRecipeError(op, field, message string, err error) *RecipeError {
	return &RecipeError{
		Op:      op,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
