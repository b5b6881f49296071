// Package domain contains the persistent entities gantry records: builds
// and launches. This is part of the Functional Core - pure types and
// transition rules, no I/O.
package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Build Errors
// =============================================================================

var (
	ErrInvalidServiceName = errors.New("invalid service name")
	ErrMissingContextDir  = errors.New("context directory is required")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrBuildNotSucceeded  = errors.New("build has not succeeded")
)

// =============================================================================
// Build Status
// =============================================================================

// BuildStatus is the lifecycle state of a recorded build.
type BuildStatus string

const (
	BuildStatusPending   BuildStatus = "pending"
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusSucceeded BuildStatus = "succeeded"
	BuildStatusFailed    BuildStatus = "failed"
)

// buildTransitions lists the allowed status moves. A build never leaves a
// terminal state: a re-run is a new build row, keeping history append-only.
var buildTransitions = map[BuildStatus][]BuildStatus{
	BuildStatusPending: {BuildStatusRunning, BuildStatusFailed},
	BuildStatusRunning: {BuildStatusSucceeded, BuildStatusFailed},
}

// CanTransitionBuild reports whether a build status move is allowed.
func CanTransitionBuild(from, to BuildStatus) bool {
	for _, allowed := range buildTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// =============================================================================
// Build Entity
// =============================================================================

// serviceNamePattern matches a service name usable in image tags and
// container names.
var serviceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Build records one attempt to turn a source checkout into an image.
type Build struct {
	ID          string      `json:"id"`
	ServiceName string      `json:"service_name"`
	ContextDir  string      `json:"context_dir"`
	Recipe      string      `json:"recipe"` // recipe YAML snapshot at submission time
	ImageTag    string      `json:"image_tag,omitempty"`
	Fingerprint string      `json:"manifest_fingerprint,omitempty"`
	FullyPinned bool        `json:"fully_pinned"`
	Status      BuildStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
}

// NewBuild creates a pending build for a service and context directory.
func NewBuild(serviceName, contextDir, recipeYAML string) (*Build, error) {
	if !serviceNamePattern.MatchString(serviceName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidServiceName, serviceName)
	}
	if contextDir == "" {
		return nil, ErrMissingContextDir
	}
	return &Build{
		ID:          uuid.NewString(),
		ServiceName: serviceName,
		ContextDir:  contextDir,
		Recipe:      recipeYAML,
		Status:      BuildStatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Transition moves the build to a new status, stamping the matching
// timestamp.
func (b *Build) Transition(to BuildStatus, now time.Time) error {
	if !CanTransitionBuild(b.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	b.Status = to
	switch to {
	case BuildStatusRunning:
		t := now.UTC()
		b.StartedAt = &t
	case BuildStatusSucceeded, BuildStatusFailed:
		t := now.UTC()
		b.FinishedAt = &t
	}
	return nil
}

// Terminal reports whether the build reached a final status.
func (b *Build) Terminal() bool {
	return b.Status == BuildStatusSucceeded || b.Status == BuildStatusFailed
}
