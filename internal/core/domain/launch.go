package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Launch Errors
// =============================================================================

var (
	ErrMissingBuildID = errors.New("build id is required")
	ErrInvalidPort    = errors.New("invalid host port")
)

// =============================================================================
// Launch Status
// =============================================================================

// LaunchStatus is the recorded state of a launched container. It mirrors
// the two-state launch contract plus the transient window while Docker
// creates and starts the container.
type LaunchStatus string

const (
	LaunchStatusStarting LaunchStatus = "starting"
	LaunchStatusRunning  LaunchStatus = "running"
	LaunchStatusStopped  LaunchStatus = "stopped"
	LaunchStatusFailed   LaunchStatus = "failed" // never reached running
)

var launchTransitions = map[LaunchStatus][]LaunchStatus{
	LaunchStatusStarting: {LaunchStatusRunning, LaunchStatusFailed},
	LaunchStatusRunning:  {LaunchStatusStopped},
}

// CanTransitionLaunch reports whether a launch status move is allowed.
func CanTransitionLaunch(from, to LaunchStatus) bool {
	for _, allowed := range launchTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// =============================================================================
// Launch Entity
// =============================================================================

// Launch records one container started from a succeeded build.
type Launch struct {
	ID          string       `json:"id"`
	BuildID     string       `json:"build_id"`
	ContainerID string       `json:"container_id,omitempty"`
	Image       string       `json:"image"`
	HostPort    int          `json:"host_port"`
	Port        int          `json:"port"` // declared container port
	Status      LaunchStatus `json:"status"`
	ExitCode    int          `json:"exit_code,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StoppedAt   *time.Time   `json:"stopped_at,omitempty"`
}

// NewLaunch creates a starting launch record for a succeeded build.
func NewLaunch(build *Build, hostPort, port int) (*Launch, error) {
	if build == nil || build.ID == "" {
		return nil, ErrMissingBuildID
	}
	if build.Status != BuildStatusSucceeded {
		return nil, fmt.Errorf("%w: build %s is %s", ErrBuildNotSucceeded, build.ID, build.Status)
	}
	if hostPort < 1 || hostPort > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, hostPort)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return &Launch{
		ID:        uuid.NewString(),
		BuildID:   build.ID,
		Image:     build.ImageTag,
		HostPort:  hostPort,
		Port:      port,
		Status:    LaunchStatusStarting,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Transition moves the launch to a new status.
func (l *Launch) Transition(to LaunchStatus, now time.Time) error {
	if !CanTransitionLaunch(l.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, to)
	}
	l.Status = to
	if to == LaunchStatusStopped || to == LaunchStatusFailed {
		t := now.UTC()
		l.StoppedAt = &t
	}
	return nil
}

// ContainerName returns the deterministic container name for a launch.
func (l *Launch) ContainerName(serviceName string) string {
	return "gantry-" + serviceName + "-" + shortID(l.ID)
}

// shortID returns the first uuid group, enough to disambiguate containers
// on one host.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}
