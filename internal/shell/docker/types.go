// Package docker provides the Docker client for image builds and container
// lifecycle management.
package docker

import (
	"context"
	"io"
	"time"
)

// =============================================================================
// Build Types
// =============================================================================

// BuildSpec defines an image build: a rendered Dockerfile applied to a
// build context directory.
type BuildSpec struct {
	Tag        string            // image tag for a successful build
	ContextDir string            // build context root on the local filesystem
	Dockerfile string            // rendered Dockerfile content, injected into the context
	Labels     map[string]string // image labels (manifest fingerprint, service name)
	NoCache    bool              // disable layer cache reuse
}

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec defines the specification for creating a container.
type ContainerSpec struct {
	Name   string
	Image  string
	Env    map[string]string
	Labels map[string]string
	Ports  []PortBinding
}

// PortBinding defines a port mapping.
type PortBinding struct {
	ContainerPort int
	HostPort      int    // 0 for auto-assign
	Protocol      string // "tcp" or "udp"
	HostIP        string // "" for 0.0.0.0
}

// RemoveOptions defines options for removing containers.
type RemoveOptions struct {
	Force bool
}

// LogOptions defines options for container logs.
type LogOptions struct {
	Follow     bool
	Tail       string // "all" or number
	Timestamps bool
}

// PullOptions defines options for pulling images.
type PullOptions struct {
	Platform string // e.g. "linux/amd64"
}

// =============================================================================
// Container Info
// =============================================================================

// ContainerStatus represents the container status as Docker reports it.
type ContainerStatus string

const (
	ContainerStatusCreated    ContainerStatus = "created"
	ContainerStatusRunning    ContainerStatus = "running"
	ContainerStatusRestarting ContainerStatus = "restarting"
	ContainerStatusRemoving   ContainerStatus = "removing"
	ContainerStatusExited     ContainerStatus = "exited"
	ContainerStatusDead       ContainerStatus = "dead"
)

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID         string
	Name       string
	Image      string
	Status     ContainerStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Ports      []PortBinding
	Labels     map[string]string
	ExitCode   int
}

// VersionInfo reports the daemon version from a ping.
type VersionInfo struct {
	Version    string
	APIVersion string
	OS         string
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the Docker client interface. Build and wait operations
// take a context because they are long-running; everything else completes
// in one round trip.
type Client interface {
	// Image operations
	BuildImage(ctx context.Context, spec BuildSpec) error
	PullImage(image string, opts PullOptions) error
	ImageExists(image string) (bool, error)

	// Container operations
	CreateContainer(spec ContainerSpec) (containerID string, err error)
	StartContainer(containerID string) error
	StopContainer(containerID string, timeout *time.Duration) error
	RemoveContainer(containerID string, opts RemoveOptions) error
	InspectContainer(containerID string) (*ContainerInfo, error)
	ContainerLogs(containerID string, opts LogOptions) (io.ReadCloser, error)
	WaitRunning(ctx context.Context, containerID string, timeout time.Duration) (*ContainerInfo, error)

	// Health operations
	Ping() error
	Version() (*VersionInfo, error)
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

const (
	LabelManaged     = "com.gantry.managed"
	LabelService     = "com.gantry.service"
	LabelBuild       = "com.gantry.build"
	LabelFingerprint = "com.gantry.manifest-fingerprint"
)
