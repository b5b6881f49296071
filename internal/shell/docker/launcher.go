package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/getgantry/gantry/internal/core/domain"
)

// =============================================================================
// Launcher
// =============================================================================

// DefaultStartTimeout bounds the wait for a container to report running.
const DefaultStartTimeout = 30 * time.Second

// DefaultStopTimeout is the grace period before a container is killed.
const DefaultStopTimeout = 10 * time.Second

// Launcher runs containers from built images and tears them down. It owns
// the Docker side of a launch; status transitions on the launch record stay
// with the caller.
type Launcher struct {
	client Client
	logger *slog.Logger
}

// NewLauncher creates a launcher on top of a Docker client.
func NewLauncher(c Client, l *slog.Logger) *Launcher {
	if l == nil {
		l = slog.Default()
	}
	return &Launcher{client: c, logger: l}
}

// Start creates and starts the container for a launch and waits until Docker
// reports it running. On success the launch's ContainerID is set. If the
// container exits before reaching running, the dead container is removed and
// the exit code is recorded on the launch before the error is returned.
func (lc *Launcher) Start(ctx context.Context, serviceName string, l *domain.Launch, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}

	spec := ContainerSpec{
		Name:  l.ContainerName(serviceName),
		Image: l.Image,
		Labels: map[string]string{
			LabelManaged: "true",
			LabelService: serviceName,
			LabelBuild:   l.BuildID,
		},
		Ports: []PortBinding{
			{ContainerPort: l.Port, HostPort: l.HostPort, Protocol: "tcp"},
		},
	}

	containerID, err := lc.client.CreateContainer(spec)
	if err != nil {
		return fmt.Errorf("create container for launch %s: %w", l.ID, err)
	}
	l.ContainerID = containerID

	if err := lc.client.StartContainer(containerID); err != nil {
		lc.removeQuietly(containerID)
		l.ContainerID = ""
		return fmt.Errorf("start container %s: %w", containerID, err)
	}

	info, err := lc.client.WaitRunning(ctx, containerID, timeout)
	if err != nil {
		lc.logger.Warn("container failed to reach running",
			"launch_id", l.ID, "container_id", containerID, "error", err)
		if info != nil {
			l.ExitCode = info.ExitCode
		}
		lc.removeQuietly(containerID)
		return err
	}

	lc.logger.Info("container running",
		"launch_id", l.ID, "container_id", containerID,
		"host_port", l.HostPort, "port", l.Port)
	return nil
}

// Stop stops the launch's container, records its exit code, and removes it.
func (lc *Launcher) Stop(l *domain.Launch, timeout time.Duration) error {
	if l.ContainerID == "" {
		return fmt.Errorf("launch %s: %w", l.ID, ErrContainerNotFound)
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	if err := lc.client.StopContainer(l.ContainerID, &timeout); err != nil {
		return fmt.Errorf("stop container %s: %w", l.ContainerID, err)
	}

	if info, err := lc.client.InspectContainer(l.ContainerID); err == nil {
		l.ExitCode = info.ExitCode
	}

	lc.removeQuietly(l.ContainerID)

	lc.logger.Info("container stopped",
		"launch_id", l.ID, "container_id", l.ContainerID, "exit_code", l.ExitCode)
	return nil
}

// Logs returns the launch container's log stream.
func (lc *Launcher) Logs(l *domain.Launch, opts LogOptions) (logs []byte, err error) {
	if l.ContainerID == "" {
		return nil, fmt.Errorf("launch %s: %w", l.ID, ErrContainerNotFound)
	}
	rc, err := lc.client.ContainerLogs(l.ContainerID, opts)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (lc *Launcher) removeQuietly(containerID string) {
	if err := lc.client.RemoveContainer(containerID, RemoveOptions{Force: true}); err != nil {
		lc.logger.Warn("failed to remove container", "container_id", containerID, "error", err)
	}
}
