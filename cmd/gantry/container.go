package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/getgantry/gantry/internal/core/domain"
	"github.com/getgantry/gantry/internal/core/launch"
	"github.com/getgantry/gantry/internal/core/recipe"
	"github.com/getgantry/gantry/internal/core/report"
	"github.com/getgantry/gantry/internal/shell/docker"
)

// hostPortArg extracts a "--host-port N" pair from args, returning 0 when
// absent.
func hostPortArg(args []string) int {
	for i, a := range args {
		if a == "--host-port" && i+1 < len(args) {
			if p, err := strconv.Atoi(args[i+1]); err == nil {
				return p
			}
		}
	}
	return 0
}

// runCmd handles the "run" command: it starts a container from a built
// service image and waits for it to report running.
func runCmd(args []string) error {
	if len(args) < 1 {
		outputError("run", report.ErrCodeInvalidInput, "usage: gantry run <service> [dir] [--host-port N]")
		return errUnknownCommand
	}
	service := args[0]
	dir := contextDir(args[1:])

	rec, err := recipe.Load(filepath.Join(dir, recipe.DefaultFileName))
	if err != nil {
		outputError("run", report.ErrCodeInvalidInput, err.Error())
		return err
	}

	hostPort := hostPortArg(args)
	if hostPort == 0 {
		hostPort = rec.Port
	}

	// Synthesize the records the daemon would otherwise keep: a launch
	// always descends from a succeeded build of the service image.
	build := &domain.Build{
		ID:          domain.NewID(),
		ServiceName: service,
		ImageTag:    recipe.ImageTag(service),
		Status:      domain.BuildStatusSucceeded,
	}
	l, err := domain.NewLaunch(build, hostPort, rec.Port)
	if err != nil {
		outputError("run", report.ErrCodeInvalidInput, err.Error())
		return err
	}

	cli, err := docker.NewDockerClient("")
	if err != nil {
		outputError("run", report.ErrCodeConnectionFailed, err.Error())
		return err
	}
	defer cli.Close()

	launcher := docker.NewLauncher(cli, nil)
	if err := launcher.Start(context.Background(), service, l, docker.DefaultStartTimeout); err != nil {
		outputError("run", report.ErrCodeStartFailed, err.Error())
		return err
	}

	outputSuccess(report.RunResult{
		ContainerID: l.ContainerID,
		Image:       l.Image,
		BindAddr:    rec.LaunchSpec().BindAddr(),
		HostPort:    l.HostPort,
		State:       string(launch.StateRunning),
	})
	return nil
}

// stopCmd handles the "stop" command: it stops and removes a container.
func stopCmd(args []string) error {
	if len(args) < 1 {
		outputError("stop", report.ErrCodeInvalidInput, "usage: gantry stop <container-id>")
		return errUnknownCommand
	}
	containerID := args[0]

	cli, err := docker.NewDockerClient("")
	if err != nil {
		outputError("stop", report.ErrCodeConnectionFailed, err.Error())
		return err
	}
	defer cli.Close()

	l := &domain.Launch{
		ID:          domain.NewID(),
		ContainerID: containerID,
		Status:      domain.LaunchStatusRunning,
	}
	launcher := docker.NewLauncher(cli, nil)
	if err := launcher.Stop(l, docker.DefaultStopTimeout); err != nil {
		outputError("stop", report.ErrCodeStopFailed, err.Error())
		return err
	}

	outputSuccess(report.StatusResult{
		ContainerID: containerID,
		State:       string(launch.StateStopped),
		ExitCode:    l.ExitCode,
	})
	return nil
}

// statusCmd handles the "status" command: it maps the container's Docker
// state onto the two-state launch contract.
func statusCmd(args []string) error {
	if len(args) < 1 {
		outputError("status", report.ErrCodeInvalidInput, "usage: gantry status <container-id>")
		return errUnknownCommand
	}
	containerID := args[0]

	cli, err := docker.NewDockerClient("")
	if err != nil {
		outputError("status", report.ErrCodeConnectionFailed, err.Error())
		return err
	}
	defer cli.Close()

	info, err := cli.InspectContainer(containerID)
	if err != nil {
		outputError("status", report.ErrCodeNotFound, err.Error())
		return err
	}

	state := launch.StateStopped
	if info.Status == docker.ContainerStatusRunning {
		state = launch.StateRunning
	}

	outputSuccess(report.StatusResult{
		ContainerID: info.ID,
		State:       string(state),
		ExitCode:    info.ExitCode,
	})
	return nil
}

// logsCmd handles the "logs" command. Log text goes to stderr so stdout
// stays a single JSON envelope.
func logsCmd(args []string) error {
	if len(args) < 1 {
		outputError("logs", report.ErrCodeInvalidInput, "usage: gantry logs <container-id> [tail]")
		return errUnknownCommand
	}
	containerID := args[0]
	tail := "all"
	if len(args) > 1 {
		tail = args[1]
	}

	cli, err := docker.NewDockerClient("")
	if err != nil {
		outputError("logs", report.ErrCodeConnectionFailed, err.Error())
		return err
	}
	defer cli.Close()

	rc, err := cli.ContainerLogs(containerID, docker.LogOptions{Tail: tail})
	if err != nil {
		outputError("logs", report.ErrCodeNotFound, err.Error())
		return err
	}
	defer rc.Close()

	n, err := io.Copy(os.Stderr, rc)
	if err != nil {
		outputError("logs", report.ErrCodeInternal, err.Error())
		return err
	}

	outputSuccess(map[string]any{"container_id": containerID, "bytes": n})
	return nil
}
