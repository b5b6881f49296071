package main

import (
	"runtime"

	"github.com/getgantry/gantry/internal/core/report"
	"github.com/getgantry/gantry/internal/shell/docker"
)

// pingCmd handles the "ping" command. It tests the connection to Docker
// and returns version info.
func pingCmd() error {
	cli, err := docker.NewDockerClient("")
	if err != nil {
		outputError("ping", report.ErrCodeConnectionFailed, "failed to create docker client: "+err.Error())
		return err
	}
	defer cli.Close()

	version, err := cli.Version()
	if err != nil {
		outputError("ping", report.ErrCodeConnectionFailed, "failed to connect to docker: "+err.Error())
		return err
	}

	info := report.PingInfo{
		DockerVersion: version.Version,
		APIVersion:    version.APIVersion,
		OS:            version.OS,
		Arch:          runtime.GOARCH,
	}
	outputSuccess(info)
	return nil
}
