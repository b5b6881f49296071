// Package main provides the gantry CLI for local builds and launches.
//
// The CLI talks to Docker directly, without the daemon. Every command
// writes one JSON envelope to stdout so scripts and CI steps can consume
// results without scraping log text.
//
// Usage:
//
//	gantry <command> [args...]
//
// Commands:
//
//	version                         - Show CLI version
//	ping                            - Test Docker connection
//	render [dir]                    - Render the Dockerfile for a context
//	manifest [dir]                  - Parse and fingerprint the dependency manifest
//	build <service> [dir]           - Build a service image (--no-cache)
//	run <service> [dir]             - Start a container (--host-port N)
//	stop <container-id>             - Stop and remove a container
//	status <container-id>           - Report a container's launch state
//	logs <container-id> [tail]      - Print container logs
//	compose <service> [dir]         - Export a compose project for the image
package main

import (
	"encoding/json"
	"os"
	"runtime"

	"github.com/getgantry/gantry/internal/core/report"
)

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		outputError("usage", report.ErrCodeInvalidInput, "usage: gantry <command> [args...]")
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if err := dispatch(cmd, args); err != nil {
		// Error already written to stdout by command handler
		os.Exit(1)
	}
}

// outputSuccess writes a success response to stdout.
func outputSuccess(data interface{}) {
	resp, err := report.NewSuccessResponse(data)
	if err != nil {
		outputError("internal", report.ErrCodeInternal, err.Error())
		return
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// outputError writes an error response to stdout.
func outputError(command, code, message string) {
	resp := report.NewErrorResponse(command, code, message)
	json.NewEncoder(os.Stdout).Encode(resp)
}

// versionCmd handles the "version" command.
func versionCmd() error {
	info := report.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	outputSuccess(info)
	return nil
}
