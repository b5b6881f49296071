package main

import (
	"github.com/getgantry/gantry/internal/core/report"
)

// dispatch routes the command to the appropriate handler.
func dispatch(cmd string, args []string) error {
	switch cmd {
	// Health commands
	case "version":
		return versionCmd()
	case "ping":
		return pingCmd()

	// Build commands
	case "render":
		return renderCmd(args)
	case "manifest":
		return manifestCmd(args)
	case "build":
		return buildCmd(args)
	case "compose":
		return composeCmd(args)

	// Container commands
	case "run":
		return runCmd(args)
	case "stop":
		return stopCmd(args)
	case "status":
		return statusCmd(args)
	case "logs":
		return logsCmd(args)

	default:
		outputError(cmd, report.ErrCodeInvalidInput, "unknown command: "+cmd)
		return errUnknownCommand
	}
}

// errUnknownCommand is returned for unknown commands.
var errUnknownCommand = &commandError{msg: "unknown command"}

// commandError represents a command error.
type commandError struct {
	msg string
}

func (e *commandError) Error() string {
	return e.msg
}
