// Package launch contains pure functions for the process launch contract.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// The launch contract is the sole agreement between the packaged image and
// the application code inside it: a process manager loads a named
// module:object pair and binds a listening socket on every interface at the
// declared port. If the object cannot be imported, the process exits
// non-zero immediately - no retry or backoff exists at this layer.
package launch

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

// =============================================================================
// Launch Spec
// =============================================================================

// DefaultManager is the production WSGI process manager.
const DefaultManager = "gunicorn"

// AllInterfaces is the bind host covering every network interface.
const AllInterfaces = "0.0.0.0"

// Spec describes how the server process is started inside the container.
type Spec struct {
	Module  string // importable module name, e.g. "app"
	Object  string // application object within the module, e.g. "app"
	Host    string // bind host; empty means AllInterfaces
	Port    int    // declared traffic port
	Workers int    // worker processes; 0 leaves the manager's default
}

// modulePattern matches a dotted importable module path.
var modulePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// objectPattern matches a plain identifier.
var objectPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that the spec can form a working launch command.
func (s Spec) Validate() error {
	if s.Module == "" {
		return NewLaunchError("module", "", ErrMissingModule)
	}
	if !modulePattern.MatchString(s.Module) {
		return NewLaunchError("module", s.Module, ErrInvalidModule)
	}
	if s.Object == "" {
		return NewLaunchError("object", "", ErrMissingObject)
	}
	if !objectPattern.MatchString(s.Object) {
		return NewLaunchError("object", s.Object, ErrInvalidObject)
	}
	if s.Port < 1 || s.Port > 65535 {
		return NewLaunchError("port", strconv.Itoa(s.Port), ErrInvalidPort)
	}
	if s.Host != "" && net.ParseIP(s.Host) == nil {
		return NewLaunchError("host", s.Host, ErrInvalidHost)
	}
	if s.Workers < 0 {
		return NewLaunchError("workers", strconv.Itoa(s.Workers), ErrInvalidWorkers)
	}
	return nil
}

// Target returns the module:object pair the manager imports.
func (s Spec) Target() string {
	return s.Module + ":" + s.Object
}

// BindAddr returns the host:port the listening socket is bound to.
func (s Spec) BindAddr() string {
	host := s.Host
	if host == "" {
		host = AllInterfaces
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// Command returns the exec-form foreground command that starts the server
// process. The command is the container's PID 1: the process owns the
// listening socket for its entire lifetime and releases it only on exit.
func (s Spec) Command() []string {
	cmd := []string{DefaultManager, s.Target(), "--bind", s.BindAddr()}
	if s.Workers > 0 {
		cmd = append(cmd, "--workers", strconv.Itoa(s.Workers))
	}
	return cmd
}

// =============================================================================
// Container State Machine
// =============================================================================

// State is a container state under the launch contract. There are exactly
// two: stopped and running. Paused or restarting states belong to an
// external orchestrator, not to this artifact.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Event is a transition trigger.
type Event string

const (
	EventStart         Event = "start"          // launch command invoked
	EventExit          Event = "exit"           // process exited (any code)
	EventSignal        Event = "signal"         // process terminated by signal
	EventStartupFailed Event = "startup_failed" // application object import failed
)

// Next applies an event to a state. Transitions outside the two-state model
// are errors, not silent no-ops: callers observing them have lost track of
// the process.
func Next(s State, e Event) (State, error) {
	switch s {
	case StateStopped:
		if e == EventStart {
			return StateRunning, nil
		}
	case StateRunning:
		switch e {
		case EventExit, EventSignal, EventStartupFailed:
			return StateStopped, nil
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
	}
	return "", fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, e, s)
}
