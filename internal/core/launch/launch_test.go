package launch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Spec Validation Tests
// =============================================================================

func TestSpecValidate_Valid(t *testing.T) {
	spec := Spec{Module: "app", Object: "app", Port: 10000}
	assert.NoError(t, spec.Validate())
}

func TestSpecValidate_DottedModule(t *testing.T) {
	spec := Spec{Module: "backend.wsgi", Object: "application", Port: 8000}
	assert.NoError(t, spec.Validate())
}

func TestSpecValidate_MissingModule(t *testing.T) {
	spec := Spec{Object: "app", Port: 10000}
	assert.ErrorIs(t, spec.Validate(), ErrMissingModule)
}

func TestSpecValidate_HyphenatedModule(t *testing.T) {
	// A hyphen is not importable; the manager would fail at startup.
	spec := Spec{Module: "chatbot-backend", Object: "app", Port: 10000}
	assert.ErrorIs(t, spec.Validate(), ErrInvalidModule)
}

func TestSpecValidate_InvalidObject(t *testing.T) {
	spec := Spec{Module: "app", Object: "my app", Port: 10000}
	assert.ErrorIs(t, spec.Validate(), ErrInvalidObject)
}

func TestSpecValidate_PortOutOfRange(t *testing.T) {
	assert.ErrorIs(t, Spec{Module: "app", Object: "app", Port: 0}.Validate(), ErrInvalidPort)
	assert.ErrorIs(t, Spec{Module: "app", Object: "app", Port: 70000}.Validate(), ErrInvalidPort)
}

func TestSpecValidate_InvalidHost(t *testing.T) {
	spec := Spec{Module: "app", Object: "app", Port: 10000, Host: "not-an-ip"}
	assert.ErrorIs(t, spec.Validate(), ErrInvalidHost)
}

func TestSpecValidate_NegativeWorkers(t *testing.T) {
	spec := Spec{Module: "app", Object: "app", Port: 10000, Workers: -1}
	assert.ErrorIs(t, spec.Validate(), ErrInvalidWorkers)
}

// =============================================================================
// Command Tests
// =============================================================================

func TestCommand_Default(t *testing.T) {
	spec := Spec{Module: "app", Object: "app", Port: 10000}

	cmd := spec.Command()
	assert.Equal(t, []string{"gunicorn", "app:app", "--bind", "0.0.0.0:10000"}, cmd)
}

func TestCommand_Workers(t *testing.T) {
	spec := Spec{Module: "app", Object: "app", Port: 10000, Workers: 4}

	cmd := spec.Command()
	assert.Equal(t, []string{"gunicorn", "app:app", "--bind", "0.0.0.0:10000", "--workers", "4"}, cmd)
}

func TestCommand_ZeroWorkersLeavesManagerDefault(t *testing.T) {
	spec := Spec{Module: "app", Object: "app", Port: 10000, Workers: 0}

	cmd := spec.Command()
	assert.NotContains(t, cmd, "--workers")
}

func TestBindAddr_AllInterfacesByDefault(t *testing.T) {
	spec := Spec{Module: "app", Object: "app", Port: 5000}
	assert.Equal(t, "0.0.0.0:5000", spec.BindAddr())
}

func TestBindAddr_ExplicitHost(t *testing.T) {
	spec := Spec{Module: "app", Object: "app", Port: 5000, Host: "127.0.0.1"}
	assert.Equal(t, "127.0.0.1:5000", spec.BindAddr())
}

func TestTarget(t *testing.T) {
	spec := Spec{Module: "backend.wsgi", Object: "application"}
	assert.Equal(t, "backend.wsgi:application", spec.Target())
}

// =============================================================================
// State Machine Tests
// =============================================================================

func TestNext_StartFromStopped(t *testing.T) {
	state, err := Next(StateStopped, EventStart)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
}

func TestNext_ExitFromRunning(t *testing.T) {
	state, err := Next(StateRunning, EventExit)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)
}

func TestNext_SignalFromRunning(t *testing.T) {
	state, err := Next(StateRunning, EventSignal)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)
}

func TestNext_StartupFailureStops(t *testing.T) {
	// An application object that cannot be imported exits immediately:
	// the container must not remain running.
	state, err := Next(StateRunning, EventStartupFailed)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)
}

func TestNext_StartWhileRunning(t *testing.T) {
	_, err := Next(StateRunning, EventStart)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNext_ExitWhileStopped(t *testing.T) {
	_, err := Next(StateStopped, EventExit)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNext_UnknownState(t *testing.T) {
	_, err := Next(State("paused"), EventStart)
	assert.ErrorIs(t, err, ErrUnknownState)
}
