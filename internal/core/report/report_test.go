package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Envelope Tests
// =============================================================================

func TestNewSuccessResponse(t *testing.T) {
	resp, err := NewSuccessResponse(RunResult{ContainerID: "abc", State: "running"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)

	var result RunResult
	require.NoError(t, resp.UnmarshalData(&result))
	assert.Equal(t, "abc", result.ContainerID)
	assert.Equal(t, "running", result.State)
}

func TestNewSuccessResponse_NilData(t *testing.T) {
	resp, err := NewSuccessResponse(nil)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Nil(t, resp.Data)

	var target RunResult
	assert.NoError(t, resp.UnmarshalData(&target))
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("build", ErrCodeBuildFailed, "unresolvable dependency")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "build", resp.Error.Command)
	assert.Equal(t, ErrCodeBuildFailed, resp.Error.Code)
	assert.Equal(t, "unresolvable dependency", resp.Error.Message)
}

func TestRoundTrip(t *testing.T) {
	resp, err := NewSuccessResponse(BuildResult{
		Image:               "gantry/chatbot:latest",
		ManifestFingerprint: "deadbeef",
		FullyPinned:         true,
		Stages: []StageReport{
			{Stage: "base", Status: "succeeded", DurationMS: 1200},
		},
	})
	require.NoError(t, err)

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)

	parsed, err := ParseResponse(encoded)
	require.NoError(t, err)
	assert.True(t, parsed.Success)

	var result BuildResult
	require.NoError(t, parsed.UnmarshalData(&result))
	assert.Equal(t, "gantry/chatbot:latest", result.Image)
	require.Len(t, result.Stages, 1)
	assert.Equal(t, "base", result.Stages[0].Stage)
}

func TestParseResponse_Invalid(t *testing.T) {
	_, err := ParseResponse([]byte("not json"))
	assert.Error(t, err)
}

func TestErrorOmittedOnSuccess(t *testing.T) {
	resp, err := NewSuccessResponse(nil)
	require.NoError(t, err)

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "error")
}
