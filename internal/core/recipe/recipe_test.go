package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Default Tests
// =============================================================================

func TestDefault(t *testing.T) {
	r := Default()

	assert.Equal(t, "python", r.Runtime)
	assert.Equal(t, "3.11-slim", r.Version)
	assert.Equal(t, "/app", r.WorkDir)
	assert.Equal(t, "requirements.txt", r.Manifest)
	assert.Equal(t, 10000, r.Port)
	assert.Equal(t, "app", r.Module)
	assert.Equal(t, "app", r.Object)
	assert.False(t, r.SourceFirst)
	assert.NoError(t, r.Validate())
}

func TestBaseImage(t *testing.T) {
	r := Default()
	assert.Equal(t, "python:3.11-slim", r.BaseImage())

	r.Version = "3.12"
	assert.Equal(t, "python:3.12", r.BaseImage())
}

func TestImageTag(t *testing.T) {
	assert.Equal(t, "gantry/chatbot:latest", ImageTag("chatbot"))
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_Empty(t *testing.T) {
	r, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), r)
}

func TestParse_Overrides(t *testing.T) {
	data := []byte(`
version: "3.12-slim"
port: 8000
module: backend
object: application
workers: 2
pip_flags:
  - --no-cache-dir
`)
	r, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "3.12-slim", r.Version)
	assert.Equal(t, 8000, r.Port)
	assert.Equal(t, "backend", r.Module)
	assert.Equal(t, "application", r.Object)
	assert.Equal(t, 2, r.Workers)
	assert.Equal(t, []string{"--no-cache-dir"}, r.PipFlags)

	// Untouched fields keep the defaults.
	assert.Equal(t, "python", r.Runtime)
	assert.Equal(t, "/app", r.WorkDir)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte("prot: 8000\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("port: [unclosed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParse_ValidatesResult(t *testing.T) {
	_, err := Parse([]byte("port: 99999\n"))
	require.Error(t, err)
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "gantry.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), r)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gantry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\n"), 0644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, r.Port)
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate_UnsupportedRuntime(t *testing.T) {
	r := Default()
	r.Runtime = "node"
	assert.ErrorIs(t, r.Validate(), ErrUnsupportedRuntime)
}

func TestValidate_BadVersionTag(t *testing.T) {
	r := Default()
	r.Version = "3.11 slim"
	assert.ErrorIs(t, r.Validate(), ErrInvalidVersion)

	r.Version = ""
	assert.ErrorIs(t, r.Validate(), ErrInvalidVersion)
}

func TestValidate_RelativeWorkDir(t *testing.T) {
	r := Default()
	r.WorkDir = "app"
	assert.ErrorIs(t, r.Validate(), ErrInvalidWorkDir)
}

func TestValidate_ManifestPath(t *testing.T) {
	r := Default()

	r.Manifest = ""
	assert.ErrorIs(t, r.Validate(), ErrInvalidManifestPath)

	r.Manifest = "/etc/requirements.txt"
	assert.ErrorIs(t, r.Validate(), ErrInvalidManifestPath)

	r.Manifest = "../requirements.txt"
	assert.ErrorIs(t, r.Validate(), ErrInvalidManifestPath)

	r.Manifest = "deps/requirements.txt"
	assert.NoError(t, r.Validate())
}

func TestValidate_LaunchContract(t *testing.T) {
	r := Default()
	r.Module = "chatbot-backend"
	assert.Error(t, r.Validate())

	r = Default()
	r.Port = 0
	assert.Error(t, r.Validate())
}

func TestValidate_PipFlags(t *testing.T) {
	r := Default()
	r.PipFlags = []string{"--no-cache-dir"}
	assert.NoError(t, r.Validate())

	r.PipFlags = []string{"--no-cache-dir; rm -rf /"}
	assert.ErrorIs(t, r.Validate(), ErrInvalidPipFlag)
}
