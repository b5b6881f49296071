package docker

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Build Context Tests
// =============================================================================

// readTarNames drains a tar stream into name -> content.
func readTarNames(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	entries := make(map[string]string)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(data)
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestNewBuildContext_FullTree(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"app.py":           "app = object()",
		"requirements.txt": "flask==3.0.0",
		"data/model.pkl":   "binary",
	})

	rc, err := NewBuildContext(dir, "FROM python:3.11-slim\n")
	require.NoError(t, err)
	defer rc.Close()

	entries := readTarNames(t, rc)
	assert.Contains(t, entries, "app.py")
	assert.Contains(t, entries, "requirements.txt")
	assert.Contains(t, entries, "data/")
	assert.Contains(t, entries, "data/model.pkl")
	assert.Equal(t, "FROM python:3.11-slim\n", entries["Dockerfile"])
}

func TestNewBuildContext_InjectedDockerfileWins(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"Dockerfile": "FROM stale:image\n",
		"app.py":     "",
	})

	rc, err := NewBuildContext(dir, "FROM python:3.11-slim\n")
	require.NoError(t, err)
	defer rc.Close()

	entries := readTarNames(t, rc)
	assert.Equal(t, "FROM python:3.11-slim\n", entries["Dockerfile"])
}

func TestNewBuildContext_HonorsDockerignore(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".dockerignore":    "*.pyc\n.venv\n",
		"app.py":           "",
		"app.pyc":          "",
		".venv/lib/x.py":   "",
		"requirements.txt": "",
	})

	rc, err := NewBuildContext(dir, "FROM python:3.11-slim\n")
	require.NoError(t, err)
	defer rc.Close()

	entries := readTarNames(t, rc)
	assert.Contains(t, entries, "app.py")
	assert.Contains(t, entries, "requirements.txt")
	assert.NotContains(t, entries, "app.pyc")
	assert.NotContains(t, entries, ".venv/")
	assert.NotContains(t, entries, ".venv/lib/x.py")
}

func TestNewBuildContext_MissingDirectory(t *testing.T) {
	_, err := NewBuildContext(filepath.Join(t.TempDir(), "absent"), "FROM x\n")
	assert.Error(t, err)
}

func TestNewBuildContext_FileNotDirectory(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))

	_, err := NewBuildContext(p, "FROM x\n")
	assert.Error(t, err)
}

// =============================================================================
// Exclusion Pattern Tests
// =============================================================================

func TestExcluded_Literal(t *testing.T) {
	patterns := []string{"secret.txt"}
	assert.True(t, Excluded("secret.txt", patterns))
	assert.False(t, Excluded("public.txt", patterns))
}

func TestExcluded_DirectoryPrefix(t *testing.T) {
	patterns := []string{".git"}
	assert.True(t, Excluded(".git", patterns))
	assert.True(t, Excluded(".git/objects/ab", patterns))
	assert.False(t, Excluded("gitter", patterns))
}

func TestExcluded_Glob(t *testing.T) {
	patterns := []string{"*.log"}
	assert.True(t, Excluded("build.log", patterns))
	assert.True(t, Excluded("nested/deep.log", patterns))
	assert.False(t, Excluded("build.log.txt", patterns))
}

func TestExcluded_NoPatterns(t *testing.T) {
	assert.False(t, Excluded("anything", nil))
}
