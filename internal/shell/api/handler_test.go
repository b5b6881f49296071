package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getgantry/gantry/internal/core/domain"
	"github.com/getgantry/gantry/internal/shell/docker"
	"github.com/getgantry/gantry/internal/shell/store"
	"github.com/getgantry/gantry/internal/shell/workers"
)

// =============================================================================
// Fake Docker Client
// =============================================================================

type fakeDocker struct {
	created  []docker.ContainerSpec
	status   docker.ContainerStatus
	exitCode int
	pingErr  error
	logs     string
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{status: docker.ContainerStatusRunning}
}

func (f *fakeDocker) BuildImage(ctx context.Context, spec docker.BuildSpec) error { return nil }
func (f *fakeDocker) PullImage(image string, opts docker.PullOptions) error       { return nil }
func (f *fakeDocker) ImageExists(image string) (bool, error)                      { return true, nil }

func (f *fakeDocker) CreateContainer(spec docker.ContainerSpec) (string, error) {
	f.created = append(f.created, spec)
	return "container-1", nil
}

func (f *fakeDocker) StartContainer(id string) error                          { return nil }
func (f *fakeDocker) StopContainer(id string, timeout *time.Duration) error   { return nil }
func (f *fakeDocker) RemoveContainer(id string, o docker.RemoveOptions) error { return nil }

func (f *fakeDocker) InspectContainer(id string) (*docker.ContainerInfo, error) {
	return &docker.ContainerInfo{ID: id, Status: f.status, ExitCode: f.exitCode}, nil
}

func (f *fakeDocker) ContainerLogs(id string, opts docker.LogOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.logs)), nil
}

func (f *fakeDocker) WaitRunning(ctx context.Context, id string, timeout time.Duration) (*docker.ContainerInfo, error) {
	info := &docker.ContainerInfo{ID: id, Status: f.status, ExitCode: f.exitCode}
	if f.status == docker.ContainerStatusRunning {
		return info, nil
	}
	return info, docker.NewDockerError("WaitRunning", "container", id,
		"exited before becoming ready", docker.ErrStartupFailed)
}

func (f *fakeDocker) Ping() error { return f.pingErr }
func (f *fakeDocker) Version() (*docker.VersionInfo, error) {
	return &docker.VersionInfo{Version: "test"}, nil
}
func (f *fakeDocker) Close() error { return nil }

// =============================================================================
// Test Setup
// =============================================================================

func newTestHandler(t *testing.T) (*Handler, *fakeDocker, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "gantry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	d := newFakeDocker()
	return NewHandler(s, d, nil), d, s
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func succeededBuild(t *testing.T, s store.Store, service string) *domain.Build {
	t.Helper()
	b, err := domain.NewBuild(service, "/src/"+service, "")
	require.NoError(t, err)
	b.ImageTag = "gantry/" + service + ":latest"
	require.NoError(t, b.Transition(domain.BuildStatusRunning, time.Now()))
	require.NoError(t, b.Transition(domain.BuildStatusSucceeded, time.Now()))
	require.NoError(t, s.CreateBuild(context.Background(), b))
	return b
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
}

func TestReady(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ReadyResponse](t, rec)
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["docker"])
}

func TestReadyDockerDown(t *testing.T) {
	h, d, _ := newTestHandler(t)
	d.pingErr = errors.New("connection refused")

	rec := doRequest(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[ReadyResponse](t, rec)
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "failed", resp.Checks["docker"])
}

// =============================================================================
// Build Tests
// =============================================================================

func TestCreateBuild(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/builds", CreateBuildRequest{
		ServiceName: "chatbot",
		ContextDir:  "/src/chatbot",
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[BuildResponse](t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "pending", resp.Status)
	assert.Empty(t, resp.ImageTag)
}

func TestCreateBuildInvalidServiceName(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/builds", CreateBuildRequest{
		ServiceName: "Not Valid!",
		ContextDir:  "/src/app",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation_error", resp.Code)
}

func TestCreateBuildInvalidRecipe(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/builds", CreateBuildRequest{
		ServiceName: "chatbot",
		ContextDir:  "/src/chatbot",
		Recipe:      "runtime: ruby\n",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation_error", resp.Code)
}

func TestGetBuildNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/builds/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "build_not_found", resp.Code)
}

func TestListBuildsStatusFilter(t *testing.T) {
	h, _, s := newTestHandler(t)

	succeededBuild(t, s, "alpha")
	pending, err := domain.NewBuild("beta", "/src/beta", "")
	require.NoError(t, err)
	require.NoError(t, s.CreateBuild(context.Background(), pending))

	rec := doRequest(t, h, http.MethodGet, "/api/v1/builds?status=succeeded", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ListBuildsResponse](t, rec)
	require.Len(t, resp.Builds, 1)
	assert.Equal(t, "alpha", resp.Builds[0].ServiceName)
}

// =============================================================================
// Launch Tests
// =============================================================================

func TestCreateLaunch(t *testing.T) {
	h, d, s := newTestHandler(t)
	b := succeededBuild(t, s, "chatbot")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/launches", CreateLaunchRequest{
		BuildID: b.ID,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[LaunchResponse](t, rec)
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "container-1", resp.ContainerID)
	// Empty recipe snapshot means the stock port on both sides.
	assert.Equal(t, 10000, resp.Port)
	assert.Equal(t, 10000, resp.HostPort)

	require.Len(t, d.created, 1)
	assert.Equal(t, "gantry/chatbot:latest", d.created[0].Image)
}

func TestCreateLaunchCustomHostPort(t *testing.T) {
	h, _, s := newTestHandler(t)
	b := succeededBuild(t, s, "chatbot")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/launches", CreateLaunchRequest{
		BuildID:  b.ID,
		HostPort: 8080,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[LaunchResponse](t, rec)
	assert.Equal(t, 8080, resp.HostPort)
	assert.Equal(t, 10000, resp.Port)
}

func TestCreateLaunchUsesContextFilePort(t *testing.T) {
	h, d, s := newTestHandler(t)

	// Build submitted without an inline recipe: the port comes from
	// gantry.yaml in the context root and must carry through to the launch.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gantry.yaml"), []byte("port: 8000\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("flask==2.3.2\n"), 0o644))

	b, err := domain.NewBuild("chatbot", dir, "")
	require.NoError(t, err)
	require.NoError(t, s.CreateBuild(context.Background(), b))
	require.NoError(t, workers.NewBuilder(s, d, nil).Execute(context.Background(), b))

	rec := doRequest(t, h, http.MethodPost, "/api/v1/launches", CreateLaunchRequest{
		BuildID: b.ID,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[LaunchResponse](t, rec)
	assert.Equal(t, 8000, resp.Port)
	assert.Equal(t, 8000, resp.HostPort)

	require.Len(t, d.created, 1)
	assert.Equal(t, 8000, d.created[0].Ports[0].ContainerPort)
	assert.Equal(t, 8000, d.created[0].Ports[0].HostPort)
}

func TestCreateLaunchBuildNotSucceeded(t *testing.T) {
	h, _, s := newTestHandler(t)

	pending, err := domain.NewBuild("chatbot", "/src/chatbot", "")
	require.NoError(t, err)
	require.NoError(t, s.CreateBuild(context.Background(), pending))

	rec := doRequest(t, h, http.MethodPost, "/api/v1/launches", CreateLaunchRequest{
		BuildID: pending.ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "build_not_succeeded", resp.Code)
}

func TestCreateLaunchStartupFailure(t *testing.T) {
	h, d, s := newTestHandler(t)
	d.status = docker.ContainerStatusExited
	d.exitCode = 3
	b := succeededBuild(t, s, "chatbot")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/launches", CreateLaunchRequest{
		BuildID: b.ID,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "start_failed", resp.Code)

	// The failure must be recorded on the launch.
	launches, err := s.ListLaunchesByBuild(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, launches, 1)
	assert.Equal(t, domain.LaunchStatusFailed, launches[0].Status)
	assert.Equal(t, 3, launches[0].ExitCode)
	assert.NotEmpty(t, launches[0].Error)
}

func TestStopLaunch(t *testing.T) {
	h, _, s := newTestHandler(t)
	b := succeededBuild(t, s, "chatbot")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/launches", CreateLaunchRequest{BuildID: b.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[LaunchResponse](t, rec)

	rec = doRequest(t, h, http.MethodPost, "/api/v1/launches/"+created.ID+"/stop", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LaunchResponse](t, rec)
	assert.Equal(t, "stopped", resp.Status)
	require.NotNil(t, resp.StoppedAt)
}

func TestDeleteLaunchStops(t *testing.T) {
	h, _, s := newTestHandler(t)
	b := succeededBuild(t, s, "chatbot")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/launches", CreateLaunchRequest{BuildID: b.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[LaunchResponse](t, rec)

	rec = doRequest(t, h, http.MethodDelete, "/api/v1/launches/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LaunchResponse](t, rec)
	assert.Equal(t, "stopped", resp.Status)
}

func TestStopLaunchNotRunning(t *testing.T) {
	h, _, s := newTestHandler(t)
	b := succeededBuild(t, s, "chatbot")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/launches", CreateLaunchRequest{BuildID: b.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[LaunchResponse](t, rec)

	rec = doRequest(t, h, http.MethodPost, "/api/v1/launches/"+created.ID+"/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/v1/launches/"+created.ID+"/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "not_running", resp.Code)
}

func TestLaunchLogs(t *testing.T) {
	h, d, s := newTestHandler(t)
	d.logs = "booting workers\n"
	b := succeededBuild(t, s, "chatbot")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/launches", CreateLaunchRequest{BuildID: b.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[LaunchResponse](t, rec)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/launches/"+created.ID+"/logs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "booting workers\n", rec.Body.String())
}

// =============================================================================
// OpenAPI Tests
// =============================================================================

func TestOpenAPIDocument(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/openapi.json", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Equal(t, "3.0.3", doc["openapi"])

	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/api/v1/builds")
	assert.Contains(t, paths, "/api/v1/launches/{id}/stop")
}
