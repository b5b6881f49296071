// Package api provides HTTP handlers for the gantry daemon API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/getgantry/gantry/internal/core/domain"
	"github.com/getgantry/gantry/internal/core/recipe"
	"github.com/getgantry/gantry/internal/shell/api/openapi"
	"github.com/getgantry/gantry/internal/shell/docker"
	"github.com/getgantry/gantry/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API. Builds are queued for the
// background builder; launches run synchronously against Docker.
type Handler struct {
	store        store.Store
	docker       docker.Client
	launcher     *docker.Launcher
	logger       *slog.Logger
	spec         *openapi.Generator
	startTimeout time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, d docker.Client, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}

	spec := openapi.NewGenerator()
	spec.Register(openapi.Resource{
		Name: "builds", Model: BuildResponse{},
		List: true, Get: true, Create: true,
	})
	spec.Register(openapi.Resource{
		Name: "launches", Model: LaunchResponse{},
		List: true, Get: true, Create: true,
		Actions: []string{"stop"},
	})

	return &Handler{
		store:        s,
		docker:       d,
		launcher:     docker.NewLauncher(d, l),
		logger:       l,
		spec:         spec,
		startTimeout: docker.DefaultStartTimeout,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Get("/openapi.json", h.spec.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/builds", func(r chi.Router) {
			r.Post("/", h.handleCreateBuild)
			r.Get("/", h.handleListBuilds)
			r.Get("/{id}", h.handleGetBuild)
		})

		r.Route("/launches", func(r chi.Router) {
			r.Post("/", h.handleCreateLaunch)
			r.Get("/", h.handleListLaunches)
			r.Get("/{id}", h.handleGetLaunch)
			r.Post("/{id}/stop", h.handleStopLaunch)
			// DELETE is an alias for stop; launch records are never erased.
			r.Delete("/{id}", h.handleStopLaunch)
			r.Get("/{id}/logs", h.handleLaunchLogs)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}

	if err := h.docker.Ping(); err != nil {
		checks["docker"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["docker"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Build Handlers
// =============================================================================

func (h *Handler) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	var req CreateBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	// Reject a bad recipe at submission time rather than in the builder.
	if req.Recipe != "" {
		if _, err := recipe.Parse([]byte(req.Recipe)); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid recipe: "+err.Error(), "validation_error")
			return
		}
	}

	build, err := domain.NewBuild(req.ServiceName, req.ContextDir, req.Recipe)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	if err := h.store.CreateBuild(r.Context(), build); err != nil {
		h.logger.Error("failed to create build", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create build", "internal_error")
		return
	}

	h.logger.Info("build queued", "build_id", build.ID, "service", build.ServiceName)
	h.writeJSON(w, http.StatusAccepted, buildToResponse(build))
}

func (h *Handler) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	build, err := h.store.GetBuild(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "build not found", "build_not_found")
			return
		}
		h.logger.Error("failed to get build", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get build", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, buildToResponse(build))
}

func (h *Handler) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)

	var builds []domain.Build
	var err error
	if status := r.URL.Query().Get("status"); status != "" {
		builds, err = h.store.ListBuildsByStatus(r.Context(), domain.BuildStatus(status), opts)
	} else {
		builds, err = h.store.ListBuilds(r.Context(), opts)
	}
	if err != nil {
		h.logger.Error("failed to list builds", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list builds", "internal_error")
		return
	}

	resp := ListBuildsResponse{
		Builds: make([]BuildResponse, 0, len(builds)),
		Total:  len(builds),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for _, b := range builds {
		resp.Builds = append(resp.Builds, buildToResponse(&b))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Launch Handlers
// =============================================================================

func (h *Handler) handleCreateLaunch(w http.ResponseWriter, r *http.Request) {
	var req CreateLaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.BuildID == "" {
		h.writeError(w, http.StatusBadRequest, "build_id is required", "validation_error")
		return
	}

	build, err := h.store.GetBuild(r.Context(), req.BuildID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "build not found", "build_not_found")
			return
		}
		h.logger.Error("failed to get build", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get build", "internal_error")
		return
	}

	port := containerPort(build)
	hostPort := req.HostPort
	if hostPort == 0 {
		hostPort = port
	}

	launch, err := domain.NewLaunch(build, hostPort, port)
	if err != nil {
		if errors.Is(err, domain.ErrBuildNotSucceeded) {
			h.writeError(w, http.StatusConflict, err.Error(), "build_not_succeeded")
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	if err := h.store.CreateLaunch(r.Context(), launch); err != nil {
		h.logger.Error("failed to create launch", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create launch", "internal_error")
		return
	}

	if err := h.launcher.Start(r.Context(), build.ServiceName, launch, h.startTimeout); err != nil {
		h.logger.Error("launch failed", "launch_id", launch.ID, "error", err)
		launch.Error = err.Error()
		_ = launch.Transition(domain.LaunchStatusFailed, time.Now())
		if uerr := h.store.UpdateLaunch(r.Context(), launch); uerr != nil {
			h.logger.Error("failed to record launch failure", "launch_id", launch.ID, "error", uerr)
		}
		h.writeError(w, http.StatusInternalServerError, "failed to start container: "+err.Error(), "start_failed")
		return
	}

	if err := launch.Transition(domain.LaunchStatusRunning, time.Now()); err != nil {
		h.logger.Error("failed to transition launch", "launch_id", launch.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to start launch", "internal_error")
		return
	}
	if err := h.store.UpdateLaunch(r.Context(), launch); err != nil {
		h.logger.Error("failed to update launch", "launch_id", launch.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to update launch", "internal_error")
		return
	}

	h.logger.Info("launch running",
		"launch_id", launch.ID, "build_id", build.ID, "host_port", launch.HostPort)
	h.writeJSON(w, http.StatusCreated, launchToResponse(launch))
}

func (h *Handler) handleGetLaunch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	launch, err := h.store.GetLaunch(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "launch not found", "launch_not_found")
			return
		}
		h.logger.Error("failed to get launch", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get launch", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, launchToResponse(launch))
}

func (h *Handler) handleListLaunches(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)

	var launches []domain.Launch
	var err error
	if buildID := r.URL.Query().Get("build_id"); buildID != "" {
		launches, err = h.store.ListLaunchesByBuild(r.Context(), buildID)
	} else {
		launches, err = h.store.ListLaunches(r.Context(), opts)
	}
	if err != nil {
		h.logger.Error("failed to list launches", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list launches", "internal_error")
		return
	}

	resp := ListLaunchesResponse{
		Launches: make([]LaunchResponse, 0, len(launches)),
		Total:    len(launches),
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	}
	for _, l := range launches {
		resp.Launches = append(resp.Launches, launchToResponse(&l))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStopLaunch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	launch, err := h.store.GetLaunch(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "launch not found", "launch_not_found")
			return
		}
		h.logger.Error("failed to get launch", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get launch", "internal_error")
		return
	}

	if launch.Status != domain.LaunchStatusRunning {
		h.writeError(w, http.StatusConflict, "launch is not running", "not_running")
		return
	}

	if err := h.launcher.Stop(launch, docker.DefaultStopTimeout); err != nil {
		h.logger.Error("failed to stop launch", "launch_id", launch.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to stop container: "+err.Error(), "stop_failed")
		return
	}

	if err := launch.Transition(domain.LaunchStatusStopped, time.Now()); err != nil {
		h.logger.Error("failed to transition launch", "launch_id", launch.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to stop launch", "internal_error")
		return
	}
	if err := h.store.UpdateLaunch(r.Context(), launch); err != nil {
		h.logger.Error("failed to update launch", "launch_id", launch.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to update launch", "internal_error")
		return
	}

	h.logger.Info("launch stopped", "launch_id", launch.ID, "exit_code", launch.ExitCode)
	h.writeJSON(w, http.StatusOK, launchToResponse(launch))
}

func (h *Handler) handleLaunchLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	launch, err := h.store.GetLaunch(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "launch not found", "launch_not_found")
			return
		}
		h.logger.Error("failed to get launch", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get launch", "internal_error")
		return
	}

	tail := r.URL.Query().Get("tail")
	if tail == "" {
		tail = "all"
	}

	logs, err := h.launcher.Logs(launch, docker.LogOptions{Tail: tail})
	if err != nil {
		h.logger.Error("failed to fetch logs", "launch_id", launch.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to fetch logs", "internal_error")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(logs)
}

// =============================================================================
// Helpers
// =============================================================================

func listOptions(r *http.Request) store.ListOptions {
	opts := store.DefaultListOptions()
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	return opts.Normalize()
}

// containerPort resolves the declared traffic port from the build's recipe
// snapshot. The builder records the resolved recipe on every build it runs,
// so the stock-port fallback only covers records without a snapshot.
func containerPort(b *domain.Build) int {
	r, err := recipe.Parse([]byte(b.Recipe))
	if err != nil {
		return recipe.Default().Port
	}
	return r.Port
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func buildToResponse(b *domain.Build) BuildResponse {
	return BuildResponse{
		ID:          b.ID,
		ServiceName: b.ServiceName,
		ContextDir:  b.ContextDir,
		ImageTag:    b.ImageTag,
		Fingerprint: b.Fingerprint,
		FullyPinned: b.FullyPinned,
		Status:      string(b.Status),
		Error:       b.Error,
		CreatedAt:   b.CreatedAt,
		StartedAt:   b.StartedAt,
		FinishedAt:  b.FinishedAt,
	}
}

func launchToResponse(l *domain.Launch) LaunchResponse {
	return LaunchResponse{
		ID:          l.ID,
		BuildID:     l.BuildID,
		ContainerID: l.ContainerID,
		Image:       l.Image,
		HostPort:    l.HostPort,
		Port:        l.Port,
		Status:      string(l.Status),
		ExitCode:    l.ExitCode,
		Error:       l.Error,
		CreatedAt:   l.CreatedAt,
		StoppedAt:   l.StoppedAt,
	}
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
