package api

import "time"

// =============================================================================
// Request Types
// =============================================================================

// CreateBuildRequest queues a build of a source checkout.
type CreateBuildRequest struct {
	ServiceName string `json:"service_name"`
	ContextDir  string `json:"context_dir"`
	Recipe      string `json:"recipe,omitempty"` // inline recipe YAML; empty reads gantry.yaml from the context
}

// CreateLaunchRequest starts a container from a succeeded build.
type CreateLaunchRequest struct {
	BuildID  string `json:"build_id"`
	HostPort int    `json:"host_port,omitempty"` // 0 publishes on the declared container port
}

// =============================================================================
// Response Types
// =============================================================================

// BuildResponse is the API representation of a build record.
type BuildResponse struct {
	ID          string     `json:"id"`
	ServiceName string     `json:"service_name"`
	ContextDir  string     `json:"context_dir"`
	ImageTag    string     `json:"image_tag,omitempty"`
	Fingerprint string     `json:"manifest_fingerprint,omitempty"`
	FullyPinned bool       `json:"fully_pinned"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// ListBuildsResponse is the paginated build list.
type ListBuildsResponse struct {
	Builds []BuildResponse `json:"builds"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// LaunchResponse is the API representation of a launch record.
type LaunchResponse struct {
	ID          string     `json:"id"`
	BuildID     string     `json:"build_id"`
	ContainerID string     `json:"container_id,omitempty"`
	Image       string     `json:"image"`
	HostPort    int        `json:"host_port"`
	Port        int        `json:"port"`
	Status      string     `json:"status"`
	ExitCode    int        `json:"exit_code,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
}

// ListLaunchesResponse is the paginated launch list.
type ListLaunchesResponse struct {
	Launches []LaunchResponse `json:"launches"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse reports readiness of the daemon's dependencies.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the uniform API error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
