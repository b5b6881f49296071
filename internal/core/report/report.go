// Package report defines the wire format for gantry CLI output.
//
// Every CLI command writes exactly one JSON envelope to stdout, so scripts
// and CI steps can consume results without scraping log text. This package
// contains pure types with no I/O.
package report

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// Response Envelope
// =============================================================================

// Response is the standard envelope for all CLI command output.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo contains error details when Success is false.
type ErrorInfo struct {
	Command string `json:"command"`        // command that failed
	Code    string `json:"code,omitempty"` // machine-readable error code
	Message string `json:"message"`        // human-readable error message
}

// NewSuccessResponse creates a successful response with data.
func NewSuccessResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		rawData = bytes
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(command, code, message string) *Response {
	return &Response{
		Success: false,
		Error: &ErrorInfo{
			Command: command,
			Code:    code,
			Message: message,
		},
	}
}

// ParseResponse parses a JSON envelope.
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// UnmarshalData unmarshals the response data into the target type.
func (r *Response) UnmarshalData(target interface{}) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, target)
}

// =============================================================================
// Error Codes
// =============================================================================

const (
	ErrCodeInvalidInput     = "invalid_input"
	ErrCodeConnectionFailed = "connection_failed"
	ErrCodeNotFound         = "not_found"
	ErrCodeBuildFailed      = "build_failed"
	ErrCodeStartFailed      = "start_failed"
	ErrCodeStopFailed       = "stop_failed"
	ErrCodeInternal         = "internal"
)

// =============================================================================
// Command Results
// =============================================================================

// VersionInfo reports the CLI's own version.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// PingInfo reports daemon connectivity.
type PingInfo struct {
	DockerVersion string `json:"docker_version"`
	APIVersion    string `json:"api_version"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
}

// RenderResult carries a rendered Dockerfile.
type RenderResult struct {
	Dockerfile string `json:"dockerfile"`
}

// StageReport mirrors one pipeline stage outcome.
type StageReport struct {
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// BuildResult reports a completed image build.
type BuildResult struct {
	Image               string        `json:"image"`
	ManifestFingerprint string        `json:"manifest_fingerprint"`
	FullyPinned         bool          `json:"fully_pinned"`
	Stages              []StageReport `json:"stages"`
}

// RunResult reports a launched container.
type RunResult struct {
	ContainerID string `json:"container_id"`
	Image       string `json:"image"`
	BindAddr    string `json:"bind_addr"`
	HostPort    int    `json:"host_port"`
	State       string `json:"state"`
}

// StatusResult reports the observed state of a launched container.
type StatusResult struct {
	ContainerID string `json:"container_id"`
	State       string `json:"state"`
	ExitCode    int    `json:"exit_code,omitempty"`
}

// ManifestResult reports a parsed dependency manifest.
type ManifestResult struct {
	Fingerprint  string   `json:"fingerprint"`
	FullyPinned  bool     `json:"fully_pinned"`
	Requirements int      `json:"requirements"`
	Unpinned     []string `json:"unpinned,omitempty"`
}

// ComposeResult carries an exported compose project.
type ComposeResult struct {
	Compose string `json:"compose"`
}
