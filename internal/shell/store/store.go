// Package store provides persistence for gantry build and launch records.
package store

import (
	"context"

	"github.com/getgantry/gantry/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for gantry entities.
type Store interface {
	// Build operations
	CreateBuild(ctx context.Context, build *domain.Build) error
	GetBuild(ctx context.Context, id string) (*domain.Build, error)
	UpdateBuild(ctx context.Context, build *domain.Build) error
	ListBuilds(ctx context.Context, opts ListOptions) ([]domain.Build, error)
	ListBuildsByStatus(ctx context.Context, status domain.BuildStatus, opts ListOptions) ([]domain.Build, error)
	NextPendingBuild(ctx context.Context) (*domain.Build, error)

	// Launch operations
	CreateLaunch(ctx context.Context, launch *domain.Launch) error
	GetLaunch(ctx context.Context, id string) (*domain.Launch, error)
	UpdateLaunch(ctx context.Context, launch *domain.Launch) error
	ListLaunches(ctx context.Context, opts ListOptions) ([]domain.Launch, error)
	ListLaunchesByBuild(ctx context.Context, buildID string) ([]domain.Launch, error)

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 100}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
