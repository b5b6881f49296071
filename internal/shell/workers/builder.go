// Package workers contains the daemon's background workers.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/getgantry/gantry/internal/core/domain"
	"github.com/getgantry/gantry/internal/core/manifest"
	"github.com/getgantry/gantry/internal/core/pipeline"
	"github.com/getgantry/gantry/internal/core/recipe"
	"github.com/getgantry/gantry/internal/shell/docker"
	"github.com/getgantry/gantry/internal/shell/store"
)

// =============================================================================
// Builder
// =============================================================================

// DefaultPollInterval is how often the builder checks for pending builds.
const DefaultPollInterval = 2 * time.Second

// Builder drains the pending build queue one build at a time. Each build
// runs the staged plan: provision the base image, materialize the source,
// install the declared dependencies, and bake the launch contract. The
// first stage failure fails the whole build; no image tag is produced.
type Builder struct {
	store    store.Store
	docker   docker.Client
	logger   *slog.Logger
	interval time.Duration
	noCache  bool
}

// Option configures the builder.
type Option func(*Builder)

// WithPollInterval sets the queue poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithNoCache disables Docker layer cache reuse for all builds.
func WithNoCache(noCache bool) Option {
	return func(b *Builder) { b.noCache = noCache }
}

// NewBuilder creates a builder worker.
func NewBuilder(s store.Store, d docker.Client, l *slog.Logger, opts ...Option) *Builder {
	if l == nil {
		l = slog.Default()
	}
	b := &Builder{
		store:    s,
		docker:   d,
		logger:   l,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run polls the queue until the context is canceled.
func (b *Builder) Run(ctx context.Context) {
	b.logger.Info("builder started", "poll_interval", b.interval)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("builder stopped")
			return
		case <-ticker.C:
			if err := b.ProcessNext(ctx); err != nil {
				b.logger.Error("build processing failed", "error", err)
			}
		}
	}
}

// ProcessNext executes the oldest pending build, if any.
func (b *Builder) ProcessNext(ctx context.Context) error {
	build, err := b.store.NextPendingBuild(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return b.Execute(ctx, build)
}

// Execute runs one build end to end and records the outcome.
func (b *Builder) Execute(ctx context.Context, build *domain.Build) error {
	b.logger.Info("build started", "build_id", build.ID, "service", build.ServiceName)

	if err := build.Transition(domain.BuildStatusRunning, time.Now()); err != nil {
		return err
	}
	if err := b.store.UpdateBuild(ctx, build); err != nil {
		return err
	}

	outcome, err := RunBuild(ctx, b.docker, b.logger, build, b.noCache)
	for _, res := range outcome.Results {
		b.logger.Debug("stage finished",
			"build_id", build.ID, "stage", res.Stage.ID,
			"status", res.Status, "duration", res.Duration)
	}

	if err != nil {
		build.Error = err.Error()
		build.ImageTag = ""
		_ = build.Transition(domain.BuildStatusFailed, time.Now())
		if uerr := b.store.UpdateBuild(ctx, build); uerr != nil {
			return uerr
		}
		b.logger.Warn("build failed", "build_id", build.ID, "error", err)
		return nil
	}

	build.ImageTag = outcome.ImageTag
	if err := build.Transition(domain.BuildStatusSucceeded, time.Now()); err != nil {
		return err
	}
	if err := b.store.UpdateBuild(ctx, build); err != nil {
		return err
	}

	b.logger.Info("build succeeded",
		"build_id", build.ID, "image", build.ImageTag,
		"fingerprint", build.Fingerprint, "fully_pinned", build.FullyPinned)
	return nil
}

// =============================================================================
// Build Run
// =============================================================================

// BuildOutcome reports a finished staged build.
type BuildOutcome struct {
	Results  []pipeline.Result
	ImageTag string // set only when every stage succeeded
}

// RunBuild executes the staged plan for one build against Docker. It
// mutates the build's manifest fields as stages complete but leaves status
// bookkeeping to the caller, so the CLI can run builds without a store.
func RunBuild(ctx context.Context, d docker.Client, logger *slog.Logger, build *domain.Build, noCache bool) (*BuildOutcome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	run := &buildRun{docker: d, logger: logger, noCache: noCache, build: build}
	results, err := pipeline.Run(ctx, pipeline.Plan(), run.execStage)
	return &BuildOutcome{Results: results, ImageTag: run.imageTag}, err
}

// buildRun carries the state threaded through one build's stages.
type buildRun struct {
	docker  docker.Client
	logger  *slog.Logger
	noCache bool
	build   *domain.Build

	recipe     recipe.Recipe
	dockerfile string
	imageTag   string
}

// execStage dispatches a single stage of the plan.
func (r *buildRun) execStage(ctx context.Context, stage pipeline.Stage) error {
	switch stage.ID {
	case pipeline.StageBase:
		return r.provisionBase(ctx)
	case pipeline.StageSource:
		return r.materializeSource()
	case pipeline.StageDeps:
		return r.resolveDependencies()
	case pipeline.StageLaunch:
		return r.bakeImage(ctx)
	default:
		return fmt.Errorf("unknown stage %q", stage.ID)
	}
}

// provisionBase loads the recipe and ensures the base image is available
// locally.
func (r *buildRun) provisionBase(ctx context.Context) error {
	rec, err := r.loadRecipe()
	if err != nil {
		return err
	}
	r.recipe = rec

	base := rec.BaseImage()
	exists, err := r.docker.ImageExists(base)
	if err != nil {
		return fmt.Errorf("check base image %s: %w", base, err)
	}
	if exists {
		return nil
	}

	r.logger.Info("pulling base image", "build_id", r.build.ID, "image", base)
	if err := r.docker.PullImage(base, docker.PullOptions{}); err != nil {
		return fmt.Errorf("pull base image %s: %w", base, err)
	}
	return nil
}

// loadRecipe resolves the build's recipe: the submitted snapshot wins, a
// gantry.yaml in the context root is the fallback, and an absent file
// yields the defaults. The resolved recipe is recorded on the build so
// launches see the same port contract the image was baked with.
func (r *buildRun) loadRecipe() (recipe.Recipe, error) {
	if r.build.Recipe != "" {
		return recipe.Parse([]byte(r.build.Recipe))
	}

	rec, err := recipe.Load(filepath.Join(r.build.ContextDir, recipe.DefaultFileName))
	if err != nil {
		return recipe.Recipe{}, err
	}
	snapshot, err := rec.Snapshot()
	if err != nil {
		return recipe.Recipe{}, err
	}
	r.build.Recipe = snapshot
	return rec, nil
}

// materializeSource verifies the source checkout is usable as a build
// context.
func (r *buildRun) materializeSource() error {
	info, err := os.Stat(r.build.ContextDir)
	if err != nil {
		return fmt.Errorf("context dir %s: %w", r.build.ContextDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("context dir %s is not a directory", r.build.ContextDir)
	}
	return nil
}

// resolveDependencies parses the manifest and records its fingerprint. The
// fingerprint keys the dependency layer: an unchanged manifest reuses the
// cached layer regardless of source changes.
func (r *buildRun) resolveDependencies() error {
	manifestPath := filepath.Join(r.build.ContextDir, r.recipe.Manifest)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", r.recipe.Manifest, err)
	}

	m, err := manifest.Parse(string(data))
	if err != nil {
		return fmt.Errorf("parse manifest %s: %w", r.recipe.Manifest, err)
	}

	r.build.Fingerprint = m.Fingerprint()
	r.build.FullyPinned = m.FullyPinned()
	if !m.FullyPinned() {
		r.logger.Warn("manifest has unpinned requirements; builds are not reproducible",
			"build_id", r.build.ID, "unpinned", len(m.Unpinned()))
	}
	return nil
}

// bakeImage renders the Dockerfile and runs the image build. The tag is
// only applied by Docker when the build succeeds, so a failed build never
// produces a tagged image.
func (r *buildRun) bakeImage(ctx context.Context) error {
	dockerfile, err := r.recipe.Render()
	if err != nil {
		return err
	}
	r.dockerfile = dockerfile

	tag := recipe.ImageTag(r.build.ServiceName)
	spec := docker.BuildSpec{
		Tag:        tag,
		ContextDir: r.build.ContextDir,
		Dockerfile: dockerfile,
		Labels: map[string]string{
			docker.LabelManaged:     "true",
			docker.LabelService:     r.build.ServiceName,
			docker.LabelBuild:       r.build.ID,
			docker.LabelFingerprint: r.build.Fingerprint,
		},
		NoCache: r.noCache,
	}

	if err := r.docker.BuildImage(ctx, spec); err != nil {
		return err
	}
	r.imageTag = tag
	return nil
}
