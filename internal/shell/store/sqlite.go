package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getgantry/gantry/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Row Types
// =============================================================================

const timeLayout = time.RFC3339Nano

type buildRow struct {
	ID          string  `db:"id"`
	ServiceName string  `db:"service_name"`
	ContextDir  string  `db:"context_dir"`
	Recipe      string  `db:"recipe"`
	ImageTag    string  `db:"image_tag"`
	Fingerprint string  `db:"fingerprint"`
	FullyPinned bool    `db:"fully_pinned"`
	Status      string  `db:"status"`
	Error       string  `db:"error"`
	CreatedAt   string  `db:"created_at"`
	StartedAt   *string `db:"started_at"`
	FinishedAt  *string `db:"finished_at"`
}

func buildToRow(b *domain.Build) buildRow {
	return buildRow{
		ID:          b.ID,
		ServiceName: b.ServiceName,
		ContextDir:  b.ContextDir,
		Recipe:      b.Recipe,
		ImageTag:    b.ImageTag,
		Fingerprint: b.Fingerprint,
		FullyPinned: b.FullyPinned,
		Status:      string(b.Status),
		Error:       b.Error,
		CreatedAt:   b.CreatedAt.Format(timeLayout),
		StartedAt:   formatTimePtr(b.StartedAt),
		FinishedAt:  formatTimePtr(b.FinishedAt),
	}
}

func (r buildRow) toDomain() domain.Build {
	return domain.Build{
		ID:          r.ID,
		ServiceName: r.ServiceName,
		ContextDir:  r.ContextDir,
		Recipe:      r.Recipe,
		ImageTag:    r.ImageTag,
		Fingerprint: r.Fingerprint,
		FullyPinned: r.FullyPinned,
		Status:      domain.BuildStatus(r.Status),
		Error:       r.Error,
		CreatedAt:   parseTime(r.CreatedAt),
		StartedAt:   parseTimePtr(r.StartedAt),
		FinishedAt:  parseTimePtr(r.FinishedAt),
	}
}

type launchRow struct {
	ID          string  `db:"id"`
	BuildID     string  `db:"build_id"`
	ContainerID string  `db:"container_id"`
	Image       string  `db:"image"`
	HostPort    int     `db:"host_port"`
	Port        int     `db:"port"`
	Status      string  `db:"status"`
	ExitCode    int     `db:"exit_code"`
	Error       string  `db:"error"`
	CreatedAt   string  `db:"created_at"`
	StoppedAt   *string `db:"stopped_at"`
}

func launchToRow(l *domain.Launch) launchRow {
	return launchRow{
		ID:          l.ID,
		BuildID:     l.BuildID,
		ContainerID: l.ContainerID,
		Image:       l.Image,
		HostPort:    l.HostPort,
		Port:        l.Port,
		Status:      string(l.Status),
		ExitCode:    l.ExitCode,
		Error:       l.Error,
		CreatedAt:   l.CreatedAt.Format(timeLayout),
		StoppedAt:   formatTimePtr(l.StoppedAt),
	}
}

func (r launchRow) toDomain() domain.Launch {
	return domain.Launch{
		ID:          r.ID,
		BuildID:     r.BuildID,
		ContainerID: r.ContainerID,
		Image:       r.Image,
		HostPort:    r.HostPort,
		Port:        r.Port,
		Status:      domain.LaunchStatus(r.Status),
		ExitCode:    r.ExitCode,
		Error:       r.Error,
		CreatedAt:   parseTime(r.CreatedAt),
		StoppedAt:   parseTimePtr(r.StoppedAt),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}

// =============================================================================
// Build Operations
// =============================================================================

const buildColumns = `id, service_name, context_dir, recipe, image_tag, fingerprint,
	fully_pinned, status, error, created_at, started_at, finished_at`

// CreateBuild inserts a new build record.
func (s *SQLiteStore) CreateBuild(ctx context.Context, build *domain.Build) error {
	row := buildToRow(build)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO builds (id, service_name, context_dir, recipe, image_tag, fingerprint,
			fully_pinned, status, error, created_at, started_at, finished_at)
		VALUES (:id, :service_name, :context_dir, :recipe, :image_tag, :fingerprint,
			:fully_pinned, :status, :error, :created_at, :started_at, :finished_at)`, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateBuild", "build", build.ID, "build already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateBuild", "build", build.ID, err.Error(), err)
	}
	return nil
}

// GetBuild fetches a build by id.
func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (*domain.Build, error) {
	var row buildRow
	err := s.db.GetContext(ctx, &row, `SELECT `+buildColumns+` FROM builds WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetBuild", "build", id, "build not found", ErrNotFound)
		}
		return nil, NewStoreError("GetBuild", "build", id, err.Error(), err)
	}
	b := row.toDomain()
	return &b, nil
}

// UpdateBuild persists mutable build fields.
func (s *SQLiteStore) UpdateBuild(ctx context.Context, build *domain.Build) error {
	row := buildToRow(build)
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE builds SET image_tag = :image_tag, fingerprint = :fingerprint,
			fully_pinned = :fully_pinned, status = :status, error = :error,
			started_at = :started_at, finished_at = :finished_at
		WHERE id = :id`, row)
	if err != nil {
		return NewStoreError("UpdateBuild", "build", build.ID, err.Error(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewStoreError("UpdateBuild", "build", build.ID, "build not found", ErrNotFound)
	}
	return nil
}

// ListBuilds returns builds ordered newest first.
func (s *SQLiteStore) ListBuilds(ctx context.Context, opts ListOptions) ([]domain.Build, error) {
	opts = opts.Normalize()
	var rows []buildRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+buildColumns+` FROM builds
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListBuilds", "build", "", err.Error(), err)
	}
	builds := make([]domain.Build, 0, len(rows))
	for _, r := range rows {
		builds = append(builds, r.toDomain())
	}
	return builds, nil
}

// ListBuildsByStatus returns builds with the given status, newest first.
func (s *SQLiteStore) ListBuildsByStatus(ctx context.Context, status domain.BuildStatus, opts ListOptions) ([]domain.Build, error) {
	opts = opts.Normalize()
	var rows []buildRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+buildColumns+` FROM builds WHERE status = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, string(status), opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListBuildsByStatus", "build", "", err.Error(), err)
	}
	builds := make([]domain.Build, 0, len(rows))
	for _, r := range rows {
		builds = append(builds, r.toDomain())
	}
	return builds, nil
}

// NextPendingBuild returns the oldest pending build, or ErrNotFound.
func (s *SQLiteStore) NextPendingBuild(ctx context.Context) (*domain.Build, error) {
	var row buildRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+buildColumns+` FROM builds WHERE status = ?
		ORDER BY created_at ASC LIMIT 1`, string(domain.BuildStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("NextPendingBuild", "build", "", "no pending builds", ErrNotFound)
		}
		return nil, NewStoreError("NextPendingBuild", "build", "", err.Error(), err)
	}
	b := row.toDomain()
	return &b, nil
}

// =============================================================================
// Launch Operations
// =============================================================================

const launchColumns = `id, build_id, container_id, image, host_port, port, status,
	exit_code, error, created_at, stopped_at`

// CreateLaunch inserts a new launch record.
func (s *SQLiteStore) CreateLaunch(ctx context.Context, launch *domain.Launch) error {
	row := launchToRow(launch)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO launches (id, build_id, container_id, image, host_port, port, status,
			exit_code, error, created_at, stopped_at)
		VALUES (:id, :build_id, :container_id, :image, :host_port, :port, :status,
			:exit_code, :error, :created_at, :stopped_at)`, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateLaunch", "launch", launch.ID, "launch already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateLaunch", "launch", launch.ID, "build does not exist", ErrForeignKey)
		}
		return NewStoreError("CreateLaunch", "launch", launch.ID, err.Error(), err)
	}
	return nil
}

// GetLaunch fetches a launch by id.
func (s *SQLiteStore) GetLaunch(ctx context.Context, id string) (*domain.Launch, error) {
	var row launchRow
	err := s.db.GetContext(ctx, &row, `SELECT `+launchColumns+` FROM launches WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetLaunch", "launch", id, "launch not found", ErrNotFound)
		}
		return nil, NewStoreError("GetLaunch", "launch", id, err.Error(), err)
	}
	l := row.toDomain()
	return &l, nil
}

// UpdateLaunch persists mutable launch fields.
func (s *SQLiteStore) UpdateLaunch(ctx context.Context, launch *domain.Launch) error {
	row := launchToRow(launch)
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE launches SET container_id = :container_id, status = :status,
			exit_code = :exit_code, error = :error, stopped_at = :stopped_at
		WHERE id = :id`, row)
	if err != nil {
		return NewStoreError("UpdateLaunch", "launch", launch.ID, err.Error(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewStoreError("UpdateLaunch", "launch", launch.ID, "launch not found", ErrNotFound)
	}
	return nil
}

// ListLaunches returns launches ordered newest first.
func (s *SQLiteStore) ListLaunches(ctx context.Context, opts ListOptions) ([]domain.Launch, error) {
	opts = opts.Normalize()
	var rows []launchRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+launchColumns+` FROM launches
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListLaunches", "launch", "", err.Error(), err)
	}
	launches := make([]domain.Launch, 0, len(rows))
	for _, r := range rows {
		launches = append(launches, r.toDomain())
	}
	return launches, nil
}

// ListLaunchesByBuild returns all launches of one build, newest first.
func (s *SQLiteStore) ListLaunchesByBuild(ctx context.Context, buildID string) ([]domain.Launch, error) {
	var rows []launchRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+launchColumns+` FROM launches WHERE build_id = ?
		ORDER BY created_at DESC`, buildID)
	if err != nil {
		return nil, NewStoreError("ListLaunchesByBuild", "launch", buildID, err.Error(), err)
	}
	launches := make([]domain.Launch, 0, len(rows))
	for _, r := range rows {
		launches = append(launches, r.toDomain())
	}
	return launches, nil
}
