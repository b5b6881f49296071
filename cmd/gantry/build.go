package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/getgantry/gantry/internal/core/compose"
	"github.com/getgantry/gantry/internal/core/domain"
	"github.com/getgantry/gantry/internal/core/manifest"
	"github.com/getgantry/gantry/internal/core/pipeline"
	"github.com/getgantry/gantry/internal/core/recipe"
	"github.com/getgantry/gantry/internal/core/report"
	"github.com/getgantry/gantry/internal/shell/docker"
	"github.com/getgantry/gantry/internal/shell/workers"
)

// contextDir resolves the optional trailing directory argument.
func contextDir(args []string) string {
	for _, a := range args {
		if a != "" && a[0] != '-' {
			return a
		}
	}
	return "."
}

// hasFlag reports whether a literal flag appears in args.
func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// renderCmd handles the "render" command: it loads the context's recipe
// and prints the Dockerfile it produces.
func renderCmd(args []string) error {
	dir := contextDir(args)

	rec, err := recipe.Load(filepath.Join(dir, recipe.DefaultFileName))
	if err != nil {
		outputError("render", report.ErrCodeInvalidInput, err.Error())
		return err
	}

	dockerfile, err := rec.Render()
	if err != nil {
		outputError("render", report.ErrCodeInternal, err.Error())
		return err
	}

	outputSuccess(report.RenderResult{Dockerfile: dockerfile})
	return nil
}

// manifestCmd handles the "manifest" command: it parses the dependency
// manifest and reports its fingerprint and pinning state.
func manifestCmd(args []string) error {
	dir := contextDir(args)

	rec, err := recipe.Load(filepath.Join(dir, recipe.DefaultFileName))
	if err != nil {
		outputError("manifest", report.ErrCodeInvalidInput, err.Error())
		return err
	}

	data, err := os.ReadFile(filepath.Join(dir, rec.Manifest))
	if err != nil {
		outputError("manifest", report.ErrCodeNotFound, err.Error())
		return err
	}

	m, err := manifest.Parse(string(data))
	if err != nil {
		outputError("manifest", report.ErrCodeInvalidInput, err.Error())
		return err
	}

	result := report.ManifestResult{
		Fingerprint:  m.Fingerprint(),
		FullyPinned:  m.FullyPinned(),
		Requirements: len(m.Requirements),
	}
	for _, r := range m.Unpinned() {
		result.Unpinned = append(result.Unpinned, r.Name)
	}
	outputSuccess(result)
	return nil
}

// buildCmd handles the "build" command: it runs the staged build for a
// service against the local Docker daemon.
func buildCmd(args []string) error {
	if len(args) < 1 {
		outputError("build", report.ErrCodeInvalidInput, "usage: gantry build <service> [dir] [--no-cache]")
		return errUnknownCommand
	}
	service := args[0]
	dir := contextDir(args[1:])
	noCache := hasFlag(args, "--no-cache")

	absDir, err := filepath.Abs(dir)
	if err != nil {
		outputError("build", report.ErrCodeInvalidInput, err.Error())
		return err
	}

	build, err := domain.NewBuild(service, absDir, "")
	if err != nil {
		outputError("build", report.ErrCodeInvalidInput, err.Error())
		return err
	}

	cli, err := docker.NewDockerClient("")
	if err != nil {
		outputError("build", report.ErrCodeConnectionFailed, err.Error())
		return err
	}
	defer cli.Close()

	outcome, err := workers.RunBuild(context.Background(), cli, nil, build, noCache)
	result := report.BuildResult{
		Image:               outcome.ImageTag,
		ManifestFingerprint: build.Fingerprint,
		FullyPinned:         build.FullyPinned,
		Stages:              stageReports(outcome.Results),
	}
	if err != nil {
		outputError("build", report.ErrCodeBuildFailed, err.Error())
		return err
	}

	outputSuccess(result)
	return nil
}

// composeCmd handles the "compose" command: it exports a compose project
// for a built service image.
func composeCmd(args []string) error {
	if len(args) < 1 {
		outputError("compose", report.ErrCodeInvalidInput, "usage: gantry compose <service> [dir]")
		return errUnknownCommand
	}
	service := args[0]
	dir := contextDir(args[1:])

	rec, err := recipe.Load(filepath.Join(dir, recipe.DefaultFileName))
	if err != nil {
		outputError("compose", report.ErrCodeInvalidInput, err.Error())
		return err
	}

	out, err := compose.Export(rec, recipe.ImageTag(service), service)
	if err != nil {
		outputError("compose", report.ErrCodeInternal, err.Error())
		return err
	}

	outputSuccess(report.ComposeResult{Compose: string(out)})
	return nil
}

// stageReports converts pipeline results into the wire format.
func stageReports(results []pipeline.Result) []report.StageReport {
	reports := make([]report.StageReport, 0, len(results))
	for _, res := range results {
		sr := report.StageReport{
			Stage:      string(res.Stage.ID),
			Status:     string(res.Status),
			DurationMS: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			sr.Error = res.Err.Error()
		}
		reports = append(reports, sr)
	}
	return reports
}
