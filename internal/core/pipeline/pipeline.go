// Package pipeline contains the staged build plan: the ordered,
// all-or-nothing sequence that turns a source checkout into a runnable
// image. The plan itself is pure bookkeeping - the shell supplies the stage
// executors.
//
// Stages run strictly sequentially. Each stage consumes the previous
// stage's output and produces exactly one new layer; no stage may partially
// apply. The first failure aborts the run and every remaining stage is
// recorded as skipped.
package pipeline

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// Stages
// =============================================================================

// StageID identifies a build stage.
type StageID string

const (
	StageBase   StageID = "base"   // base environment provisioning
	StageSource StageID = "source" // source materialization
	StageDeps   StageID = "deps"   // dependency installation
	StageLaunch StageID = "launch" // process launch contract
)

// Stage describes one step of the plan.
type Stage struct {
	ID          StageID
	Description string
}

// Plan returns the four stages in build order.
func Plan() []Stage {
	return []Stage{
		{ID: StageBase, Description: "provision the runtime base image"},
		{ID: StageSource, Description: "materialize the source tree into the build context"},
		{ID: StageDeps, Description: "install the declared dependency set"},
		{ID: StageLaunch, Description: "declare the port and launch command"},
	}
}

// =============================================================================
// Results
// =============================================================================

// Status is the outcome of a single stage.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped" // aborted before the stage ran
)

// Result records the outcome of one stage.
type Result struct {
	Stage    Stage
	Status   Status
	Err      error
	Duration time.Duration
}

// =============================================================================
// Execution
// =============================================================================

// Executor runs a single stage.
type Executor func(ctx context.Context, stage Stage) error

// Run executes the stages in order through the executor. It returns one
// result per stage. On the first failure the run aborts: the failing stage
// is recorded as failed, all following stages as skipped, and the stage
// error is returned wrapped in a StageError.
//
// Context cancellation between stages counts as a failure of the next
// stage; a running executor is expected to honor ctx itself.
func Run(ctx context.Context, stages []Stage, exec Executor) ([]Result, error) {
	results := make([]Result, 0, len(stages))
	var failed error

	for _, stage := range stages {
		if failed != nil {
			results = append(results, Result{Stage: stage, Status: StatusSkipped})
			continue
		}

		if err := ctx.Err(); err != nil {
			failed = NewStageError(stage.ID, err)
			results = append(results, Result{Stage: stage, Status: StatusFailed, Err: failed})
			continue
		}

		start := time.Now()
		err := exec(ctx, stage)
		elapsed := time.Since(start)

		if err != nil {
			failed = NewStageError(stage.ID, err)
			results = append(results, Result{Stage: stage, Status: StatusFailed, Err: failed, Duration: elapsed})
			continue
		}
		results = append(results, Result{Stage: stage, Status: StatusSucceeded, Duration: elapsed})
	}

	return results, failed
}

// =============================================================================
// Errors
// =============================================================================

// StageError identifies which stage aborted the run.
type StageError struct {
	Stage StageID
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new StageError.
func NewStageError(stage StageID, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
