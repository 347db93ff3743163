// Package pipeline describes the per-unit stages of a lowering run and the
// progress events the driver emits while moving units through them.
package pipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageLoad decodes the unit file.
	StageLoad Stage = "load"
	// StageCheck resolves classes, values and operands.
	StageCheck Stage = "check"
	// StageBuild emits guards and copy nodes.
	StageBuild Stage = "build"
	// StageLower selects strategies and lowers copies.
	StageLower Stage = "lower"
	// StageExec runs the lowered graphs on the sample heap.
	StageExec Stage = "exec"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageLoad, StageCheck, StageBuild, StageLower, StageExec}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusCached indicates the result came from the disk cache.
	StatusCached Status = "cached"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a unit (or for the whole run when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Add accumulates a duration for the given stage.
func (t *Timings) Add(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] += dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
