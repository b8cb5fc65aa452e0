package testutil

import (
	"github.com/hupe1980/stageflow/core"
)

// SnapshotBuilder helps construct snapshots with fluent chaining for tests.
// Example:
//
//	snap := NewSnapshotBuilder().Success("lint", map[string]any{"warnings": 0}).Skipped("deploy").Build()
type SnapshotBuilder struct {
	results map[string]core.StageResult
}

// NewSnapshotBuilder creates a new builder for an empty snapshot.
// Use chainable methods (Success, Failed, Skipped, Result) then call Build.
func NewSnapshotBuilder() *SnapshotBuilder {
	return &SnapshotBuilder{results: map[string]core.StageResult{}}
}

// Success records a successful stage with the given output (chainable).
func (b *SnapshotBuilder) Success(stage string, output map[string]any) *SnapshotBuilder {
	return b.Result(stage, core.StatusSuccess, output)
}

// Failed records a failed stage with the given output (chainable).
func (b *SnapshotBuilder) Failed(stage string, output map[string]any) *SnapshotBuilder {
	return b.Result(stage, core.StatusFailed, output)
}

// Skipped records a skipped stage with no output (chainable).
func (b *SnapshotBuilder) Skipped(stage string) *SnapshotBuilder {
	return b.Result(stage, core.StatusSkipped, nil)
}

// Result records a stage with an arbitrary status and output (chainable).
func (b *SnapshotBuilder) Result(stage, status string, output map[string]any) *SnapshotBuilder {
	if output == nil {
		output = map[string]any{}
	}
	b.results[stage] = core.StageResult{Status: status, Output: output}
	return b
}

// Build returns a core.Snapshot with the recorded results.
func (b *SnapshotBuilder) Build() core.Snapshot {
	snap := make(core.Snapshot, len(b.results))
	for name, res := range b.results {
		snap[name] = res.Clone()
	}
	return snap
}
