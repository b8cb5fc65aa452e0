package core

import "context"

// Task is a single unit of stage work: a closure producing a value or
// failing. Beyond the context it takes no arguments; inputs are captured at
// construction time, typically by reading earlier results from a
// ContextStore. The context carries caller cancellation only. The batch
// executor never derives a cancelling context from sibling failures or its
// own timeout, so tasks needing early abort must watch ctx themselves.
type Task func(ctx context.Context) (any, error)

// Stage statuses recorded in snapshots and run reports.
const (
	// StatusSuccess marks a stage whose task returned without error.
	StatusSuccess = "success"
	// StatusFailed marks a stage whose task returned an error.
	StatusFailed = "failed"
	// StatusSkipped marks a stage whose gating conditions did not hold.
	StatusSkipped = "skipped"
)

// StageResult is the outcome a stage leaves behind for later waves: a
// status string plus an opaque output object that condition expressions
// can inspect.
type StageResult struct {
	Status string         `json:"status"`
	Output map[string]any `json:"output,omitempty"`
}

// Clone returns a copy with its own output map so callers can hold results
// without sharing mutable state.
func (r StageResult) Clone() StageResult {
	out := make(map[string]any, len(r.Output))
	for k, v := range r.Output {
		out[k] = v
	}
	return StageResult{Status: r.Status, Output: out}
}

// Snapshot maps stage names to their recorded results. Condition
// expressions are evaluated read-only against a snapshot; a stage absent
// from the snapshot makes any expression naming it false.
type Snapshot map[string]StageResult

// Clone returns a copy of the snapshot with cloned results.
func (s Snapshot) Clone() Snapshot {
	ns := make(Snapshot, len(s))
	for name, res := range s {
		ns[name] = res.Clone()
	}
	return ns
}
