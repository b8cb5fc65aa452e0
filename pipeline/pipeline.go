package pipeline

import (
	"fmt"
	"time"

	"github.com/hupe1980/stageflow/core"
	"github.com/hupe1980/stageflow/permission"
)

// ResourceRequest declares one resource a stage intends to touch. Every
// request must pass the permission checker before the stage's wave runs.
type ResourceRequest struct {
	// Resource names what the stage wants to act on, matched against the
	// role grants' glob patterns.
	Resource string

	// Action the stage intends to perform.
	Action permission.Action

	// Metadata is handed to conditional grants, e.g. {"confirmed": true}
	// for guarded deletes.
	Metadata map[string]any
}

// Stage is one named unit of work in a plan.
type Stage struct {
	// Name identifies the stage; results are stored under
	// "results:<name>" and conditions refer to it by this name. Names
	// must be unique across the whole plan.
	Name string

	// Agent is the identity checked against the permission tables.
	// Empty defaults to the stage name.
	Agent string

	// Conditions gate execution; all must hold against the accumulated
	// results of earlier waves (none means the stage always runs).
	Conditions []string

	// Requires lists the resources the stage will touch.
	Requires []ResourceRequest

	// Run is the stage body.
	Run core.Task
}

// agentName resolves the identity used for permission checks.
func (s Stage) agentName() string {
	if s.Agent != "" {
		return s.Agent
	}
	return s.Name
}

// Wave groups stages that may run concurrently because none depends on
// another's output.
type Wave struct {
	Name   string
	Stages []Stage
}

// Plan is an ordered list of waves executed front to back.
type Plan struct {
	Name  string
	Waves []Wave
}

// Validate checks structural soundness: every stage needs a unique,
// non-empty name and a body.
func (p Plan) Validate() error {
	seen := make(map[string]struct{})
	for wi, wave := range p.Waves {
		for _, stage := range wave.Stages {
			if stage.Name == "" {
				return fmt.Errorf("wave %d: stage with empty name", wi+1)
			}
			if _, dup := seen[stage.Name]; dup {
				return fmt.Errorf("duplicate stage name %q", stage.Name)
			}
			seen[stage.Name] = struct{}{}
			if stage.Run == nil {
				return fmt.Errorf("stage %q has no body", stage.Name)
			}
		}
	}
	return nil
}

// Report summarizes a completed run.
type Report struct {
	// RunID uniquely identifies the run in logs and metrics.
	RunID string

	// Plan is the executed plan's name.
	Plan string

	// StageStatus maps every encountered stage to its final status.
	StageStatus map[string]string

	// Snapshot holds the accumulated stage results, skipped stages
	// included.
	Snapshot core.Snapshot

	WavesRun      int
	StagesRun     int
	StagesSkipped int

	// Elapsed is the wall clock duration of the run.
	Elapsed time.Duration
}
