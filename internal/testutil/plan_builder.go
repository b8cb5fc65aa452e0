package testutil

import (
	"github.com/hupe1980/stageflow/core"
	"github.com/hupe1980/stageflow/permission"
	"github.com/hupe1980/stageflow/pipeline"
)

// PlanBuilder helps construct pipeline plans with fluent chaining for tests.
// Example:
//
//	plan := NewPlanBuilder("ci").
//		Wave("checks", NewStageBuilder("lint", task).Build()).
//		Wave("ship", NewStageBuilder("deploy", task).When("lint.status == 'success'").Build()).
//		Build()
type PlanBuilder struct {
	name  string
	waves []pipeline.Wave
}

// NewPlanBuilder creates a new builder for a plan with the given name.
// Use the chainable Wave method then call Build.
func NewPlanBuilder(name string) *PlanBuilder {
	return &PlanBuilder{name: name}
}

// Wave appends a named wave holding the given stages (chainable).
func (b *PlanBuilder) Wave(name string, stages ...pipeline.Stage) *PlanBuilder {
	b.waves = append(b.waves, pipeline.Wave{Name: name, Stages: stages})
	return b
}

// Build returns the assembled pipeline.Plan.
func (b *PlanBuilder) Build() pipeline.Plan {
	return pipeline.Plan{Name: b.name, Waves: b.waves}
}

// StageBuilder helps construct stages with fluent chaining for tests.
type StageBuilder struct {
	stage pipeline.Stage
}

// NewStageBuilder creates a new builder for a stage with the given name and
// body. Use chainable methods (Agent, When, Requires) then call Build.
func NewStageBuilder(name string, run core.Task) *StageBuilder {
	return &StageBuilder{stage: pipeline.Stage{Name: name, Run: run}}
}

// Agent sets the agent identity the stage runs as (chainable).
func (b *StageBuilder) Agent(agent string) *StageBuilder {
	b.stage.Agent = agent
	return b
}

// When appends gating condition expressions to the stage (chainable).
func (b *StageBuilder) When(conditions ...string) *StageBuilder {
	b.stage.Conditions = append(b.stage.Conditions, conditions...)
	return b
}

// Requires appends a resource request without metadata (chainable).
func (b *StageBuilder) Requires(resource string, action permission.Action) *StageBuilder {
	return b.RequiresWith(resource, action, nil)
}

// RequiresWith appends a resource request carrying request metadata (chainable).
func (b *StageBuilder) RequiresWith(resource string, action permission.Action, metadata map[string]any) *StageBuilder {
	b.stage.Requires = append(b.stage.Requires, pipeline.ResourceRequest{
		Resource: resource,
		Action:   action,
		Metadata: metadata,
	})
	return b
}

// Build returns the assembled pipeline.Stage.
func (b *StageBuilder) Build() pipeline.Stage {
	return b.stage
}
