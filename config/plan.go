package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/stageflow/condition"
	"github.com/hupe1980/stageflow/core"
	"github.com/hupe1980/stageflow/permission"
	"github.com/hupe1980/stageflow/pipeline"
)

// planSpec mirrors the YAML layout of a plan file.
type planSpec struct {
	Name  string     `yaml:"name"`
	Waves []waveSpec `yaml:"waves"`
}

type waveSpec struct {
	Name   string      `yaml:"name"`
	Stages []stageSpec `yaml:"stages"`
}

type stageSpec struct {
	Name       string        `yaml:"name"`
	Agent      string        `yaml:"agent,omitempty"`
	Conditions []string      `yaml:"conditions,omitempty"`
	Requires   []requestSpec `yaml:"requires,omitempty"`
}

type requestSpec struct {
	Resource string         `yaml:"resource"`
	Action   string         `yaml:"action"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// LoadPlan reads a YAML plan file. The returned plan carries names,
// agents, conditions and resource requests but no stage bodies; attach
// those with Bind before running it.
func LoadPlan(path string) (pipeline.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Plan{}, fmt.Errorf("failed to read plan file: %w", err)
	}

	plan, err := ParsePlan(data)
	if err != nil {
		return pipeline.Plan{}, fmt.Errorf("plan file %s: %w", path, err)
	}

	return plan, nil
}

// ParsePlan parses YAML plan data. Condition expressions are checked with
// the condition parser so malformed gates fail here, with positions,
// rather than silently skipping stages at run time.
func ParsePlan(data []byte) (pipeline.Plan, error) {
	var spec planSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return pipeline.Plan{}, fmt.Errorf("failed to parse plan: %w", err)
	}

	plan := pipeline.Plan{Name: spec.Name}

	for _, ws := range spec.Waves {
		wave := pipeline.Wave{Name: ws.Name}

		for _, ss := range ws.Stages {
			if ss.Name == "" {
				return pipeline.Plan{}, fmt.Errorf("wave %q: stage with empty name", ws.Name)
			}

			for _, cond := range ss.Conditions {
				if _, err := condition.Parse(cond); err != nil {
					return pipeline.Plan{}, fmt.Errorf("stage %q: condition %q: %w", ss.Name, cond, err)
				}
			}

			stage := pipeline.Stage{
				Name:       ss.Name,
				Agent:      ss.Agent,
				Conditions: ss.Conditions,
			}

			for _, rs := range ss.Requires {
				if rs.Resource == "" {
					return pipeline.Plan{}, fmt.Errorf("stage %q: resource request with empty resource", ss.Name)
				}
				action, err := parseAction(rs.Action)
				if err != nil {
					return pipeline.Plan{}, fmt.Errorf("stage %q: resource %q: %w", ss.Name, rs.Resource, err)
				}
				stage.Requires = append(stage.Requires, pipeline.ResourceRequest{
					Resource: rs.Resource,
					Action:   action,
					Metadata: rs.Metadata,
				})
			}

			wave.Stages = append(wave.Stages, stage)
		}

		plan.Waves = append(plan.Waves, wave)
	}

	return plan, nil
}

// Bind attaches stage bodies to a loaded plan by stage name. Every stage
// must receive a body and every body must match a stage; either mismatch
// is a configuration error worth failing loudly on.
func Bind(plan *pipeline.Plan, bodies map[string]core.Task) error {
	bound := make(map[string]bool, len(bodies))

	for wi := range plan.Waves {
		for si := range plan.Waves[wi].Stages {
			stage := &plan.Waves[wi].Stages[si]

			task, ok := bodies[stage.Name]
			if !ok {
				return fmt.Errorf("no body bound for stage %q", stage.Name)
			}

			stage.Run = task
			bound[stage.Name] = true
		}
	}

	for name := range bodies {
		if !bound[name] {
			return fmt.Errorf("body %q matches no stage in the plan", name)
		}
	}

	return nil
}

func parseAction(s string) (permission.Action, error) {
	switch action := permission.Action(s); action {
	case permission.ActionRead, permission.ActionWrite, permission.ActionDelete, permission.ActionExecute:
		return action, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}
