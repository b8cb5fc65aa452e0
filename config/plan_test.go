package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stageflow/condition"
	"github.com/hupe1980/stageflow/core"
	"github.com/hupe1980/stageflow/permission"
	"github.com/hupe1980/stageflow/pipeline"
)

const planYAML = `
name: ci
waves:
  - name: checks
    stages:
      - name: lint
        agent: linter
        requires:
          - resource: src/**
            action: read
      - name: vet
  - name: ship
    stages:
      - name: deploy
        conditions:
          - "lint.status == 'success'"
          - "lint.output.warnings < 10"
        requires:
          - resource: prod/site
            action: write
            metadata:
              confirmed: true
`

func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan([]byte(planYAML))
	require.NoError(t, err)

	assert.Equal(t, "ci", plan.Name)
	require.Len(t, plan.Waves, 2)

	checks := plan.Waves[0]
	assert.Equal(t, "checks", checks.Name)
	require.Len(t, checks.Stages, 2)
	assert.Equal(t, "lint", checks.Stages[0].Name)
	assert.Equal(t, "linter", checks.Stages[0].Agent)
	require.Len(t, checks.Stages[0].Requires, 1)
	assert.Equal(t, "src/**", checks.Stages[0].Requires[0].Resource)
	assert.Equal(t, permission.ActionRead, checks.Stages[0].Requires[0].Action)

	deploy := plan.Waves[1].Stages[0]
	assert.Equal(t, []string{"lint.status == 'success'", "lint.output.warnings < 10"}, deploy.Conditions)
	require.Len(t, deploy.Requires, 1)
	assert.Equal(t, permission.ActionWrite, deploy.Requires[0].Action)
	assert.Equal(t, map[string]any{"confirmed": true}, deploy.Requires[0].Metadata)

	// Bodies are attached later; loading alone leaves them nil.
	assert.Nil(t, deploy.Run)
}

func TestParsePlan_RejectsBadCondition(t *testing.T) {
	data := []byte(`
name: broken
waves:
  - name: only
    stages:
      - name: deploy
        conditions:
          - "lint.status =="
`)

	_, err := ParsePlan(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, condition.ErrSyntax)
	assert.Contains(t, err.Error(), `"deploy"`)
}

func TestParsePlan_RejectsUnknownAction(t *testing.T) {
	data := []byte(`
name: broken
waves:
  - name: only
    stages:
      - name: patch
        requires:
          - resource: src/**
            action: chmod
`)

	_, err := ParsePlan(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown action "chmod"`)
}

func TestParsePlan_RejectsEmptyStageName(t *testing.T) {
	data := []byte(`
name: broken
waves:
  - name: only
    stages:
      - agent: ghost
`)

	_, err := ParsePlan(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty name")
}

func TestParsePlan_RejectsEmptyResource(t *testing.T) {
	data := []byte(`
name: broken
waves:
  - name: only
    stages:
      - name: patch
        requires:
          - action: write
`)

	_, err := ParsePlan(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty resource")
}

func TestParsePlan_RejectsMalformedYAML(t *testing.T) {
	_, err := ParsePlan([]byte("waves: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse plan")
}

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(planYAML), 0o600))

	plan, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, "ci", plan.Name)

	_, err = LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read plan file")
}

func TestBind(t *testing.T) {
	plan, err := ParsePlan([]byte(planYAML))
	require.NoError(t, err)

	noop := func(_ context.Context) (any, error) { return nil, nil }

	err = Bind(&plan, map[string]core.Task{
		"lint":   noop,
		"vet":    noop,
		"deploy": noop,
	})
	require.NoError(t, err)

	for _, wave := range plan.Waves {
		for _, stage := range wave.Stages {
			assert.NotNil(t, stage.Run, "stage %s", stage.Name)
		}
	}

	require.NoError(t, plan.Validate())
}

func TestBind_MissingBody(t *testing.T) {
	plan, err := ParsePlan([]byte(planYAML))
	require.NoError(t, err)

	noop := func(_ context.Context) (any, error) { return nil, nil }

	err = Bind(&plan, map[string]core.Task{"lint": noop})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no body bound")
}

func TestBind_UnknownBody(t *testing.T) {
	plan, err := ParsePlan([]byte(planYAML))
	require.NoError(t, err)

	noop := func(_ context.Context) (any, error) { return nil, nil }

	err = Bind(&plan, map[string]core.Task{
		"lint":    noop,
		"vet":     noop,
		"deploy":  noop,
		"phantom": noop,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"phantom"`)
}

func TestLoadedPlanRuns(t *testing.T) {
	plan, err := ParsePlan([]byte(planYAML))
	require.NoError(t, err)

	checker := permission.NewChecker()
	checker.DefineRole("publisher", []permission.Permission{
		{Resource: "prod/**", Action: permission.ActionWrite, Condition: func(md map[string]any) bool {
			confirmed, _ := md["confirmed"].(bool)
			return confirmed
		}},
	})
	require.NoError(t, checker.AssignRole("deploy", "publisher"))

	err = Bind(&plan, map[string]core.Task{
		"lint":   func(_ context.Context) (any, error) { return map[string]any{"warnings": 2}, nil },
		"vet":    func(_ context.Context) (any, error) { return nil, nil },
		"deploy": func(_ context.Context) (any, error) { return map[string]any{"url": "https://example.com"}, nil },
	})
	require.NoError(t, err)

	engine := pipeline.New(func(o *pipeline.Options) {
		o.Checker = checker
	})

	report, err := engine.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, report.StageStatus["deploy"])
	assert.Equal(t, 3, report.StagesRun)
}
