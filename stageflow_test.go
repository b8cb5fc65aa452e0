package stageflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stageflow/core"
	"github.com/hupe1980/stageflow/internal/testutil"
	"github.com/hupe1980/stageflow/permission"
)

func TestCoordinator_RunPlan(t *testing.T) {
	checker := permission.NewChecker()
	checker.DefineRole("publisher", []permission.Permission{
		{Resource: "dist/**", Action: permission.ActionWrite},
	})
	require.NoError(t, checker.AssignRole("deploy", "publisher"))

	coordinator := New(func(o *Options) {
		o.Checker = checker
		o.Limiter = core.NewStageLimiter(10)
	})

	plan := testutil.NewPlanBuilder("release").
		Wave("build",
			testutil.NewStageBuilder("compile", testutil.StaticTask(map[string]any{"artifacts": 4})).Build(),
		).
		Wave("ship",
			testutil.NewStageBuilder("deploy", testutil.StaticTask(nil)).
				When("compile.status == 'success'", "compile.output.artifacts > 0").
				Requires("dist/site", permission.ActionWrite).
				Build(),
		).
		Build()

	report, err := coordinator.RunPlan(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, 2, report.StagesRun)
	assert.Equal(t, core.StatusSuccess, report.StageStatus["deploy"])

	// The plan's results are reachable through the façade's store.
	_, ok := coordinator.Store().Get("results:compile")
	assert.True(t, ok)
}

func TestCoordinator_RunTasks(t *testing.T) {
	coordinator := New()

	tasks := []core.Task{
		testutil.StaticTask("a"),
		testutil.StaticTask("b"),
		testutil.StaticTask("c"),
	}

	batch, err := coordinator.RunTasks(context.Background(), tasks, 2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, batch.Outputs)
}

func TestCoordinator_DefaultServices(t *testing.T) {
	coordinator := New()

	assert.NotNil(t, coordinator.Engine())
	assert.NotNil(t, coordinator.Store())
	assert.NotNil(t, coordinator.Checker())
	assert.NotNil(t, coordinator.Cache())

	// Default checker carries the readonly fallback.
	assert.True(t, coordinator.Checker().CheckAccess(permission.AccessRequest{
		Agent: "anyone", Resource: "anything", Action: permission.ActionRead,
	}))
}
