package testutil

import (
	"context"

	"github.com/hupe1980/stageflow/core"
)

// StaticTask returns a task that immediately succeeds with the given value.
func StaticTask(value any) core.Task {
	return func(_ context.Context) (any, error) {
		return value, nil
	}
}

// FailingTask returns a task that immediately fails with the given error.
func FailingTask(err error) core.Task {
	return func(_ context.Context) (any, error) {
		return nil, err
	}
}
