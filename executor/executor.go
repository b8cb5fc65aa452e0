// Package executor runs batches of independent task closures under a
// bounded concurrency cap with an optional per-batch timeout. Results are
// assembled in submission order regardless of completion order, making a
// batch equivalent to a fixed-order wait-for-all combinator rather than a
// streaming one.
//
// Failure semantics are deliberate: the first task error (or the timeout)
// aborts only the wait. Tasks already running, and tasks still queued for
// admission, are never force-stopped; they run to completion and their
// eventual outcomes are discarded. Callers needing early abort must watch
// the context inside their own task closures.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/stageflow/core"
	"github.com/hupe1980/stageflow/logging"
	"github.com/hupe1980/stageflow/metrics"
	"github.com/hupe1980/stageflow/semaphore"
)

// ErrBatchTimeout marks a batch that did not settle within its configured
// bound. Returned timeout errors wrap it for errors.Is matching.
var ErrBatchTimeout = errors.New("batch timed out")

// Options configures an Executor instance.
type Options struct {
	// Concurrency caps how many tasks run simultaneously per batch.
	// Values <= 0, or larger than the batch, clamp to the batch size.
	Concurrency int

	// Timeout bounds how long RunBatch waits for a batch to settle.
	// Zero disables the bound.
	Timeout time.Duration

	// Logger defaults to NoOp if nil.
	Logger logging.Logger

	// Metrics records batch durations and in-flight tasks when set.
	Metrics *metrics.Metrics
}

// BatchOptions carries per-call overrides for RunBatch.
type BatchOptions struct {
	Concurrency int
	Timeout     time.Duration
}

// BatchResult is the ordered outcome of a fully settled batch.
// Outputs[i] is the value returned by tasks[i].
type BatchResult struct {
	Outputs []any
	Elapsed time.Duration
}

// Executor runs task batches. It is stateless between calls (each batch
// gets a fresh admission semaphore) and safe for concurrent use.
type Executor struct {
	opts Options
}

// New creates an Executor with optional configuration overrides.
func New(optFns ...func(o *Options)) *Executor {
	opts := Options{
		Concurrency: 4,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{opts: opts}
}

// taskOutcome carries one task's settlement back to the collector.
type taskOutcome struct {
	index int
	value any
	err   error
}

// RunBatch executes the tasks under the concurrency cap and returns their
// outputs in submission order.
//
// Error policy: the first task error fails the batch with that error,
// verbatim. A timeout fails the batch with an error wrapping
// ErrBatchTimeout that names the configured bound. In both cases tasks
// already admitted (or still queued) continue to completion in the
// background and their outcomes are discarded. An empty task list returns
// an empty result immediately; a single task behaves identically to N.
func (e *Executor) RunBatch(ctx context.Context, tasks []core.Task, optFns ...func(o *BatchOptions)) (*BatchResult, error) {
	bopts := BatchOptions{
		Concurrency: e.opts.Concurrency,
		Timeout:     e.opts.Timeout,
	}

	for _, fn := range optFns {
		fn(&bopts)
	}

	n := len(tasks)
	if n == 0 {
		return &BatchResult{Outputs: []any{}}, nil
	}

	limit := bopts.Concurrency
	if limit <= 0 || limit > n {
		limit = n
	}

	logger := e.opts.Logger
	logger.Debug("executor.batch.start", "count", n, "parallelism", limit, "timeout", bopts.Timeout)

	start := time.Now()
	defer func() {
		e.opts.Metrics.RecordBatch(time.Since(start))
	}()

	// Buffered so stragglers finishing after an aborted wait never block.
	outcomes := make(chan taskOutcome, n)
	sem := semaphore.New(limit)

	// Admission happens in submission order in a separate goroutine so the
	// collector below can abort the wait while later tasks are still
	// queued. A failed acquire (caller cancelled) settles that task with
	// the context error instead of running it.
	go func() {
		for i := range tasks {
			if err := sem.Acquire(ctx); err != nil {
				outcomes <- taskOutcome{index: i, err: err}
				continue
			}

			go func(idx int, run core.Task) {
				defer sem.Release()

				e.opts.Metrics.TaskStarted()
				defer e.opts.Metrics.TaskFinished()

				taskStart := time.Now()
				var (
					value any
					err   error
				)
				func() { // panic safety
					defer func() {
						if r := recover(); r != nil {
							err = panicError(r)
							logger.Error("executor.task.panic", "index", idx, "recover", r)
						}
					}()
					value, err = run(ctx)
				}()

				logger.Debug(
					"executor.task.complete",
					"index", idx,
					"duration_ms", time.Since(taskStart).Milliseconds(),
					"error", err != nil,
				)

				outcomes <- taskOutcome{index: idx, value: value, err: err}
			}(i, tasks[i])
		}
	}()

	var timeoutCh <-chan time.Time
	if bopts.Timeout > 0 {
		timer := time.NewTimer(bopts.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	outputs := make([]any, n)
	for settled := 0; settled < n; settled++ {
		select {
		case out := <-outcomes:
			if out.err != nil {
				logger.Error("executor.batch.task_failed", "index", out.index, "error", out.err.Error())
				return nil, out.err
			}
			outputs[out.index] = out.value

		case <-timeoutCh:
			logger.Warn("executor.batch.timeout", "count", n, "timeout", bopts.Timeout)
			return nil, fmt.Errorf("%w after %s", ErrBatchTimeout, bopts.Timeout)

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	elapsed := time.Since(start)
	logger.Debug("executor.batch.complete", "count", n, "parallelism", limit, "duration_ms", elapsed.Milliseconds())

	return &BatchResult{Outputs: outputs, Elapsed: elapsed}, nil
}

// panicError converts a recovered panic value to an error carrying the
// goroutine stack at recovery time.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("task panicked: %v", p.val) }
