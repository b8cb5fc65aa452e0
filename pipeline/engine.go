package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/stageflow/condition"
	"github.com/hupe1980/stageflow/contextstore"
	"github.com/hupe1980/stageflow/core"
	"github.com/hupe1980/stageflow/executor"
	"github.com/hupe1980/stageflow/logging"
	"github.com/hupe1980/stageflow/metrics"
	"github.com/hupe1980/stageflow/permission"
)

var (
	// ErrAccessDenied marks runs aborted because a stage's resource
	// request was denied by the permission checker.
	ErrAccessDenied = errors.New("stage access denied")

	// ErrStageBudget marks runs aborted because the per-run stage budget
	// was exhausted.
	ErrStageBudget = errors.New("stage budget exhausted")
)

// ResultNamespace is the context store namespace stage results land in;
// a stage's result is stored under "results:<stage name>".
const ResultNamespace = "results"

func resultKey(stage string) string {
	return ResultNamespace + ":" + stage
}

// Options configures an Engine using the functional options pattern.
// Every service has an in-memory default so a bare New() is immediately
// usable in tests and development.
type Options struct {
	// Store receives stage results and is swept after every wave.
	// Defaults to an in-memory store.
	Store core.ContextStore

	// Checker authorizes stage resource requests. Defaults to a fresh
	// checker holding only the built-in readonly role.
	Checker *permission.Checker

	// Executor runs each wave's stages under its concurrency cap.
	// Defaults to executor.New().
	Executor *executor.Executor

	// Limiter bounds stage executions per engine when set. Nil means
	// unlimited.
	Limiter *core.StageLimiter

	// Logger defaults to NoOp if nil.
	Logger logging.Logger

	// Metrics records runs, waves and stages when set, and is threaded
	// into defaulted services.
	Metrics *metrics.Metrics
}

// Engine executes plans wave by wave. It owns no goroutines of its own;
// concurrency lives in the executor, so an Engine is safe to share as
// long as its services are (the defaults all are).
//
// Per wave the engine evaluates every stage's conditions against the
// results accumulated so far, authorizes the runnable stages' resource
// requests, submits their bodies as one batch and records the outputs
// both in the run's snapshot and in the context store. Stages whose
// conditions fail are recorded as skipped and stay visible to later
// conditions; denied access, an exhausted budget, a task error or a
// batch timeout fail the run as a whole.
type Engine struct {
	store    core.ContextStore
	checker  *permission.Checker
	executor *executor.Executor
	limiter  *core.StageLimiter
	logger   logging.Logger
	metrics  *metrics.Metrics
}

// New creates an Engine. Services not supplied via options fall back to
// in-memory defaults wired to the engine's logger and metrics.
//
// Example:
//
//	engine := pipeline.New(func(o *pipeline.Options) {
//	    o.Checker = checker
//	    o.Limiter = core.NewStageLimiter(20)
//	})
//	report, err := engine.Run(ctx, plan)
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Store == nil {
		opts.Store = contextstore.NewInMemoryStore(func(o *contextstore.Options) {
			o.Logger = opts.Logger
			o.Metrics = opts.Metrics
		})
	}
	if opts.Checker == nil {
		opts.Checker = permission.NewChecker(func(o *permission.Options) {
			o.Logger = opts.Logger
		})
	}
	if opts.Executor == nil {
		opts.Executor = executor.New(func(o *executor.Options) {
			o.Logger = opts.Logger
			o.Metrics = opts.Metrics
		})
	}

	return &Engine{
		store:    opts.Store,
		checker:  opts.Checker,
		executor: opts.Executor,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Store returns the context store the engine writes results to.
func (e *Engine) Store() core.ContextStore {
	return e.store
}

// Checker returns the permission checker consulted before stages run.
func (e *Engine) Checker() *permission.Checker {
	return e.checker
}

// Run executes the plan and returns a report of what ran, what was
// skipped and the accumulated results. The context is handed to every
// stage body and cancels the wait between and during waves; already
// running stages are not forcibly stopped.
func (e *Engine) Run(ctx context.Context, plan Plan) (*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	runID := uuid.NewString()
	start := time.Now()

	e.logger.Info("pipeline.run.started", "run_id", runID, "plan", plan.Name, "waves", len(plan.Waves))

	report := &Report{
		RunID:       runID,
		Plan:        plan.Name,
		StageStatus: make(map[string]string),
	}
	results := make(core.Snapshot)

	for wi, wave := range plan.Waves {
		if err := ctx.Err(); err != nil {
			e.failRun(runID, err)
			return nil, err
		}

		label := waveLabel(wave, wi)

		// Conditions see the results of earlier waves only; stages within
		// a wave are concurrent peers.
		snapshot := results.Clone()

		var runnable []Stage
		for _, stage := range wave.Stages {
			if condition.EvaluateAll(stage.Conditions, snapshot) {
				runnable = append(runnable, stage)
				continue
			}
			results[stage.Name] = core.StageResult{Status: core.StatusSkipped, Output: map[string]any{}}
			report.StageStatus[stage.Name] = core.StatusSkipped
			report.StagesSkipped++
			e.metrics.RecordStage(core.StatusSkipped)
			e.logger.Debug("pipeline.stage.skipped", "run_id", runID, "wave", label, "stage", stage.Name)
		}

		report.WavesRun++
		e.metrics.RecordWave()

		if len(runnable) == 0 {
			e.sweep(runID, label)
			continue
		}

		for _, stage := range runnable {
			for _, res := range stage.Requires {
				req := permission.AccessRequest{
					Agent:    stage.agentName(),
					Resource: res.Resource,
					Action:   res.Action,
					Metadata: res.Metadata,
				}
				if e.checker.CheckAccess(req) {
					continue
				}
				err := fmt.Errorf("%w: stage %q: %s", ErrAccessDenied, stage.Name, e.checker.DenialReason(req))
				e.failRun(runID, err)
				return nil, err
			}
		}

		if e.limiter != nil {
			for _, stage := range runnable {
				if err := e.limiter.Increment(); err != nil {
					err = fmt.Errorf("%w: stage %q: %v", ErrStageBudget, stage.Name, err)
					e.failRun(runID, err)
					return nil, err
				}
			}
		}

		tasks := make([]core.Task, len(runnable))
		for i, stage := range runnable {
			tasks[i] = stage.Run
		}

		e.logger.Debug("pipeline.wave.started", "run_id", runID, "wave", label, "stages", len(runnable))

		batch, err := e.executor.RunBatch(ctx, tasks)
		if err != nil {
			err = fmt.Errorf("wave %q: %w", label, err)
			e.failRun(runID, err)
			return nil, err
		}

		for i, stage := range runnable {
			res := core.StageResult{Status: core.StatusSuccess, Output: normalizeOutput(batch.Outputs[i])}
			results[stage.Name] = res
			report.StageStatus[stage.Name] = core.StatusSuccess
			report.StagesRun++
			e.metrics.RecordStage(core.StatusSuccess)
			e.store.Set(resultKey(stage.Name), res, stage.Name)
		}

		e.logger.Debug("pipeline.wave.completed", "run_id", runID, "wave", label, "stages", len(runnable), "elapsed", batch.Elapsed)

		e.sweep(runID, label)
	}

	report.Snapshot = results.Clone()
	report.Elapsed = time.Since(start)

	e.metrics.RecordRun("success")
	e.logger.Info("pipeline.run.completed",
		"run_id", runID,
		"plan", plan.Name,
		"waves", report.WavesRun,
		"stages_run", report.StagesRun,
		"stages_skipped", report.StagesSkipped,
		"elapsed", report.Elapsed,
	)

	return report, nil
}

func (e *Engine) failRun(runID string, err error) {
	e.metrics.RecordRun("failed")
	e.logger.Error("pipeline.run.failed", "run_id", runID, "error", err)
}

func (e *Engine) sweep(runID, wave string) {
	if removed := e.store.Cleanup(); removed > 0 {
		e.logger.Debug("pipeline.store.swept", "run_id", runID, "wave", wave, "removed", removed)
	}
}

func waveLabel(w Wave, i int) string {
	if w.Name != "" {
		return w.Name
	}
	return fmt.Sprintf("wave-%d", i+1)
}

// normalizeOutput shapes a task's return value for condition evaluation:
// maps are copied, nil becomes an empty map, anything else is wrapped
// under "value".
func normalizeOutput(v any) map[string]any {
	switch out := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		copied := make(map[string]any, len(out))
		for k, val := range out {
			copied[k] = val
		}
		return copied
	default:
		return map[string]any{"value": v}
	}
}
