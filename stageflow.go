// Package stageflow provides a high-level façade over the pipeline engine
// and its services (context store, permission checker, batch executor,
// file cache & logging) for coordinating multi-stage work in a single
// process. Most applications interact with this package by:
//  1. Creating a Coordinator via New() (optionally overriding default in-memory services)
//  2. Describing work as a pipeline.Plan of waves, stages, conditions and resource requests
//  3. Running the plan with RunPlan (or ad-hoc task batches with RunTasks)
//
// The façade delegates orchestration to pipeline.Engine while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a
// tuned executor, a populated permission checker and a structured logger.
package stageflow

import (
	"context"
	"time"

	"github.com/hupe1980/stageflow/core"
	"github.com/hupe1980/stageflow/executor"
	"github.com/hupe1980/stageflow/filecache"
	"github.com/hupe1980/stageflow/logging"
	"github.com/hupe1980/stageflow/metrics"
	"github.com/hupe1980/stageflow/permission"
	"github.com/hupe1980/stageflow/pipeline"
)

// Options configures the Coordinator instance.
type Options struct {
	// Store receives stage results keyed "results:<stage>" and is swept
	// between waves. Defaults to an in-memory TTL store.
	Store core.ContextStore

	// Checker authorizes stage resource requests. Defaults to a checker
	// holding only the built-in readonly role.
	Checker *permission.Checker

	// Executor runs wave batches. Defaults to executor.New().
	Executor *executor.Executor

	// Cache serves repeatedly read input files. Defaults to
	// filecache.New().
	Cache *filecache.Cache

	// Limiter bounds total stage executions when set. Nil means
	// unlimited.
	Limiter *core.StageLimiter

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// Metrics records runs, batches, sweeps and cache traffic when set.
	Metrics *metrics.Metrics
}

// Coordinator is the high-level façade aggregating the pipeline engine
// and its services.
type Coordinator struct {
	opts   Options
	engine *pipeline.Engine
}

// New creates a new Coordinator with optional overrides. Any unset
// service is initialized with an in-memory implementation wired to the
// coordinator's logger and metrics.
func New(optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Executor == nil {
		opts.Executor = executor.New(func(o *executor.Options) {
			o.Logger = opts.Logger
			o.Metrics = opts.Metrics
		})
	}

	if opts.Cache == nil {
		opts.Cache = filecache.New(func(o *filecache.Options) {
			o.Logger = opts.Logger
			o.Metrics = opts.Metrics
		})
	}

	engine := pipeline.New(func(o *pipeline.Options) {
		o.Store = opts.Store
		o.Checker = opts.Checker
		o.Executor = opts.Executor
		o.Limiter = opts.Limiter
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	return &Coordinator{opts: opts, engine: engine}
}

// RunPlan executes a plan wave by wave and returns its report.
func (c *Coordinator) RunPlan(ctx context.Context, plan pipeline.Plan) (*pipeline.Report, error) {
	return c.engine.Run(ctx, plan)
}

// RunTasks is a convenience for ad-hoc batches outside any plan: it runs
// the tasks under the given concurrency cap and timeout without touching
// the context store or the permission tables. Zero values fall back to
// the executor's configured defaults.
func (c *Coordinator) RunTasks(ctx context.Context, tasks []core.Task, concurrency int, timeout time.Duration) (*executor.BatchResult, error) {
	return c.opts.Executor.RunBatch(ctx, tasks, func(o *executor.BatchOptions) {
		if concurrency > 0 {
			o.Concurrency = concurrency
		}
		if timeout > 0 {
			o.Timeout = timeout
		}
	})
}

// Engine returns the underlying pipeline engine.
func (c *Coordinator) Engine() *pipeline.Engine { return c.engine }

// Store returns the context store stage results land in.
func (c *Coordinator) Store() core.ContextStore { return c.engine.Store() }

// Checker returns the permission checker consulted before stages run.
func (c *Coordinator) Checker() *permission.Checker { return c.engine.Checker() }

// Cache returns the file cache for repeatedly read inputs.
func (c *Coordinator) Cache() *filecache.Cache { return c.opts.Cache }
