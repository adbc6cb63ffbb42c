// Package engine dispatches batches of tasks against the agent registry,
// either serially or with bounded parallelism.
package engine

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/logging"
	"github.com/hupe1980/agentfleet/metrics"
	"github.com/hupe1980/agentfleet/registry"
)

// Mode selects the batch dispatch strategy.
type Mode string

const (
	// ModeSerial runs tasks one after another in submission order.
	ModeSerial Mode = "serial"
	// ModeParallel runs tasks concurrently, bounded by MaxParallel.
	ModeParallel Mode = "parallel"
)

// ParseMode maps a config string to a Mode. Unknown values fall back to
// serial, matching the safest dispatch strategy.
func ParseMode(s string) Mode {
	if s == string(ModeParallel) {
		return ModeParallel
	}
	return ModeSerial
}

// DefaultMaxParallel bounds concurrent agent invocations unless overridden.
const DefaultMaxParallel = 5

// Options configure an Engine.
type Options struct {
	// Logger receives batch lifecycle diagnostics. Defaults to a no-op
	// fleet logger.
	Logger *logging.FleetLogger
	// Recorder receives task and batch completion events. Defaults to noop.
	Recorder metrics.Recorder
	// MaxParallel bounds in-flight invocations in parallel mode. Values <= 0
	// fall back to DefaultMaxParallel.
	MaxParallel int
}

// Engine executes task batches against a registry. A single engine is safe
// for concurrent Run calls; the parallelism bound applies per batch.
type Engine struct {
	registry    *registry.Registry
	logger      *logging.FleetLogger
	recorder    metrics.Recorder
	maxParallel int
}

// New constructs an engine over the given registry.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Recorder:    metrics.NoopRecorder{},
		MaxParallel: DefaultMaxParallel,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewFleetLogger(&logging.LoggerConfig{Level: logging.LogLevelError, Output: io.Discard})
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}

	return &Engine{
		registry:    reg,
		logger:      opts.Logger.WithComponent("engine"),
		recorder:    opts.Recorder,
		maxParallel: opts.MaxParallel,
	}
}

// MaxParallel returns the configured parallelism bound.
func (e *Engine) MaxParallel() int { return e.maxParallel }

// RunOptions adjust one Run call.
type RunOptions struct {
	// MaxParallel overrides the engine's parallelism bound for this run.
	// Values <= 0 keep the engine default.
	MaxParallel int
}

// Run executes the batch in the given mode and returns exactly one result
// per task, index-aligned with the input slice. Task failures never abort
// the batch; cancellation of ctx marks undispatched tasks cancelled.
func (e *Engine) Run(ctx context.Context, tasks []core.Task, mode Mode, optFns ...func(o *RunOptions)) []core.TaskResult {
	runOpts := RunOptions{}
	for _, fn := range optFns {
		fn(&runOpts)
	}
	if runOpts.MaxParallel <= 0 {
		runOpts.MaxParallel = e.maxParallel
	}

	start := time.Now()

	var results []core.TaskResult
	switch mode {
	case ModeParallel:
		results = e.runParallel(ctx, tasks, runOpts.MaxParallel)
	default:
		results = e.runSerial(ctx, tasks)
	}

	succeeded := 0
	for _, r := range results {
		if r.Success() {
			succeeded++
		}
	}
	elapsed := time.Since(start)
	e.logger.LogBatch(string(mode), len(tasks), succeeded, elapsed)
	e.recorder.BatchCompleted(string(mode), len(tasks), elapsed)

	return results
}

// RunSingle executes one task and returns its result.
func (e *Engine) RunSingle(ctx context.Context, task core.Task) core.TaskResult {
	return e.execute(ctx, task)
}

func (e *Engine) runSerial(ctx context.Context, tasks []core.Task) []core.TaskResult {
	results := make([]core.TaskResult, len(tasks))
	for i, task := range tasks {
		if ctx.Err() != nil {
			results[i] = cancelledResult(task, ctx.Err())
			continue
		}
		results[i] = e.execute(ctx, task)
	}
	return results
}

func (e *Engine) runParallel(ctx context.Context, tasks []core.Task, maxParallel int) []core.TaskResult {
	results := make([]core.TaskResult, len(tasks))
	gate := core.NewGate(maxParallel)

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task core.Task) {
			defer wg.Done()

			if err := gate.Acquire(ctx); err != nil {
				results[i] = cancelledResult(task, err)
				return
			}
			defer gate.Release()

			results[i] = e.execute(ctx, task)
		}(i, task)
	}
	wg.Wait()

	return results
}

// execute resolves the task's agent and runs one invocation. A missing agent
// fails the task without touching any provider.
func (e *Engine) execute(ctx context.Context, task core.Task) core.TaskResult {
	start := time.Now()
	result := core.TaskResult{
		TaskID:    task.ID,
		AgentName: task.AgentName,
	}

	cl, ok := e.registry.Resolve(task.AgentName)
	if !ok {
		result.Status = core.TaskStatusFailed
		result.Err = core.NewErrorf(core.ErrorTypeAgentNotFound, "agent %s not registered", task.AgentName)
		result.Elapsed = time.Since(start)
		e.recorder.TaskCompleted(task.AgentName, string(result.Status), result.Elapsed)
		return result
	}

	response, attempts, err := cl.Invoke(ctx, task.Input, task.Params)
	result.Attempts = attempts
	result.Elapsed = time.Since(start)

	switch {
	case err == nil:
		result.Status = core.TaskStatusSucceeded
		result.Response = response
	case core.IsErrorType(err, core.ErrorTypeCancelled):
		result.Status = core.TaskStatusCancelled
		result.Err = err
	default:
		result.Status = core.TaskStatusFailed
		result.Err = err
	}

	for retry := 1; retry < attempts; retry++ {
		e.recorder.RetryAttempted(task.AgentName)
	}
	e.logger.WithContext("task_id", task.ID).LogInvoke(task.AgentName, attempts, result.Elapsed, err)
	e.recorder.TaskCompleted(task.AgentName, string(result.Status), result.Elapsed)

	return result
}

func cancelledResult(task core.Task, err error) core.TaskResult {
	return core.TaskResult{
		TaskID:    task.ID,
		AgentName: task.AgentName,
		Status:    core.TaskStatusCancelled,
		Err:       core.NewErrorWithCause(core.ErrorTypeCancelled, err, "task not dispatched"),
	}
}
