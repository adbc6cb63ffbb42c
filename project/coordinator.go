package project

import (
	"context"
	"io"
	"time"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/engine"
	"github.com/hupe1980/agentfleet/internal/util"
	"github.com/hupe1980/agentfleet/logging"
)

// CoordinatorOptions configure a Coordinator.
type CoordinatorOptions struct {
	// Logger receives stage lifecycle diagnostics.
	Logger *logging.FleetLogger
}

// Coordinator runs projects stage by stage on an engine.
type Coordinator struct {
	engine *engine.Engine
	logger *logging.FleetLogger
}

// NewCoordinator constructs a coordinator over the given engine.
func NewCoordinator(eng *engine.Engine, optFns ...func(o *CoordinatorOptions)) *Coordinator {
	opts := CoordinatorOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewFleetLogger(&logging.LoggerConfig{Level: logging.LogLevelError, Output: io.Discard})
	}

	return &Coordinator{
		engine: eng,
		logger: opts.Logger.WithComponent("coordinator"),
	}
}

// Run validates the project and executes its stages in order. Stage output
// references in task inputs are resolved against completed stages before
// dispatch; a task referencing a failed upstream result is marked skipped
// and never dispatched. The error return covers validation and cancellation
// only; per-task failures live in the stage results.
func (c *Coordinator) Run(ctx context.Context, p Project) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	log := c.logger.WithContext("project", p.Name)
	log.Info("project started", "stages", len(p.Stages))

	result := Result{Name: p.Name, Stages: make([]StageResult, 0, len(p.Stages))}
	completed := make(map[string][]core.TaskResult, len(p.Stages))

	for _, stage := range p.Stages {
		if ctx.Err() != nil {
			result.Elapsed = time.Since(start)
			return result, core.NewErrorWithCause(core.ErrorTypeCancelled, ctx.Err(), "project "+p.Name+" cancelled")
		}

		stageResult := c.runStage(ctx, log, stage, p.MaxParallelAgents, completed)
		result.Stages = append(result.Stages, stageResult)
		completed[stage.Name] = stageResult.Results

		if p.AbortOnStageFailure && stageResult.Succeeded() == 0 {
			log.Warn("aborting project after failed stage", "stage", stage.Name)
			result.Aborted = true
			break
		}
	}

	result.Elapsed = time.Since(start)
	log.Info("project finished", "aborted", result.Aborted, "elapsed", result.Elapsed.String())
	return result, nil
}

// runStage resolves stage output references, skips tasks whose upstream
// results failed and dispatches the rest as one batch. The returned results
// are index-aligned with the stage's task specs.
func (c *Coordinator) runStage(ctx context.Context, log *logging.FleetLogger, stage Stage, maxParallel int, completed map[string][]core.TaskResult) StageResult {
	mode := stage.Mode
	if mode == "" {
		mode = engine.ModeParallel
	}

	start := time.Now()
	log.Info("stage started", "stage", stage.Name, "tasks", len(stage.Tasks), "mode", string(mode))

	resolve := func(stageName string, index int) (string, util.RefOutcome) {
		results, ok := completed[stageName]
		if !ok || index < 0 || index >= len(results) {
			return "", util.RefUnknown
		}
		if !results[index].Success() {
			return "", util.RefFailed
		}
		return results[index].Response, util.RefResolved
	}

	results := make([]core.TaskResult, len(stage.Tasks))
	tasks := make([]core.Task, 0, len(stage.Tasks))
	taskSlot := make([]int, 0, len(stage.Tasks))

	for i, spec := range stage.Tasks {
		input, failedRef, unknown := util.ResolvePlaceholders(spec.Input, resolve)
		for _, ref := range unknown {
			log.Warn("unresolved stage reference left literal", "stage", stage.Name, "task", i, "ref", ref.Raw)
		}

		task := core.NewTask(spec.AgentName, input, func(o *core.TaskOptions) {
			if spec.Type != "" {
				o.Type = spec.Type
			}
			o.Params = spec.Params
		})

		if failedRef {
			results[i] = core.TaskResult{
				TaskID:    task.ID,
				AgentName: task.AgentName,
				Status:    core.TaskStatusSkipped,
				Err:       core.NewError(core.ErrorTypeNonRetryable, "upstream result referenced by task failed"),
			}
			log.Warn("task skipped, upstream result failed", "stage", stage.Name, "task", i, "agent", spec.AgentName)
			continue
		}

		tasks = append(tasks, task)
		taskSlot = append(taskSlot, i)
	}

	if len(tasks) > 0 {
		run := c.engine.Run(ctx, tasks, mode, func(o *engine.RunOptions) {
			o.MaxParallel = maxParallel
		})
		for j, r := range run {
			results[taskSlot[j]] = r
		}
	}

	stageResult := StageResult{Name: stage.Name, Results: results, Elapsed: time.Since(start)}
	log.Info("stage finished", "stage", stage.Name, "succeeded", stageResult.Succeeded(), "total", len(results), "elapsed", stageResult.Elapsed.String())
	return stageResult
}
