// Package project chains task batches into staged workflows. Stages run in
// declaration order; later stage inputs may reference earlier stage outputs
// with {{stageName.N}} placeholders, where N is the zero-based index of a
// task in the referenced stage.
package project

import (
	"time"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/engine"
)

// TaskSpec declares one task inside a stage. Inputs may embed stage output
// references which are resolved just before dispatch.
type TaskSpec struct {
	AgentName string         `yaml:"agent" json:"agent"`
	Input     string         `yaml:"input" json:"input"`
	Type      string         `yaml:"type,omitempty" json:"type,omitempty"`
	Params    map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Stage is one named batch inside a project. Mode defaults to parallel when
// left empty.
type Stage struct {
	Name  string      `yaml:"name" json:"name"`
	Mode  engine.Mode `yaml:"mode,omitempty" json:"mode,omitempty"`
	Tasks []TaskSpec  `yaml:"tasks" json:"tasks"`
}

// Project is an ordered sequence of stages.
type Project struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Stages      []Stage `yaml:"stages" json:"stages"`
	// MaxParallelAgents bounds concurrency inside parallel stages. Zero
	// keeps the engine's own bound.
	MaxParallelAgents int `yaml:"max_parallel_agents,omitempty" json:"max_parallel_agents,omitempty"`
	// AbortOnStageFailure stops the run after a stage in which no task
	// succeeded. By default later stages still run; their dependent tasks
	// are skipped individually.
	AbortOnStageFailure bool `yaml:"abort_on_stage_failure,omitempty" json:"abort_on_stage_failure,omitempty"`
}

// New constructs a project from its stages.
func New(name, description string, stages ...Stage) Project {
	return Project{Name: name, Description: description, Stages: stages}
}

// StageResult captures the outcome of one executed stage. Results are
// index-aligned with the stage's task specs.
type StageResult struct {
	Name    string
	Results []core.TaskResult
	Elapsed time.Duration
}

// Succeeded counts the tasks in the stage that produced a response.
func (s StageResult) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Success() {
			n++
		}
	}
	return n
}

// Result is the outcome of a full project run. Aborted is true when
// AbortOnStageFailure cut the run short; Stages then holds only the stages
// that actually ran.
type Result struct {
	Name    string
	Stages  []StageResult
	Aborted bool
	Elapsed time.Duration
}

// StageByName returns the result of a named stage, if it ran.
func (r Result) StageByName(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Validate checks the project for structural problems before any dispatch:
// empty projects, unnamed or duplicate stages, and stages without tasks all
// fail fast.
func (p Project) Validate() error {
	if p.Name == "" {
		return core.NewError(core.ErrorTypeConfigInvalid, "project name is required")
	}
	if len(p.Stages) == 0 {
		return core.NewErrorf(core.ErrorTypeConfigInvalid, "project %s has no stages", p.Name)
	}

	seen := make(map[string]struct{}, len(p.Stages))
	for _, stage := range p.Stages {
		if stage.Name == "" {
			return core.NewErrorf(core.ErrorTypeConfigInvalid, "project %s: stage name is required", p.Name)
		}
		if _, dup := seen[stage.Name]; dup {
			return core.NewErrorf(core.ErrorTypeConfigInvalid, "project %s: duplicate stage %s", p.Name, stage.Name)
		}
		seen[stage.Name] = struct{}{}

		if len(stage.Tasks) == 0 {
			return core.NewErrorf(core.ErrorTypeConfigInvalid, "project %s: stage %s has no tasks", p.Name, stage.Name)
		}
		for i, spec := range stage.Tasks {
			if spec.AgentName == "" {
				return core.NewErrorf(core.ErrorTypeConfigInvalid, "project %s: stage %s task %d: agent is required", p.Name, stage.Name, i)
			}
		}
	}

	return nil
}
