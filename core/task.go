package core

import (
	"time"

	"github.com/google/uuid"
)

// Task is one immutable unit of work submitted against a named agent. The
// agent is referenced by name only and resolved at dispatch time, so a task
// survives registry changes; dispatching against a removed agent yields a
// well-defined AgentNotFound result instead of a dangling reference.
type Task struct {
	ID        string         // Unique task identifier
	AgentName string         // Target agent, resolved at dispatch time
	Input     string         // Input payload handed to the agent
	Type      string         // Free-form task type tag ("general" by default)
	Params    map[string]any // Opaque per-call parameter overrides
}

// TaskOptions configures optional Task fields.
type TaskOptions struct {
	// Type tags the task with a free-form category ("summarization",
	// "research", ...). Defaults to "general".
	Type string
	// Params carries per-call parameter overrides (temperature, max_tokens,
	// model, provider specific keys).
	Params map[string]any
}

// NewTask constructs an immutable task with a generated identifier. The
// params map is copied so later mutation by the caller cannot leak into a
// dispatched task.
func NewTask(agentName, input string, optFns ...func(o *TaskOptions)) Task {
	opts := TaskOptions{Type: "general"}
	for _, fn := range optFns {
		fn(&opts)
	}

	var params map[string]any
	if opts.Params != nil {
		params = make(map[string]any, len(opts.Params))
		for k, v := range opts.Params {
			params[k] = v
		}
	}

	return Task{
		ID:        uuid.NewString(),
		AgentName: agentName,
		Input:     input,
		Type:      opts.Type,
		Params:    params,
	}
}

// TaskStatus is the terminal state of one task execution.
type TaskStatus string

const (
	// TaskStatusSucceeded marks a task whose invocation returned text.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed marks a task whose invocation returned a terminal error.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped marks a dependent task that was never dispatched
	// because a referenced upstream result failed.
	TaskStatusSkipped TaskStatus = "skipped"
	// TaskStatusCancelled marks a task abandoned due to caller cancellation
	// before or during dispatch.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskResult is produced exactly once per task, regardless of outcome. Batch
// operations always return one result per submitted task; failures are
// recorded here and never abort sibling tasks.
type TaskResult struct {
	TaskID    string        // Echo of Task.ID
	AgentName string        // Echo of Task.AgentName
	Status    TaskStatus    // Terminal status
	Response  string        // Response text, set only on success
	Err       error         // Classified error detail, set on failure
	Elapsed   time.Duration // Wall clock time spent on the task
	Attempts  int           // Invocation attempts used, including the last
}

// Success reports whether the task completed with a response.
func (r TaskResult) Success() bool { return r.Status == TaskStatusSucceeded }
