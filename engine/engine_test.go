package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfleet/client"
	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/provider"
	"github.com/hupe1980/agentfleet/registry"
)

// newTestRegistry registers every name against the given shared provider
// with fast retry pacing.
func newTestRegistry(t *testing.T, p provider.Provider, names ...string) *registry.Registry {
	t.Helper()

	reg := registry.New(func(o *registry.Options) {
		o.Factories = map[string]registry.ProviderFactory{
			"test": func(cfg core.AgentConfig) (provider.Provider, error) { return p, nil },
		}
		o.ClientOptions = []func(o *client.Options){func(o *client.Options) {
			o.InitialDelay = time.Millisecond
			o.Jitter = false
		}}
	})

	for _, name := range names {
		_, err := reg.Register(core.AgentConfig{Name: name, Provider: "test", Timeout: time.Second, MaxRetries: 2})
		require.NoError(t, err)
	}
	return reg
}

func taskInputs(agent string, n int) []core.Task {
	tasks := make([]core.Task, n)
	for i := range tasks {
		tasks[i] = core.NewTask(agent, fmt.Sprintf("input-%d", i))
	}
	return tasks
}

func TestEngine_RunSerial_ResultsAlignWithInput(t *testing.T) {
	mock := provider.NewMockProvider("mock-small")
	reg := newTestRegistry(t, mock, "kimi")
	eng := New(reg)

	tasks := taskInputs("kimi", 4)
	results := eng.Run(context.Background(), tasks, ModeSerial)

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, tasks[i].ID, r.TaskID)
		assert.Equal(t, core.TaskStatusSucceeded, r.Status)
		assert.Equal(t, fmt.Sprintf("Mock response to: input-%d", i), r.Response)
		assert.Equal(t, 1, r.Attempts)
	}
}

func TestEngine_RunParallel_ResultsAlignWithInput(t *testing.T) {
	mock := provider.NewMockProvider("mock-small")
	reg := newTestRegistry(t, mock, "kimi")
	eng := New(reg)

	tasks := taskInputs("kimi", 8)
	results := eng.Run(context.Background(), tasks, ModeParallel)

	require.Len(t, results, 8)
	for i, r := range results {
		assert.Equal(t, tasks[i].ID, r.TaskID)
		assert.Equal(t, fmt.Sprintf("Mock response to: input-%d", i), r.Response)
	}
}

func TestEngine_Run_SerialContinuesPastFailure(t *testing.T) {
	mock := provider.NewMockProvider("mock-small")
	mock.FailWith(core.NewError(core.ErrorTypeNonRetryable, "bad prompt"))

	reg := newTestRegistry(t, mock, "kimi")
	eng := New(reg)

	results := eng.Run(context.Background(), taskInputs("kimi", 3), ModeSerial)

	require.Len(t, results, 3)
	assert.Equal(t, core.TaskStatusFailed, results[0].Status)
	assert.True(t, core.IsErrorType(results[0].Err, core.ErrorTypeNonRetryable))
	assert.Equal(t, core.TaskStatusSucceeded, results[1].Status)
	assert.Equal(t, core.TaskStatusSucceeded, results[2].Status)
}

func TestEngine_Run_AgentNotFound(t *testing.T) {
	mock := provider.NewMockProvider("mock-small")
	reg := newTestRegistry(t, mock, "kimi")
	eng := New(reg)

	results := eng.Run(context.Background(), []core.Task{core.NewTask("ghost", "x")}, ModeSerial)

	require.Len(t, results, 1)
	assert.Equal(t, core.TaskStatusFailed, results[0].Status)
	assert.True(t, core.IsErrorType(results[0].Err, core.ErrorTypeAgentNotFound))
	// The provider must never see a task for an unknown agent.
	assert.Equal(t, 0, mock.Calls())
}

// slowProvider tracks the peak number of concurrent Complete calls.
type slowProvider struct {
	delay   time.Duration
	current atomic.Int32
	peak    atomic.Int32
}

func (p *slowProvider) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	cur := p.current.Add(1)
	defer p.current.Add(-1)

	for {
		peak := p.peak.Load()
		if cur <= peak || p.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	select {
	case <-ctx.Done():
		return provider.Response{}, ctx.Err()
	case <-time.After(p.delay):
	}
	return provider.Response{Text: "ok"}, nil
}

func (p *slowProvider) Info() provider.Info { return provider.Info{Provider: "slow"} }

func TestEngine_RunParallel_BoundsConcurrency(t *testing.T) {
	slow := &slowProvider{delay: 20 * time.Millisecond}
	reg := newTestRegistry(t, slow, "kimi")
	eng := New(reg, func(o *Options) { o.MaxParallel = 3 })

	results := eng.Run(context.Background(), taskInputs("kimi", 12), ModeParallel)

	require.Len(t, results, 12)
	for _, r := range results {
		assert.Equal(t, core.TaskStatusSucceeded, r.Status)
	}
	assert.LessOrEqual(t, int(slow.peak.Load()), 3)
	assert.GreaterOrEqual(t, int(slow.peak.Load()), 2)
}

func TestEngine_RunParallel_PerRunBoundOverride(t *testing.T) {
	slow := &slowProvider{delay: 20 * time.Millisecond}
	reg := newTestRegistry(t, slow, "kimi")
	eng := New(reg, func(o *Options) { o.MaxParallel = 8 })

	eng.Run(context.Background(), taskInputs("kimi", 6), ModeParallel, func(o *RunOptions) {
		o.MaxParallel = 1
	})

	assert.Equal(t, int32(1), slow.peak.Load())
}

func TestEngine_RunSerial_CancelledMarksRemaining(t *testing.T) {
	slow := &slowProvider{delay: 30 * time.Millisecond}
	reg := newTestRegistry(t, slow, "kimi")
	eng := New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	results := eng.Run(ctx, taskInputs("kimi", 5), ModeSerial)

	require.Len(t, results, 5)
	assert.Equal(t, core.TaskStatusCancelled, results[0].Status)
	for _, r := range results[1:] {
		assert.Equal(t, core.TaskStatusCancelled, r.Status)
		assert.True(t, core.IsErrorType(r.Err, core.ErrorTypeCancelled))
	}
}

func TestEngine_RunSingle(t *testing.T) {
	mock := provider.NewMockProvider("mock-small")
	mock.AddResponse("hello", "hi")
	reg := newTestRegistry(t, mock, "kimi")
	eng := New(reg)

	result := eng.RunSingle(context.Background(), core.NewTask("kimi", "hello"))
	assert.Equal(t, core.TaskStatusSucceeded, result.Status)
	assert.Equal(t, "hi", result.Response)
}

// recordingRecorder captures completion events for assertions.
type recordingRecorder struct {
	mu      sync.Mutex
	tasks   map[string]int // status -> count
	retries int
	batches int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{tasks: map[string]int{}}
}

func (r *recordingRecorder) TaskCompleted(agent, status string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[status]++
}

func (r *recordingRecorder) RetryAttempted(agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *recordingRecorder) BatchCompleted(mode string, size int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
}

func TestEngine_Run_RecordsMetrics(t *testing.T) {
	mock := provider.NewMockProvider("mock-small")
	mock.FailWith(core.NewError(core.ErrorTypeTransient, "reset"))

	rec := newRecordingRecorder()
	reg := newTestRegistry(t, mock, "kimi")
	eng := New(reg, func(o *Options) { o.Recorder = rec })

	results := eng.Run(context.Background(), taskInputs("kimi", 2), ModeSerial)
	require.Len(t, results, 2)

	assert.Equal(t, 2, rec.tasks[string(core.TaskStatusSucceeded)])
	assert.Equal(t, 1, rec.retries)
	assert.Equal(t, 1, rec.batches)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeParallel, ParseMode("parallel"))
	assert.Equal(t, ModeSerial, ParseMode("serial"))
	assert.Equal(t, ModeSerial, ParseMode(""))
	assert.Equal(t, ModeSerial, ParseMode("bogus"))
}
