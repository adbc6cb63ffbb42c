// Package agentfleet coordinates a fleet of remote model agents: it keeps a
// registry of named agent clients, dispatches task batches serially or in
// parallel and chains batches into staged projects.
package agentfleet

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/hupe1980/agentfleet/client"
	"github.com/hupe1980/agentfleet/config"
	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/engine"
	"github.com/hupe1980/agentfleet/logging"
	"github.com/hupe1980/agentfleet/metrics"
	"github.com/hupe1980/agentfleet/project"
	"github.com/hupe1980/agentfleet/registry"
)

// Options configure a Fleet.
type Options struct {
	// Logger is the root logger; components derive their own from it.
	Logger *logging.FleetLogger
	// Recorder receives task and batch completion events. Defaults to noop.
	Recorder metrics.Recorder
	// MaxParallelAgents bounds in-flight invocations in parallel batches.
	MaxParallelAgents int
	// ProviderFactories extend or override the built-in provider set.
	ProviderFactories map[string]registry.ProviderFactory
	// ClientOptions are applied to every constructed agent client.
	ClientOptions []func(o *client.Options)
}

// Fleet is the top-level entry point tying registry, engine and coordinator
// together. All methods are safe for concurrent use.
type Fleet struct {
	logger      *logging.FleetLogger
	registry    *registry.Registry
	engine      *engine.Engine
	coordinator *project.Coordinator
}

// New constructs an empty fleet.
func New(optFns ...func(o *Options)) *Fleet {
	opts := Options{
		Recorder:          metrics.NoopRecorder{},
		MaxParallelAgents: engine.DefaultMaxParallel,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewFleetLogger(&logging.LoggerConfig{Level: logging.LogLevelError, Output: io.Discard})
	}

	reg := registry.New(func(o *registry.Options) {
		o.Logger = opts.Logger.WithComponent("registry")
		o.Factories = opts.ProviderFactories
		o.ClientOptions = opts.ClientOptions
	})

	eng := engine.New(reg, func(o *engine.Options) {
		o.Logger = opts.Logger
		o.Recorder = opts.Recorder
		o.MaxParallel = opts.MaxParallelAgents
	})

	coord := project.NewCoordinator(eng, func(o *project.CoordinatorOptions) {
		o.Logger = opts.Logger
	})

	return &Fleet{
		logger:      opts.Logger,
		registry:    reg,
		engine:      eng,
		coordinator: coord,
	}
}

// NewFromConfig builds a fleet from a YAML configuration file and registers
// every agent it declares. The file's log settings produce the fleet logger
// unless the options already carry one.
func NewFromConfig(path string, optFns ...func(o *Options)) (*Fleet, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	fleet := New(append([]func(o *Options){func(o *Options) {
		o.Logger = logging.NewFleetLogger(&logging.LoggerConfig{
			Level:  logging.ParseLevel(cfg.LogLevel),
			Format: cfg.LogFormat,
		})
		o.MaxParallelAgents = cfg.MaxParallelAgents
	}}, optFns...)...)

	for _, agent := range cfg.Agents {
		if err := fleet.RegisterAgent(agent); err != nil {
			fleet.Shutdown()
			return nil, err
		}
	}

	return fleet, nil
}

// RegisterAgent adds a named agent. It fails on an invalid config and on a
// duplicate name.
func (f *Fleet) RegisterAgent(cfg core.AgentConfig) error {
	_, err := f.registry.Register(cfg)
	return err
}

// ReplaceAgent swaps the agent registered under cfg.Name for a fresh one
// built from cfg, registering it if absent.
func (f *Fleet) ReplaceAgent(cfg core.AgentConfig) error {
	_, err := f.registry.Replace(cfg)
	return err
}

// UnregisterAgent removes and closes a named agent.
func (f *Fleet) UnregisterAgent(name string) error {
	return f.registry.Unregister(name)
}

// Agents returns the registered agent names in sorted order.
func (f *Fleet) Agents() []string {
	return f.registry.Names()
}

// Submit executes one task and returns its result. The result carries any
// failure; the method itself never errors.
func (f *Fleet) Submit(ctx context.Context, task core.Task) core.TaskResult {
	return f.engine.RunSingle(ctx, task)
}

// SubmitBatch executes the tasks in the given mode and returns one result
// per task, index-aligned with the input. The run options allow a per-batch
// concurrency bound.
func (f *Fleet) SubmitBatch(ctx context.Context, tasks []core.Task, mode engine.Mode, optFns ...func(o *engine.RunOptions)) []core.TaskResult {
	return f.engine.Run(ctx, tasks, mode, optFns...)
}

// RunProject executes a staged project.
func (f *Fleet) RunProject(ctx context.Context, p project.Project) (project.Result, error) {
	return f.coordinator.Run(ctx, p)
}

// RunProjectFile loads a project definition from a YAML file and executes it.
func (f *Fleet) RunProjectFile(ctx context.Context, path string) (project.Result, error) {
	p, err := config.LoadProject(path)
	if err != nil {
		return project.Result{}, err
	}
	return f.coordinator.Run(ctx, p)
}

// AgentStatus is the outcome of one agent health probe.
type AgentStatus struct {
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// Status summarizes fleet health.
type Status struct {
	RegisteredAgents int           `json:"registered_agents"`
	Unreachable      int           `json:"unreachable"`
	Agents           []AgentStatus `json:"agents"`
}

// AnyUnreachable reports whether any health probe failed.
func (s Status) AnyUnreachable() bool { return s.Unreachable > 0 }

// Status probes every registered agent concurrently and reports which are
// reachable. Probes share the given context; agent order follows Agents().
func (f *Fleet) Status(ctx context.Context) Status {
	clients := f.registry.Clients()

	statuses := make([]AgentStatus, len(clients))
	var wg sync.WaitGroup
	for i, cl := range clients {
		wg.Add(1)
		go func(i int, cl *client.Client) {
			defer wg.Done()
			st := AgentStatus{Name: cl.Name(), Provider: cl.Config().Provider, Reachable: true}
			if err := cl.Health(ctx); err != nil {
				st.Reachable = false
				st.Error = err.Error()
			}
			statuses[i] = st
		}(i, cl)
	}
	wg.Wait()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	status := Status{RegisteredAgents: len(statuses), Agents: statuses}
	for _, st := range statuses {
		if !st.Reachable {
			status.Unreachable++
		}
	}
	return status
}

// Shutdown closes every registered agent client. It is safe to call more
// than once; clients already closed are skipped by their own close guard.
func (f *Fleet) Shutdown() {
	f.logger.Info("fleet shutting down", "agents", f.registry.Len())
	f.registry.CloseAll()
}
