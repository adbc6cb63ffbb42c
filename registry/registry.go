// Package registry maintains the shared mapping from agent name to live
// client instance. Structural mutations (register, replace, unregister) are
// mutually exclusive; dispatch lookups are lock-free readers that never
// block each other.
package registry

import (
	"sort"
	"sync"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentfleet/client"
	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/logging"
	"github.com/hupe1980/agentfleet/provider"
	"github.com/hupe1980/agentfleet/provider/anthropic"
	"github.com/hupe1980/agentfleet/provider/gemini"
	"github.com/hupe1980/agentfleet/provider/ollama"
	"github.com/hupe1980/agentfleet/provider/openai"
)

// ProviderFactory builds a provider instance from an agent config. The
// registry selects the factory by cfg.Provider.
type ProviderFactory func(cfg core.AgentConfig) (provider.Provider, error)

// DefaultFactories returns the built-in provider constructors. "openai"
// doubles as the factory for any OpenAI-compatible endpoint (Moonshot/Kimi,
// Qwen, ...) via cfg.Endpoint.
func DefaultFactories() map[string]ProviderFactory {
	return map[string]ProviderFactory{
		"openai": func(cfg core.AgentConfig) (provider.Provider, error) {
			return openai.New(func(o *openai.Options) {
				if cfg.Model != "" {
					o.Model = cfg.Model
				}
				o.APIKey = cfg.APIKey
				o.BaseURL = cfg.Endpoint
			}), nil
		},
		"anthropic": func(cfg core.AgentConfig) (provider.Provider, error) {
			return anthropic.New(func(o *anthropic.Options) {
				if cfg.Model != "" {
					o.Model = anthropicsdk.Model(cfg.Model)
				}
				o.APIKey = cfg.APIKey
				o.BaseURL = cfg.Endpoint
			}), nil
		},
		"gemini": func(cfg core.AgentConfig) (provider.Provider, error) {
			return gemini.New(func(o *gemini.Options) {
				if cfg.Model != "" {
					o.Model = cfg.Model
				}
				o.APIKey = cfg.APIKey
			}), nil
		},
		"ollama": func(cfg core.AgentConfig) (provider.Provider, error) {
			return ollama.New(func(o *ollama.Options) {
				if cfg.Model != "" {
					o.Model = cfg.Model
				}
				if cfg.Endpoint != "" {
					o.Host = cfg.Endpoint
				}
			}), nil
		},
		"mock": func(cfg core.AgentConfig) (provider.Provider, error) {
			return provider.NewMockProvider(cfg.Model), nil
		},
	}
}

// Options configure a Registry.
type Options struct {
	// Logger receives structural change diagnostics. Defaults to NoOp.
	Logger logging.Logger
	// Factories maps provider names to constructors. Defaults to
	// DefaultFactories; entries here are merged over the defaults so callers
	// can add or override individual providers.
	Factories map[string]ProviderFactory
	// ClientOptions are applied to every client the registry constructs.
	ClientOptions []func(o *client.Options)
}

// Registry is the shared name → client mapping used by the engine for
// dispatch-time resolution.
type Registry struct {
	mu        sync.RWMutex
	clients   map[string]*client.Client
	factories map[string]ProviderFactory
	logger    logging.Logger

	clientOpts []func(o *client.Options)
}

// New constructs an empty registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	factories := DefaultFactories()
	for name, fn := range opts.Factories {
		factories[name] = fn
	}

	return &Registry{
		clients:    make(map[string]*client.Client),
		factories:  factories,
		logger:     opts.Logger,
		clientOpts: opts.ClientOptions,
	}
}

// Register validates the config, builds the provider and client and adds it
// under the config's name. It fails with ConfigInvalid on a bad config and
// on a duplicate name; nothing is partially registered on error.
func (r *Registry) Register(cfg core.AgentConfig) (*client.Client, error) {
	cl, err := r.build(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.clients[cfg.Name]; exists {
		r.mu.Unlock()
		_ = cl.Close()
		return nil, core.NewErrorf(core.ErrorTypeConfigInvalid, "agent %s already registered", cfg.Name)
	}
	r.clients[cfg.Name] = cl
	r.mu.Unlock()

	r.logger.Info("registered agent", "agent", cfg.Name, "provider", cfg.Provider)
	return cl, nil
}

// Replace atomically swaps the client for cfg.Name with a freshly built one.
// The new client is fully constructed before the old one is removed, so a
// resolvable name never points at a half-closed client. The old client is
// closed after the swap; in-flight invocations on it finish naturally.
func (r *Registry) Replace(cfg core.AgentConfig) (*client.Client, error) {
	cl, err := r.build(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	old := r.clients[cfg.Name]
	r.clients[cfg.Name] = cl
	r.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	r.logger.Info("replaced agent", "agent", cfg.Name, "provider", cfg.Provider)
	return cl, nil
}

// Unregister removes the name from the mapping first, so no new dispatch can
// resolve it, then closes the client. Invocations already holding the client
// are allowed to finish or fail on their own.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	cl, exists := r.clients[name]
	if exists {
		delete(r.clients, name)
	}
	r.mu.Unlock()

	if !exists {
		return core.NewErrorf(core.ErrorTypeAgentNotFound, "agent %s not registered", name)
	}

	_ = cl.Close()
	r.logger.Info("unregistered agent", "agent", name)
	return nil
}

// Resolve looks up the live client for an agent name.
func (r *Registry) Resolve(name string) (*client.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cl, ok := r.clients[name]
	return cl, ok
}

// Names returns the registered agent names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Clients returns a snapshot of the registered clients.
func (r *Registry) Clients() []*client.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*client.Client, 0, len(r.clients))
	for _, cl := range r.clients {
		out = append(out, cl)
	}
	return out
}

// CloseAll removes and closes every client. Close failures are logged and
// swallowed; shutdown always completes.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*client.Client)
	r.mu.Unlock()

	for name, cl := range clients {
		if err := cl.Close(); err != nil {
			r.logger.Warn("closing agent failed", "agent", name, "error", err)
		}
	}
}

func (r *Registry) build(cfg core.AgentConfig) (*client.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factory, ok := r.factories[cfg.Provider]
	if !ok {
		return nil, core.NewErrorf(core.ErrorTypeConfigInvalid, "agent %s: unknown provider %q", cfg.Name, cfg.Provider)
	}

	p, err := factory(cfg)
	if err != nil {
		return nil, core.NewErrorWithCause(core.ErrorTypeConfigInvalid, err, "building provider for agent "+cfg.Name)
	}

	clientOpts := append([]func(o *client.Options){func(o *client.Options) {
		o.Logger = r.logger
	}}, r.clientOpts...)

	return client.New(cfg, p, clientOpts...), nil
}
