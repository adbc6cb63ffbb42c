package core

import (
	"time"
)

// Default tunables. MaxTokens, Timeout and BackoffFactor are applied by
// Normalized when left at their zero value; Temperature and MaxRetries are
// applied by the configuration loader when the field is absent, since zero
// is meaningful for those.
const (
	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 1000
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 2.0
)

// AgentConfig describes one named binding to a remote text-generation
// capability. A config is immutable once handed to the registry; replacing an
// agent means registering a whole new config, never mutating one in place.
type AgentConfig struct {
	// Identity.
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Provider    string `yaml:"provider"` // "openai", "anthropic", "gemini", "ollama", "mock"
	Model       string `yaml:"model,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"` // overrides the provider default base URL
	APIKey      string `yaml:"api_key,omitempty"`

	// Tunables.
	Temperature   float64       `yaml:"temperature,omitempty"`
	MaxTokens     int           `yaml:"max_tokens,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	MaxRetries    int           `yaml:"max_retries,omitempty"`
	BackoffFactor float64       `yaml:"backoff_factor,omitempty"`

	// Params carries provider specific parameters passed through verbatim.
	Params map[string]any `yaml:"params,omitempty"`
}

// Validate checks the invariants every config must satisfy before it may be
// registered. It returns a ConfigInvalid error on the first violation so that
// registration fails fast and never partially registers an agent.
func (c AgentConfig) Validate() error {
	if c.Name == "" {
		return NewError(ErrorTypeConfigInvalid, "agent name must not be empty")
	}
	if c.Provider == "" {
		return NewErrorf(ErrorTypeConfigInvalid, "agent %s: provider must not be empty", c.Name)
	}
	if c.Timeout < 0 {
		return NewErrorf(ErrorTypeConfigInvalid, "agent %s: timeout must not be negative", c.Name)
	}
	if c.MaxRetries < 0 {
		return NewErrorf(ErrorTypeConfigInvalid, "agent %s: max_retries must not be negative", c.Name)
	}
	if c.BackoffFactor != 0 && c.BackoffFactor < 1 {
		return NewErrorf(ErrorTypeConfigInvalid, "agent %s: backoff_factor must be >= 1", c.Name)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return NewErrorf(ErrorTypeConfigInvalid, "agent %s: temperature must be within [0, 2]", c.Name)
	}
	if c.MaxTokens < 0 {
		return NewErrorf(ErrorTypeConfigInvalid, "agent %s: max_tokens must not be negative", c.Name)
	}
	return nil
}

// Normalized returns a copy with zero-valued tunables replaced by defaults.
// Temperature and MaxRetries are left untouched: zero is a meaningful choice
// for both (deterministic sampling, no retries), so their defaults are
// applied by the configuration loader when the field is absent from the
// file. The Params map is copied so the returned config shares no mutable
// state with the input.
func (c AgentConfig) Normalized() AgentConfig {
	out := c
	if out.MaxTokens == 0 {
		out.MaxTokens = DefaultMaxTokens
	}
	if out.Timeout == 0 {
		out.Timeout = DefaultTimeout
	}
	if out.BackoffFactor == 0 {
		out.BackoffFactor = DefaultBackoffFactor
	}
	if c.Params != nil {
		out.Params = make(map[string]any, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return out
}
