// Package config loads fleet and agent definitions from YAML files.
//
// Timeout fields are plain seconds in YAML. Values containing ${VAR} are
// expanded from the environment before use, so API keys never have to live
// in the file itself.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentfleet/core"
)

// DefaultMaxParallelAgents bounds parallel dispatch when the file leaves it
// unset.
const DefaultMaxParallelAgents = 5

// FleetConfig is the top-level runtime configuration.
type FleetConfig struct {
	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string
	// LogFormat is json or text. Defaults to json.
	LogFormat string
	// MaxParallelAgents bounds in-flight invocations in parallel batches.
	MaxParallelAgents int
	// DefaultTimeout applies to agents that do not set their own.
	DefaultTimeout time.Duration
	// Agents holds the declared agent configs, defaults applied.
	Agents []core.AgentConfig
}

// raw mirrors the YAML file shape. Tunables are pointers so an absent field
// is distinguishable from an explicit zero: max_retries 0 means no retries
// and temperature 0 means deterministic sampling, while leaving either out
// means the default (3 retries, temperature 0.7).
type rawFile struct {
	Fleet  rawFleet   `yaml:"fleet"`
	Agents []rawAgent `yaml:"agents"`
}

type rawFleet struct {
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
	MaxParallelAgents *int   `yaml:"max_parallel_agents"`
	DefaultTimeout    *int   `yaml:"default_timeout"`
}

type rawAgent struct {
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description"`
	Provider      string         `yaml:"provider"`
	Model         string         `yaml:"model"`
	Endpoint      string         `yaml:"endpoint"`
	APIKey        string         `yaml:"api_key"`
	Temperature   *float64       `yaml:"temperature"`
	MaxTokens     *int           `yaml:"max_tokens"`
	Timeout       *int           `yaml:"timeout"`
	MaxRetries    *int           `yaml:"max_retries"`
	BackoffFactor *float64       `yaml:"backoff_factor"`
	Params        map[string]any `yaml:"params"`
}

// Load reads and parses a fleet configuration file.
func Load(path string) (*FleetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewErrorWithCause(core.ErrorTypeConfigInvalid, err, "reading config file "+path)
	}
	return Parse(data)
}

// Parse decodes a fleet configuration from YAML bytes, applies defaults and
// validates every agent. It fails on the first invalid agent; a config that
// parses is safe to register as-is.
func Parse(data []byte) (*FleetConfig, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, core.NewErrorWithCause(core.ErrorTypeConfigInvalid, err, "parsing config")
	}

	cfg := &FleetConfig{
		LogLevel:          raw.Fleet.LogLevel,
		LogFormat:         raw.Fleet.LogFormat,
		MaxParallelAgents: DefaultMaxParallelAgents,
		DefaultTimeout:    core.DefaultTimeout,
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if raw.Fleet.MaxParallelAgents != nil {
		if *raw.Fleet.MaxParallelAgents <= 0 {
			return nil, core.NewError(core.ErrorTypeConfigInvalid, "fleet: max_parallel_agents must be positive")
		}
		cfg.MaxParallelAgents = *raw.Fleet.MaxParallelAgents
	}
	if raw.Fleet.DefaultTimeout != nil {
		if *raw.Fleet.DefaultTimeout <= 0 {
			return nil, core.NewError(core.ErrorTypeConfigInvalid, "fleet: default_timeout must be positive")
		}
		cfg.DefaultTimeout = time.Duration(*raw.Fleet.DefaultTimeout) * time.Second
	}

	cfg.Agents = make([]core.AgentConfig, 0, len(raw.Agents))
	for _, ra := range raw.Agents {
		agent, err := ra.toAgentConfig(cfg.DefaultTimeout)
		if err != nil {
			return nil, err
		}
		cfg.Agents = append(cfg.Agents, agent)
	}

	return cfg, nil
}

// LoadAgents reads a fleet configuration file and returns just the agent
// configs.
func LoadAgents(path string) ([]core.AgentConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Agents, nil
}

func (ra rawAgent) toAgentConfig(defaultTimeout time.Duration) (core.AgentConfig, error) {
	agent := core.AgentConfig{
		Name:        ra.Name,
		Description: ra.Description,
		Provider:    ra.Provider,
		Model:       ra.Model,
		Endpoint:    os.ExpandEnv(ra.Endpoint),
		APIKey:      os.ExpandEnv(ra.APIKey),
		Temperature: core.DefaultTemperature,
		Timeout:     defaultTimeout,
		MaxRetries:  core.DefaultMaxRetries,
		Params:      ra.Params,
	}

	if ra.Temperature != nil {
		agent.Temperature = *ra.Temperature
	}
	if ra.MaxTokens != nil {
		agent.MaxTokens = *ra.MaxTokens
	}
	if ra.Timeout != nil {
		agent.Timeout = time.Duration(*ra.Timeout) * time.Second
	}
	if ra.MaxRetries != nil {
		agent.MaxRetries = *ra.MaxRetries
	}
	if ra.BackoffFactor != nil {
		agent.BackoffFactor = *ra.BackoffFactor
	}

	if err := agent.Validate(); err != nil {
		return core.AgentConfig{}, err
	}
	return agent, nil
}
