package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfleet/core"
)

const sampleConfig = `
fleet:
  log_level: debug
  log_format: text
  max_parallel_agents: 3
  default_timeout: 45
agents:
  - name: kimi
    provider: openai
    model: moonshot-v1-8k
    endpoint: https://api.moonshot.cn/v1
    api_key: ${MOONSHOT_API_KEY}
    temperature: 0.3
    max_tokens: 2048
    timeout: 60
    max_retries: 5
    backoff_factor: 1.5
  - name: local
    provider: ollama
    model: llama3
    max_retries: 0
  - name: helper
    provider: mock
`

func TestParse_FullConfig(t *testing.T) {
	t.Setenv("MOONSHOT_API_KEY", "sk-test")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 3, cfg.MaxParallelAgents)
	assert.Equal(t, 45*time.Second, cfg.DefaultTimeout)
	require.Len(t, cfg.Agents, 3)

	kimi := cfg.Agents[0]
	assert.Equal(t, "kimi", kimi.Name)
	assert.Equal(t, "openai", kimi.Provider)
	assert.Equal(t, "sk-test", kimi.APIKey)
	assert.Equal(t, 0.3, kimi.Temperature)
	assert.Equal(t, 2048, kimi.MaxTokens)
	assert.Equal(t, 60*time.Second, kimi.Timeout)
	assert.Equal(t, 5, kimi.MaxRetries)
	assert.Equal(t, 1.5, kimi.BackoffFactor)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("agents:\n  - name: helper\n    provider: mock\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, DefaultMaxParallelAgents, cfg.MaxParallelAgents)
	assert.Equal(t, core.DefaultTimeout, cfg.DefaultTimeout)

	helper := cfg.Agents[0]
	assert.Equal(t, core.DefaultTimeout, helper.Timeout)
	assert.Equal(t, core.DefaultMaxRetries, helper.MaxRetries)
	assert.Equal(t, core.DefaultTemperature, helper.Temperature)
}

func TestParse_ExplicitZeroRetriesPreserved(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	// local sets max_retries: 0, helper leaves it out.
	assert.Equal(t, 0, cfg.Agents[1].MaxRetries)
	assert.Equal(t, core.DefaultMaxRetries, cfg.Agents[2].MaxRetries)
}

func TestParse_ExplicitZeroTemperaturePreserved(t *testing.T) {
	cfg, err := Parse([]byte("agents:\n  - name: strict\n    provider: mock\n    temperature: 0\n  - name: helper\n    provider: mock\n"))
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Agents[0].Temperature)
	assert.Equal(t, core.DefaultTemperature, cfg.Agents[1].Temperature)
}

func TestParse_FleetDefaultTimeoutAppliesToAgents(t *testing.T) {
	cfg, err := Parse([]byte("fleet:\n  default_timeout: 10\nagents:\n  - name: helper\n    provider: mock\n"))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Agents[0].Timeout)
}

func TestParse_InvalidAgent(t *testing.T) {
	_, err := Parse([]byte("agents:\n  - name: bad\n    provider: mock\n    temperature: 9\n"))
	require.Error(t, err)
	assert.True(t, core.IsErrorType(err, core.ErrorTypeConfigInvalid))
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("agents: ["))
	require.Error(t, err)
	assert.True(t, core.IsErrorType(err, core.ErrorTypeConfigInvalid))
}

func TestParse_InvalidFleetValues(t *testing.T) {
	_, err := Parse([]byte("fleet:\n  max_parallel_agents: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_parallel_agents")

	_, err = Parse([]byte("fleet:\n  default_timeout: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_timeout")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))
	t.Setenv("MOONSHOT_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Agents, 3)

	agents, err := LoadAgents(path)
	require.NoError(t, err)
	assert.Len(t, agents, 3)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	require.Error(t, err)
	assert.True(t, core.IsErrorType(err, core.ErrorTypeConfigInvalid))
}
