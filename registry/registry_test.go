package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/provider"
)

func mockConfig(name string) core.AgentConfig {
	return core.AgentConfig{Name: name, Provider: "mock", Model: "mock-small"}
}

func TestRegistry_Register(t *testing.T) {
	reg := New()

	cl, err := reg.Register(mockConfig("kimi"))
	require.NoError(t, err)
	assert.Equal(t, "kimi", cl.Name())
	assert.Equal(t, 1, reg.Len())

	resolved, ok := reg.Resolve("kimi")
	assert.True(t, ok)
	assert.Same(t, cl, resolved)
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := New()

	_, err := reg.Register(mockConfig("kimi"))
	require.NoError(t, err)

	_, err = reg.Register(mockConfig("kimi"))
	require.Error(t, err)
	assert.True(t, core.IsErrorType(err, core.ErrorTypeConfigInvalid))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Register_InvalidConfig(t *testing.T) {
	reg := New()

	_, err := reg.Register(core.AgentConfig{Provider: "mock"})
	require.Error(t, err)
	assert.True(t, core.IsErrorType(err, core.ErrorTypeConfigInvalid))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_Register_UnknownProvider(t *testing.T) {
	reg := New()

	_, err := reg.Register(core.AgentConfig{Name: "kimi", Provider: "telegraph"})
	require.Error(t, err)
	assert.True(t, core.IsErrorType(err, core.ErrorTypeConfigInvalid))
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestRegistry_Replace(t *testing.T) {
	reg := New()

	old, err := reg.Register(mockConfig("kimi"))
	require.NoError(t, err)

	cfg := mockConfig("kimi")
	cfg.Model = "mock-large"
	fresh, err := reg.Replace(cfg)
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, 1, reg.Len())

	resolved, ok := reg.Resolve("kimi")
	require.True(t, ok)
	assert.Equal(t, "mock-large", resolved.Config().Model)
}

func TestRegistry_Replace_RegistersWhenAbsent(t *testing.T) {
	reg := New()

	_, err := reg.Replace(mockConfig("kimi"))
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Unregister(t *testing.T) {
	reg := New()

	_, err := reg.Register(mockConfig("kimi"))
	require.NoError(t, err)

	require.NoError(t, reg.Unregister("kimi"))
	assert.Equal(t, 0, reg.Len())

	_, ok := reg.Resolve("kimi")
	assert.False(t, ok)
}

func TestRegistry_Unregister_Missing(t *testing.T) {
	reg := New()

	err := reg.Unregister("ghost")
	require.Error(t, err)
	assert.True(t, core.IsErrorType(err, core.ErrorTypeAgentNotFound))
}

func TestRegistry_Names_Sorted(t *testing.T) {
	reg := New()

	for _, name := range []string{"writer", "analyst", "kimi"} {
		_, err := reg.Register(mockConfig(name))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"analyst", "kimi", "writer"}, reg.Names())
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := New()

	_, err := reg.Register(mockConfig("kimi"))
	require.NoError(t, err)
	_, err = reg.Register(mockConfig("qwen"))
	require.NoError(t, err)

	reg.CloseAll()
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Names())
}

func TestRegistry_CustomFactory(t *testing.T) {
	shared := provider.NewMockProvider("shared")

	reg := New(func(o *Options) {
		o.Factories = map[string]ProviderFactory{
			"shared": func(cfg core.AgentConfig) (provider.Provider, error) {
				return shared, nil
			},
		}
	})

	cl, err := reg.Register(core.AgentConfig{Name: "kimi", Provider: "shared"})
	require.NoError(t, err)
	assert.Equal(t, "kimi", cl.Name())

	// Built-ins stay available next to custom factories.
	_, err = reg.Register(mockConfig("qwen"))
	assert.NoError(t, err)
}
