package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromReader(t *testing.T) {
	t.Setenv(envAPIKey, "override-key")
	t.Setenv(envTimeout, "45s")
	t.Setenv(envMaxRetries, "5")

	data := `
base_url: "https://example.com/v1"
api_key: "${OPENAI_API_KEY}"
default_model: "advisor"
timeout: "30s"
max_retries: 2
log_level: "debug"

models:
  advisor:
    model_name: "gpt-4"
    temperature: 0
    max_tokens: 800
  announcer:
    model_name: "gpt-4"
    temperature: 0.6
    max_tokens: 280
`

	cfg, err := LoadConfigFromReader(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/v1", cfg.BaseURL)
	assert.Equal(t, "override-key", cfg.APIKey)
	assert.Equal(t, "advisor", cfg.DefaultModel)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 45*time.Second, cfg.Timeout)

	model, ok := cfg.Model("announcer")
	require.True(t, ok)
	assert.Equal(t, "gpt-4", model.ModelName)
	require.NotNil(t, model.Temperature)
	assert.InDelta(t, 0.6, *model.Temperature, 1e-9)
	require.NotNil(t, model.MaxTokens)
	assert.Equal(t, 280, *model.MaxTokens)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(envAPIKey, "sk-test")
	t.Setenv(envBaseURL, "")
	t.Setenv(envDefaultModel, "")
	t.Setenv(envTimeout, "")
	t.Setenv(envMaxRetries, "")

	cfg, err := LoadConfigFromReader(strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "gpt-4", cfg.DefaultModel)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.Equal(t, defaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv(envTimeout, "")
	t.Setenv(envMaxRetries, "")

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(envAPIKey, "")
		_, err := LoadConfigFromReader(strings.NewReader("{}"))
		require.ErrorContains(t, err, "api_key is required")
	})

	t.Run("bad timeout", func(t *testing.T) {
		t.Setenv(envAPIKey, "sk-test")
		_, err := LoadConfigFromReader(strings.NewReader(`timeout: "soon"`))
		require.ErrorContains(t, err, "invalid timeout")
	})

	t.Run("temperature out of range", func(t *testing.T) {
		t.Setenv(envAPIKey, "sk-test")
		_, err := LoadConfigFromReader(strings.NewReader("models:\n  a:\n    temperature: 3\n"))
		require.ErrorContains(t, err, "models.a.temperature")
	})
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := &Config{Models: map[string]ModelConfig{"a": {ModelName: "gpt-4"}}}
	cp := cfg.Clone()
	cp.Models["b"] = ModelConfig{}
	_, ok := cfg.Models["b"]
	assert.False(t, ok)
}

func TestUpstreamModel(t *testing.T) {
	tests := []struct {
		alias string
		cfg   ModelConfig
		want  string
	}{
		{"advisor", ModelConfig{ModelName: "gpt-4"}, "gpt-4"},
		{"advisor", ModelConfig{Provider: "openai", ModelName: "gpt-4"}, "openai/gpt-4"},
		{"advisor", ModelConfig{Provider: "openai", ModelName: "openai/gpt-4o"}, "openai/gpt-4o"},
		{"x/y", ModelConfig{Provider: "openai", ModelName: "gpt-4"}, "x/y"},
		{" gpt-4o ", ModelConfig{}, "gpt-4o"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cfg.UpstreamModel(tt.alias), "alias %q", tt.alias)
	}
}
