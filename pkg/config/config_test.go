package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	t.Setenv("DOCMETA_MODEL", "")

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "ollama"
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 300
  temperature: 0.4
  retry_delay: 500ms

annotate:
  input_dir: "./input-markdown"
  max_files: 25
  max_workers: 8
  rate_limit_every: 5
  rate_limit_pause: 2s
  service_name: "Amazon EKS"

output:
  csv_path: "out/meta.csv"

patch:
  markup_dir: "./xml"
  lookahead: 120

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_meta"
  vector_dim: 384

logging:
  level: "debug"
  console: false
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 300, config.LLM.MaxTokens)
	assert.Equal(t, 500*time.Millisecond, config.LLM.RetryDelay)
	assert.Equal(t, 25, config.Annotate.MaxFiles)
	assert.Equal(t, 8, config.Annotate.MaxWorkers)
	assert.Equal(t, 5, config.Annotate.RateLimitEvery)
	assert.Equal(t, 2*time.Second, config.Annotate.RateLimitPause)
	assert.Equal(t, "Amazon EKS", config.Annotate.ServiceName)
	assert.Equal(t, "out/meta.csv", config.Output.CSVPath)
	assert.Equal(t, 120, config.Patch.Lookahead)
	assert.Equal(t, 384, config.Database.VectorDim)
	assert.False(t, config.Logging.Console)

	// Defaults fill what the file leaves out
	assert.Equal(t, ".md", config.Annotate.Extension)
	assert.Equal(t, ".xml", config.Patch.Extension)
	assert.Equal(t, []string{"chapter"}, config.Patch.ContainerTags)
	assert.Equal(t, []string{"section"}, config.Patch.RoleTags)
	assert.Equal(t, "topic", config.Patch.Role)
	assert.Equal(t, []string{"doc-history.xml"}, config.Remap.Exclude)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DOCMETA_MODEL", "")

	config := Default()
	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, 10, config.Annotate.MaxFiles)
	assert.True(t, config.Logging.Console)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 3, config.LLM.MaxRetries)
	assert.Equal(t, 10, config.Annotate.RateLimitEvery)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigKeepsExplicitZeros(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configData := `
llm:
  temperature: 0
  max_retries: 0
annotate:
  rate_limit_every: 0
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, 0.0, config.LLM.Temperature)
	assert.Equal(t, 0, config.LLM.MaxRetries)
	assert.Equal(t, 0, config.Annotate.RateLimitEvery)
	assert.Empty(t, config.Validate())

	// omitted fields still take their defaults
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  model: llama3\n"), 0644))

	config, err = LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 3, config.LLM.MaxRetries)
	assert.Equal(t, 10, config.Annotate.RateLimitEvery)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		expectedErrs  int
		errorMessages []string
	}{
		{
			name:         "valid config",
			mutate:       func(*Config) {},
			expectedErrs: 0,
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.LLM.BaseURL = "invalid-url"
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 3.0
				c.Annotate.MaxWorkers = 0
				c.Database.VectorDim = -1
			},
			expectedErrs: 5,
			errorMessages: []string{
				"llm.base_url: invalid Ollama base URL",
				"max_tokens: max_tokens must be between 1 and 4096",
				"temperature: temperature must be between 0 and 2",
				"annotate.max_workers: max_workers must be positive",
				"vector_dim: vector_dim must be positive",
			},
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "openai"
				c.LLM.APIKey = ""
			},
			expectedErrs:  1,
			errorMessages: []string{"llm.api_key: api key is required"},
		},
		{
			name: "bad extension",
			mutate: func(c *Config) {
				c.Patch.Extension = "xml"
			},
			expectedErrs:  1,
			errorMessages: []string{"patch.extension: invalid extension format: xml"},
		},
		{
			name: "lookahead shorter than marker",
			mutate: func(c *Config) {
				c.Patch.Lookahead = 20
			},
			expectedErrs:  1,
			errorMessages: []string{"patch.lookahead: lookahead must be at least 34"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			applyDefaults(config)
			tt.mutate(config)

			errors := config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DOCMETA_MODEL", "gpt-4o-mini")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", config.LLM.Model)
}
