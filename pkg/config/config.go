package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotConfigured is returned by component constructors handed a nil config.
var ErrNotConfigured = errors.New("configuration not supplied")

// MinLookahead is the smallest patch lookahead that still finds the marker
// of a block inserted directly after a section's opening tag.
const MinLookahead = 34

type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	MaxTokens         int           `yaml:"max_tokens"`
	Temperature       float64       `yaml:"temperature"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	Timeout           time.Duration `yaml:"timeout"`
}

type AnnotateConfig struct {
	InputDir       string        `yaml:"input_dir"`
	Extension      string        `yaml:"extension"`
	MaxFiles       int           `yaml:"max_files"`
	MaxWorkers     int           `yaml:"max_workers"`
	RateLimitEvery int           `yaml:"rate_limit_every"`
	RateLimitPause time.Duration `yaml:"rate_limit_pause"`
	ServiceName    string        `yaml:"service_name"`
}

type OutputConfig struct {
	CSVPath string `yaml:"csv_path"`
}

type PatchConfig struct {
	MarkupDir     string   `yaml:"markup_dir"`
	Extension     string   `yaml:"extension"`
	Lookahead     int      `yaml:"lookahead"`
	ContainerTags []string `yaml:"container_tags"`
	RoleTags      []string `yaml:"role_tags"`
	Role          string   `yaml:"role"`
}

type RemapConfig struct {
	MetaDocument string   `yaml:"meta_document"`
	SourceDir    string   `yaml:"source_dir"`
	Exclude      []string `yaml:"exclude"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	Embed     bool   `yaml:"embed"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Config is constructed once and passed by reference to every component.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Annotate AnnotateConfig `yaml:"annotate"`
	Output   OutputConfig   `yaml:"output"`
	Patch    PatchConfig    `yaml:"patch"`
	Remap    RemapConfig    `yaml:"remap"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"docmeta.yaml",
			"config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/docmeta/config.yaml"),
			"/etc/docmeta/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := baseConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

// Default returns a config with every default applied and the environment merged.
func Default() *Config {
	config := baseConfig()
	mergeWithEnv(&config)
	applyDefaults(&config)
	return &config
}

// baseConfig seeds the fields whose zero value is a legal setting, so an
// explicit zero in the file survives instead of being replaced by a default.
func baseConfig() Config {
	return Config{
		LLM: LLMConfig{
			Temperature: 0.5,
			MaxRetries:  3,
		},
		Annotate: AnnotateConfig{RateLimitEvery: 10},
		Logging:  LoggingConfig{Console: true},
	}
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 256
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.RequestsPerSecond == 0 {
		config.LLM.RequestsPerSecond = 2.0
	}
	if config.LLM.RetryDelay == 0 {
		config.LLM.RetryDelay = 2 * time.Second
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 120 * time.Second
	}

	if config.Annotate.Extension == "" {
		config.Annotate.Extension = ".md"
	}
	if config.Annotate.MaxFiles == 0 {
		config.Annotate.MaxFiles = 10
	}
	if config.Annotate.MaxWorkers == 0 {
		config.Annotate.MaxWorkers = 4
	}
	if config.Annotate.RateLimitPause == 0 {
		config.Annotate.RateLimitPause = 5 * time.Second
	}
	if config.Annotate.ServiceName == "" {
		config.Annotate.ServiceName = "AWS Batch"
	}

	if config.Output.CSVPath == "" {
		config.Output.CSVPath = "output/metadata.csv"
	}

	if config.Patch.Extension == "" {
		config.Patch.Extension = ".xml"
	}
	if config.Patch.Lookahead == 0 {
		config.Patch.Lookahead = 100
	}
	if len(config.Patch.ContainerTags) == 0 {
		config.Patch.ContainerTags = []string{"chapter"}
	}
	if len(config.Patch.RoleTags) == 0 {
		config.Patch.RoleTags = []string{"section"}
	}
	if config.Patch.Role == "" {
		config.Patch.Role = "topic"
	}

	if config.Remap.MetaDocument == "" {
		config.Remap.MetaDocument = "meta_document.xml"
	}
	if config.Remap.Exclude == nil {
		config.Remap.Exclude = []string{"doc-history.xml"}
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "doc_metadata"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.LLM.APIKey == "" {
		config.LLM.APIKey = apiKey
	}
	if model := os.Getenv("DOCMETA_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
}
