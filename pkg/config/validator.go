package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		} else if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid Ollama base URL",
			})
		}
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "api key is required for the openai provider",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.RequestsPerSecond <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.requests_per_second",
			Message: "requests_per_second must be positive",
		})
	}

	if c.LLM.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_retries",
			Message: "max_retries cannot be negative",
		})
	}

	// Validate annotation pool
	if c.Annotate.MaxFiles < 1 {
		errors = append(errors, ValidationError{
			Field:   "annotate.max_files",
			Message: "max_files must be positive",
		})
	}

	if c.Annotate.MaxWorkers < 1 {
		errors = append(errors, ValidationError{
			Field:   "annotate.max_workers",
			Message: "max_workers must be positive",
		})
	}

	if c.Annotate.RateLimitEvery < 0 {
		errors = append(errors, ValidationError{
			Field:   "annotate.rate_limit_every",
			Message: "rate_limit_every cannot be negative",
		})
	}

	// Validate extensions format
	extensions := []struct{ field, ext string }{
		{"annotate.extension", c.Annotate.Extension},
		{"patch.extension", c.Patch.Extension},
	}
	for _, e := range extensions {
		if !strings.HasPrefix(e.ext, ".") {
			errors = append(errors, ValidationError{
				Field:   e.field,
				Message: fmt.Sprintf("invalid extension format: %s", e.ext),
			})
		}
	}

	if c.Patch.Lookahead < MinLookahead {
		errors = append(errors, ValidationError{
			Field:   "patch.lookahead",
			Message: fmt.Sprintf("lookahead must be at least %d", MinLookahead),
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	return errors
}
