package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/xhad/docmeta/pkg/config"
)

// completeFunc sends one prompt to the model without retries.
type completeFunc func(ctx context.Context, prompt string) (string, error)

// Client is the Generation Transport. Retry, backoff and request pacing are
// handled here so callers only see TransientError or PermanentError.
type Client struct {
	config   config.LLMConfig
	complete completeFunc
	limiter  *rate.Limiter
	logger   *slog.Logger
	http     *http.Client
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewWithConfig creates a Client backed by the configured langchaingo provider.
func NewWithConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, config.ErrNotConfigured
	}

	model, err := newModel(cfg.LLM, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	callOpts := []llms.CallOption{
		llms.WithMaxTokens(cfg.LLM.MaxTokens),
		llms.WithTemperature(cfg.LLM.Temperature),
	}
	complete := func(ctx context.Context, prompt string) (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, model, prompt, callOpts...)
	}

	return newClient(cfg.LLM, complete, opts...), nil
}

func newClient(cfg config.LLMConfig, complete completeFunc, opts ...Option) *Client {
	c := &Client{
		config:   cfg,
		complete: complete,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:   slog.Default(),
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newModel(cfg config.LLMConfig, model string) (llms.Model, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithModel(model),
			ollama.WithServerURL(cfg.BaseURL),
		)
	case "openai":
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithToken(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	}
	return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
}

// Generate sends prompt to the model and returns the trimmed response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", &PermanentError{Err: err}
			}

			attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
			defer cancel()

			text, err := c.complete(attemptCtx, prompt)
			if err != nil {
				return "", classify(err)
			}
			text = strings.TrimSpace(text)
			if text == "" {
				return "", &TransientError{Err: ErrEmptyResponse}
			}
			return text, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.config.MaxRetries)+1),
		retry.Delay(c.config.RetryDelay),
		retry.MaxDelay(time.Minute),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying generation", "attempt", n+1, "error", err)
		}),
	)
}

// Ping checks that the provider is reachable and credentials are present.
func (c *Client) Ping(ctx context.Context) error {
	switch c.config.Provider {
	case "openai":
		if c.config.APIKey == "" {
			return fmt.Errorf("openai api key is not set")
		}
		return nil
	case "ollama":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
		if err != nil {
			return fmt.Errorf("invalid ollama url: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("ollama unreachable at %s: %w", c.config.BaseURL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("received status code %d from %s", resp.StatusCode, c.config.BaseURL)
		}
		return nil
	}
	return fmt.Errorf("unknown provider: %s", c.config.Provider)
}
