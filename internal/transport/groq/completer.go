// Package groq provides the generation adapter. Groq exposes an
// OpenAI-compatible chat completions API, so any compatible provider works
// by pointing BaseURL elsewhere.
package groq

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Longhodac/anirec/internal/domain"
	"github.com/Longhodac/anirec/internal/metrics"
)

// Completer sends instructions to a chat completions endpoint with
// deterministic sampling.
type Completer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds the generation provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewCompleter creates a chat completions client.
func NewCompleter(cfg *Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Completer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Complete implements domain.Completer. Temperature is pinned to zero so
// identical retrieved context yields identical answers.
func (c *Completer) Complete(ctx context.Context, instruction string) (domain.CompletionResult, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: instruction},
		},
		// Temperature carries omitempty, so a literal 0 would fall back to
		// the provider default. The smallest nonzero value survives
		// serialization and still means greedy sampling.
		Temperature: math.SmallestNonzeroFloat32,
		N:           1,
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return domain.CompletionResult{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return domain.CompletionResult{}, fmt.Errorf("empty completion response: %w", domain.ErrGenerationFailed)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.TokensTotal.WithLabelValues("generation", "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.TokensTotal.WithLabelValues("generation", "total").Add(float64(resp.Usage.TotalTokens))
	}

	return domain.CompletionResult{
		Text:         resp.Choices[0].Message.Content,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// parseAPIError maps upstream failures onto domain.ErrGenerationFailed while
// preserving the cause. Rate limits additionally wrap domain.ErrRateLimited
// so callers can distinguish them.
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("generation API error %d: %s: %w: %w",
				apiErr.HTTPStatusCode, apiErr.Message, domain.ErrRateLimited, domain.ErrGenerationFailed)
		}
		return fmt.Errorf("generation API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrGenerationFailed)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("generation API error %d: %s: %w: %w",
				reqErr.HTTPStatusCode, string(reqErr.Body), domain.ErrRateLimited, domain.ErrGenerationFailed)
		}
		return fmt.Errorf("generation API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), domain.ErrGenerationFailed)
	}

	return fmt.Errorf("generation request failed: %w: %w", err, domain.ErrGenerationFailed)
}
