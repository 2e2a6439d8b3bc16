package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/resilience"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

var languageNames = map[string]string{
	"ru": "Russian",
	"en": "English",
}

// OpenAIClient translates with a chat completion model.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	circuitBreaker *resilience.CircuitBreaker
	retry          *resilience.RetryConfig
	logger         zerolog.Logger
}

// NewOpenAIClient creates a client for cfg.Model. A custom BaseURL allows
// any OpenAI-compatible server.
func NewOpenAIClient(cfg config.MTConfig, cb *resilience.CircuitBreaker, rc *resilience.RetryConfig, logger zerolog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: openai api key is empty", speech.ErrEngineNotInitialized)
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(oc),
		model:          cfg.Model,
		circuitBreaker: cb,
		retry:          rc,
		logger:         logger,
	}, nil
}

// Name returns "openai".
func (c *OpenAIClient) Name() string { return EngineOpenAI }

// Translate asks the model for a bare translation.
func (c *OpenAIClient) Translate(ctx context.Context, text string, dir speech.Direction) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the user's text from %s to %s. Reply with the translation only, without quotes or comments.",
		languageNames[dir.SourceLang()], languageNames[dir.TargetLang()],
	)

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	}

	var out string
	err := c.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
			resp, err := c.client.CreateChatCompletion(ctx, req)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("no response choices")
			}
			out = resp.Choices[0].Message.Content
			return nil
		}, resilience.IsRetryableNetworkError)
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Close is a no-op.
func (c *OpenAIClient) Close() error { return nil }
