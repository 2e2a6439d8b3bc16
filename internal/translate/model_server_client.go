package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/resilience"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// modelServerRequest is the body posted to a model server's /translate.
type modelServerRequest struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type modelServerResponse struct {
	Translation string `json:"translation"`
	Error       string `json:"error,omitempty"`
}

// ModelServerClient talks to a Marian or NLLB model served over HTTP, one
// server per direction. Without a back server, en-ru uses the primary one.
type ModelServerClient struct {
	engine         string
	primaryURL     string
	backURL        string
	maxTokens      int
	httpClient     *http.Client
	circuitBreaker *resilience.CircuitBreaker
	retry          *resilience.RetryConfig
	logger         zerolog.Logger

	fallbackOnce sync.Once
}

// NewModelServerClient creates a client for cfg.ModelPath and cfg.ModelPathBack.
func NewModelServerClient(engine string, cfg config.MTConfig, cb *resilience.CircuitBreaker, rc *resilience.RetryConfig, logger zerolog.Logger) (*ModelServerClient, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: %s model server url is empty", speech.ErrEngineNotInitialized, engine)
	}
	return &ModelServerClient{
		engine:         engine,
		primaryURL:     strings.TrimRight(cfg.ModelPath, "/"),
		backURL:        strings.TrimRight(cfg.ModelPathBack, "/"),
		maxTokens:      cfg.MaxSrcTokens,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: cb,
		retry:          rc,
		logger:         logger,
	}, nil
}

// Name returns the engine name.
func (c *ModelServerClient) Name() string { return c.engine }

// Translate posts text to the server for dir.
func (c *ModelServerClient) Translate(ctx context.Context, text string, dir speech.Direction) (string, error) {
	url := c.primaryURL
	if dir == speech.DirEnRu {
		if c.backURL != "" {
			url = c.backURL
		} else {
			c.fallbackOnce.Do(func() {
				c.logger.Warn().Str("engine", c.engine).Msg("No en-ru model configured, using the primary model")
			})
		}
	}

	body, err := json.Marshal(modelServerRequest{
		Text:      text,
		Source:    c.langCode(dir.SourceLang()),
		Target:    c.langCode(dir.TargetLang()),
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var out string
	err = c.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
			var err error
			out, err = c.post(ctx, url+"/translate", body)
			return err
		}, resilience.IsRetryableNetworkError)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.engine, err)
	}
	return strings.TrimSpace(out), nil
}

func (c *ModelServerClient) post(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("model server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", resilience.NewRetryableError(err)
		}
		return "", err
	}

	var res modelServerResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if res.Error != "" {
		return "", fmt.Errorf("model server error: %s", res.Error)
	}
	return res.Translation, nil
}

// langCode maps a short code to the engine's tag. NLLB uses FLORES-200 tags.
func (c *ModelServerClient) langCode(lang string) string {
	if c.engine != EngineNLLB {
		return lang
	}
	switch lang {
	case "ru":
		return "rus_Cyrl"
	case "en":
		return "eng_Latn"
	}
	return lang
}

// Health checks the primary server's /health endpoint.
func (c *ModelServerClient) Health(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.primaryURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Close releases idle connections.
func (c *ModelServerClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
