package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/resilience"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

const (
	cartesiaVersion    = "2024-06-10"
	cartesiaSampleRate = 24000
)

// CartesiaClient synthesizes through Cartesia's bytes endpoint, which returns
// raw PCM in a single response.
type CartesiaClient struct {
	apiKey         string
	apiURL         string
	modelID        string
	voices         map[string]string
	sampleRate     int
	httpClient     *http.Client
	circuitBreaker *resilience.CircuitBreaker
	retry          *resilience.RetryConfig
	logger         zerolog.Logger
}

// CartesiaRequest represents the request payload for the Cartesia TTS API.
type CartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        CartesiaVoice        `json:"voice"`
	OutputFormat CartesiaOutputFormat `json:"output_format"`
	Language     string               `json:"language,omitempty"`
}

// CartesiaVoice selects a voice by id.
type CartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

// CartesiaOutputFormat requests raw little-endian PCM.
type CartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// NewCartesiaClient creates a new Cartesia TTS client. Voices are Cartesia
// voice ids.
func NewCartesiaClient(cfg config.TTSConfig, sampleRate int, cb *resilience.CircuitBreaker, rc *resilience.RetryConfig, logger zerolog.Logger) (*CartesiaClient, error) {
	if cfg.Cartesia.APIKey == "" {
		return nil, fmt.Errorf("%w: cartesia api key is required", speech.ErrEngineNotInitialized)
	}
	return &CartesiaClient{
		apiKey:         cfg.Cartesia.APIKey,
		apiURL:         strings.TrimRight(cfg.Cartesia.BaseURL, "/") + "/tts/bytes",
		modelID:        cfg.Cartesia.ModelID,
		voices:         map[string]string{"ru": cfg.Voices.RU, "en": cfg.Voices.EN},
		sampleRate:     sampleRate,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		circuitBreaker: cb,
		retry:          rc,
		logger:         logger,
	}, nil
}

// Name returns "cartesia".
func (c *CartesiaClient) Name() string { return EngineCartesia }

// Synthesize converts text to audio.
func (c *CartesiaClient) Synthesize(ctx context.Context, text, lang string) (audio.Buffer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.Buffer{}, fmt.Errorf("%w: empty text", speech.ErrSynthesisFailure)
	}
	if lang != "ru" {
		lang = "en"
	}

	jsonData, err := json.Marshal(CartesiaRequest{
		ModelID:    c.modelID,
		Transcript: text,
		Voice:      CartesiaVoice{Mode: "id", ID: c.voices[lang]},
		OutputFormat: CartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: cartesiaSampleRate,
		},
		Language: lang,
	})
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	var pcm []byte
	err = c.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
			var err error
			pcm, err = c.post(ctx, jsonData)
			return err
		}, resilience.IsRetryableNetworkError)
	})
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: cartesia: %v", speech.ErrSynthesisFailure, err)
	}

	c.logger.Debug().Int("bytes", len(pcm)).Str("lang", lang).Msg("Cartesia audio received")
	buf := audio.Buffer{Samples: audio.PCM16ToFloat32(pcm), SampleRate: cartesiaSampleRate}
	return finish(EngineCartesia, buf, c.sampleRate)
}

func (c *CartesiaClient) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("cartesia API returned status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, resilience.NewRetryableError(err)
		}
		return nil, err
	}
	return data, nil
}

// Close closes idle connections.
func (c *CartesiaClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
