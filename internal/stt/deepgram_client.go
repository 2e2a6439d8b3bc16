package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/resilience"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// DeepgramClient recognizes whole segments with Deepgram's prerecorded API.
type DeepgramClient struct {
	client         *api.Client
	model          string
	language       string
	circuitBreaker *resilience.CircuitBreaker
	retry          *resilience.RetryConfig
	logger         zerolog.Logger
}

// NewDeepgramClient creates a Deepgram REST client.
func NewDeepgramClient(cfg config.ASRConfig, cb *resilience.CircuitBreaker, rc *resilience.RetryConfig, logger zerolog.Logger) (*DeepgramClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: deepgram api key is empty", speech.ErrEngineNotInitialized)
	}

	rest := listenClient.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &DeepgramClient{
		client:         api.New(rest),
		model:          cfg.Model,
		language:       cfg.Language,
		circuitBreaker: cb,
		retry:          rc,
		logger:         logger,
	}, nil
}

// Name returns "deepgram".
func (d *DeepgramClient) Name() string { return EngineDeepgram }

// Recognize uploads the segment as a 16-bit WAV body. Language is detected
// unless one is configured.
func (d *DeepgramClient) Recognize(ctx context.Context, segment []float32, sampleRate int) (*TranscriptionResult, error) {
	wav, err := audio.EncodePCM16WAV(audio.Buffer{Samples: segment, SampleRate: sampleRate})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", speech.ErrInvalidAudio, err)
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:     d.model,
		Punctuate: true,
	}
	if d.language == "" || d.language == speech.LangAuto {
		options.DetectLanguage = true
	} else {
		options.Language = d.language
	}

	result := &TranscriptionResult{Language: d.language}
	err = d.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, d.retry, func(ctx context.Context) error {
			res, err := d.client.FromStream(ctx, bytes.NewReader(wav), options)
			if err != nil {
				return err
			}
			if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
				return nil
			}
			ch := res.Results.Channels[0]
			if ch.DetectedLanguage != "" {
				result.Language = ch.DetectedLanguage
			}
			if len(ch.Alternatives) > 0 {
				result.Text = strings.TrimSpace(ch.Alternatives[0].Transcript)
			}
			return nil
		}, resilience.IsRetryableNetworkError)
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: %w", err)
	}

	if result.Language == "" {
		result.Language = speech.LangAuto
	}
	return result, nil
}

// Close is a no-op for the REST client.
func (d *DeepgramClient) Close() error { return nil }
