package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/rs/zerolog"
	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/resilience"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// EdgeClient synthesizes with Microsoft Edge's online voices. The service
// returns MP3, which is decoded and down-mixed here.
type EdgeClient struct {
	voices         map[string]string
	sampleRate     int
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewEdgeClient creates a client. Voices are Edge voice names such as
// ru-RU-SvetlanaNeural.
func NewEdgeClient(cfg config.TTSConfig, sampleRate int, cb *resilience.CircuitBreaker, logger zerolog.Logger) (*EdgeClient, error) {
	if cfg.Voices.RU == "" || cfg.Voices.EN == "" {
		return nil, fmt.Errorf("%w: edge voices must be set for ru and en", speech.ErrEngineNotInitialized)
	}
	return &EdgeClient{
		voices:         map[string]string{"ru": cfg.Voices.RU, "en": cfg.Voices.EN},
		sampleRate:     sampleRate,
		circuitBreaker: cb,
		logger:         logger,
	}, nil
}

// Name returns "edge".
func (e *EdgeClient) Name() string { return EngineEdge }

// Synthesize speaks text with the voice for lang.
func (e *EdgeClient) Synthesize(ctx context.Context, text, lang string) (audio.Buffer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.Buffer{}, fmt.Errorf("%w: empty text", speech.ErrSynthesisFailure)
	}
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}
	if lang != "ru" {
		lang = "en"
	}

	var mp3Data []byte
	err := e.circuitBreaker.Call(func() error {
		communicate, err := edge_tts.NewCommunicate(text, e.options(lang)...)
		if err != nil {
			return fmt.Errorf("failed to create Edge TTS communicator: %w", err)
		}

		mp3Data, err = communicate.Stream()
		return err
	})
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: edge: %v", speech.ErrSynthesisFailure, err)
	}

	buf, err := DecodeMP3(bytes.NewReader(mp3Data))
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: edge output: %v", speech.ErrSynthesisFailure, err)
	}
	return finish(EngineEdge, buf, e.sampleRate)
}

// options returns the communicator options for lang.
func (e *EdgeClient) options(lang string) []edge_tts.CommunicateOption {
	return []edge_tts.CommunicateOption{edge_tts.SetVoice(e.voices[lang])}
}

// Close is a no-op.
func (e *EdgeClient) Close() error { return nil }

// DecodeMP3 decodes an MP3 stream to a mono buffer.
func DecodeMP3(r io.Reader) (audio.Buffer, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to read mp3 frames: %w", err)
	}
	return audio.Buffer{Samples: audio.PCM16StereoToMono(pcm), SampleRate: dec.SampleRate()}, nil
}
