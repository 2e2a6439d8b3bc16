package tts

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/observability"
	"github.com/lexiqai/voice-interpreter/internal/resilience"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// Engine names accepted by New.
const (
	EnginePiper    = "piper"
	EngineEdge     = "edge"
	EngineCartesia = "cartesia"
)

// New builds the configured synthesizer producing audio at sampleRate.
// Unknown engine names return speech.ErrUnsupportedEngine.
func New(cfg config.TTSConfig, res config.ResilienceConfig, mock bool, sampleRate int, logger zerolog.Logger) (Synthesizer, error) {
	if mock {
		return MockSynthesizer{SampleRate: sampleRate}, nil
	}

	switch strings.ToLower(cfg.Engine) {
	case EnginePiper:
		return NewPiperClient(cfg, sampleRate, logger)
	case EngineEdge:
		return NewEdgeClient(cfg, sampleRate, newBreaker("edge", res), logger)
	case EngineCartesia:
		return NewCartesiaClient(cfg, sampleRate, newBreaker("cartesia", res), retryConfig(res), logger)
	default:
		return nil, fmt.Errorf("%w: tts engine %q", speech.ErrUnsupportedEngine, cfg.Engine)
	}
}

func newBreaker(name string, res config.ResilienceConfig) *resilience.CircuitBreaker {
	return observability.TrackCircuitBreaker(resilience.NewCircuitBreaker(name, res.BreakerMaxFailures, res.BreakerResetTimeout))
}

func retryConfig(res config.ResilienceConfig) *resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if res.RetryMaxAttempts > 0 {
		rc.MaxAttempts = res.RetryMaxAttempts
	}
	if res.RetryInitialBackoff > 0 {
		rc.InitialBackoff = res.RetryInitialBackoff
	}
	return rc
}
