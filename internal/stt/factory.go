package stt

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
	EngineFasterWhisper = "faster-whisper"
	EngineWhisper       = "whisper"
	EngineVosk          = "vosk"
	EngineDeepgram      = "deepgram"
)

// New builds the configured recognizer. In mock mode no model is loaded.
// Unknown engine names return speech.ErrUnsupportedEngine.
func New(cfg config.ASRConfig, res config.ResilienceConfig, mock bool, logger zerolog.Logger) (Recognizer, error) {
	if mock {
		return MockRecognizer{}, nil
	}

	switch strings.ToLower(cfg.Engine) {
	case EngineFasterWhisper, EngineWhisper:
		return NewWhisperRecognizer(cfg, logger)
	case EngineVosk:
		return NewVoskClient(cfg, newBreaker("vosk", res), reconnectConfig(res), logger)
	case EngineDeepgram:
		return NewDeepgramClient(cfg, newBreaker("deepgram", res), retryConfig(res), logger)
	default:
		return nil, fmt.Errorf("%w: asr engine %q", speech.ErrUnsupportedEngine, cfg.Engine)
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

func reconnectConfig(res config.ResilienceConfig) *resilience.ReconnectConfig {
	rc := resilience.DefaultReconnectConfig()
	if res.ReconnectMaxAttempts > 0 {
		rc.MaxAttempts = res.ReconnectMaxAttempts
	}
	if res.ReconnectBackoff > 0 {
		rc.Backoff = res.ReconnectBackoff
	}
	return rc
}
