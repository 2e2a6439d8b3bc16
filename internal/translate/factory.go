package translate

import (
	"context"
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
	EngineMarian = "marian"
	EngineNLLB   = "nllb-ct2"
	EngineOpenAI = "openai"
)

// New builds the configured translator, wrapped in a redis cache when
// cfg.CacheURL is set. Unknown engine names return speech.ErrUnsupportedEngine.
func New(ctx context.Context, cfg config.MTConfig, res config.ResilienceConfig, mock bool, logger zerolog.Logger) (Translator, error) {
	if mock {
		return MockTranslator{}, nil
	}

	cb := observability.TrackCircuitBreaker(resilience.NewCircuitBreaker("mt", res.BreakerMaxFailures, res.BreakerResetTimeout))
	rc := resilience.DefaultRetryConfig()
	if res.RetryMaxAttempts > 0 {
		rc.MaxAttempts = res.RetryMaxAttempts
	}
	if res.RetryInitialBackoff > 0 {
		rc.InitialBackoff = res.RetryInitialBackoff
	}

	var (
		t   Translator
		err error
	)
	switch engine := strings.ToLower(cfg.Engine); engine {
	case EngineMarian, EngineNLLB:
		t, err = NewModelServerClient(engine, cfg, cb, rc, logger)
	case EngineOpenAI:
		t, err = NewOpenAIClient(cfg, cb, rc, logger)
	default:
		return nil, fmt.Errorf("%w: mt engine %q", speech.ErrUnsupportedEngine, cfg.Engine)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheURL == "" {
		return t, nil
	}
	cached, err := NewCachedTranslator(ctx, t, cfg.CacheURL, cfg.CacheTTL, logger)
	if err != nil {
		t.Close()
		return nil, err
	}
	return cached, nil
}
