package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ReconnectConfig holds configuration for reconnection logic
type ReconnectConfig struct {
	MaxAttempts int           // Maximum number of connection attempts
	Backoff     time.Duration // Wait after the first failed attempt
	Multiplier  float64       // Backoff growth factor
	MaxBackoff  time.Duration // Maximum backoff duration
}

// DefaultReconnectConfig returns a default reconnection configuration
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxAttempts: 5,
		Backoff:     500 * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  10 * time.Second,
	}
}

// Connect calls dial until it returns a connection, with exponential backoff
// between attempts. It gives up when ctx is done.
func Connect[T any](ctx context.Context, name string, dial func(ctx context.Context) (T, error), config *ReconnectConfig) (T, error) {
	if config == nil {
		config = DefaultReconnectConfig()
	}

	var zero T
	backoff := config.Backoff

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		conn, err := dial(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().Str("target", name).Int("attempts", attempt+1).Msg("Connected after retry")
			}
			return conn, nil
		}

		if attempt < config.MaxAttempts-1 {
			log.Warn().
				Err(err).
				Str("target", name).
				Int("attempt", attempt+1).
				Int("max_attempts", config.MaxAttempts).
				Dur("backoff", backoff).
				Msg("Connection attempt failed, retrying")

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxBackoff {
					backoff = config.MaxBackoff
				}
			}
		}
	}

	return zero, fmt.Errorf("failed to connect to %s after %d attempts", name, config.MaxAttempts)
}
