// Package translate provides the translation engines.
package translate

import (
	"context"

	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// Translator translates text in one of the supported directions.
type Translator interface {
	// Name returns the engine name used in logs and metrics.
	Name() string

	// Translate returns the translation of text. dir is always concrete.
	Translate(ctx context.Context, text string, dir speech.Direction) (string, error)

	// Close releases clients and connections.
	Close() error
}
