package tts

import (
	"context"

	"github.com/lexiqai/voice-interpreter/internal/audio"
)

// minDurationSeconds is the shortest output accepted from any engine.
const minDurationSeconds = 0.05

// Synthesizer converts text to speech in the target language.
type Synthesizer interface {
	// Name returns the engine name used in logs and metrics.
	Name() string

	// Synthesize returns mono audio at the synthesizer's declared rate.
	// Empty, too short or non-finite output is speech.ErrSynthesisFailure.
	Synthesize(ctx context.Context, text, lang string) (audio.Buffer, error)

	// Close releases resources.
	Close() error
}
