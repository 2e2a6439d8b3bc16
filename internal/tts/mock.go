package tts

import (
	"context"
	"time"

	"github.com/lexiqai/voice-interpreter/internal/audio"
)

// MockSynthesizer returns 200 ms of silence for any text.
type MockSynthesizer struct {
	SampleRate int
}

// Name returns "mock".
func (MockSynthesizer) Name() string { return "mock" }

// Synthesize ignores the text.
func (m MockSynthesizer) Synthesize(ctx context.Context, text, lang string) (audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}
	return audio.Silence(200*time.Millisecond, m.SampleRate), nil
}

// Close is a no-op.
func (MockSynthesizer) Close() error { return nil }
