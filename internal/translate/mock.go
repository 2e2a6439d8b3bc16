package translate

import (
	"context"

	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// MockTranslator returns fixed phrases.
type MockTranslator struct{}

// Name returns "mock".
func (MockTranslator) Name() string { return "mock" }

// Translate returns an English phrase for ru-en and a Russian one otherwise.
func (MockTranslator) Translate(ctx context.Context, text string, dir speech.Direction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if dir == speech.DirRuEn {
		return "this is a test phrase", nil
	}
	return "это тестовая фраза", nil
}

// Close is a no-op.
func (MockTranslator) Close() error { return nil }
