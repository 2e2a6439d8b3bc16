package stt

import "context"

// MockRecognizer returns a fixed Russian phrase for every segment.
type MockRecognizer struct{}

// Name returns "mock".
func (MockRecognizer) Name() string { return "mock" }

// Recognize ignores the audio.
func (MockRecognizer) Recognize(ctx context.Context, segment []float32, sampleRate int) (*TranscriptionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &TranscriptionResult{Language: "ru", Text: "это тестовая фраза"}, nil
}

// Close is a no-op.
func (MockRecognizer) Close() error { return nil }
