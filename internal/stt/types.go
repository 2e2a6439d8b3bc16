package stt

import "context"

// TranscriptionResult is the outcome of recognizing one speech segment.
type TranscriptionResult struct {
	// Language is the detected or configured language code, "auto" if unknown.
	Language string

	// Text is the recognized text, trimmed.
	Text string
}

// Recognizer turns a finalized speech segment into text.
type Recognizer interface {
	// Name returns the engine name used in logs and metrics.
	Name() string

	// Recognize transcribes mono float32 samples at sampleRate.
	Recognize(ctx context.Context, segment []float32, sampleRate int) (*TranscriptionResult, error)

	// Close releases the model or connection.
	Close() error
}
