package audio

import "context"

// Player renders a buffer and blocks until playback completes.
type Player interface {
	Play(ctx context.Context, b Buffer) error
	Close() error
}

// NullPlayer discards audio. It is used for the "none" output device and
// headless runs.
type NullPlayer struct{}

// Play returns immediately.
func (NullPlayer) Play(ctx context.Context, b Buffer) error { return ctx.Err() }

// Close is a no-op.
func (NullPlayer) Close() error { return nil }
