package speech

import "errors"

// Engine error taxonomy shared by the recognition, translation and synthesis roles.
var (
	// ErrEngineNotInitialized is returned when an engine is called before its
	// model or client was created.
	ErrEngineNotInitialized = errors.New("engine not initialized")

	// ErrUnsupportedEngine is returned at construction for an unknown engine name.
	// It is fatal and must not be retried.
	ErrUnsupportedEngine = errors.New("unsupported engine")

	// ErrSynthesisFailure covers failed synthesis calls, including empty,
	// too short or non-finite output.
	ErrSynthesisFailure = errors.New("synthesis failure")

	// ErrInvalidAudio is returned for audio buffers that cannot be processed.
	ErrInvalidAudio = errors.New("invalid audio")
)
