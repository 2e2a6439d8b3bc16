package tts

import (
	"fmt"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// finish converts engine output to the target rate and validates it.
func finish(engine string, b audio.Buffer, targetRate int) (audio.Buffer, error) {
	if b.SampleRate <= 0 {
		return audio.Buffer{}, fmt.Errorf("%w: %s returned no sample rate", speech.ErrSynthesisFailure, engine)
	}
	out := audio.ResampleBuffer(b, targetRate)
	if err := audio.ValidateSynthesized(out, minDurationSeconds); err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: %s: %v", speech.ErrSynthesisFailure, engine, err)
	}
	return out, nil
}
