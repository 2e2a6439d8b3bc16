package audio

import "time"

// Buffer is a block of mono float32 audio at a declared sample rate.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Seconds returns the playback length in seconds.
func (b Buffer) Seconds() float64 {
	return Seconds(len(b.Samples), b.SampleRate)
}

// Seconds converts a sample count at rate to seconds.
func Seconds(samples, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(samples) / float64(sampleRate)
}

// Silence returns a zeroed buffer of the given length.
func Silence(d time.Duration, sampleRate int) Buffer {
	n := int(d.Seconds() * float64(sampleRate))
	return Buffer{Samples: make([]float32, n), SampleRate: sampleRate}
}
