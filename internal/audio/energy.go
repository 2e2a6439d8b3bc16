package audio

import "math"

// MeanSquare returns the mean squared amplitude of a block. An empty block
// has zero energy.
func MeanSquare(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return sum / float64(len(samples))
}

// CalculateRMS calculates the root mean square of audio samples.
func CalculateRMS(samples []float32) float64 {
	return math.Sqrt(MeanSquare(samples))
}

// DetectSilence reports whether a block's mean squared energy is at or below threshold.
func DetectSilence(samples []float32, threshold float64) bool {
	return MeanSquare(samples) <= threshold
}

// MsToSamples converts a duration in milliseconds to a sample count.
func MsToSamples(ms, sampleRate int) int {
	return sampleRate * ms / 1000
}
