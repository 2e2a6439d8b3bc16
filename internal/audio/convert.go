package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PCM16ToFloat32 converts 16-bit signed little-endian PCM to float32 samples
// normalised to [-1.0, 1.0]. A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// PCM16StereoToMono down-mixes interleaved 16-bit stereo PCM to mono float32.
func PCM16StereoToMono(pcm []byte) []float32 {
	frames := len(pcm) / 4
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		r := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		mono[i] = (float32(l) + float32(r)) / 2 / 32768.0
	}
	return mono
}

// Float32ToPCM16 converts float32 samples to 16-bit signed little-endian PCM,
// clipping to the valid range.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}

func toInt16(s float32) int16 {
	v := float64(s) * 32767.0
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Resample performs linear interpolation resampling. Good enough for speech
// playback; not meant for music.
func Resample(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || len(samples) == 0 || inputRate <= 0 || outputRate <= 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLength := int(math.Round(float64(len(samples)) * ratio))
	if outputLength < 1 {
		outputLength = 1
	}
	output := make([]float32, outputLength)

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		if idx0 >= len(samples) {
			idx0 = len(samples) - 1
		}
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}

		fraction := float32(srcPos - float64(idx0))
		output[i] = samples[idx0]*(1-fraction) + samples[idx1]*fraction
	}

	return output
}

// ResampleBuffer returns b converted to outputRate.
func ResampleBuffer(b Buffer, outputRate int) Buffer {
	if b.SampleRate == outputRate {
		return b
	}
	return Buffer{Samples: Resample(b.Samples, b.SampleRate, outputRate), SampleRate: outputRate}
}

// ApplyVolume scales samples by volume and clips the result to [-1, 1].
// The input is not modified.
func ApplyVolume(samples []float32, volume float64) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		v := float64(s) * volume
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = float32(v)
	}
	return out
}

// AllFinite reports whether every sample is a finite number.
func AllFinite(samples []float32) bool {
	for _, s := range samples {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// ValidateSynthesized checks a synthesis result: it must be non-empty, finite
// and at least minDuration seconds long.
func ValidateSynthesized(b Buffer, minSeconds float64) error {
	if len(b.Samples) == 0 {
		return fmt.Errorf("empty audio")
	}
	if !AllFinite(b.Samples) {
		return fmt.Errorf("non-finite samples")
	}
	if b.Seconds() < minSeconds {
		return fmt.Errorf("audio too short: %.3fs", b.Seconds())
	}
	return nil
}
