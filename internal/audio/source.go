package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrSampleRateMismatch is returned when a finite source does not match the
// configured rate. Resampling input is out of scope.
var ErrSampleRateMismatch = errors.New("sample rate mismatch")

// Source is a blocking iterator of fixed-duration mono blocks at a fixed rate.
type Source interface {
	// Next blocks until the next block is available and returns io.EOF once
	// a finite source is exhausted.
	Next(ctx context.Context) ([]float32, error)
	SampleRate() int
	Close() error
}

// BlockSize returns the samples per block for a block duration.
func BlockSize(sampleRate, blockMs int) int {
	n := MsToSamples(blockMs, sampleRate)
	if n < 1 {
		n = 1
	}
	return n
}

// SliceSource replays an in-memory buffer block by block. The last block may
// be shorter than the others.
type SliceSource struct {
	samples    []float32
	sampleRate int
	blockSize  int
	pos        int
}

// NewSliceSource creates a source over samples.
func NewSliceSource(samples []float32, sampleRate, blockMs int) *SliceSource {
	return &SliceSource{
		samples:    samples,
		sampleRate: sampleRate,
		blockSize:  BlockSize(sampleRate, blockMs),
	}
}

// Next returns the next block or io.EOF.
func (s *SliceSource) Next(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}
	end := s.pos + s.blockSize
	if end > len(s.samples) {
		end = len(s.samples)
	}
	block := s.samples[s.pos:end]
	s.pos = end
	return block, nil
}

// SampleRate returns the source rate.
func (s *SliceSource) SampleRate() int { return s.sampleRate }

// Close is a no-op.
func (s *SliceSource) Close() error { return nil }

// OpenFileSource decodes a WAV file and serves it in blocks. The file must
// already be at sampleRate.
func OpenFileSource(path string, sampleRate, blockMs int) (*SliceSource, error) {
	buf, err := ReadWAVFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if buf.SampleRate != sampleRate {
		return nil, fmt.Errorf("%w: expected %d Hz, got %d Hz in %s (resample externally)",
			ErrSampleRateMismatch, sampleRate, buf.SampleRate, path)
	}
	return NewSliceSource(buf.Samples, sampleRate, blockMs), nil
}

// Compile-time assertion that SliceSource satisfies Source.
var _ Source = (*SliceSource)(nil)
