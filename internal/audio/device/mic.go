package device

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/lexiqai/voice-interpreter/internal/audio"
)

// Microphone is a live capture source on the default input device.
type Microphone struct {
	stream     *portaudio.Stream
	buf        []float32
	sampleRate int
}

// OpenMicrophone opens a mono blocking input stream delivering blocks of
// blockMs milliseconds.
func OpenMicrophone(sampleRate, blockMs int) (*Microphone, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	m := &Microphone{
		buf:        make([]float32, audio.BlockSize(sampleRate, blockMs)),
		sampleRate: sampleRate,
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(m.buf), m.buf)
	if err != nil {
		Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}
	m.stream = stream
	return m, nil
}

// Next blocks until one block has been captured. Input overflows are
// tolerated; the block is still returned.
func (m *Microphone) Next(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	block := make([]float32, len(m.buf))
	copy(block, m.buf)
	return block, nil
}

// SampleRate returns the capture rate.
func (m *Microphone) SampleRate() int { return m.sampleRate }

// Close stops capture and releases the device.
func (m *Microphone) Close() error {
	defer Terminate()
	if err := m.stream.Stop(); err != nil {
		m.stream.Close()
		return err
	}
	return m.stream.Close()
}

var _ audio.Source = (*Microphone)(nil)
