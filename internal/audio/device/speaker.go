package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/audio"
)

const framesPerWrite = 1024

// Speaker plays buffers synchronously on an output device.
type Speaker struct {
	device string
	volume float64
	logger zerolog.Logger
}

// NewPlayer returns a player for the configured device. "none" yields a
// player that discards audio.
func NewPlayer(device string, volume float64, logger zerolog.Logger) (audio.Player, error) {
	if strings.EqualFold(strings.TrimSpace(device), "none") {
		return audio.NullPlayer{}, nil
	}
	if err := Initialize(); err != nil {
		return nil, err
	}
	return &Speaker{device: device, volume: volume, logger: logger}, nil
}

// Play blocks until b has been written to the device. If the configured
// device cannot be opened, playback is retried on the system default.
func (s *Speaker) Play(ctx context.Context, b audio.Buffer) error {
	if len(b.Samples) == 0 {
		return nil
	}
	samples := audio.ApplyVolume(b.Samples, s.volume)

	stream, out, err := s.open(b.SampleRate)
	if err != nil {
		s.logger.Warn().Err(err).Str("device", s.device).Msg("Output device unavailable, falling back to default")
		stream, out, err = openDefault(b.SampleRate)
		if err != nil {
			return fmt.Errorf("failed to open default output: %w", err)
		}
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	for pos := 0; pos < len(samples); pos += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(out, samples[pos:])
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		if err := stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

// Close releases the audio system.
func (s *Speaker) Close() error {
	Terminate()
	return nil
}

func (s *Speaker) open(sampleRate int) (*portaudio.Stream, []float32, error) {
	devices, infos, err := List(true)
	if err != nil {
		return nil, nil, err
	}
	idx, ok := audio.ResolveDevice(s.device, infos)
	if !ok {
		return openDefault(sampleRate)
	}

	out := make([]float32, framesPerWrite)
	params := portaudio.LowLatencyParameters(nil, devices[idx])
	params.Output.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = len(out)
	stream, err := portaudio.OpenStream(params, out)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open device %q: %w", devices[idx].Name, err)
	}
	return stream, out, nil
}

func openDefault(sampleRate int) (*portaudio.Stream, []float32, error) {
	out := make([]float32, framesPerWrite)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(out), out)
	if err != nil {
		return nil, nil, err
	}
	return stream, out, nil
}
