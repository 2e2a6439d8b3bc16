package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// DecodeWAV reads a whole WAV stream into a mono buffer. Multi-channel input
// is down-mixed by averaging.
func DecodeWAV(r io.Reader) (Buffer, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to decode WAV: %w", err)
	}
	defer streamer.Close()

	gain := decodeGain(format.Precision)
	var samples []float32
	chunk := make([][2]float64, 4096)
	for {
		n, ok := streamer.Stream(chunk)
		for i := 0; i < n; i++ {
			if format.NumChannels > 1 {
				samples = append(samples, float32((chunk[i][0]+chunk[i][1])/2*gain))
			} else {
				samples = append(samples, float32(chunk[i][0]*gain))
			}
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return Buffer{}, fmt.Errorf("failed to read WAV samples: %w", err)
	}

	return Buffer{Samples: samples, SampleRate: int(format.SampleRate)}, nil
}

// decodeGain corrects the beep WAV decoder, which divides signed 16 and 24 bit
// samples by the full unsigned range and so returns them at half amplitude.
func decodeGain(precision int) float64 {
	switch precision {
	case 2:
		return float64(1<<16-1) / float64(1<<15)
	case 3:
		return float64(1<<24-1) / float64(1<<23)
	}
	return 1
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// WriteWAVFile writes b as a 16-bit mono WAV file.
func WriteWAVFile(path string, b Buffer) error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", b.SampleRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	format := beep.Format{SampleRate: beep.SampleRate(b.SampleRate), NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, &bufferStreamer{samples: b.Samples}, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode WAV: %w", err)
	}
	return f.Close()
}

// bufferStreamer adapts a mono buffer to beep.Streamer.
type bufferStreamer struct {
	samples []float32
	pos     int
}

func (s *bufferStreamer) Stream(out [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := copy2(out, s.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *bufferStreamer) Err() error { return nil }

func copy2(out [][2]float64, in []float32) int {
	n := len(out)
	if len(in) < n {
		n = len(in)
	}
	for i := 0; i < n; i++ {
		out[i][0] = float64(in[i])
		out[i][1] = float64(in[i])
	}
	return n
}

// wavHeader is the canonical 44-byte PCM WAV header.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodePCM16WAV encodes b as an in-memory 16-bit mono WAV, for engines that
// take a whole file body.
func EncodePCM16WAV(b Buffer) ([]byte, error) {
	if len(b.Samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if b.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", b.SampleRate)
	}

	data := Float32ToPCM16(b.Samples)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + uint32(len(data)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(b.SampleRate),
		ByteRate:      uint32(b.SampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(data)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(data)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(data)
	return buf.Bytes(), nil
}
