package audio

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1}
	out := PCM16ToFloat32(Float32ToPCM16(in))

	if len(out) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1e-3 {
			t.Errorf("Sample %d: expected %v, got %v", i, in[i], out[i])
		}
	}
}

func TestFloat32ToPCM16_Clips(t *testing.T) {
	out := PCM16ToFloat32(Float32ToPCM16([]float32{2, -2}))
	if out[0] > 1 || out[1] < -1 {
		t.Errorf("Expected clipped samples, got %v", out)
	}
}

func TestResample(t *testing.T) {
	in := make([]float32, 22050)
	out := Resample(in, 22050, 16000)
	if len(out) != 16000 {
		t.Errorf("Expected 16000 samples, got %d", len(out))
	}

	same := Resample(in, 16000, 16000)
	if len(same) != len(in) {
		t.Errorf("Expected unchanged length, got %d", len(same))
	}
}

func TestResample_Interpolates(t *testing.T) {
	out := Resample([]float32{0, 1}, 1, 2)
	if len(out) != 4 {
		t.Fatalf("Expected 4 samples, got %d", len(out))
	}
	if out[1] != 0.5 {
		t.Errorf("Expected midpoint 0.5, got %v", out[1])
	}
}

func TestApplyVolume(t *testing.T) {
	in := []float32{0.5, -0.8}
	out := ApplyVolume(in, 2)
	if out[0] != 1 || out[1] != -1 {
		t.Errorf("Expected clipped output, got %v", out)
	}
	if in[0] != 0.5 {
		t.Error("Expected input to be unchanged")
	}
}

func TestValidateSynthesized(t *testing.T) {
	tests := []struct {
		name    string
		buf     Buffer
		wantErr bool
	}{
		{"ok", Silence(200*time.Millisecond, 16000), false},
		{"empty", Buffer{SampleRate: 16000}, true},
		{"too short", Silence(10*time.Millisecond, 16000), true},
		{"nan", Buffer{Samples: []float32{float32(math.NaN()), 0}, SampleRate: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSynthesized(tt.buf, 0.05)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuffer_Duration(t *testing.T) {
	b := Silence(200*time.Millisecond, 16000)
	if len(b.Samples) != 3200 {
		t.Errorf("Expected 3200 samples, got %d", len(b.Samples))
	}
	if b.Duration() != 200*time.Millisecond {
		t.Errorf("Expected 200ms, got %v", b.Duration())
	}
	if (Buffer{}).Seconds() != 0 {
		t.Error("Expected zero duration for zero rate")
	}
}

func TestEncodePCM16WAV(t *testing.T) {
	b := Silence(100*time.Millisecond, 16000)
	data, err := EncodePCM16WAV(b)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(data) != 44+3200 {
		t.Errorf("Expected %d bytes, got %d", 44+3200, len(data))
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Error("Expected RIFF header")
	}

	decoded, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if decoded.SampleRate != 16000 || len(decoded.Samples) != 1600 {
		t.Errorf("Expected 1600 samples at 16000 Hz, got %d at %d", len(decoded.Samples), decoded.SampleRate)
	}

	if _, err := EncodePCM16WAV(Buffer{SampleRate: 16000}); err == nil {
		t.Error("Expected error for empty buffer")
	}
}

func TestWriteWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	in := Buffer{Samples: []float32{0, 0.25, -0.25, 0.5}, SampleRate: 22050}

	if err := WriteWAVFile(path, in); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	out, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if out.SampleRate != 22050 || len(out.Samples) != 4 {
		t.Fatalf("Expected 4 samples at 22050 Hz, got %d at %d", len(out.Samples), out.SampleRate)
	}
	if math.Abs(float64(out.Samples[1]-0.25)) > 1e-3 {
		t.Errorf("Expected 0.25, got %v", out.Samples[1])
	}
}
