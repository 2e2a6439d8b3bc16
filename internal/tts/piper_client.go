package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// PiperClient runs the piper CLI once per utterance. Text goes in on stdin and
// the WAV comes back through a temporary file.
type PiperClient struct {
	binary      string
	voices      map[string]string // lang -> model path
	speakers    map[string]string // lang -> speaker id
	lengthScale float64
	noiseScale  float64
	noiseW      float64
	sampleRate  int
	logger      zerolog.Logger
}

// NewPiperClient creates a client. Voice model paths ending in .onnx.json are
// normalised to the .onnx next to them.
func NewPiperClient(cfg config.TTSConfig, sampleRate int, logger zerolog.Logger) (*PiperClient, error) {
	binary := cfg.Piper.Binary
	if binary == "" {
		binary = "piper"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%w: piper binary %q not found: %v", speech.ErrEngineNotInitialized, binary, err)
	}

	p := &PiperClient{
		binary: binary,
		voices: map[string]string{
			"ru": NormalizeModelPath(cfg.Voices.RU),
			"en": NormalizeModelPath(cfg.Voices.EN),
		},
		speakers: map[string]string{
			"ru": cfg.Piper.SpeakerRU,
			"en": cfg.Piper.SpeakerEN,
		},
		lengthScale: cfg.Piper.LengthScale,
		noiseScale:  cfg.Piper.NoiseScale,
		noiseW:      cfg.Piper.NoiseW,
		sampleRate:  sampleRate,
		logger:      logger,
	}

	if ru := p.voices["ru"]; ru != "" && !LooksRussian(ru) {
		logger.Warn().Str("model", ru).Msg("Russian voice model does not look like a Russian piper voice")
	}
	return p, nil
}

// Name returns "piper".
func (p *PiperClient) Name() string { return EnginePiper }

// Synthesize speaks text with the voice for lang ("en" for anything but "ru").
func (p *PiperClient) Synthesize(ctx context.Context, text, lang string) (audio.Buffer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.Buffer{}, fmt.Errorf("%w: empty text", speech.ErrSynthesisFailure)
	}
	if lang != "ru" {
		lang = "en"
	}

	model := p.voices[lang]
	if _, err := os.Stat(model); err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: piper model not found: %s", speech.ErrEngineNotInitialized, model)
	}

	dir, err := os.MkdirTemp("", "piper-*")
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	outPath := filepath.Join(dir, "out.wav")

	cmd := exec.CommandContext(ctx, p.binary, p.args(model, p.speakers[lang], outPath)...)
	cmd.Stdin = strings.NewReader(text + "\n")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		p.logger.Error().
			Err(err).
			Str("model", model).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("Piper synthesis failed")
		return audio.Buffer{}, fmt.Errorf("%w: piper: %v", speech.ErrSynthesisFailure, err)
	}

	buf, err := audio.ReadWAVFile(outPath)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: piper output: %v", speech.ErrSynthesisFailure, err)
	}
	return finish(EnginePiper, buf, p.sampleRate)
}

func (p *PiperClient) args(model, speaker, outPath string) []string {
	args := []string{
		"--model", model,
		"--output_file", outPath,
		"--length_scale", strconv.FormatFloat(p.lengthScale, 'f', -1, 64),
		"--noise_scale", strconv.FormatFloat(p.noiseScale, 'f', -1, 64),
		"--noise_w", strconv.FormatFloat(p.noiseW, 'f', -1, 64),
	}
	if speaker != "" {
		args = append(args, "--speaker", speaker)
	}
	return args
}

// Close is a no-op.
func (p *PiperClient) Close() error { return nil }

// NormalizeModelPath maps a voice config path "x.onnx.json" to "x.onnx".
func NormalizeModelPath(path string) string {
	return strings.TrimSuffix(path, ".json")
}

// LooksRussian reports whether a voice file name follows the piper naming for
// Russian voices.
func LooksRussian(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	return strings.HasPrefix(name, "ru_") || strings.Contains(name, "ru_") || strings.Contains(name, "_ru-")
}
