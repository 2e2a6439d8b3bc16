package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// whisperSampleRate is the only rate whisper.cpp accepts.
const whisperSampleRate = 16000

// WhisperRecognizer runs a local whisper.cpp model. It serves both the
// "whisper" and "faster-whisper" engine names.
type WhisperRecognizer struct {
	model    whisperlib.Model
	language string
	beamSize int
	threads  uint
	logger   zerolog.Logger

	mu sync.Mutex // a whisper context is not safe for concurrent use
}

// NewWhisperRecognizer loads the model at cfg.ModelPath.
func NewWhisperRecognizer(cfg config.ASRConfig, logger zerolog.Logger) (*WhisperRecognizer, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: whisper model path is empty", speech.ErrEngineNotInitialized)
	}
	model, err := whisperlib.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load whisper model %q: %v", speech.ErrEngineNotInitialized, cfg.ModelPath, err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = speech.LangAuto
	}
	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}

	logger.Info().
		Str("model", cfg.ModelPath).
		Str("language", lang).
		Int("beam_size", cfg.BeamSize).
		Msg("Whisper model loaded")

	return &WhisperRecognizer{
		model:    model,
		language: lang,
		beamSize: cfg.BeamSize,
		threads:  uint(threads),
		logger:   logger,
	}, nil
}

// Name returns "whisper".
func (w *WhisperRecognizer) Name() string { return EngineWhisper }

// Recognize transcribes one segment. Segments at other rates are resampled
// to 16 kHz first.
func (w *WhisperRecognizer) Recognize(ctx context.Context, segment []float32, sampleRate int) (*TranscriptionResult, error) {
	if w.model == nil {
		return nil, speech.ErrEngineNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(segment) == 0 {
		return nil, fmt.Errorf("%w: empty segment", speech.ErrInvalidAudio)
	}
	samples := resampleForWhisper(segment, sampleRate)

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(w.language); err != nil {
		w.logger.Warn().Err(err).Str("language", w.language).Msg("Failed to set whisper language, using auto")
	}
	wctx.SetThreads(w.threads)
	if w.beamSize > 0 {
		wctx.SetBeamSize(w.beamSize)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = speech.LangAuto
	}
	return &TranscriptionResult{Language: lang, Text: strings.Join(parts, " ")}, nil
}

// Close releases the model.
func (w *WhisperRecognizer) Close() error {
	if w.model != nil {
		return w.model.Close()
	}
	return nil
}

func resampleForWhisper(segment []float32, sampleRate int) []float32 {
	if sampleRate == whisperSampleRate {
		return segment
	}
	return audio.Resample(segment, sampleRate, whisperSampleRate)
}
