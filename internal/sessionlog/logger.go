// Package sessionlog records the per-session audit trail: what was heard,
// what it was translated to and what was spoken.
package sessionlog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// Backends accepted by New.
const (
	BackendText   = "text"
	BackendSQLite = "sqlite"
	BackendBoth   = "both"
)

// Logger receives audit events from the pipeline. A returned error never
// aborts the pipeline; a nil return means the entry is durable.
type Logger interface {
	LogRecognition(f *speech.Fragment) error
	LogTranslation(f *speech.Fragment) error
	LogDialogue(f *speech.Fragment) error
	LogSynthesis(fragmentID, lang, text string, b audio.Buffer) error
	Close() error
}

// New opens the configured backend for a session starting at start.
func New(cfg config.LoggingConfig, sessionID string, start time.Time, logger zerolog.Logger) (Logger, error) {
	prefix := SessionPrefix(start)

	var (
		l   Logger
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", BackendText:
		l, err = NewFileLogger(cfg.Dir, prefix, cfg.SaveTTSWAV)
	case BackendSQLite:
		l, err = NewSQLiteLogger(cfg.Dir, sessionID)
	case BackendBoth:
		l, err = newBoth(cfg, prefix, sessionID)
	default:
		return nil, fmt.Errorf("unknown session log backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("backend", cfg.Backend).
		Str("dir", cfg.Dir).
		Str("prefix", prefix).
		Msg("Session log opened")
	return l, nil
}

func newBoth(cfg config.LoggingConfig, prefix, sessionID string) (Logger, error) {
	fl, err := NewFileLogger(cfg.Dir, prefix, cfg.SaveTTSWAV)
	if err != nil {
		return nil, err
	}
	sl, err := NewSQLiteLogger(cfg.Dir, sessionID)
	if err != nil {
		fl.Close()
		return nil, err
	}
	return Multi(fl, sl), nil
}

// SessionPrefix names the session's files, e.g. session_20240131_154500.
func SessionPrefix(start time.Time) string {
	return start.Format("session_20060102_150405")
}

type multiLogger []Logger

// Multi fans every event out to each logger. All loggers are called even if
// one fails.
func Multi(loggers ...Logger) Logger {
	return multiLogger(loggers)
}

func (m multiLogger) each(fn func(Logger) error) error {
	var errs []error
	for _, l := range m {
		if err := fn(l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiLogger) LogRecognition(f *speech.Fragment) error {
	return m.each(func(l Logger) error { return l.LogRecognition(f) })
}

func (m multiLogger) LogTranslation(f *speech.Fragment) error {
	return m.each(func(l Logger) error { return l.LogTranslation(f) })
}

func (m multiLogger) LogDialogue(f *speech.Fragment) error {
	return m.each(func(l Logger) error { return l.LogDialogue(f) })
}

func (m multiLogger) LogSynthesis(fragmentID, lang, text string, b audio.Buffer) error {
	return m.each(func(l Logger) error { return l.LogSynthesis(fragmentID, lang, text, b) })
}

func (m multiLogger) Close() error {
	return m.each(func(l Logger) error { return l.Close() })
}

// Nop discards all events.
type Nop struct{}

func (Nop) LogRecognition(*speech.Fragment) error                  { return nil }
func (Nop) LogTranslation(*speech.Fragment) error                  { return nil }
func (Nop) LogDialogue(*speech.Fragment) error                     { return nil }
func (Nop) LogSynthesis(string, string, string, audio.Buffer) error { return nil }
func (Nop) Close() error                                           { return nil }
