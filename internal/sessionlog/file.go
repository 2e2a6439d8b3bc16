package sessionlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// FileLogger appends plain-text entries to one file per event kind. Every
// write is followed by fsync.
type FileLogger struct {
	mu      sync.Mutex
	dir     string
	prefix  string
	saveWAV bool
	files   map[string]*os.File
	now     func() time.Time
}

// NewFileLogger creates dir if needed and opens
// {prefix}_{asr,mt,dialog,tts}.txt in append mode.
func NewFileLogger(dir, prefix string, saveWAV bool) (*FileLogger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &FileLogger{
		dir:     dir,
		prefix:  prefix,
		saveWAV: saveWAV,
		files:   make(map[string]*os.File),
		now:     time.Now,
	}
	for _, kind := range []string{"asr", "mt", "dialog", "tts"} {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.txt", prefix, kind))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open %s log: %w", kind, err)
		}
		l.files[kind] = f
	}
	return l, nil
}

// Path returns the file for kind ("asr", "mt", "dialog" or "tts").
func (l *FileLogger) Path(kind string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s_%s.txt", l.prefix, kind))
}

func (l *FileLogger) ts() string {
	return l.now().Format(timestampLayout)
}

func (l *FileLogger) LogRecognition(f *speech.Fragment) error {
	return l.append("asr", fmt.Sprintf("[%s] id=%s t=(%.2f..%.2f) src_lang=%s ASR: %s\n",
		l.ts(), f.ID, f.TStart, f.TEnd, f.SrcLang, f.ASRText))
}

func (l *FileLogger) LogTranslation(f *speech.Fragment) error {
	return l.append("mt", fmt.Sprintf("[%s] id=%s dir=%s MT: %s  =>  %s\n",
		l.ts(), f.ID, f.MTDir, f.ASRText, f.MTText))
}

func (l *FileLogger) LogDialogue(f *speech.Fragment) error {
	return l.append("dialog", fmt.Sprintf("[%s] id=%s dir=%s\nSRC[%s]: %s\nTRG[%s]: %s\n\n",
		l.ts(), f.ID, f.MTDir, f.SrcLang, f.ASRText, f.MTDir.TargetLang(), f.MTText))
}

// LogSynthesis records the text handed to the synthesizer and, when enabled,
// saves the audio as {prefix}_{fragmentID}.wav.
func (l *FileLogger) LogSynthesis(fragmentID, lang, text string, b audio.Buffer) error {
	if err := l.append("tts", fmt.Sprintf("[%s] id=%s lang=%s dur=%.2fs TTS: %s\n",
		l.ts(), fragmentID, lang, b.Seconds(), text)); err != nil {
		return err
	}
	if !l.saveWAV || len(b.Samples) == 0 {
		return nil
	}
	path := filepath.Join(l.dir, fmt.Sprintf("%s_%s.wav", l.prefix, fragmentID))
	if err := audio.WriteWAVFile(path, b); err != nil {
		return fmt.Errorf("failed to save synthesized audio: %w", err)
	}
	return nil
}

func (l *FileLogger) append(kind, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.files[kind]
	if !ok {
		return fmt.Errorf("%s log is closed", kind)
	}
	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("failed to write %s log: %w", kind, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s log: %w", kind, err)
	}
	return nil
}

// Close closes all files.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for kind, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.files, kind)
	}
	return firstErr
}
