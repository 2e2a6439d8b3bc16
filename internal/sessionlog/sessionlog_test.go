package sessionlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

func testFragment() *speech.Fragment {
	return &speech.Fragment{
		ID:      "frag-1",
		TStart:  1.5,
		TEnd:    3.25,
		SrcLang: "ru",
		ASRText: "привет мир",
		MTDir:   speech.DirRuEn,
		MTText:  "hello world",
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 31, 15, 45, 0, 123_000_000, time.UTC)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestSessionPrefix(t *testing.T) {
	if got := SessionPrefix(fixedClock()); got != "session_20240131_154500" {
		t.Errorf("Expected session_20240131_154500, got %s", got)
	}
}

func TestFileLogger_Formats(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(dir, "session_test", false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer l.Close()
	l.now = fixedClock

	f := testFragment()
	if err := l.LogRecognition(f); err != nil {
		t.Fatalf("LogRecognition: %v", err)
	}
	if err := l.LogTranslation(f); err != nil {
		t.Fatalf("LogTranslation: %v", err)
	}
	if err := l.LogDialogue(f); err != nil {
		t.Fatalf("LogDialogue: %v", err)
	}

	wantASR := "[2024-01-31 15:45:00.123] id=frag-1 t=(1.50..3.25) src_lang=ru ASR: привет мир\n"
	if got := readFile(t, l.Path("asr")); got != wantASR {
		t.Errorf("Expected asr line %q, got %q", wantASR, got)
	}

	wantMT := "[2024-01-31 15:45:00.123] id=frag-1 dir=ru-en MT: привет мир  =>  hello world\n"
	if got := readFile(t, l.Path("mt")); got != wantMT {
		t.Errorf("Expected mt line %q, got %q", wantMT, got)
	}

	wantDialog := "[2024-01-31 15:45:00.123] id=frag-1 dir=ru-en\nSRC[ru]: привет мир\nTRG[en]: hello world\n\n"
	if got := readFile(t, l.Path("dialog")); got != wantDialog {
		t.Errorf("Expected dialog block %q, got %q", wantDialog, got)
	}
}

func TestFileLogger_SynthesisSavesWAV(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(dir, "session_test", true)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer l.Close()

	buf := audio.Silence(100*time.Millisecond, 16000)
	if err := l.LogSynthesis("frag-1", "en", "hello world", buf); err != nil {
		t.Fatalf("LogSynthesis: %v", err)
	}

	if got := readFile(t, l.Path("tts")); !strings.Contains(got, "lang=en dur=0.10s TTS: hello world") {
		t.Errorf("Unexpected tts line: %q", got)
	}

	saved, err := audio.ReadWAVFile(filepath.Join(dir, "session_test_frag-1.wav"))
	if err != nil {
		t.Fatalf("Expected saved wav, got %v", err)
	}
	if len(saved.Samples) != 1600 {
		t.Errorf("Expected 1600 samples, got %d", len(saved.Samples))
	}
}

func TestFileLogger_WriteAfterClose(t *testing.T) {
	l, err := NewFileLogger(t.TempDir(), "session_test", false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	l.Close()

	if err := l.LogRecognition(testFragment()); err == nil {
		t.Error("Expected error writing to a closed logger")
	}
}

func newTestSQLite(t *testing.T, sessionID string) *SQLiteLogger {
	t.Helper()
	dsn := fmt.Sprintf("file:sessionlog-%d?mode=memory&cache=shared", time.Now().UnixNano())
	l, err := OpenSQLite(dsn, sessionID)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestSQLiteLogger_Events(t *testing.T) {
	l := newTestSQLite(t, "session-a")

	f := testFragment()
	l.LogRecognition(f)
	l.LogTranslation(f)
	l.LogDialogue(f)
	l.LogSynthesis(f.ID, "en", f.MTText, audio.Silence(200*time.Millisecond, 16000))

	dialog, err := l.Events(KindDialogue)
	if err != nil {
		t.Fatalf("Events error: %v", err)
	}
	if len(dialog) != 1 {
		t.Fatalf("Expected 1 dialogue event, got %d", len(dialog))
	}
	if dialog[0].SrcText != f.ASRText || dialog[0].HypText != f.MTText {
		t.Errorf("Unexpected dialogue event: %+v", dialog[0])
	}
	if dialog[0].SessionID != "session-a" {
		t.Errorf("Expected session-a, got %s", dialog[0].SessionID)
	}

	synth, _ := l.Events(KindSynthesis)
	if len(synth) != 1 || synth[0].Seconds != 0.2 {
		t.Errorf("Expected one 0.2s synthesis event, got %+v", synth)
	}
}

type failingLogger struct{ Nop }

func (failingLogger) LogDialogue(*speech.Fragment) error { return errors.New("disk full") }

type countingLogger struct {
	Nop
	dialogues int
}

func (c *countingLogger) LogDialogue(*speech.Fragment) error {
	c.dialogues++
	return nil
}

func TestMulti_CallsEveryLogger(t *testing.T) {
	counter := &countingLogger{}
	m := Multi(failingLogger{}, counter)

	err := m.LogDialogue(testFragment())
	if err == nil {
		t.Error("Expected the failing logger's error")
	}
	if counter.dialogues != 1 {
		t.Errorf("Expected second logger to be called once, got %d", counter.dialogues)
	}
}

func TestNew_Backends(t *testing.T) {
	start := fixedClock()

	l, err := New(config.LoggingConfig{Dir: t.TempDir(), Backend: BackendText}, "s1", start, zerolog.Nop())
	if err != nil {
		t.Fatalf("text backend: %v", err)
	}
	if _, ok := l.(*FileLogger); !ok {
		t.Errorf("Expected *FileLogger, got %T", l)
	}
	l.Close()

	dir := t.TempDir()
	l, err = New(config.LoggingConfig{Dir: dir, Backend: BackendBoth}, "s1", start, zerolog.Nop())
	if err != nil {
		t.Fatalf("both backend: %v", err)
	}
	if err := l.LogDialogue(testFragment()); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	l.Close()
	if _, err := os.Stat(filepath.Join(dir, "sessions.db")); err != nil {
		t.Errorf("Expected sessions.db, got %v", err)
	}

	if _, err := New(config.LoggingConfig{Backend: "kafka"}, "s1", start, zerolog.Nop()); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
