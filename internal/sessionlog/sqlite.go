package sessionlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// Event kinds stored in the sqlite backend.
const (
	KindRecognition = "asr"
	KindTranslation = "mt"
	KindDialogue    = "dialog"
	KindSynthesis   = "tts"
)

// Event is one audit row. Sessions share a database file; rows are told apart
// by SessionID.
type Event struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"index;not null"`
	FragmentID string `gorm:"index;not null"`
	Kind       string `gorm:"type:varchar(16);not null"`
	TStart     float64
	TEnd       float64
	SrcLang    string `gorm:"type:varchar(16)"`
	Direction  string `gorm:"type:varchar(8)"`
	SrcText    string `gorm:"type:text"`
	HypText    string `gorm:"type:text"`
	Seconds    float64
	CreatedAt  time.Time
}

// SQLiteLogger stores events in {dir}/sessions.db.
type SQLiteLogger struct {
	db        *gorm.DB
	sessionID string
}

// NewSQLiteLogger opens (or creates) the database and migrates the schema.
func NewSQLiteLogger(dir, sessionID string) (*SQLiteLogger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return OpenSQLite(filepath.Join(dir, "sessions.db"), sessionID)
}

// OpenSQLite opens a logger on an explicit DSN.
func OpenSQLite(dsn, sessionID string) (*SQLiteLogger, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLiteLogger{db: db, sessionID: sessionID}, nil
}

func (l *SQLiteLogger) LogRecognition(f *speech.Fragment) error {
	return l.insert(&Event{
		FragmentID: f.ID,
		Kind:       KindRecognition,
		TStart:     f.TStart,
		TEnd:       f.TEnd,
		SrcLang:    f.SrcLang,
		Direction:  f.MTDir.String(),
		SrcText:    f.ASRText,
	})
}

func (l *SQLiteLogger) LogTranslation(f *speech.Fragment) error {
	return l.insert(&Event{
		FragmentID: f.ID,
		Kind:       KindTranslation,
		Direction:  f.MTDir.String(),
		SrcText:    f.ASRText,
		HypText:    f.MTText,
	})
}

func (l *SQLiteLogger) LogDialogue(f *speech.Fragment) error {
	return l.insert(&Event{
		FragmentID: f.ID,
		Kind:       KindDialogue,
		TStart:     f.TStart,
		TEnd:       f.TEnd,
		SrcLang:    f.SrcLang,
		Direction:  f.MTDir.String(),
		SrcText:    f.ASRText,
		HypText:    f.MTText,
	})
}

func (l *SQLiteLogger) LogSynthesis(fragmentID, lang, text string, b audio.Buffer) error {
	return l.insert(&Event{
		FragmentID: fragmentID,
		Kind:       KindSynthesis,
		SrcLang:    lang,
		HypText:    text,
		Seconds:    b.Seconds(),
	})
}

func (l *SQLiteLogger) insert(e *Event) error {
	e.SessionID = l.sessionID
	if err := l.db.Create(e).Error; err != nil {
		return fmt.Errorf("failed to store %s event: %w", e.Kind, err)
	}
	return nil
}

// Events returns the session's events of kind in insertion order.
func (l *SQLiteLogger) Events(kind string) ([]Event, error) {
	var events []Event
	err := l.db.Where("session_id = ? AND kind = ?", l.sessionID, kind).Order("id").Find(&events).Error
	return events, err
}

// Close closes the underlying connection.
func (l *SQLiteLogger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
