package speech

import "github.com/google/uuid"

// LangAuto marks a fragment whose source language could not be determined.
const LangAuto = "auto"

// Fragment is the unit of work threaded through the pipeline: one recognized
// and routed utterance. It is created by the capture stage and mutated once,
// by the consumer stage, to set MTText.
type Fragment struct {
	ID      string
	TStart  float64 // seconds since pipeline start
	TEnd    float64
	SrcLang string
	ASRText string
	MTDir   Direction
	MTText  string // empty until translation succeeded and passed filtering
}

// NewFragment builds a fragment with a fresh identifier. An empty language
// becomes LangAuto and a negative duration is clamped so TEnd >= TStart.
func NewFragment(tStart, duration float64, lang, text string, dir Direction) *Fragment {
	if lang == "" {
		lang = LangAuto
	}
	if duration < 0 {
		duration = 0
	}
	return &Fragment{
		ID:      uuid.New().String(),
		TStart:  tStart,
		TEnd:    tStart + duration,
		SrcLang: lang,
		ASRText: text,
		MTDir:   dir,
	}
}

// HasTranslation reports whether the consumer stage filled MTText.
func (f *Fragment) HasTranslation() bool {
	return f.MTText != ""
}
