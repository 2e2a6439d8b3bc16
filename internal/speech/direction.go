package speech

import (
	"fmt"
	"strings"
)

// Direction is a translation direction tag.
type Direction string

const (
	DirRuEn Direction = "ru-en"
	DirEnRu Direction = "en-ru"
	// DirAuto is only valid as a configuration value; fragments always carry
	// a concrete direction.
	DirAuto Direction = "auto"
)

// ParseDirection validates a configured direction string.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirRuEn, DirEnRu, DirAuto:
		return d, nil
	case "":
		return DirAuto, nil
	default:
		return "", fmt.Errorf("unknown direction %q (want ru-en, en-ru or auto)", s)
	}
}

// ResolveDirection picks the translation direction for a recognized language.
// A fixed configured direction always wins. In auto mode any language code
// starting with "ru" (case-insensitive) maps to ru-en, everything else to en-ru.
func ResolveDirection(fixed Direction, lang string) Direction {
	if fixed != DirAuto && fixed != "" {
		return fixed
	}
	if strings.HasPrefix(strings.ToLower(lang), "ru") {
		return DirRuEn
	}
	return DirEnRu
}

// SourceLang returns the language translated from.
func (d Direction) SourceLang() string {
	if d == DirRuEn {
		return "ru"
	}
	return "en"
}

// TargetLang returns the language spoken back to the user.
func (d Direction) TargetLang() string {
	if d == DirRuEn {
		return "en"
	}
	return "ru"
}

func (d Direction) String() string { return string(d) }
