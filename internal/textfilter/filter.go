// Package textfilter holds the text quality checks applied between pipeline
// stages: the meaningfulness filter, the synthesis sanitizer and the
// digit/symbol density heuristic.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Thresholds used by the pipeline.
const (
	MinRecognizedLen   = 3
	MinTranslatedLen   = 2
	MaxSymbolDensity   = 0.6
	densitySymbolRunes = "-_:.;,/#$%&*+=()[]{}"
)

var (
	keyLabelRe = regexp.MustCompile(`(?i)\b(id|src|trg)\s*[:=]\s*`)
	uuidRe     = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\b-[0-9a-f\-]{27,}\b`)
	dirTagRe   = regexp.MustCompile(`(?i)\b(SRC|TRG)\s*\[[^\]]*\]\s*:\s*`)
)

// IsMeaningful reports whether text is worth passing on. Text is rejected when
// it is empty, shorter than minLen runes after trimming, or has no letters at
// all (only digits, underscores and punctuation).
func IsMeaningful(text string, minLen int) bool {
	if text == "" {
		return false
	}
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) < minLen {
		return false
	}
	return hasLetter(t)
}

// SanitizeForSynthesis strips machine artefacts a translation model may echo
// back so they are never spoken. The passes run in a fixed order: key labels
// and UUIDs go before the short hex token pass, otherwise UUID remnants would
// survive as ordinary words.
func SanitizeForSynthesis(text string) string {
	if text == "" {
		return ""
	}
	t := replaceWords(keyLabelRe, text)
	t = replaceWords(uuidRe, t)
	t = replaceWords(dirTagRe, t)
	t = dropShortHexTokens(t)
	return strings.Join(strings.Fields(t), " ")
}

// SymbolDensity returns (decimal digits + symbol characters) divided by the
// trimmed rune length. Empty text counts as fully dense.
func SymbolDensity(text string) float64 {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n == 0 {
		return 1.0
	}
	count := 0
	for _, r := range text {
		if unicode.IsDigit(r) || strings.ContainsRune(densitySymbolRunes, r) {
			count++
		}
	}
	return float64(count) / float64(n)
}

// TooDense reports whether text exceeds MaxSymbolDensity.
func TooDense(text string) bool {
	return SymbolDensity(text) > MaxSymbolDensity
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsMark(r) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func isHexRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// replaceWords replaces matches of re with a space, skipping matches that are
// glued to a neighbouring word character. regexp's \b only knows ASCII, so a
// label after a Cyrillic letter would otherwise look like a word start.
func replaceWords(re *regexp.Regexp, s string) string {
	matches := re.FindAllStringIndex(s, -1)
	if matches == nil {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		if !atWordEdges(s, m[0], m[1]) {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteByte(' ')
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// atWordEdges reports whether s[start:end] starts and ends on Unicode word
// boundaries wherever the match itself begins or ends with a word character.
func atWordEdges(s string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(s[start:])
	if isWordRune(first) && start > 0 {
		if prev, _ := utf8.DecodeLastRuneInString(s[:start]); isWordRune(prev) {
			return false
		}
	}
	lastRune, _ := utf8.DecodeLastRuneInString(s[:end])
	if isWordRune(lastRune) && end < len(s) {
		if next, _ := utf8.DecodeRuneInString(s[end:]); isWordRune(next) {
			return false
		}
	}
	return true
}

// dropShortHexTokens replaces whole words of one to three hex characters with
// a space. Word boundaries are Unicode-aware so Cyrillic neighbours count as
// word characters.
func dropShortHexTokens(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !isWordRune(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		allHex := true
		for j < len(runes) && isWordRune(runes[j]) {
			if !isHexRune(runes[j]) {
				allHex = false
			}
			j++
		}
		if allHex && j-i <= 3 {
			b.WriteByte(' ')
		} else {
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String()
}
