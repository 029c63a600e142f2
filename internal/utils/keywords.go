package utils

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\w]+`)

// NormalizeText lowercases a message and collapses punctuation, emoji and
// runs of whitespace into single spaces so trigger matching is stable
// against the noisy text WhatsApp users actually send.
func NormalizeText(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	return strings.TrimSpace(nonWord.ReplaceAllString(lowered, " "))
}

// ContainsKeyword reports whether any of the trigger words appears as a
// whole token in the normalized message.
func ContainsKeyword(text string, triggers []string) bool {
	normalized := NormalizeText(text)
	if normalized == "" {
		return false
	}
	tokens := strings.Fields(normalized)
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	for _, trigger := range triggers {
		if set[trigger] {
			return true
		}
	}
	return false
}

// MatchTitle matches free text against a set of option titles, returning
// the matched title. Exact normalized equality wins; a normalized
// substring match is accepted as a fallback for partial typing.
func MatchTitle(text string, titles []string) (string, bool) {
	normalized := NormalizeText(text)
	if normalized == "" {
		return "", false
	}
	for _, title := range titles {
		if NormalizeText(title) == normalized {
			return title, true
		}
	}
	for _, title := range titles {
		nt := NormalizeText(title)
		if nt != "" && (strings.Contains(nt, normalized) || strings.Contains(normalized, nt)) {
			return title, true
		}
	}
	return "", false
}

// NormalizePhone strips symbols from a phone number and applies the
// default country prefix to bare 10-digit numbers.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, ch := range raw {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	digits := b.String()
	if len(digits) == 10 {
		return "91" + digits
	}
	return digits
}
