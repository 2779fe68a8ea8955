package text

import (
	"strings"
	"unicode"
)

// SpeakableThreshold is the minimum share of letters among the
// non-whitespace characters of a segment for it to be worth speaking.
// Minified JSON such as {"k":1} sits near 0.14; {"key":"value"} sits
// above 0.5.
var SpeakableThreshold = 0.40

// IsSpeakable reports whether a segment reads as prose rather than
// symbols. Empty and whitespace-only input is never speakable.
func IsSpeakable(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	return SpeakableRatio(s) >= SpeakableThreshold
}

// SpeakableRatio returns letters divided by non-whitespace runes of the
// trimmed segment, or 0 when there are none.
func SpeakableRatio(s string) float64 {
	s = strings.TrimSpace(s)
	var letters, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(letters) / float64(total)
}
