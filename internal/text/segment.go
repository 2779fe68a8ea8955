package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

var defaultLanguage = language.English

// Segmenter splits prose into sentences. Its abbreviation tables are chosen
// by language and never change after construction.
type Segmenter struct {
	lang   language.Base
	abbrev abbreviations
}

// NewSegmenter returns a segmenter for the given language. Languages
// without their own tables fall back to English.
func NewSegmenter(tag language.Tag) *Segmenter {
	base, _ := tag.Base()
	abbrev, ok := abbreviationTables[base.String()]
	if !ok {
		abbrev = abbreviationTables["en"]
		base = language.MustParseBase("en")
	}
	return &Segmenter{lang: base, abbrev: abbrev}
}

// SegmenterFor parses a BCP 47 name such as "de" or "en-GB". Empty or
// unparseable names give the English segmenter.
func SegmenterFor(name string) *Segmenter {
	tag, err := language.Parse(name)
	if err != nil {
		tag = defaultLanguage
	}
	return NewSegmenter(tag)
}

// Language reports the base language whose tables the segmenter uses.
func (s *Segmenter) Language() string {
	return s.lang.String()
}

// Segment splits s into English sentences. A fresh segmenter is built for
// every call, so concurrent callers share nothing.
func Segment(s string) []string {
	return NewSegmenter(defaultLanguage).Segment(s)
}

// Segment splits text into sentences with proper boundary detection.
// Cuts only ever fall on whitespace, so joining the result with single
// spaces reproduces the whitespace-collapsed input.
func (s *Segmenter) Segment(text string) []string {
	runes := []rune(text)
	sentences := []string{}

	start := 0
	for i := 0; i < len(runes); i++ {
		cut := -1
		switch {
		case isTerminator(runes[i]):
			end := closeRun(runes, i)
			if s.isBoundary(runes, i, end) {
				cut = end
			}
			i = end - 1
		case isParagraphBreak(runes, i):
			cut = i
		}
		if cut < 0 {
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start:cut])); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = cut
	}

	if sentence := strings.TrimSpace(string(runes[start:])); sentence != "" {
		sentences = append(sentences, sentence)
	}
	return sentences
}

// isBoundary decides whether the terminator run starting at pos and ending
// before end closes a sentence.
func (s *Segmenter) isBoundary(runes []rune, pos, end int) bool {
	if end >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[end]) {
		// Decimals, versions, domain names and dotted acronyms mid-word.
		return false
	}

	next := end
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	if next >= len(runes) {
		return true
	}
	if !startsSentence(runes, next) {
		return false
	}

	// Only a lone period can belong to an abbreviation or initial. Runs
	// such as "?!" always end a sentence.
	if runes[pos] != '.' || (pos+1 < end && isTerminator(runes[pos+1])) {
		return !isEllipsis(runes, pos)
	}

	word := wordBefore(runes, pos)
	lower := strings.ToLower(word)
	switch {
	case word == "":
		return true
	case isInitial(word):
		return false
	case s.abbrev.titles[lower]:
		return false
	case s.abbrev.numeric[lower]:
		return !unicode.IsDigit(runes[skipOpeners(runes, next)])
	}
	return true
}

// closeRun returns the index just past a run of terminators and any
// closing quotes or brackets that follow it.
func closeRun(runes []rune, pos int) int {
	end := pos + 1
	for end < len(runes) && isTerminator(runes[end]) {
		end++
	}
	for end < len(runes) && isCloser(runes[end]) {
		end++
	}
	return end
}

// isParagraphBreak reports a whitespace run at pos holding two or more
// newlines. Only the first rune of the run counts.
func isParagraphBreak(runes []rune, pos int) bool {
	if !unicode.IsSpace(runes[pos]) || (pos > 0 && unicode.IsSpace(runes[pos-1])) {
		return false
	}
	newlines := 0
	for i := pos; i < len(runes) && unicode.IsSpace(runes[i]); i++ {
		if runes[i] == '\n' {
			newlines++
		}
	}
	return newlines >= 2
}

// startsSentence reports whether the rune at pos can open a sentence: an
// upper-case letter or digit, optionally behind opening quotes or brackets.
func startsSentence(runes []rune, pos int) bool {
	pos = skipOpeners(runes, pos)
	if pos >= len(runes) {
		return false
	}
	r := runes[pos]
	return unicode.IsUpper(r) || unicode.IsDigit(r) || unicode.Is(unicode.Lo, r)
}

func skipOpeners(runes []rune, pos int) int {
	for pos < len(runes) && isOpener(runes[pos]) {
		pos++
	}
	return pos
}

// wordBefore returns the word ending at the period at pos, without
// leading quotes or brackets.
func wordBefore(runes []rune, pos int) string {
	start := pos
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	for start < pos && isOpener(runes[start]) {
		start++
	}
	return string(runes[start:pos])
}

// isInitial matches single upper-case letters ("J") and dotted acronyms
// whose final letter precedes the period ("U.S").
func isInitial(word string) bool {
	parts := strings.Split(word, ".")
	for _, p := range parts {
		r := []rune(p)
		if len(r) != 1 || !unicode.IsUpper(r[0]) {
			return false
		}
	}
	return true
}

func isEllipsis(runes []rune, pos int) bool {
	if runes[pos] == '…' {
		return true
	}
	dots := 0
	for i := pos; i < len(runes) && runes[i] == '.'; i++ {
		dots++
	}
	return dots >= 3
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»', '«':
		return true
	}
	return false
}

func isOpener(r rune) bool {
	switch r {
	case '"', '\'', '(', '[', '{', '“', '‘', '«', '»', '¿', '¡':
		return true
	}
	return false
}
