package text

import (
	"regexp"
	"strings"
	"unicode"
)

// ParagraphSeparator marks paragraph boundaries in normalized text
const ParagraphSeparator = "\n\n"

var (
	// Lines holding nothing but a page number
	pageNumberLine = regexp.MustCompile(`(?m)^ *\d{1,4} *\n`)
	blankLines     = regexp.MustCompile(`\n[ \n]*\n`)
	whitespaceRun  = regexp.MustCompile(`[ \n]+`)

	// Extraction artifacts: words or sentences glued together
	missingWordSpace     = regexp.MustCompile(`([a-z])([A-Z])`)
	missingSentenceSpace = regexp.MustCompile(`([.!?])([A-Z])`)
)

// Normalize turns raw extracted text into NormalizedText: control characters
// stripped, typographic quotes folded to ASCII, page-number lines removed,
// paragraphs separated by exactly ParagraphSeparator and every other
// whitespace run collapsed to a single space. Normalize is idempotent.
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.Map(normalizeRune, s)

	s = pageNumberLine.ReplaceAllString(s+"\n", "")

	var paragraphs []string
	for _, p := range blankLines.Split(s, -1) {
		p = whitespaceRun.ReplaceAllString(p, " ")
		p = missingWordSpace.ReplaceAllString(p, "$1 $2")
		p = missingSentenceSpace.ReplaceAllString(p, "$1 $2")
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	return strings.Join(paragraphs, ParagraphSeparator)
}

func normalizeRune(r rune) rune {
	switch r {
	case '\n':
		return '\n'
	case '\r', '\f':
		// Page feeds and stray carriage returns end a line
		return '\n'
	case '“', '”', '„', '‟', '″', '«', '»':
		return '"'
	case '‘', '’', '‚', '‛', '′':
		return '\''
	case '\u00AD', '\u200B', '\u200C', '\u200D', '\u2060', '\uFEFF':
		return -1
	}

	if unicode.IsSpace(r) {
		return ' '
	}
	if unicode.IsControl(r) {
		return -1
	}
	return r
}
