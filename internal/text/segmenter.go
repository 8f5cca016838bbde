package text

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Default chunk limits, in characters
const (
	DefaultMaxChunkSize = 2000
	DefaultMinChunkSize = 100
)

// Segment is one bounded unit of text scheduled for independent synthesis.
// Index defines playback order.
type Segment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`

	// Separator is the whitespace that followed Text in the normalized input:
	// a paragraph break, a single space, or nothing after a hard cut.
	Separator string `json:"-"`
}

// Len returns the segment length in characters
func (s Segment) Len() int {
	return utf8.RuneCountInString(s.Text)
}

// Segmenter splits normalized text into synthesis-ready segments
type Segmenter struct {
	MaxChunkSize int
	MinChunkSize int
}

// NewSegmenter validates the limits and returns a Segmenter
func NewSegmenter(maxChunkSize, minChunkSize int) (*Segmenter, error) {
	s := &Segmenter{MaxChunkSize: maxChunkSize, MinChunkSize: minChunkSize}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Split is a convenience wrapper around Segmenter.Segment
func Split(text string, maxChunkSize, minChunkSize int) ([]Segment, error) {
	s := &Segmenter{MaxChunkSize: maxChunkSize, MinChunkSize: minChunkSize}
	return s.Segment(text)
}

func (s *Segmenter) validate() error {
	if s.MinChunkSize <= 0 || s.MaxChunkSize <= s.MinChunkSize {
		return fmt.Errorf("%w: need max > min > 0, got max=%d min=%d", ErrInvalidInput, s.MaxChunkSize, s.MinChunkSize)
	}
	return nil
}

// piece is a span of normalized text plus the separator that followed it
type piece struct {
	text string
	sep  string
	n    int
}

func newPiece(text, sep string) piece {
	return piece{text: text, sep: sep, n: utf8.RuneCountInString(text)}
}

// joinedLen is the length of a followed by b, separator included
func joinedLen(a, b piece) int {
	return a.n + utf8.RuneCountInString(a.sep) + b.n
}

func join(a, b piece) piece {
	return piece{text: a.text + a.sep + b.text, sep: b.sep, n: joinedLen(a, b)}
}

// Segment normalizes text and splits it into segments no longer than
// MaxChunkSize characters. Paragraphs are packed greedily; an oversized
// paragraph is split on sentence boundaries and an oversized sentence is
// hard-wrapped at whitespace. Undersized segments are then coalesced
// forward while the result still fits.
func (s *Segmenter) Segment(text string) ([]Segment, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	normalized := Normalize(text)
	if normalized == "" {
		return nil, fmt.Errorf("%w: no text after normalization", ErrInvalidInput)
	}

	paragraphs := strings.Split(normalized, ParagraphSeparator)
	units := make([]piece, len(paragraphs))
	for i, p := range paragraphs {
		sep := ParagraphSeparator
		if i == len(paragraphs)-1 {
			sep = ""
		}
		units[i] = newPiece(p, sep)
	}

	chunks := s.coalesce(s.pack(units, s.splitParagraph))

	segments := make([]Segment, len(chunks))
	for i, c := range chunks {
		segments[i] = Segment{Index: i, Text: c.text, Separator: c.sep}
	}
	return segments, nil
}

// pack greedily joins consecutive units while they fit. Units larger than
// the ceiling flush the running chunk and are handed to split.
func (s *Segmenter) pack(units []piece, split func(piece) []piece) []piece {
	var out []piece
	var cur piece
	open := false

	for _, u := range units {
		if u.n > s.MaxChunkSize {
			if open {
				out = append(out, cur)
				open = false
			}
			out = append(out, split(u)...)
			continue
		}

		switch {
		case !open:
			cur, open = u, true
		case joinedLen(cur, u) > s.MaxChunkSize:
			out = append(out, cur)
			cur = u
		default:
			cur = join(cur, u)
		}
	}

	if open {
		out = append(out, cur)
	}
	return out
}

func (s *Segmenter) splitParagraph(p piece) []piece {
	return s.pack(splitSentences(p), s.hardWrap)
}

// splitSentences cuts after '.', '!' or '?' (plus any closing quotes or
// brackets) when whitespace follows.
func splitSentences(p piece) []piece {
	r := []rune(p.text)
	var out []piece
	start := 0

	for i := 0; i < len(r); i++ {
		if !isTerminator(r[i]) {
			continue
		}
		j := i + 1
		for j < len(r) && isCloser(r[j]) {
			j++
		}
		if j < len(r) && unicode.IsSpace(r[j]) {
			out = append(out, piece{text: string(r[start:j]), sep: string(r[j]), n: j - start})
			start = j + 1
			i = j
		}
	}

	if start < len(r) {
		out = append(out, piece{text: string(r[start:]), sep: p.sep, n: len(r) - start})
	} else if len(out) > 0 {
		out[len(out)-1].sep += p.sep
	}
	return out
}

// hardWrap cuts at the last whitespace at or before MaxChunkSize, or exactly
// at MaxChunkSize when the window has none.
func (s *Segmenter) hardWrap(p piece) []piece {
	limit := s.MaxChunkSize
	r := []rune(p.text)
	var out []piece

	for len(r) > limit {
		cut := -1
		for i := limit; i > 0; i-- {
			if unicode.IsSpace(r[i]) {
				cut = i
				break
			}
		}

		if cut > 0 {
			out = append(out, piece{text: string(r[:cut]), sep: string(r[cut]), n: cut})
			r = r[cut+1:]
		} else {
			out = append(out, piece{text: string(r[:limit]), n: limit})
			r = r[limit:]
		}
	}

	if len(r) > 0 {
		out = append(out, piece{text: string(r), sep: p.sep, n: len(r)})
	} else if len(out) > 0 {
		out[len(out)-1].sep += p.sep
	}
	return out
}

// coalesce merges a chunk shorter than MinChunkSize into its successor while
// the combined chunk stays within MaxChunkSize. The last chunk has no
// successor and is left as is.
func (s *Segmenter) coalesce(chunks []piece) []piece {
	out := make([]piece, 0, len(chunks))
	for i := 0; i < len(chunks); i++ {
		cur := chunks[i]
		for cur.n < s.MinChunkSize && i+1 < len(chunks) {
			next := chunks[i+1]
			if joinedLen(cur, next) > s.MaxChunkSize {
				break
			}
			cur = join(cur, next)
			i++
		}
		out = append(out, cur)
	}
	return out
}

// Join reassembles segments into the normalized text they were cut from
func Join(segments []Segment) string {
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(seg.Text)
		sb.WriteString(seg.Separator)
	}
	return sb.String()
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']':
		return true
	}
	return false
}
