// Package textdiff computes a word-level alignment between an AI-suggested
// response and its human-edited variant. The algorithm is a bounded-lookahead
// approximation chosen for O(n*K) cost and determinism on small edits; it
// makes no minimality claim.
package textdiff

import (
	"strings"
	"unicode"
)

// SegmentType tags a diff segment.
type SegmentType string

const (
	Unchanged SegmentType = "UNCHANGED"
	Addition  SegmentType = "ADDITION"
	Deletion  SegmentType = "DELETION"
)

// Segment is one token of the alignment.
type Segment struct {
	Type SegmentType `json:"type"`
	Text string      `json:"text"`
}

// lookahead bounds how far ahead in the edited stream we search for a match
// before declaring a substitution.
const lookahead = 4

// Diff aligns original against edited token by token. Whitespace runs are
// tokens in their own right, so concatenating every UNCHANGED and ADDITION
// segment reproduces edited exactly, and every UNCHANGED and DELETION segment
// reproduces original.
func Diff(original, edited string) ([]Segment, error) {
	a := tokenize(original)
	b := tokenize(edited)

	segments := make([]Segment, 0, len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case i >= len(a):
			segments = append(segments, Segment{Type: Addition, Text: b[j]})
			j++
		case j >= len(b):
			segments = append(segments, Segment{Type: Deletion, Text: a[i]})
			i++
		case a[i] == b[j]:
			segments = append(segments, Segment{Type: Unchanged, Text: a[i]})
			i++
			j++
		default:
			offset := findAhead(b, j+1, a[i])
			if offset >= 0 {
				for k := j; k < offset; k++ {
					segments = append(segments, Segment{Type: Addition, Text: b[k]})
				}
				segments = append(segments, Segment{Type: Unchanged, Text: a[i]})
				i++
				j = offset + 1
			} else {
				segments = append(segments, Segment{Type: Deletion, Text: a[i]})
				segments = append(segments, Segment{Type: Addition, Text: b[j]})
				i++
				j++
			}
		}
	}
	return segments, nil
}

// findAhead scans tokens[from : from+lookahead] for target and returns its
// index, or -1.
func findAhead(tokens []string, from int, target string) int {
	limit := from + lookahead
	if limit > len(tokens) {
		limit = len(tokens)
	}
	for k := from; k < limit; k++ {
		if tokens[k] == target {
			return k
		}
	}
	return -1
}

// tokenize splits text on whitespace boundaries, keeping each whitespace run
// as its own token so the input is exactly reconstructable.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	var tokens []string
	var current strings.Builder
	currentIsSpace := false
	for _, r := range text {
		isSpace := unicode.IsSpace(r)
		if current.Len() > 0 && isSpace != currentIsSpace {
			tokens = append(tokens, current.String())
			current.Reset()
		}
		current.WriteRune(r)
		currentIsSpace = isSpace
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// Reconstruct concatenates the side of the alignment selected by want: pass
// Addition to rebuild the edited text, Deletion to rebuild the original.
func Reconstruct(segments []Segment, want SegmentType) string {
	var sb strings.Builder
	for _, seg := range segments {
		if seg.Type == Unchanged || seg.Type == want {
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}
