package jsontext

import (
	"sort"
	"strings"
)

// Separators lists the structural characters recorded by the Indexer.
const Separators = "{}[]:,\n\"'"

// CommentSpan marks text between Start and End (inclusive of both tokens) as
// a comment. An unterminated comment runs to the end of the source.
type CommentSpan struct {
	Start string
	End   string
}

type commentRange struct {
	start int
	end   int
}

// Indexer pre-scans a source string once and records the offset of every
// structural separator outside quoted strings and comments. Lookups binary
// search the recorded offsets and then scan forward.
type Indexer struct {
	text     string
	offsets  []int
	chars    []byte
	comments []commentRange
}

// NewIndexer scans text using the comment spans configured through opts.
func NewIndexer(text string, opts ...Option) *Indexer {
	cfg := applyOptions(opts)
	return newIndexer(text, cfg.comments)
}

func newIndexer(text string, comments []CommentSpan) *Indexer {
	ix := &Indexer{text: text}
	n := len(text)
	i := 0
scan:
	for i < n {
		for _, span := range comments {
			if span.Start == "" || !strings.HasPrefix(text[i:], span.Start) {
				continue
			}
			end := n
			if span.End != "" {
				if rel := strings.Index(text[i+len(span.Start):], span.End); rel >= 0 {
					end = i + len(span.Start) + rel + len(span.End)
				}
			}
			ix.comments = append(ix.comments, commentRange{start: i, end: end})
			i = end
			continue scan
		}

		ch := text[i]
		switch ch {
		case '"', '\'':
			ix.record(i, ch)
			j := i + 1
			for j < n {
				if text[j] == '\\' {
					j += 2
					continue
				}
				if text[j] == ch {
					break
				}
				j++
			}
			if j >= n {
				// unterminated; the parser reports it when no closing quote is found
				i = n
				continue
			}
			ix.record(j, ch)
			i = j + 1
		case '{', '}', '[', ']', ':', ',', '\n':
			ix.record(i, ch)
			i++
		default:
			i++
		}
	}
	return ix
}

func (ix *Indexer) record(offset int, ch byte) {
	ix.offsets = append(ix.offsets, offset)
	ix.chars = append(ix.chars, ch)
}

// Text returns the indexed source.
func (ix *Indexer) Text() string {
	return ix.text
}

// Len reports how many separators were recorded.
func (ix *Indexer) Len() int {
	return len(ix.offsets)
}

// At returns the offset and character of the i-th recorded separator.
func (ix *Indexer) At(i int) (int, byte) {
	return ix.offsets[i], ix.chars[i]
}

// Next returns the offset of the first recorded ch at or after from, or -1.
func (ix *Indexer) Next(ch byte, from int) int {
	for k := ix.search(from); k < len(ix.offsets); k++ {
		if ix.chars[k] == ch {
			return ix.offsets[k]
		}
	}
	return -1
}

// NextAny returns the offset and character of the first recorded separator at
// or after from that is one of chars. It returns -1 and 0 when none is found.
func (ix *Indexer) NextAny(from int, chars ...byte) (int, byte) {
	for k := ix.search(from); k < len(ix.offsets); k++ {
		for _, ch := range chars {
			if ix.chars[k] == ch {
				return ix.offsets[k], ch
			}
		}
	}
	return -1, 0
}

// CommentEnd reports the end offset of a comment starting exactly at offset.
func (ix *Indexer) CommentEnd(offset int) (int, bool) {
	k := sort.Search(len(ix.comments), func(i int) bool {
		return ix.comments[i].start >= offset
	})
	if k < len(ix.comments) && ix.comments[k].start == offset {
		return ix.comments[k].end, true
	}
	return 0, false
}

// NextComment returns the start offset of the first comment at or after from.
func (ix *Indexer) NextComment(from int) (int, bool) {
	k := sort.Search(len(ix.comments), func(i int) bool {
		return ix.comments[i].start >= from
	})
	if k < len(ix.comments) {
		return ix.comments[k].start, true
	}
	return 0, false
}

func (ix *Indexer) search(from int) int {
	return sort.SearchInts(ix.offsets, from)
}
