// Package segment splits long text into overlapping chunks suitable for
// relevance ranking. The splitter walks a separator hierarchy (paragraph,
// line, sentence, word, character) so that each chunk stays within the
// size budget wherever a natural break permits, and consecutive chunks
// share up to chunkOverlap characters of context. Splitting is fully
// deterministic and has no side effects.
package segment

import (
	"strings"
	"unicode/utf8"
)

// Defaults match the reranker's context budget.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 500
)

// defaultSeparators is ordered from the coarsest natural break to the
// finest. The empty string terminates the hierarchy by splitting into
// individual characters.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter produces overlapping chunks from raw text.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a Splitter. Non-positive arguments select the defaults.
func New(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split divides text into chunks of at most chunkSize characters where a
// natural break allows, with up to chunkOverlap characters repeated
// between consecutive chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the coarsest separator that actually occurs in the text; the
	// remaining, finer separators handle oversized pieces recursively.
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	splits := splitKeepSeparator(text, separator)

	var chunks []string
	var pending []string
	for _, piece := range splits {
		if utf8.RuneCountInString(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending)...)
			pending = nil
		}
		if len(remaining) == 0 {
			// No finer separator left; emit the oversized piece as-is.
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, remaining)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending)...)
	}
	return chunks
}

// merge packs consecutive pieces into chunks up to chunkSize characters,
// then slides a window so that up to chunkOverlap characters carry over
// into the next chunk. Pieces already contain their separators, so they
// concatenate directly.
func (s *Splitter) merge(pieces []string) []string {
	var docs []string
	var window []string
	total := 0

	flush := func() {
		doc := strings.TrimSpace(strings.Join(window, ""))
		if doc != "" {
			docs = append(docs, doc)
		}
	}

	for _, piece := range pieces {
		length := utf8.RuneCountInString(piece)
		if total+length > s.chunkSize && len(window) > 0 {
			flush()
			// Retain a tail of the window as overlap for the next chunk.
			for total > s.chunkOverlap || (total+length > s.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += length
	}
	flush()
	return docs
}

// splitKeepSeparator splits text on separator, attaching the separator to
// the start of the following piece so no characters are lost. An empty
// separator splits into individual UTF-8 characters.
func splitKeepSeparator(text, separator string) []string {
	if separator == "" {
		return strings.Split(text, "")
	}
	parts := strings.Split(text, separator)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = separator + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}
