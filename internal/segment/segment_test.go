package segment

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numberedText builds a non-repetitive corpus so overlap measurements
// cannot match by accident.
func numberedText(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		if i > 0 {
			if i%12 == 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteString(" ")
			}
		}
		fmt.Fprintf(&b, "word%04d", i)
	}
	return b.String()
}

// longestSuffixPrefix returns the length in runes of the longest suffix of
// a that is also a prefix of b.
func longestSuffixPrefix(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	maxLen := len(ar)
	if len(br) < maxLen {
		maxLen = len(br)
	}
	for n := maxLen; n > 0; n-- {
		if string(ar[len(ar)-n:]) == string(br[:n]) {
			return n
		}
	}
	return 0
}

func TestSplitShortTextReturnsSingleChunk(t *testing.T) {
	s := New(1000, 500)
	chunks := s.Split("just a short note")
	require.Len(t, chunks, 1)
	assert.Equal(t, "just a short note", chunks[0])
}

func TestSplitEmptyText(t *testing.T) {
	s := New(1000, 500)
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\t  "))
}

func TestSplitIsDeterministic(t *testing.T) {
	s := New(120, 40)
	text := numberedText(400)
	first := s.Split(text)
	second := s.Split(text)
	assert.Equal(t, first, second)
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s := New(120, 40)
	chunks := s.Split(numberedText(400))
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqualf(t, utf8.RuneCountInString(chunk), 120,
			"chunk %d exceeds the size budget", i)
	}
}

func TestSplitOverlapNeverExceedsConfigured(t *testing.T) {
	s := New(1000, 500)
	chunks := s.Split(numberedText(2000))
	require.Greater(t, len(chunks), 1)
	for i := 0; i < len(chunks)-1; i++ {
		shared := longestSuffixPrefix(chunks[i], chunks[i+1])
		assert.LessOrEqualf(t, shared, 500,
			"chunks %d and %d share more than the configured overlap", i, i+1)
	}
}

func TestSplitCoversAllContent(t *testing.T) {
	s := New(120, 40)
	text := numberedText(300)
	chunks := s.Split(text)
	joined := strings.Join(chunks, " ")
	// Every word must survive splitting; overlap may duplicate but never
	// drop content.
	for i := 0; i < 300; i++ {
		assert.Contains(t, joined, fmt.Sprintf("word%04d", i))
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	para1 := strings.Repeat("alpha ", 15)
	para2 := strings.Repeat("bravo ", 15)
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	s := New(100, 0)
	chunks := s.Split(text)
	require.Len(t, chunks, 2)
	assert.NotContains(t, chunks[0], "bravo")
	assert.NotContains(t, chunks[1], "alpha")
}

func TestSplitOversizedWordFallsBackToCharacters(t *testing.T) {
	s := New(50, 10)
	chunks := s.Split(strings.Repeat("x", 200))
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
	}
}
