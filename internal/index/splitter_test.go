package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShortInput(t *testing.T) {
	chunks := splitText("short paragraph", 800, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short paragraph", chunks[0])
}

func TestSplitTextEmptyInput(t *testing.T) {
	assert.Empty(t, splitText("", 800, 100))
	assert.Empty(t, splitText("   \n\n  ", 800, 100))
}

func TestSplitTextRespectsChunkSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Each paragraph holds a sentence about the integration procedure.\n\n")
	}

	chunks := splitText(b.String(), 200, 40)
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 200+40, "chunk %d too large", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestSplitTextPrefersParagraphBoundaries(t *testing.T) {
	text := "First paragraph about staging.\n\nSecond paragraph about loading.\n\nThird paragraph about checks."
	chunks := splitText(text, 40, 0)
	require.Greater(t, len(chunks), 1)
	assert.Contains(t, chunks[0], "First paragraph")
}

func TestSplitTextCarriesOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("sentence one. ")
	}
	chunks := splitText(b.String(), 100, 30)
	require.Greater(t, len(chunks), 1)

	// The tail of one chunk reappears at the head of the next.
	tail := chunks[0][len(chunks[0])-10:]
	assert.Contains(t, chunks[1], strings.TrimSpace(tail))
}

func TestSplitTextUnbrokenRun(t *testing.T) {
	long := strings.Repeat("x", 2500)
	chunks := splitText(long, 800, 100)
	require.Greater(t, len(chunks), 2)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 900)
	}
}
