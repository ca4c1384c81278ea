package chunker

import (
	"strings"
	"testing"

	"github.com/quarryhq/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter approximates tokens as whitespace-separated words so tests
// never need the real BPE encoding data.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func TestChunkEmptyText(t *testing.T) {
	c := New(wordCounter{})

	_, err := c.Chunk(1, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyText)
	assert.True(t, core.IsPermanent(err))

	_, err = c.Chunk(1, "   \n\n  ")
	assert.ErrorIs(t, err, core.ErrEmptyText)
}

func TestChunkSingleChunk(t *testing.T) {
	c := New(wordCounter{})
	text := "The quick brown fox jumps over the lazy dog. It was a fine day."

	chunks, err := c.Chunk(42, text)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	chunk := chunks[0]
	assert.Equal(t, core.ChunkID(42, 0), chunk.Id)
	assert.Equal(t, core.ID(42), chunk.JobId)
	assert.Equal(t, 0, chunk.SequenceIndex)
	assert.Equal(t, text, chunk.Text)
	assert.Equal(t, 0, chunk.StartOffset)
	assert.Equal(t, len(text), chunk.EndOffset)
	assert.False(t, chunk.Degraded)
}

func TestChunkRespectsTokenBudget(t *testing.T) {
	c := New(wordCounter{}, WithTokenBudget(10), WithOverlap(0))

	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString("one two three four five. ")
	}
	text := strings.TrimSpace(sb.String())

	chunks, err := c.Chunk(7, text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		if !chunk.Degraded {
			assert.LessOrEqual(t, chunk.TokenCount, 10,
				"chunk %d exceeds budget", chunk.SequenceIndex)
		}
		assert.NotEmpty(t, chunk.Text)
		assert.Equal(t, text[chunk.StartOffset:chunk.EndOffset], chunk.Text)
	}
}

func TestChunkBudgetWithOverlapCarry(t *testing.T) {
	c := New(wordCounter{}, WithTokenBudget(10), WithOverlap(5))

	// The long middle sentence nearly fills the budget on its own, so a
	// carried tail in front of it would push the chunk over the limit.
	text := "a b c d. e f g h. p q r s t u v w x. y z."

	chunks, err := c.Chunk(13, text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.False(t, chunk.Degraded)
		assert.LessOrEqual(t, chunk.TokenCount, 10,
			"chunk %d exceeds budget: %q", chunk.SequenceIndex, chunk.Text)
	}

	// Dropping a tail must not break reconstruction.
	var sb strings.Builder
	sb.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		require.LessOrEqual(t, chunks[i].StartOffset, chunks[i-1].EndOffset)
		overlapBytes := chunks[i-1].EndOffset - chunks[i].StartOffset
		sb.WriteString(chunks[i].Text[overlapBytes:])
	}
	assert.Equal(t, text, sb.String())
}

func TestChunkContiguity(t *testing.T) {
	c := New(wordCounter{}, WithTokenBudget(8), WithOverlap(2))

	text := "Alpha beta gamma delta. Epsilon zeta eta theta. Iota kappa lambda mu.\n\n" +
		"Nu xi omicron pi. Rho sigma tau upsilon. Phi chi psi omega."

	chunks, err := c.Chunk(9, text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Concatenating chunks minus the overlapping prefix of each successor
	// must reconstruct the input exactly.
	var sb strings.Builder
	sb.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		require.LessOrEqual(t, cur.StartOffset, prev.EndOffset, "gap between chunks")
		require.Greater(t, cur.EndOffset, prev.EndOffset, "chunk did not advance")
		overlapBytes := prev.EndOffset - cur.StartOffset
		sb.WriteString(cur.Text[overlapBytes:])
	}
	assert.Equal(t, text, sb.String())

	// Sequence indexes are dense and ordered.
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.SequenceIndex)
		assert.Equal(t, core.ChunkID(9, i), chunk.Id)
	}
}

func TestChunkOverlapCarried(t *testing.T) {
	c := New(wordCounter{}, WithTokenBudget(10), WithOverlap(4))

	text := "One two three. Four five six. Seven eight nine. Ten eleven twelve. " +
		"Thirteen fourteen fifteen. Sixteen seventeen eighteen."

	chunks, err := c.Chunk(3, text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	overlapped := false
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartOffset < chunks[i-1].EndOffset {
			overlapped = true
			overlap := text[chunks[i].StartOffset:chunks[i-1].EndOffset]
			assert.LessOrEqual(t, wordCounter{}.Count(overlap), 4)
		}
	}
	assert.True(t, overlapped, "expected at least one overlapping boundary")
}

func TestChunkOversizedSentenceDegraded(t *testing.T) {
	c := New(wordCounter{}, WithTokenBudget(5), WithOverlap(0))

	// One sentence of 20 words, no sentence breaks.
	text := strings.TrimSuffix(strings.Repeat("word ", 20), " ") + "."

	chunks, err := c.Chunk(11, text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.True(t, chunk.Degraded, "hard-cut pieces must be flagged")
	}
}

func TestChunkDeterministic(t *testing.T) {
	c := New(wordCounter{}, WithTokenBudget(8), WithOverlap(2))
	text := "Alpha beta gamma delta. Epsilon zeta eta theta. Iota kappa lambda mu."

	first, err := c.Chunk(5, text)
	require.NoError(t, err)
	second, err := c.Chunk(5, text)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestChunkParagraphBoundaryPreferred(t *testing.T) {
	c := New(wordCounter{}, WithTokenBudget(6), WithOverlap(0))

	text := "One two three four.\n\nFive six seven eight."

	chunks, err := c.Chunk(2, text)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "One two three four.\n\n", chunks[0].Text)
	assert.Equal(t, "Five six seven eight.", chunks[1].Text)
}
