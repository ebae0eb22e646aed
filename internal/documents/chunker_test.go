package documents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkerValidation(t *testing.T) {
	_, err := NewChunker(0, 0)
	assert.Error(t, err)

	_, err = NewChunker(100, 100)
	assert.Error(t, err)

	_, err = NewChunker(100, -1)
	assert.Error(t, err)

	c, err := NewChunker(100, 20)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestChunkEmptyInput(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	_, err = c.Chunk("", "f.txt", "s1")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = c.Chunk("   \n\t  ", "f.txt", "s1")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestChunkShortText(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	chunks, err := c.Chunk("hello world", "f.txt", "s1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, 1, chunks[0].TotalChunks)
	assert.Equal(t, "f.txt", chunks[0].Filename)
	assert.Equal(t, "s1", chunks[0].SpaceID)
}

func TestChunkDefaultSpace(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	chunks, err := c.Chunk("hello", "f.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "default", chunks[0].SpaceID)
}

// 300 characters without any boundary, window 100 / overlap 20: hard cuts at
// [0,100) [80,180) [160,260) [240,300).
func TestChunkHardCutWindows(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	text := strings.Repeat("ab", 150)
	chunks, err := c.Chunk(text, "notes.txt", "s1")
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.Equal(t, 4, ch.TotalChunks)
		assert.LessOrEqual(t, len(ch.Text), 100)
		assert.Equal(t, "notes.txt", ch.Filename)
		assert.Equal(t, "s1", ch.SpaceID)
	}

	// Concatenating the non-overlap spans reconstructs the input.
	rebuilt := chunks[0].Text
	for _, ch := range chunks[1:] {
		rebuilt += ch.Text[20:]
	}
	assert.Equal(t, text, rebuilt)
}

func TestChunkSnapsToSentenceBoundary(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
	chunks, err := c.Chunk(text, "fox.txt", "s1")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 100)
		if i < len(chunks)-1 {
			assert.True(t, strings.HasSuffix(ch.Text, "."),
				"chunk %d should end at a sentence boundary, got %q", i, ch.Text)
		}
	}
}

func TestChunkDeterminism(t *testing.T) {
	c, err := NewChunker(80, 10)
	require.NoError(t, err)

	text := strings.Repeat("alpha beta gamma delta epsilon. ", 12)
	first, err := c.Chunk(text, "f.txt", "s1")
	require.NoError(t, err)
	second, err := c.Chunk(text, "f.txt", "s1")
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].TotalChunks, second[i].TotalChunks)
		// Ids are fresh per pass.
		assert.NotEqual(t, first[i].ID, second[i].ID)
	}
}
