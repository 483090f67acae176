package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortTextSingleChunk(t *testing.T) {
	chunks := Chunk("hello world", 500, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])

	// Exactly at the boundary still yields one chunk.
	exact := strings.Repeat("a", 500)
	assert.Len(t, Chunk(exact, 500, 100), 1)
}

func TestChunkEmptyText(t *testing.T) {
	assert.Nil(t, Chunk("", 500, 100))
}

func TestChunkWindowsOverlap(t *testing.T) {
	text := strings.Repeat("a", 300) + strings.Repeat("b", 300) + strings.Repeat("c", 300)
	chunks := Chunk(text, 500, 100)

	// 900 runes, window 500, step 400: ceil((900-100)/400) = 2 windows.
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 500)
	assert.Len(t, chunks[1], 500)
	// Consecutive windows share the overlap region.
	assert.Equal(t, chunks[0][400:], chunks[1][:100])
}

func TestChunkLastWindowShort(t *testing.T) {
	text := strings.Repeat("x", 950)
	chunks := Chunk(text, 500, 100)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 150, "last window holds the remainder")
}

func TestChunkCountsRunesNotBytes(t *testing.T) {
	// Multibyte runes must not be split.
	text := strings.Repeat("é", 600)
	chunks := Chunk(text, 500, 100)
	require.Len(t, chunks, 2)
	assert.Equal(t, 500, len([]rune(chunks[0])))
	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c, "é"))
	}
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("word ", 400)
	assert.Equal(t, Chunk(text, 500, 100), Chunk(text, 500, 100))
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "urn:li:share:p1_chunk_0", ChunkID("urn:li:share:p1", 0))
	assert.Equal(t, "urn:li:share:p1_chunk_2", ChunkID("urn:li:share:p1", 2))
}
