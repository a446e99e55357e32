package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, chunkText("", DefaultChunkConfig()))
	assert.Nil(t, chunkText("   \n\t  ", DefaultChunkConfig()))
}

func TestChunkText_ShortTextIsOneChunk(t *testing.T) {
	text := "Quiet hours run from 22:00 to 08:00."
	chunks := chunkText(text, DefaultChunkConfig())
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkText_SplitsOnWordBoundaries(t *testing.T) {
	word := "regulation "
	text := strings.TrimSpace(strings.Repeat(word, 400))

	chunks := chunkText(text, DefaultChunkConfig())
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), DefaultChunkConfig().MaxChars)
		// No chunk starts or ends mid-word.
		assert.False(t, strings.HasPrefix(chunk, "egulation"))
		assert.False(t, strings.HasSuffix(chunk, "regulatio"))
	}
}

func TestChunkText_OverlapPreservesContext(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("alpha beta gamma delta ", 200))
	cfg := ChunkConfig{MaxChars: 500, MinChars: 100, Overlap: 100, MaxChunks: 40}

	chunks := chunkText(text, cfg)
	require.Greater(t, len(chunks), 1)

	// The tail of each chunk reappears at the head of the next.
	for i := 0; i < len(chunks)-1; i++ {
		tail := chunks[i][len(chunks[i])-20:]
		assert.Contains(t, chunks[i+1][:200], strings.TrimSpace(tail))
	}
}

func TestChunkText_MaxChunksCap(t *testing.T) {
	text := strings.Repeat("word ", 100000)
	cfg := ChunkConfig{MaxChars: 100, MinChars: 20, Overlap: 0, MaxChunks: 5}

	chunks := chunkText(text, cfg)
	assert.Len(t, chunks, 5)
}

func TestChunkText_ZeroConfigFallsBackToDefaults(t *testing.T) {
	text := strings.Repeat("some text here ", 200)
	chunks := chunkText(text, ChunkConfig{})
	assert.NotEmpty(t, chunks)
}
