package ingest

import (
	"strings"
	"testing"

	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkerValidation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 100, 20, false},
		{"zero overlap", 100, 0, false},
		{"zero size", 0, 0, true},
		{"negative size", -1, 0, true},
		{"negative overlap", 100, -1, true},
		{"overlap equals size", 100, 100, true},
		{"overlap exceeds size", 100, 150, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.size, tt.overlap)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	chunker, err := NewChunker(100, 20)
	require.NoError(t, err)

	_, err = chunker.Split("")
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}

func TestSplitDeterministic(t *testing.T) {
	chunker, err := NewChunker(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)

	first, err := chunker.Split(text)
	require.NoError(t, err)
	second, err := chunker.Split(text)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].StartOffset, second[i].StartOffset)
		assert.Equal(t, first[i].EndOffset, second[i].EndOffset)
	}
}

func TestSplitOverlap(t *testing.T) {
	chunker, err := NewChunker(20, 5)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 10) // 100 runes
	chunks, err := chunker.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Content)
		cur := []rune(chunks[i].Content)

		// Each chunk repeats the overlap from the tail of the previous one.
		tail := string(prev[len(prev)-5:])
		head := string(cur[:5])
		assert.Equal(t, tail, head, "chunk %d does not continue chunk %d", i, i-1)

		assert.Equal(t, chunks[i-1].EndOffset-5, chunks[i].StartOffset)
	}
}

func TestSplitBoundsAndIndexes(t *testing.T) {
	chunker, err := NewChunker(30, 10)
	require.NoError(t, err)

	text := strings.Repeat("x", 95)
	chunks, err := chunker.Split(text)
	require.NoError(t, err)

	runes := []rune(text)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.LessOrEqual(t, len([]rune(chunk.Content)), 30)
		assert.Equal(t, string(runes[chunk.StartOffset:chunk.EndOffset]), chunk.Content)
	}

	// The final chunk must end at the end of the text.
	assert.Equal(t, len(runes), chunks[len(chunks)-1].EndOffset)
}

func TestSplitShortDocumentSingleChunk(t *testing.T) {
	chunker, err := NewChunker(1000, 200)
	require.NoError(t, err)

	chunks, err := chunker.Split("short text")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].StartOffset)
}

func TestSplitMultibyteRunes(t *testing.T) {
	chunker, err := NewChunker(4, 1)
	require.NoError(t, err)

	chunks, err := chunker.Split("日本語のテキストです")
	require.NoError(t, err)

	// Offsets are rune positions, so multibyte text must chunk cleanly.
	var rebuilt []rune
	src := []rune("日本語のテキストです")
	for i, chunk := range chunks {
		assert.Equal(t, string(src[chunk.StartOffset:chunk.EndOffset]), chunk.Content)
		if i == 0 {
			rebuilt = append(rebuilt, []rune(chunk.Content)...)
		} else {
			rebuilt = append(rebuilt, []rune(chunk.Content)[1:]...)
		}
	}
	assert.Equal(t, src, rebuilt)
}
