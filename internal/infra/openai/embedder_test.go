package openai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateToTokenLimit(t *testing.T) {
	embedder, err := NewEmbedder("test-key")
	require.NoError(t, err)

	t.Run("短いテキストはそのまま", func(t *testing.T) {
		text, tokens := embedder.truncateToTokenLimit("hello world")
		assert.Equal(t, "hello world", text)
		assert.Positive(t, tokens)
		assert.Less(t, tokens, 10)
	})

	t.Run("上限超過は切り詰められる", func(t *testing.T) {
		long := strings.Repeat("semantic search index ", 4000)
		text, tokens := embedder.truncateToTokenLimit(long)
		assert.Less(t, len(text), len(long))
		assert.Equal(t, maxInputTokens, tokens)
	})
}

func TestEmbedderOptions(t *testing.T) {
	embedder, err := NewEmbedder("test-key",
		WithEmbeddingModel("text-embedding-3-large"),
		WithEmbeddingDimension(256),
	)
	require.NoError(t, err)
	assert.Equal(t, 256, embedder.Dimension())
	assert.Equal(t, "text-embedding-3-large", embedder.model)
}
