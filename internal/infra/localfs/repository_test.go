package localfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/project-rag/internal/core/chunk"
	"github.com/jinford/project-rag/internal/core/project"
	"github.com/jinford/project-rag/internal/core/vectorstore"
)

func newIndex(t *testing.T) *vectorstore.Index {
	t.Helper()
	ix := vectorstore.NewIndex(2)
	c := chunk.New("def foo(): pass", chunk.Metadata{
		Filename:  "a.py",
		UserID:    "u1",
		ProjectID: "p1",
		ChunkType: chunk.TypeFunction,
	})
	require.NoError(t, ix.Add([]vectorstore.EmbeddedChunk{
		{Chunk: c, Embedding: vectorstore.Normalize([]float32{1, 1})},
	}))
	return ix
}

func TestRepositorySaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(t.TempDir())
	require.NoError(t, err)

	key := project.NewKey("u1", "p1")

	// 未保存のキーは ErrIndexNotFound
	_, err = repo.Load(ctx, key)
	assert.ErrorIs(t, err, project.ErrIndexNotFound)

	require.NoError(t, repo.Save(ctx, key, newIndex(t)))

	loaded, err := repo.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, "a.py", loaded.Chunks()[0].Metadata.Filename)

	require.NoError(t, repo.Delete(ctx, key))
	_, err = repo.Load(ctx, key)
	assert.ErrorIs(t, err, project.ErrIndexNotFound)

	// 削除は冪等
	assert.NoError(t, repo.Delete(ctx, key))
}

func TestRepositoryKeyIsolation(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(t.TempDir())
	require.NoError(t, err)

	k1 := project.NewKey("u1", "p1")
	k2 := project.NewKey("u1", "p2")
	require.NoError(t, repo.Save(ctx, k1, newIndex(t)))

	_, err = repo.Load(ctx, k2)
	assert.ErrorIs(t, err, project.ErrIndexNotFound)

	// k1の削除はk2へ影響しない
	require.NoError(t, repo.Save(ctx, k2, newIndex(t)))
	require.NoError(t, repo.Delete(ctx, k1))
	_, err = repo.Load(ctx, k2)
	assert.NoError(t, err)
}

func TestSanitizeKeyPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := NewRepository(dir)
	require.NoError(t, err)

	// パス区切りを含むキーでもベースディレクトリ外へ書かれない
	key := project.NewKey("../evil", "chat_1/2")
	require.NoError(t, repo.Save(ctx, key, newIndex(t)))

	loaded, err := repo.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}
