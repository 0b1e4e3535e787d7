package vectorstore

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/project-rag/internal/core/chunk"
)

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u1_p1")

	ix := NewIndex(3)
	require.NoError(t, ix.Add([]EmbeddedChunk{
		{Chunk: testChunk("a.py", "import os", chunk.TypeImports), Embedding: Normalize([]float32{1, 2, 3})},
		{Chunk: testChunk("a.py", "def foo(): pass", chunk.TypeFunction), Embedding: Normalize([]float32{3, 2, 1})},
		{Chunk: testChunk("b.md", "# Title", chunk.TypeSection), Embedding: Normalize([]float32{0, 1, 0})},
	}))
	require.NoError(t, ix.Save(path))
	assert.True(t, Exists(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ix.Len(), loaded.Len())
	require.Equal(t, ix.Dimension(), loaded.Dimension())

	// 保存前後で同一クエリの結果（順位・スコア）が一致すること
	query := Normalize([]float32{1, 1, 1})
	before, err := ix.Search(query, 3, nil)
	require.NoError(t, err)
	after, err := loaded.Search(query, 3, nil)
	require.NoError(t, err)

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Chunk.ID, after[i].Chunk.ID)
		assert.Equal(t, before[i].Rank, after[i].Rank)
		assert.InDelta(t, before[i].Score, after[i].Score, 1e-6)
	}
}

func TestLoadMissingArtifacts(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nothing"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadCorruptArtifacts(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, data []byte) string {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path+VectorFileExt, data, 0o644))
		require.NoError(t, os.WriteFile(path+ChunkFileExt, []byte(`{"dimension":3,"count":0,"chunks":[]}`), 0o644))
		return path
	}

	t.Run("マジックが不正", func(t *testing.T) {
		path := write("badmagic", []byte("NOTANIDX00000000"))
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("ヘッダが途中で切れている", func(t *testing.T) {
		path := write("short", vectorMagic[:4])
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("ヘッダの次元・件数がファイルサイズと矛盾", func(t *testing.T) {
		// マジックは正しいが、ヘッダが数GB分のベクトルを主張する
		var buf bytes.Buffer
		buf.Write(vectorMagic[:])
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1<<20))) // dimension
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1<<20))) // count
		buf.Write([]byte{0, 0, 0, 0})

		path := write("hugeheader", buf.Bytes())
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("チャンクアーティファクトがJSONとして不正", func(t *testing.T) {
		path := filepath.Join(dir, "badjson")
		ix := NewIndex(2)
		require.NoError(t, ix.Add([]EmbeddedChunk{
			{Chunk: testChunk("a.py", "x", chunk.TypeGeneric), Embedding: []float32{1, 0}},
		}))
		require.NoError(t, ix.Save(path))
		require.NoError(t, os.WriteFile(path+ChunkFileExt, []byte("{broken"), 0o644))

		_, err := Load(path)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("アーティファクト間の次元不一致", func(t *testing.T) {
		path := filepath.Join(dir, "dimmismatch")
		ix := NewIndex(2)
		require.NoError(t, ix.Add([]EmbeddedChunk{
			{Chunk: testChunk("a.py", "x", chunk.TypeGeneric), Embedding: []float32{1, 0}},
		}))
		require.NoError(t, ix.Save(path))
		require.NoError(t, os.WriteFile(path+ChunkFileExt,
			[]byte(`{"dimension":5,"count":1,"chunks":[{"id":"x","content":"x","metadata":{}}]}`), 0o644))

		_, err := Load(path)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})
}

func TestRemoveIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u1_p1")

	ix := NewIndex(2)
	require.NoError(t, ix.Add([]EmbeddedChunk{
		{Chunk: testChunk("a.py", "x", chunk.TypeGeneric), Embedding: []float32{1, 0}},
	}))
	require.NoError(t, ix.Save(path))
	require.True(t, Exists(path))

	require.NoError(t, Remove(path))
	assert.False(t, Exists(path))

	// 既に消えていてもエラーにならない
	assert.NoError(t, Remove(path))
}
