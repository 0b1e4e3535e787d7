package project

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/project-rag/internal/core/vectorstore"
)

// stubEmbedder は語彙の出現数を次元とする決定的な埋め込み器。
// 同一テキストは常に同一ベクトルに写る
type stubEmbedder struct {
	mu     sync.Mutex
	calls  int
	failed bool
	extra  int // 返却ベクトル数の水増し（不正出力の再現用）
}

var stubVocabulary = []string{"import", "def", "foo", "return", "class", "os", "config", "section"}

func (e *stubEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failed {
		return nil, errors.New("embedder unavailable")
	}

	vectors := make([][]float32, 0, len(texts)+e.extra)
	for _, text := range texts {
		v := make([]float32, len(stubVocabulary))
		for i, word := range stubVocabulary {
			v[i] = float32(strings.Count(strings.ToLower(text), word))
		}
		vectors = append(vectors, v)
	}
	for i := 0; i < e.extra; i++ {
		vectors = append(vectors, make([]float32, len(stubVocabulary)))
	}
	return vectors, nil
}

func (e *stubEmbedder) Dimension() int { return len(stubVocabulary) }

// stubRepository はインメモリの IndexRepository 実装
type stubRepository struct {
	mu        sync.Mutex
	indexes   map[Key]*vectorstore.Index
	saveCalls int
	loadCalls int
	saveErr   error
}

func newStubRepository() *stubRepository {
	return &stubRepository{indexes: make(map[Key]*vectorstore.Index)}
}

func (r *stubRepository) Load(ctx context.Context, key Key) (*vectorstore.Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadCalls++
	index, ok := r.indexes[key]
	if !ok {
		return nil, ErrIndexNotFound
	}
	return index, nil
}

func (r *stubRepository) Save(ctx context.Context, key Key, index *vectorstore.Index) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saveCalls++
	r.indexes[key] = index
	return nil
}

func (r *stubRepository) Delete(ctx context.Context, key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, key)
	return nil
}

func newTestStore(opts ...StoreOption) (*Store, *stubRepository, *stubEmbedder) {
	repo := newStubRepository()
	embedder := &stubEmbedder{}
	return NewStore(repo, embedder, opts...), repo, embedder
}

func TestStoreIndexAndSearch(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestStore()
	key := NewKey("u1", "p1")

	count, err := store.IndexProject(ctx, key, map[string]string{
		"a.py": "import os\ndef foo():\n    return 1\n",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2)
	assert.Equal(t, 1, repo.saveCalls)

	results, err := store.SearchProject(ctx, key, "foo function", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a.py", results[0].Chunk.Metadata.Filename)
	assert.Equal(t, 1, results[0].Rank)
}

func TestStoreSearchNeverIndexed(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()

	results, err := store.SearchProject(ctx, NewKey("u1", "p1"), "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStoreSearchEmptyQuery(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()

	results, err := store.SearchProject(ctx, NewKey("u1", "p1"), "", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStoreReindexReplacesFileChunks(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestStore()
	key := NewKey("u1", "p1")

	_, err := store.IndexProject(ctx, key, map[string]string{
		"a.py": "import os\ndef foo():\n    return 1\n",
		"b.py": "def bar():\n    return 2\n",
	})
	require.NoError(t, err)

	// a.py を縮小して再アップロード。旧チャンクは堆積しない
	count, err := store.IndexProject(ctx, key, map[string]string{
		"a.py": "def foo():\n    return 42\n",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	index := repo.indexes[key]
	require.NotNil(t, index)

	var aChunks, bChunks int
	for _, c := range index.Chunks() {
		switch c.Metadata.Filename {
		case "a.py":
			aChunks++
			assert.Contains(t, c.Content, "42")
		case "b.py":
			bChunks++
		}
	}
	assert.Equal(t, 1, aChunks)
	assert.Equal(t, 1, bChunks)
}

func TestStoreReindexEmptiedFileDropsChunks(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestStore()
	key := NewKey("u1", "p1")

	_, err := store.IndexProject(ctx, key, map[string]string{
		"a.py": "import os\ndef foo():\n    return 1\n",
		"b.py": "def bar():\n    return 2\n",
	})
	require.NoError(t, err)

	// 空になった a.py を単独で再アップロードしても旧チャンクは残らない
	count, err := store.IndexProject(ctx, key, map[string]string{"a.py": ""})
	require.NoError(t, err)
	assert.Zero(t, count)

	index := repo.indexes[key]
	require.NotNil(t, index)
	for _, c := range index.Chunks() {
		assert.NotEqual(t, "a.py", c.Metadata.Filename)
	}
	assert.Positive(t, index.Len())

	// 残りのファイルも空で再アップロードするとインデックスごと消える
	count, err = store.IndexProject(ctx, key, map[string]string{"b.py": ""})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NotContains(t, repo.indexes, key)

	results, err := store.SearchProject(ctx, key, "bar", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStoreCumulativeAcrossFiles(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()
	key := NewKey("u1", "p1")

	_, err := store.IndexProject(ctx, key, map[string]string{"a.py": "def foo():\n    return 1\n"})
	require.NoError(t, err)
	_, err = store.IndexProject(ctx, key, map[string]string{"b.py": "def bar():\n    return 2\n"})
	require.NoError(t, err)

	// 別ファイルの追加インデックスは累積する
	summary, err := store.Summarize(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalFiles)
	assert.Equal(t, []string{"a.py", "b.py"}, summary.Files)
}

func TestStoreEmbeddingFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store, repo, embedder := newTestStore()
	key := NewKey("u1", "p1")

	_, err := store.IndexProject(ctx, key, map[string]string{"a.py": "def foo():\n    return 1\n"})
	require.NoError(t, err)
	savedBefore := repo.saveCalls

	embedder.failed = true
	_, err = store.IndexProject(ctx, key, map[string]string{"a.py": "def changed():\n    return 9\n"})
	require.ErrorIs(t, err, ErrEmbedding)

	// 以前の永続化状態はそのまま
	assert.Equal(t, savedBefore, repo.saveCalls)
	index := repo.indexes[key]
	require.NotNil(t, index)
	assert.Contains(t, index.Chunks()[0].Content, "foo")
}

func TestStoreMalformedEmbedderOutput(t *testing.T) {
	ctx := context.Background()
	store, repo, embedder := newTestStore()
	embedder.extra = 1

	_, err := store.IndexProject(ctx, NewKey("u1", "p1"), map[string]string{"a.py": "def foo(): pass\n"})
	require.ErrorIs(t, err, ErrEmbedding)
	assert.Zero(t, repo.saveCalls)
}

func TestStoreIndexEmptyFiles(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestStore()

	count, err := store.IndexProject(ctx, NewKey("u1", "p1"), map[string]string{"empty.py": ""})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, repo.saveCalls)
}

func TestStoreClearProject(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()
	key := NewKey("u1", "p1")

	_, err := store.IndexProject(ctx, key, map[string]string{"a.py": "def foo(): pass\n"})
	require.NoError(t, err)

	require.NoError(t, store.ClearProject(ctx, key))

	results, err := store.SearchProject(ctx, key, "foo", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	// 既に削除済みでも冪等
	assert.NoError(t, store.ClearProject(ctx, key))
}

func TestStoreSummarizeNotIndexed(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()

	_, err := store.Summarize(ctx, NewKey("u1", "p1"))
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestStoreSummarize(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()
	key := NewKey("u1", "p1")

	_, err := store.IndexProject(ctx, key, map[string]string{
		"a.py":      "import os\ndef foo():\n    return 1\n",
		"README.md": "# Title\nhello\n",
	})
	require.NoError(t, err)

	summary, err := store.Summarize(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalFiles)
	assert.Positive(t, summary.TotalChunks)
	assert.Positive(t, summary.TotalLines)
	assert.Positive(t, summary.FileTypes["section"])
	assert.False(t, summary.IndexedAt.IsZero())
}

func TestStoreCacheEviction(t *testing.T) {
	ctx := context.Background()
	store, repo, _ := newTestStore(WithMaxCachedIndexes(1))

	k1 := NewKey("u1", "p1")
	k2 := NewKey("u1", "p2")
	_, err := store.IndexProject(ctx, k1, map[string]string{"a.py": "def foo(): pass\n"})
	require.NoError(t, err)
	_, err = store.IndexProject(ctx, k2, map[string]string{"b.py": "def bar(): pass\n"})
	require.NoError(t, err)

	loadsBefore := repo.loadCalls
	// k1 はキャッシュから追い出されているため再ロードが走る
	_, err = store.SearchProject(ctx, k1, "foo", 3, nil)
	require.NoError(t, err)
	assert.Greater(t, repo.loadCalls, loadsBefore)
}

func TestStoreSearchWithFilters(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()
	key := NewKey("u1", "p1")

	_, err := store.IndexProject(ctx, key, map[string]string{
		"a.py":      "import os\ndef foo():\n    return 1\n",
		"README.md": "# foo section\nfoo def import os return\n",
	})
	require.NoError(t, err)

	results, err := store.SearchProject(ctx, key, "foo def", 10, vectorstore.Filters{"filename": "a.py"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "a.py", r.Chunk.Metadata.Filename)
	}
}

func TestKeyDerivation(t *testing.T) {
	assert.Equal(t, "u1_chat_42", KeyForChat("u1", "42").String())
	assert.Equal(t, "default_current", NewKey("", "").String())
}
