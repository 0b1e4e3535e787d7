package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jinford/project-rag/internal/core/chunk"
	"github.com/jinford/project-rag/internal/core/vectorstore"
)

// DefaultMaxCachedIndexes はインメモリに保持するインデックス数の上限。
// 1インデックスは O(チャンク数 × 次元) のfloatと本文を抱えるため、
// コールドなプロジェクトはLRUで追い出す
const DefaultMaxCachedIndexes = 16

// Store は Key → インデックスのライフサイクルを管理する。
// インメモリキャッシュと永続化ストレージの仲介役
type Store struct {
	repo     IndexRepository
	embedder Embedder
	chunker  *chunk.Chunker
	logger   *slog.Logger
	maxCache int

	mu    sync.Mutex
	cache map[Key]*cacheEntry
	locks map[Key]*sync.Mutex
	tick  uint64
}

type cacheEntry struct {
	index    *vectorstore.Index
	lastUsed uint64
}

// StoreOption は Store のオプション設定
type StoreOption func(*Store)

// WithStoreLogger は Store にロガーを設定する
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMaxCachedIndexes はキャッシュ上限を上書きする
func WithMaxCachedIndexes(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxCache = n
		}
	}
}

// WithChunker はチャンカーを差し替える
func WithChunker(c *chunk.Chunker) StoreOption {
	return func(s *Store) {
		s.chunker = c
	}
}

// NewStore は新しい Store を作成する
func NewStore(repo IndexRepository, embedder Embedder, opts ...StoreOption) *Store {
	s := &Store{
		repo:     repo,
		embedder: embedder,
		chunker:  chunk.NewChunker(),
		logger:   slog.Default(),
		maxCache: DefaultMaxCachedIndexes,
		cache:    make(map[Key]*cacheEntry),
		locks:    make(map[Key]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// keyLock はキー単位の排他ロックを返す。同一キーに対する
// インデックス化・保存・ロードを直列化する
func (s *Store) keyLock(key Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// IndexProject はファイル群をチャンク化・埋め込みしてキーの
// インデックスへ追加し、永続化する。追加したチャンク数を返す。
//
// 既に同名ファイルのチャンクが存在する場合は置き換える（再アップ
// ロードで古いチャンクが堆積しない）。他のファイルのチャンクは
// 保持済みベクトルを再利用するため再埋め込みは発生しない。
// 埋め込みが失敗した場合は何も永続化せず、以前の状態を保つ
func (s *Store) IndexProject(ctx context.Context, key Key, files map[string]string) (int, error) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// 再アップロードされたファイルの旧チャンクは置き換え対象
	replaced := make(map[string]struct{}, len(files))
	for filename := range files {
		replaced[filename] = struct{}{}
	}

	chunks := s.chunker.SplitFiles(files, key.UserID, key.ProjectID)
	if len(chunks) == 0 {
		// ファイルが空で再アップロードされた場合でも旧チャンクは残さない
		if err := s.dropReplacedLocked(ctx, key, replaced); err != nil {
			return 0, err
		}
		s.logger.Info("インデックス対象のチャンクなし", "key", key.String())
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), len(chunks))
	}

	index, err := s.loadLocked(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrIndexNotFound) {
			return 0, err
		}
		index = vectorstore.NewIndex(s.embedder.Dimension())
	}

	if index.Len() > 0 {
		index = index.Remap(func(c *chunk.Chunk) bool {
			_, ok := replaced[c.Metadata.Filename]
			return !ok
		})
	}

	embedded := make([]vectorstore.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		// 正規化はここで一度だけ行う。クエリ側も同じ経路で正規化する
		embedded[i] = vectorstore.EmbeddedChunk{Chunk: c, Embedding: vectorstore.Normalize(vectors[i])}
	}
	if err := index.Add(embedded); err != nil {
		return 0, fmt.Errorf("failed to add chunks to index: %w", err)
	}

	if err := s.repo.Save(ctx, key, index); err != nil {
		return 0, fmt.Errorf("failed to persist index: %w", err)
	}
	s.putCache(key, index)

	s.logger.Info("プロジェクトをインデックス化",
		"key", key.String(),
		"files", len(files),
		"chunks", len(chunks),
		"total", index.Len(),
	)
	return len(chunks), nil
}

// dropReplacedLocked は既存インデックスから対象ファイルの旧チャンクを
// 取り除いて永続化する。未インデックスのキーには何もしない。
// 全チャンクが消える場合はインデックスごと削除する。
// 呼び出し側がキーロックを保持していること
func (s *Store) dropReplacedLocked(ctx context.Context, key Key, replaced map[string]struct{}) error {
	index, err := s.loadLocked(ctx, key)
	if err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			return nil
		}
		return err
	}

	remapped := index.Remap(func(c *chunk.Chunk) bool {
		_, ok := replaced[c.Metadata.Filename]
		return !ok
	})
	if remapped.Len() == index.Len() {
		return nil
	}

	if remapped.Len() == 0 {
		s.mu.Lock()
		delete(s.cache, key)
		s.mu.Unlock()
		if err := s.repo.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete persisted index: %w", err)
		}
		return nil
	}

	if err := s.repo.Save(ctx, key, remapped); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	s.putCache(key, remapped)
	return nil
}

// SearchProject はキーのインデックスを検索する。未インデックスの
// キーや空クエリは正常系として空結果を返す
func (s *Store) SearchProject(ctx context.Context, key Key, query string, k int, filters vectorstore.Filters) ([]vectorstore.SearchResult, error) {
	if query == "" {
		return nil, nil
	}

	lock := s.keyLock(key)
	lock.Lock()
	index, err := s.loadLocked(ctx, key)
	lock.Unlock()
	if err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			return nil, nil
		}
		return nil, err
	}

	vectors, err := s.embedder.BatchEmbed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for query", ErrEmbedding, len(vectors))
	}

	results, err := index.Search(vectorstore.Normalize(vectors[0]), k, filters)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return results, nil
}

// ClearProject はキーのインデックスをメモリと永続化の両方から
// 取り除く。存在しないキーに対しても冪等
func (s *Store) ClearProject(ctx context.Context, key Key) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete persisted index: %w", err)
	}

	s.logger.Info("プロジェクトのインデックスを削除", "key", key.String())
	return nil
}

// Summarize はインデックス済みチャンクのメタデータから統計を集計する。
// 未インデックスのキーには ErrNotIndexed を返す
func (s *Store) Summarize(ctx context.Context, key Key) (*Summary, error) {
	lock := s.keyLock(key)
	lock.Lock()
	index, err := s.loadLocked(ctx, key)
	lock.Unlock()
	if err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			return nil, ErrNotIndexed
		}
		return nil, err
	}

	summary := &Summary{
		FileTypes:   make(map[string]int),
		TotalChunks: index.Len(),
	}

	seen := make(map[string]struct{})
	var latest int64
	for _, c := range index.Chunks() {
		if _, ok := seen[c.Metadata.Filename]; !ok {
			seen[c.Metadata.Filename] = struct{}{}
			summary.Files = append(summary.Files, c.Metadata.Filename)
		}
		summary.FileTypes[string(c.Metadata.ChunkType)]++
		summary.TotalLines += c.LineCount()
		if ts := c.Metadata.CreatedAt.Unix(); ts > latest {
			latest = ts
			summary.IndexedAt = c.Metadata.CreatedAt
		}
	}
	summary.TotalFiles = len(seen)
	sort.Strings(summary.Files)

	return summary, nil
}

// loadLocked はキャッシュ優先でインデックスを取得する。
// 呼び出し側がキーのロックを保持していること
func (s *Store) loadLocked(ctx context.Context, key Key) (*vectorstore.Index, error) {
	s.mu.Lock()
	if entry, ok := s.cache[key]; ok {
		s.tick++
		entry.lastUsed = s.tick
		s.mu.Unlock()
		return entry.index, nil
	}
	s.mu.Unlock()

	index, err := s.repo.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	s.putCache(key, index)
	return index, nil
}

// putCache はキャッシュへ登録し、上限超過時は最終利用が最も
// 古いエントリを追い出す
func (s *Store) putCache(key Key, index *vectorstore.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	s.cache[key] = &cacheEntry{index: index, lastUsed: s.tick}

	for len(s.cache) > s.maxCache {
		var oldest Key
		var oldestTick uint64
		first := true
		for k, e := range s.cache {
			if first || e.lastUsed < oldestTick {
				oldest = k
				oldestTick = e.lastUsed
				first = false
			}
		}
		delete(s.cache, oldest)
	}
}
