package vectorstore

import (
	"fmt"
	"sort"

	"github.com/jinford/project-rag/internal/core/chunk"
)

// Index はチャンクと埋め込みベクトルを保持し、内積による
// 厳密なtop-k類似検索を提供する。ベクトルはL2正規化済みである
// 前提で、内積がコサイン類似度と一致する。
//
// i番目のチャンクとi番目のベクトルは常に同一チャンクを指す。
// 両コレクションは必ず同時に更新され、個別の削除や更新はない。
// 唯一の削除手段はインデックス全体の破棄である
type Index struct {
	dimension int
	chunks    []*chunk.Chunk
	vectors   [][]float32
}

// NewIndex は指定次元の空のIndexを作成する
func NewIndex(dimension int) *Index {
	return &Index{dimension: dimension}
}

// Dimension はベクトル次元を返す
func (ix *Index) Dimension() int { return ix.dimension }

// Len は格納済みチャンク数を返す
func (ix *Index) Len() int { return len(ix.chunks) }

// Chunks は格納済みチャンクを挿入順で返す。返り値は読み取り専用として扱う
func (ix *Index) Chunks() []*chunk.Chunk { return ix.chunks }

// Vector は i 番目のチャンクに対応するベクトルを返す。返り値は読み取り専用として扱う
func (ix *Index) Vector(i int) []float32 { return ix.vectors[i] }

// Add はチャンクとベクトルを1バッチで末尾に追加する。
// 位置対応の不変条件を保つため、両者は同時に追加される。
// 空入力は何もしない
func (ix *Index) Add(embedded []EmbeddedChunk) error {
	if len(embedded) == 0 {
		return nil
	}

	for _, e := range embedded {
		if len(e.Embedding) != ix.dimension {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(e.Embedding), ix.dimension)
		}
	}

	for _, e := range embedded {
		ix.chunks = append(ix.chunks, e.Chunk)
		ix.vectors = append(ix.vectors, e.Embedding)
	}
	return nil
}

// Search は類似度降順で最大k件の結果を返す。
// フィルタは類似度順の候補列に対して後段適用されるため、候補窓が
// 狭い場合はコーパス深部に一致が残っていてもk件未満になることが
// ある（precision/recall のトレードオフとして許容する）。
// kは格納数でクランプされ、空インデックスは空の結果を返す
func (ix *Index) Search(queryVector []float32, k int, filters Filters) ([]SearchResult, error) {
	if ix.Len() == 0 || k <= 0 {
		return nil, nil
	}
	if len(queryVector) != ix.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(queryVector), ix.dimension)
	}

	if k > ix.Len() {
		k = ix.Len()
	}

	// 全件の内積を計算し、類似度降順（同点は挿入順)に並べる
	order := make([]int, ix.Len())
	scores := make([]float64, ix.Len())
	for i := range ix.vectors {
		order[i] = i
		scores[i] = dot(ix.vectors[i], queryVector)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	// 候補窓は上位k件。フィルタはこの窓に対してのみ評価する
	results := make([]SearchResult, 0, k)
	for _, idx := range order[:k] {
		c := ix.chunks[idx]
		if !matchesFilters(c, filters) {
			continue
		}
		results = append(results, SearchResult{
			Chunk: c,
			Score: scores[idx],
			Rank:  len(results) + 1,
		})
		if len(results) >= k {
			break
		}
	}
	return results, nil
}

// Remap は述語を満たすエントリだけを持つ新しいIndexを返す。
// 保持済みベクトルを再利用するため再埋め込みは発生しない
func (ix *Index) Remap(keep func(*chunk.Chunk) bool) *Index {
	out := NewIndex(ix.dimension)
	for i, c := range ix.chunks {
		if keep(c) {
			out.chunks = append(out.chunks, c)
			out.vectors = append(out.vectors, ix.vectors[i])
		}
	}
	return out
}

func matchesFilters(c *chunk.Chunk, filters Filters) bool {
	for key, want := range filters {
		got, ok := c.MetadataValue(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
