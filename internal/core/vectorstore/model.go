package vectorstore

import (
	"errors"
	"math"

	"github.com/jinford/project-rag/internal/core/chunk"
)

// ErrCorruptIndex は永続化アーティファクトの破損・不整合を表す。
// 復旧は元ファイルからの再インデックスで行う
var ErrCorruptIndex = errors.New("corrupt index artifact")

// ErrDimensionMismatch はベクトル次元の不一致を表す
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// EmbeddedChunk はチャンクとその埋め込みベクトルの組を表す。
// 生成したIndexが専有し、Index間で共有されることはない
type EmbeddedChunk struct {
	Chunk     *chunk.Chunk `json:"chunk"`
	Embedding []float32    `json:"embedding"`
}

// SearchResult は類似検索の結果1件を表す。Rankは1始まりで
// 返却順に単調増加する
type SearchResult struct {
	Chunk *chunk.Chunk
	Score float64
	Rank  int
}

// Filters はメタデータキーごとの要求値を表す検索フィルタ
type Filters map[string]string

// Normalize はベクトルをL2正規化した複製を返す。
// ゼロベクトルはそのまま返す
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := float32(math.Sqrt(sum))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
