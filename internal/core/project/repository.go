package project

import (
	"context"

	"github.com/jinford/project-rag/internal/core/vectorstore"
)

// Embedder はテキスト列を固定次元のベクトル列へ変換する外部能力。
// インデックス時も検索時も同一の実装を使うこと
type Embedder interface {
	// BatchEmbed は複数テキストのEmbeddingを1回の呼び出しで生成する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension は出力ベクトルの次元数を返す。プロセス生存中は不変
	Dimension() int
}

// IndexRepository はキーごとのインデックスの永続化を担う。
// テスト時のモック用に消費者側で定義する
type IndexRepository interface {
	// Load はキーに対応するインデックスを復元する。
	// 永続化されていない場合は ErrIndexNotFound を返す
	Load(ctx context.Context, key Key) (*vectorstore.Index, error)

	// Save はインデックスを永続化する。同一キーの以前の
	// スナップショットは置き換えられる
	Save(ctx context.Context, key Key, index *vectorstore.Index) error

	// Delete はキーの永続化スナップショットを削除する。冪等
	Delete(ctx context.Context, key Key) error
}
