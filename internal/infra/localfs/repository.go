package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jinford/project-rag/internal/core/project"
	"github.com/jinford/project-rag/internal/core/vectorstore"
)

// Repository はローカルファイルシステム上のアーティファクト対へ
// インデックスを永続化する project.IndexRepository 実装
type Repository struct {
	baseDir string
}

var _ project.IndexRepository = (*Repository)(nil)

// NewRepository は保存先ディレクトリを確保して Repository を作成する
func NewRepository(baseDir string) (*Repository, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Repository{baseDir: baseDir}, nil
}

// Load はキーのアーティファクト対からインデックスを復元する
func (r *Repository) Load(ctx context.Context, key project.Key) (*vectorstore.Index, error) {
	index, err := vectorstore.Load(r.artifactPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, project.ErrIndexNotFound
		}
		return nil, err
	}
	return index, nil
}

// Save はインデックスをキーのアーティファクト対へ書き出す
func (r *Repository) Save(ctx context.Context, key project.Key, index *vectorstore.Index) error {
	return index.Save(r.artifactPath(key))
}

// Delete はキーのアーティファクト対を削除する。冪等
func (r *Repository) Delete(ctx context.Context, key project.Key) error {
	return vectorstore.Remove(r.artifactPath(key))
}

// artifactPath はキーから保存パスを導出する。
// パス区切り等の危険な文字は退避する
func (r *Repository) artifactPath(key project.Key) string {
	return filepath.Join(r.baseDir, sanitize(key.String()))
}

func sanitize(name string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", "..", "-", ":", "-")
	return replacer.Replace(name)
}
