package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jinford/project-rag/internal/core/project"
	"github.com/jinford/project-rag/internal/core/vectorstore"
)

// 検索・コンテキスト組み立ての既定値
const (
	DefaultTopK      = 5
	DefaultMaxChunks = 3

	// contextContentLimit はコンテキストに載せる本文の最大文字数
	contextContentLimit = 1000
)

// CodeMatch は提示層向けに平坦化した検索結果1件を表す
type CodeMatch struct {
	File    string  `json:"file"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Type    string  `json:"type"`
}

// Service はRAGコアの唯一の窓口となるファサード。
// 呼び出し側はこのサービスだけに依存する
type Service struct {
	store  *project.Store
	logger *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(store *project.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IndexProjectFiles はファイル群をプロジェクトのインデックスへ追加し、
// 追加したチャンク数を返す
func (s *Service) IndexProjectFiles(ctx context.Context, files map[string]string, userID, projectID string) (int, error) {
	key := project.NewKey(userID, projectID)
	count, err := s.store.IndexProject(ctx, key, files)
	if err != nil {
		return 0, fmt.Errorf("failed to index project files: %w", err)
	}
	return count, nil
}

// SearchSimilarCode は類似コードを検索し、平坦なレコード列へ整形する。
// 空クエリや未インデックスのプロジェクトは空列を返し、エラーにしない
func (s *Service) SearchSimilarCode(ctx context.Context, query string, topK int, userID, projectID string) ([]CodeMatch, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	key := project.NewKey(userID, projectID)
	results, err := s.store.SearchProject(ctx, key, query, topK, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search project: %w", err)
	}

	matches := make([]CodeMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, CodeMatch{
			File:    r.Chunk.Metadata.Filename,
			Content: r.Chunk.Content,
			Score:   r.Score,
			Type:    string(r.Chunk.Metadata.ChunkType),
		})
	}
	return matches, nil
}

// RelevantContext は検索結果を人間可読のコンテキストブロックへ
// 連結する。類似度降順で並び、各ブロックはファイル名・チャンク種別・
// スコア(小数3桁)・本文先頭1000文字を含む。結果なしは空文字列
func (s *Service) RelevantContext(ctx context.Context, userID, projectID, query string, maxChunks int) (string, error) {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}

	key := project.NewKey(userID, projectID)
	results, err := s.store.SearchProject(ctx, key, query, maxChunks, nil)
	if err != nil {
		return "", fmt.Errorf("failed to search project: %w", err)
	}
	if len(results) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, r := range results {
		b.WriteString(formatContextBlock(r))
	}
	return b.String(), nil
}

// formatContextBlock は検索結果1件をコンテキストブロックへ整形する
func formatContextBlock(r vectorstore.SearchResult) string {
	content := r.Chunk.Content
	truncated := ""
	if len(content) > contextContentLimit {
		// マルチバイト文字の途中で切らないよう、境界までルーン先頭を遡る
		cut := contextContentLimit
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
		truncated = "..."
	}

	return fmt.Sprintf("File: %s\nType: %s\nRelevance Score: %.3f\n\nContent:\n%s%s\n---\n",
		r.Chunk.Metadata.Filename,
		r.Chunk.Metadata.ChunkType,
		r.Score,
		content,
		truncated,
	)
}

// ProjectSummary はインデックス済みプロジェクトの統計を返す。
// 下流のドキュメント生成などが不透明な構造として扱う
func (s *Service) ProjectSummary(ctx context.Context, userID, projectID string) (*project.Summary, error) {
	key := project.NewKey(userID, projectID)
	summary, err := s.store.Summarize(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize project: %w", err)
	}
	return summary, nil
}

// ClearProject はプロジェクトのインデックスを破棄する。冪等
func (s *Service) ClearProject(ctx context.Context, userID, projectID string) error {
	key := project.NewKey(userID, projectID)
	if err := s.store.ClearProject(ctx, key); err != nil {
		return fmt.Errorf("failed to clear project: %w", err)
	}
	return nil
}
