package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jinford/project-rag/internal/infra/git/filter"
)

// DefaultMaxFileSize はインデックス対象として読み込むファイルサイズの上限
const DefaultMaxFileSize = 512 * 1024

// Provider は Git リポジトリからインデックス対象ファイルを収集する
type Provider struct {
	client       *Client
	cloneBaseDir string
	defaultRef   string
	maxFileSize  int64
}

// ProviderOption は Provider の挙動を変更する
type ProviderOption func(*Provider)

// WithMaxFileSize は読み込むファイルサイズの上限を変更する
func WithMaxFileSize(size int64) ProviderOption {
	return func(p *Provider) {
		p.maxFileSize = size
	}
}

// NewProvider は新しい Provider を作成する
func NewProvider(client *Client, cloneBaseDir, defaultRef string, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:       client,
		cloneBaseDir: cloneBaseDir,
		defaultRef:   defaultRef,
		maxFileSize:  DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SourceName は Git URL からソース名を抽出する
// 例: git@github.com:user/repo.git -> github.com/user/repo
func (p *Provider) SourceName(url string) string {
	dirName, err := p.client.URLToDirectoryName(url)
	if err != nil {
		return strings.TrimSuffix(url, ".git")
	}
	return dirName
}

// FetchFiles はリポジトリをクローン/pull し、インデックス対象のファイル内容と
// チェックアウトしたコミットハッシュを返す
// 除外パターン・サイズ上限・バイナリ判定に該当するファイルはスキップする
func (p *Provider) FetchFiles(ctx context.Context, url, ref string) (map[string]string, string, error) {
	if ref == "" {
		ref = p.defaultRef
	}

	dirName, err := p.client.URLToDirectoryName(url)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate directory name from URL: %w", err)
	}

	repoPath := filepath.Join(p.cloneBaseDir, dirName)
	if err := p.client.CloneOrPull(ctx, url, repoPath, ref); err != nil {
		return nil, "", fmt.Errorf("failed to clone/pull repository: %w", err)
	}

	commitHash, err := p.client.CommitHash(repoPath, ref)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get commit hash: %w", err)
	}

	entries, err := p.client.ListFiles(repoPath, ref)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list files: %w", err)
	}

	ignoreFilter, err := filter.NewIgnoreFilter(repoPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create ignore filter: %w", err)
	}

	files := make(map[string]string)
	for _, entry := range entries {
		if ignoreFilter.ShouldIgnore(entry.Path) {
			continue
		}
		if entry.Size > p.maxFileSize {
			continue
		}

		content, err := p.client.ReadFile(repoPath, ref, entry.Path)
		if err != nil {
			// 読み込めないファイルはスキップ
			continue
		}
		if !isTextContent(content) {
			continue
		}

		files[entry.Path] = content
	}

	return files, commitHash, nil
}

// isTextContent は内容がテキストとして扱えるかを判定する
func isTextContent(content string) bool {
	if strings.ContainsRune(content, '\x00') {
		return false
	}
	return utf8.ValidString(content)
}
