package filter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFilter は .gitignore のパターンマッチングによるファイル除外を提供します
type IgnoreFilter struct {
	patterns *gitignore.GitIgnore
}

// NewIgnoreFilter は新しい IgnoreFilter を作成します
// repoPath 配下の .gitignore とデフォルトの除外パターンを読み込みます
func NewIgnoreFilter(repoPath string) (*IgnoreFilter, error) {
	var patterns []string

	gitignorePath := filepath.Join(repoPath, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		loaded, err := readIgnoreFile(gitignorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read .gitignore: %w", err)
		}
		patterns = append(patterns, loaded...)
	}

	patterns = append(patterns, defaultIgnorePatterns()...)

	return &IgnoreFilter{
		patterns: gitignore.CompileIgnoreLines(patterns...),
	}, nil
}

// ShouldIgnore はパスが除外対象かどうかを判定します
func (f *IgnoreFilter) ShouldIgnore(path string) bool {
	if f.patterns == nil {
		return false
	}
	return f.patterns.MatchesPath(path)
}

// readIgnoreFile は ignore ファイルを読み込んでパターンのスライスを返します
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}

	return patterns, nil
}

// defaultIgnorePatterns は常に適用する除外パターンを返します
func defaultIgnorePatterns() []string {
	return []string{
		// Git関連
		".git",
		".gitignore",
		".gitattributes",
		".gitmodules",

		// 依存関係・ビルド成果物
		"node_modules",
		"vendor",
		"dist",
		"build",
		"target",
		"bin",

		// IDE/エディタ関連
		".vscode",
		".idea",
		".DS_Store",
		"*.swp",

		// ログ・一時ファイル
		"*.log",
		"*.tmp",
		"tmp",

		// 環境変数・機密情報
		".env",
		".env.local",
		"*.pem",
		"*.key",

		// バイナリ
		"*.exe",
		"*.dll",
		"*.so",
		"*.dylib",
		"*.a",
		"*.o",
		"*.jar",
		"*.zip",
		"*.tar",
		"*.gz",

		// 画像・メディア
		"*.png",
		"*.jpg",
		"*.jpeg",
		"*.gif",
		"*.ico",
		"*.svg",
		"*.mp4",
		"*.mp3",

		// フォント
		"*.ttf",
		"*.woff",
		"*.woff2",

		// データベース
		"*.db",
		"*.sqlite",
		"*.sqlite3",

		// キャッシュ
		".cache",
		"__pycache__",
		"*.pyc",
		".pytest_cache",
	}
}
