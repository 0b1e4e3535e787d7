package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/project-rag/internal/infra/git/filter"
)

func TestURLToDirectoryName(t *testing.T) {
	client := NewClient("", "")

	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "SSH形式のURL",
			url:  "git@github.com:user/repo.git",
			want: "github.com/user/repo",
		},
		{
			name: "HTTPS形式のURL",
			url:  "https://github.com/user/repo.git",
			want: "github.com/user/repo",
		},
		{
			name: ".gitサフィックスなし",
			url:  "https://gitlab.example.com/group/project",
			want: "gitlab.example.com/group/project",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.URLToDirectoryName(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceName(t *testing.T) {
	provider := NewProvider(NewClient("", ""), t.TempDir(), "main")

	assert.Equal(t, "github.com/user/repo", provider.SourceName("git@github.com:user/repo.git"))
}

func TestIgnoreFilter(t *testing.T) {
	repoDir := t.TempDir()
	gitignore := "secret/\n# コメント行\n*.generated.go\n"
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, ".gitignore"), []byte(gitignore), 0o644))

	f, err := filter.NewIgnoreFilter(repoDir)
	require.NoError(t, err)

	t.Run(".gitignoreのパターンに一致するパスは除外される", func(t *testing.T) {
		assert.True(t, f.ShouldIgnore("secret/token.txt"))
		assert.True(t, f.ShouldIgnore("api.generated.go"))
	})

	t.Run("デフォルトパターンに一致するパスは除外される", func(t *testing.T) {
		assert.True(t, f.ShouldIgnore("node_modules/lodash/index.js"))
		assert.True(t, f.ShouldIgnore("logo.png"))
		assert.True(t, f.ShouldIgnore(".env"))
		assert.True(t, f.ShouldIgnore("cache/__pycache__/mod.pyc"))
	})

	t.Run("通常のソースファイルは除外されない", func(t *testing.T) {
		assert.False(t, f.ShouldIgnore("internal/core/service.go"))
		assert.False(t, f.ShouldIgnore("app.py"))
		assert.False(t, f.ShouldIgnore("README.md"))
	})
}

func TestIgnoreFilterWithoutGitignore(t *testing.T) {
	f, err := filter.NewIgnoreFilter(t.TempDir())
	require.NoError(t, err)

	assert.True(t, f.ShouldIgnore("vendor/pkg/mod.go"))
	assert.False(t, f.ShouldIgnore("main.go"))
}

func TestIsTextContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "通常のソースコード", content: "package main\n\nfunc main() {}\n", want: true},
		{name: "日本語を含むテキスト", content: "# 設計メモ\n検索インデックスの構成\n", want: true},
		{name: "NULバイトを含むバイナリ", content: "ELF\x00\x01\x02", want: false},
		{name: "不正なUTF-8シーケンス", content: string([]byte{0xff, 0xfe, 0x41}), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTextContent(tt.content))
		})
	}
}
