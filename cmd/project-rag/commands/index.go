package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// IndexAction はファイルまたはGitリポジトリをインデックス化するコマンドのアクション
func IndexAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	key := resolveKey(cmd)
	gitURL := cmd.String("git")

	var files map[string]string
	switch {
	case gitURL != "":
		slog.Info("Gitリポジトリのインデックス処理を開始",
			"url", gitURL,
			"ref", cmd.String("ref"),
		)

		fetched, commitHash, err := appCtx.Container.GitProvider.FetchFiles(ctx, gitURL, cmd.String("ref"))
		if err != nil {
			return fmt.Errorf("リポジトリの取得に失敗: %w", err)
		}
		slog.Info("リポジトリを取得しました", "commit", commitHash, "files", len(fetched))

		// プロジェクト未指定の場合はリポジトリ名を使う
		if cmd.String("project") == "" && cmd.String("chat") == "" {
			key.ProjectID = appCtx.Container.GitProvider.SourceName(gitURL)
		}
		files = fetched

	case cmd.Args().Len() > 0:
		files = make(map[string]string, cmd.Args().Len())
		for _, path := range cmd.Args().Slice() {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
			}
			files[path] = string(content)
		}

	default:
		return fmt.Errorf("インデックス対象のファイルまたは --git を指定してください")
	}

	count, err := appCtx.Container.RAGService.IndexProjectFiles(ctx, files, key.UserID, key.ProjectID)
	if err != nil {
		return fmt.Errorf("インデックス化に失敗: %w", err)
	}

	fmt.Printf("プロジェクト %s に %d 件のチャンクを追加しました\n", key, count)
	return nil
}
