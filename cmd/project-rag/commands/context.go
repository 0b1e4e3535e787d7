package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// ContextAction はクエリに関連するコンテキストブロックを生成するコマンドのアクション
func ContextAction(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("クエリを指定してください")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	key := resolveKey(cmd)
	relevant, err := appCtx.Container.RAGService.RelevantContext(ctx, key.UserID, key.ProjectID, query, cmd.Int("max-chunks"))
	if err != nil {
		return fmt.Errorf("コンテキスト生成に失敗: %w", err)
	}

	if relevant == "" {
		fmt.Println("関連するコンテキストはありませんでした")
		return nil
	}

	fmt.Print(relevant)
	return nil
}
