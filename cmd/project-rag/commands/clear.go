package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// ClearAction はプロジェクトのインデックスを削除するコマンドのアクション
func ClearAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	key := resolveKey(cmd)
	if err := appCtx.Container.RAGService.ClearProject(ctx, key.UserID, key.ProjectID); err != nil {
		return fmt.Errorf("インデックス削除に失敗: %w", err)
	}

	fmt.Printf("プロジェクト %s のインデックスを削除しました\n", key)
	return nil
}
