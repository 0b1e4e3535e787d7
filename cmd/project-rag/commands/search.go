package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// SearchAction はインデックスから類似コードを検索するコマンドのアクション
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("検索クエリを指定してください")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	key := resolveKey(cmd)
	matches, err := appCtx.Container.RAGService.SearchSimilarCode(ctx, query, cmd.Int("top-k"), key.UserID, key.ProjectID)
	if err != nil {
		return fmt.Errorf("検索に失敗: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("一致する結果はありませんでした")
		return nil
	}

	for i, m := range matches {
		fmt.Printf("%d. %s (%s, score=%.3f)\n", i+1, m.File, m.Type, m.Score)
		fmt.Println(m.Content)
		fmt.Println("---")
	}

	return nil
}
