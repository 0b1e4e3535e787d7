package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/jinford/project-rag/internal/core/project"
)

// SummaryAction はインデックス済みプロジェクトのサマリを表示するコマンドのアクション
func SummaryAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	key := resolveKey(cmd)
	summary, err := appCtx.Container.RAGService.ProjectSummary(ctx, key.UserID, key.ProjectID)
	if err != nil {
		if errors.Is(err, project.ErrNotIndexed) {
			fmt.Printf("プロジェクト %s はまだインデックス化されていません\n", key)
			return nil
		}
		return fmt.Errorf("サマリ取得に失敗: %w", err)
	}

	fmt.Printf("プロジェクト: %s\n", key)
	fmt.Printf("ファイル数: %d\n", summary.TotalFiles)
	fmt.Printf("チャンク数: %d\n", summary.TotalChunks)
	fmt.Printf("総行数: %d\n", summary.TotalLines)
	if !summary.IndexedAt.IsZero() {
		fmt.Printf("最終インデックス日時: %s\n", summary.IndexedAt.Format("2006-01-02 15:04:05"))
	}

	if len(summary.FileTypes) > 0 {
		fmt.Println("チャンク種別:")
		types := make([]string, 0, len(summary.FileTypes))
		for t := range summary.FileTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Printf("  %s: %d\n", t, summary.FileTypes[t])
		}
	}

	if len(summary.Files) > 0 {
		fmt.Println("ファイル:")
		for _, f := range summary.Files {
			fmt.Printf("  %s\n", f)
		}
	}

	return nil
}
