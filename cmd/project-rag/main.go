package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/project-rag/cmd/project-rag/commands"
	"github.com/jinford/project-rag/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger.New(logger.DefaultConfig())

	app := &cli.Command{
		Name:  "project-rag",
		Usage: "プロジェクトファイルの意味検索インデックスを構築・検索するツール",
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "ファイルまたはGitリポジトリをインデックス化",
				ArgsUsage: "[ファイルパス...]",
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:  "git",
						Usage: "インデックス対象のGitリポジトリURL",
					},
					&cli.StringFlag{
						Name:  "ref",
						Usage: "チェックアウトするブランチ・タグ・コミット",
					},
				),
				Action: commands.IndexAction,
			},
			{
				Name:      "search",
				Usage:     "インデックスから類似コードを検索",
				ArgsUsage: "<クエリ>",
				Flags: append(commonFlags(),
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "取得する結果数",
						Value: 5,
					},
				),
				Action: commands.SearchAction,
			},
			{
				Name:      "context",
				Usage:     "クエリに関連するコンテキストブロックを生成",
				ArgsUsage: "<クエリ>",
				Flags: append(commonFlags(),
					&cli.IntFlag{
						Name:  "max-chunks",
						Usage: "コンテキストに含めるチャンク数の上限",
						Value: 3,
					},
				),
				Action: commands.ContextAction,
			},
			{
				Name:   "summary",
				Usage:  "インデックス済みプロジェクトのサマリを表示",
				Flags:  commonFlags(),
				Action: commands.SummaryAction,
			},
			{
				Name:   "clear",
				Usage:  "プロジェクトのインデックスを削除",
				Flags:  commonFlags(),
				Action: commands.ClearAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "env",
			Usage: "環境変数ファイルパス",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "user",
			Usage: "ユーザーID",
		},
		&cli.StringFlag{
			Name:  "project",
			Usage: "プロジェクトID",
		},
		&cli.StringFlag{
			Name:  "chat",
			Usage: "チャットID（チャット単位のプロジェクトを使う場合）",
		},
	}
}
