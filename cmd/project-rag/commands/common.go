package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/project-rag/internal/core/project"
	"github.com/jinford/project-rag/internal/platform/container"
	"github.com/jinford/project-rag/pkg/config"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.ServiceContainer
}

// NewAppContext は設定ファイルを読み込み AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	cont, err := container.NewContainer(ctx, cfg, container.WithContainerLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Container: cont,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// resolveKey はフラグからプロジェクトキーを決定する。
// --chat が指定された場合はチャット単位のプロジェクトIDを導出する
func resolveKey(cmd *cli.Command) project.Key {
	userID := cmd.String("user")
	if chatID := cmd.String("chat"); chatID != "" {
		return project.KeyForChat(userID, chatID)
	}
	return project.NewKey(userID, cmd.String("project"))
}
