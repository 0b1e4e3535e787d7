package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/project-rag/internal/core/project"
	"github.com/jinford/project-rag/internal/core/rag"
	"github.com/jinford/project-rag/internal/infra/git"
	"github.com/jinford/project-rag/internal/infra/localfs"
	"github.com/jinford/project-rag/internal/infra/openai"
	"github.com/jinford/project-rag/internal/infra/postgres"
	"github.com/jinford/project-rag/internal/platform/database"
	"github.com/jinford/project-rag/pkg/config"
)

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	RAGService  *rag.Service
	GitProvider *git.Provider

	logger   *slog.Logger
	database *database.Database
}

type containerOptions struct {
	logger     *slog.Logger
	embedder   project.Embedder
	repository project.IndexRepository
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder project.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerRepository は IndexRepository を差し替える
func WithContainerRepository(repo project.IndexRepository) ContainerOption {
	return func(opts *containerOptions) {
		opts.repository = repo
	}
}

// NewContainer は設定からコンテナを生成する
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		var err error
		embedder, err = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
		if err != nil {
			return nil, fmt.Errorf("Embedder 初期化に失敗しました: %w", err)
		}
	}

	// IndexRepository（設定されたバックエンドを使用）
	var db *database.Database
	repository := options.repository
	if repository == nil {
		switch cfg.Storage.Backend {
		case config.StorageBackendPostgres:
			var err error
			db, err = database.New(ctx, cfg.Database.DSN())
			if err != nil {
				return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
			}

			pgRepo := postgres.NewRepository(db.Pool)
			if err := pgRepo.EnsureSchema(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("スキーマ初期化に失敗しました: %w", err)
			}
			repository = pgRepo
		default:
			localRepo, err := localfs.NewRepository(cfg.Storage.BaseDir)
			if err != nil {
				return nil, fmt.Errorf("ローカルストレージ初期化に失敗しました: %w", err)
			}
			repository = localRepo
		}
	}

	// ProjectStore / RAGService
	store := project.NewStore(
		repository,
		embedder,
		project.WithStoreLogger(options.logger),
		project.WithMaxCachedIndexes(cfg.Storage.MaxCachedIndexes),
	)
	ragService := rag.NewService(store, rag.WithServiceLogger(options.logger))

	// Git Provider
	gitClient := git.NewClient(cfg.Git.SSHKeyPath, cfg.Git.SSHPassword)
	gitProvider := git.NewProvider(gitClient, cfg.Git.CloneDir, cfg.Git.DefaultBranch)

	return &ServiceContainer{
		RAGService:  ragService,
		GitProvider: gitProvider,
		logger:      options.logger,
		database:    db,
	}, nil
}

// Close はコンテナが保持するリソースを解放する
func (c *ServiceContainer) Close() {
	if c.database != nil {
		c.database.Close()
	}
}
