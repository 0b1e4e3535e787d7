package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/project-rag/internal/core/chunk"
	"github.com/jinford/project-rag/internal/core/project"
	"github.com/jinford/project-rag/internal/core/vectorstore"
)

// Repository は project.IndexRepository インターフェースを実装する
// pgvector バックエンドのリポジトリです
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository は新しい Repository を作成します
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// コンパイル時の型チェック
var _ project.IndexRepository = (*Repository)(nil)

// EnsureSchema は必要な拡張とテーブルを作成します
func (r *Repository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS project_indexes (
			user_id     TEXT NOT NULL,
			project_id  TEXT NOT NULL,
			manifest_id UUID NOT NULL,
			dimension   INTEGER NOT NULL,
			chunk_count INTEGER NOT NULL,
			saved_at    TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, project_id)
		)`,
		`CREATE TABLE IF NOT EXISTS project_chunks (
			user_id    TEXT NOT NULL,
			project_id TEXT NOT NULL,
			ordinal    INTEGER NOT NULL,
			chunk      JSONB NOT NULL,
			embedding  vector NOT NULL,
			PRIMARY KEY (user_id, project_id, ordinal),
			FOREIGN KEY (user_id, project_id)
				REFERENCES project_indexes (user_id, project_id) ON DELETE CASCADE
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return nil
}

// Load はキーに対応するインデックスを復元します。
// 永続化されていない場合は project.ErrIndexNotFound を返します
func (r *Repository) Load(ctx context.Context, key project.Key) (*vectorstore.Index, error) {
	var (
		dimension  int
		chunkCount int
	)
	err := r.pool.QueryRow(ctx,
		`SELECT dimension, chunk_count FROM project_indexes WHERE user_id = $1 AND project_id = $2`,
		key.UserID, key.ProjectID,
	).Scan(&dimension, &chunkCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, project.ErrIndexNotFound
		}
		return nil, fmt.Errorf("failed to load index manifest: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT chunk, embedding FROM project_chunks
		 WHERE user_id = $1 AND project_id = $2 ORDER BY ordinal`,
		key.UserID, key.ProjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer rows.Close()

	var embedded []vectorstore.EmbeddedChunk
	for rows.Next() {
		var (
			chunkJSON []byte
			vec       pgvector.Vector
		)
		if err := rows.Scan(&chunkJSON, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}

		var c chunk.Chunk
		if err := json.Unmarshal(chunkJSON, &c); err != nil {
			return nil, fmt.Errorf("%w: invalid chunk payload: %v", vectorstore.ErrCorruptIndex, err)
		}

		embedded = append(embedded, vectorstore.EmbeddedChunk{
			Chunk:     &c,
			Embedding: vec.Slice(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunk rows: %w", err)
	}

	if len(embedded) != chunkCount {
		return nil, fmt.Errorf("%w: manifest count %d does not match stored chunks %d",
			vectorstore.ErrCorruptIndex, chunkCount, len(embedded))
	}

	index := vectorstore.NewIndex(dimension)
	if err := index.Add(embedded); err != nil {
		return nil, fmt.Errorf("%w: %v", vectorstore.ErrCorruptIndex, err)
	}

	return index, nil
}

// Save はインデックスを永続化します。同一キーの以前のスナップショットは置き換えられます
func (r *Repository) Save(ctx context.Context, key project.Key, index *vectorstore.Index) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM project_indexes WHERE user_id = $1 AND project_id = $2`,
		key.UserID, key.ProjectID,
	); err != nil {
		return fmt.Errorf("failed to delete previous snapshot: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO project_indexes (user_id, project_id, manifest_id, dimension, chunk_count, saved_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.UserID, key.ProjectID, uuid.New(), index.Dimension(), index.Len(), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert index manifest: %w", err)
	}

	batch := &pgx.Batch{}
	for i, c := range index.Chunks() {
		chunkJSON, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk: %w", err)
		}
		batch.Queue(
			`INSERT INTO project_chunks (user_id, project_id, ordinal, chunk, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			key.UserID, key.ProjectID, i, chunkJSON, pgvector.NewVector(index.Vector(i)),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range index.Chunks() {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete はキーの永続化スナップショットを削除します。冪等です
func (r *Repository) Delete(ctx context.Context, key project.Key) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM project_indexes WHERE user_id = $1 AND project_id = $2`,
		key.UserID, key.ProjectID,
	); err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	return nil
}
