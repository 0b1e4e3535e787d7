package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Database は PostgreSQL への接続プールを保持します
type Database struct {
	Pool *pgxpool.Pool
}

// New は接続プールを作成し、疎通確認まで行います
func New(ctx context.Context, dsn string) (*Database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{Pool: pool}, nil
}

// Close は接続プールを閉じます
func (d *Database) Close() {
	d.Pool.Close()
}
