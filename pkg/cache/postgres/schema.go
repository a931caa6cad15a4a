// Package postgres provides a cache.Cache shared by every evaluator replica,
// stored in a PostgreSQL table.
//
// Encoded values live in a BYTEA column. Embeddings are stored natively in a
// pgvector column through the cache.VectorCache methods, so cached answer
// vectors can also be inspected or indexed from SQL. The vector column has no
// fixed dimension: switching embedding models only changes the cache keys.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const ddl = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS speakeval_cache (
    key         TEXT         PRIMARY KEY,
    value       BYTEA,
    embedding   vector,
    expires_at  TIMESTAMPTZ,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_speakeval_cache_expires_at
    ON speakeval_cache (expires_at)
    WHERE expires_at IS NOT NULL;
`

// Migrate creates the pgvector extension and the cache table if they do not
// exist. It is idempotent.
func Migrate(ctx context.Context, conn *pgx.Conn) error {
	if _, err := conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres cache: migrate: %w", err)
	}
	return nil
}
