package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/speakeval/pkg/cache"
)

var (
	_ cache.Cache       = (*Store)(nil)
	_ cache.VectorCache = (*Store)(nil)
)

// Store is a PostgreSQL-backed cache. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore migrates the schema at dsn, opens a connection pool with pgvector
// types registered on every connection, and verifies connectivity.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	// The extension must exist before pgvector types can be registered, so
	// the schema is migrated on a standalone connection first.
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres cache: connect: %w", err)
	}
	err = Migrate(ctx, conn)
	_ = conn.Close(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres cache: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres cache: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres cache: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get implements cache.Cache.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM speakeval_cache
		WHERE key = $1 AND value IS NOT NULL
		  AND (expires_at IS NULL OR expires_at > now())`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres cache: get: %w", err)
	}
	return value, true, nil
}

// Set implements cache.Cache. It replaces any embedding stored under key.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO speakeval_cache (key, value, embedding, expires_at, updated_at)
		VALUES ($1, $2, NULL, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, embedding = NULL,
		    expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, value, expiresAt(ttl))
	if err != nil {
		return fmt.Errorf("postgres cache: set: %w", err)
	}
	return nil
}

// Delete implements cache.Cache.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM speakeval_cache WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres cache: delete: %w", err)
	}
	return nil
}

// Exists implements cache.Cache.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
		    SELECT 1 FROM speakeval_cache
		    WHERE key = $1 AND (expires_at IS NULL OR expires_at > now()))`, key).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("postgres cache: exists: %w", err)
	}
	return ok, nil
}

// GetVector implements cache.VectorCache.
func (s *Store) GetVector(ctx context.Context, key string) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx, `
		SELECT embedding FROM speakeval_cache
		WHERE key = $1 AND embedding IS NOT NULL
		  AND (expires_at IS NULL OR expires_at > now())`, key).Scan(&vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres cache: get vector: %w", err)
	}
	return vec.Slice(), true, nil
}

// SetVector implements cache.VectorCache. It replaces any encoded value
// stored under key.
func (s *Store) SetVector(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO speakeval_cache (key, value, embedding, expires_at, updated_at)
		VALUES ($1, NULL, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = NULL, embedding = EXCLUDED.embedding,
		    expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, pgvector.NewVector(vec), expiresAt(ttl))
	if err != nil {
		return fmt.Errorf("postgres cache: set vector: %w", err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM speakeval_cache WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("postgres cache: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RunPurger calls Purge every interval until ctx is cancelled. Errors are
// passed to onErr when it is non-nil.
func (s *Store) RunPurger(ctx context.Context, interval time.Duration, onErr func(error)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Purge(ctx); err != nil && onErr != nil && ctx.Err() == nil {
				onErr(err)
			}
		}
	}
}

func expiresAt(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl)
	return &t
}
