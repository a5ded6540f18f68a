package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"rpgm-intl/internal/parser"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	project    TEXT PRIMARY KEY,
	document   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps documents as JSONB rows in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate PostgreSQL: %w", err)
	}

	log.Info().Msg("Connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

// Pool exposes the connection pool for components sharing the database.
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.pool }

// Get loads the document stored under key. The bool is false when no row exists.
func (s *PostgresStore) Get(ctx context.Context, key string) (parser.Document, bool, error) {
	if key == "" {
		return nil, false, ErrInvalidKey
	}

	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT document FROM documents WHERE project = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query document: %w", err)
	}

	doc, err := decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode stored document: %w", err)
	}
	return doc, true, nil
}

// Put saves doc under key, replacing any previous version.
func (s *PostgresStore) Put(ctx context.Context, key string, doc parser.Document) error {
	if key == "" {
		return ErrInvalidKey
	}

	data, err := encode(doc)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (project, document, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (project) DO UPDATE
		SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`, key, string(data))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Delete removes the document stored under key. Missing keys are not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE project = $1`, key); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
