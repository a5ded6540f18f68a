package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"rpgm-intl/internal/parser"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps documents in a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	fresh bool
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	fresh := false
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		fresh = true
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, fresh: fresh}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Debug().Str("path", dbPath).Bool("fresh", fresh).Msg("Opened SQLite store")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		project TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	return err
}

// Fresh reports whether the database file did not exist before opening.
func (s *SQLiteStore) Fresh() bool { return s.fresh }

// Get loads the document stored under key. The bool is false when no row exists.
func (s *SQLiteStore) Get(ctx context.Context, key string) (parser.Document, bool, error) {
	if key == "" {
		return nil, false, ErrInvalidKey
	}

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM documents WHERE project = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query document: %w", err)
	}

	doc, err := decode([]byte(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode stored document: %w", err)
	}
	return doc, true, nil
}

// Put saves doc under key, replacing any previous version.
func (s *SQLiteStore) Put(ctx context.Context, key string, doc parser.Document) error {
	if key == "" {
		return ErrInvalidKey
	}

	data, err := encode(doc)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO documents (project, document, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(project) DO UPDATE SET
		document = excluded.document,
		updated_at = excluded.updated_at
	`, key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Delete removes the document stored under key. Missing keys are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE project = ?`, key); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Close SQLite store")
	}
}
