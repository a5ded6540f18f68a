// Package store persists the working document under a fixed project key.
package store

import (
	"context"
	"errors"
	"fmt"

	"rpgm-intl/internal/config"
	"rpgm-intl/internal/parser"
)

// ErrInvalidKey is returned for an empty project key.
var ErrInvalidKey = errors.New("project key is required")

// Store is a key-value store of documents.
type Store interface {
	// Get returns the document stored under key; ok is false if none exists.
	Get(ctx context.Context, key string) (doc parser.Document, ok bool, err error)
	// Put stores doc under key, replacing any previous document.
	Put(ctx context.Context, key string, doc parser.Document) error
	// Delete removes the document stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close()
}

// Open returns the store selected by cfg.StoreDriver. fresh is true when
// the backing storage was created by this call.
func Open(ctx context.Context, cfg *config.Config) (Store, bool, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, false, err
		}
		return pg, false, nil
	case "sqlite", "":
		sq, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, false, err
		}
		return sq, sq.Fresh(), nil
	default:
		return nil, false, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// encode and decode use the draft format so stored documents can be
// exported and reloaded unchanged.
func encode(doc parser.Document) ([]byte, error) {
	return parser.EncodeDraft(doc)
}

func decode(data []byte) (parser.Document, error) {
	return parser.LoadDraft(data)
}
