package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rpgm-intl/internal/parser"
	"rpgm-intl/internal/textutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS translation_memory (
	hash       TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	translated TEXT NOT NULL
)`

// TranslationMemory remembers translations of dialogue lines by their
// original text, in memory and optionally in PostgreSQL.
type TranslationMemory struct {
	pool   *pgxpool.Pool
	mu     sync.RWMutex
	memory map[string]string // hash → translated text
}

// NewTranslationMemory creates a memory backed by pool. A nil pool keeps
// everything in memory.
func NewTranslationMemory(pool *pgxpool.Pool) *TranslationMemory {
	return &TranslationMemory{
		pool:   pool,
		memory: make(map[string]string),
	}
}

// EnsureSchema creates the backing table.
func (m *TranslationMemory) EnsureSchema(ctx context.Context) error {
	if m.pool == nil {
		return nil
	}
	if _, err := m.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create translation memory table: %w", err)
	}
	return nil
}

// Get retrieves a remembered translation. Returns empty string and false if not found.
func (m *TranslationMemory) Get(ctx context.Context, sourceText string) (string, bool) {
	hash := textutil.Hash(sourceText)

	m.mu.RLock()
	if v, ok := m.memory[hash]; ok {
		m.mu.RUnlock()
		return v, true
	}
	m.mu.RUnlock()

	if m.pool == nil {
		return "", false
	}

	var translated string
	err := m.pool.QueryRow(ctx, `SELECT translated FROM translation_memory WHERE hash = $1`, hash).Scan(&translated)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Err(err).Str("text", textutil.Truncate(sourceText, 30)).Msg("Translation memory lookup failed")
		}
		return "", false
	}

	m.mu.Lock()
	m.memory[hash] = translated
	m.mu.Unlock()

	return translated, true
}

// Set stores a translation in memory and, when backed, in PostgreSQL.
func (m *TranslationMemory) Set(ctx context.Context, sourceText, translated string) error {
	hash := textutil.Hash(sourceText)

	m.mu.Lock()
	m.memory[hash] = translated
	m.mu.Unlock()

	if m.pool == nil {
		return nil
	}

	_, err := m.pool.Exec(ctx, `
		INSERT INTO translation_memory (hash, source, translated)
		VALUES ($1, $2, $3)
		ON CONFLICT (hash) DO UPDATE SET translated = EXCLUDED.translated
	`, hash, sourceText, translated)
	if err != nil {
		return fmt.Errorf("translation memory set: %w", err)
	}
	return nil
}

// Preload loads all remembered translations into memory.
func (m *TranslationMemory) Preload(ctx context.Context) error {
	if m.pool == nil {
		return nil
	}

	rows, err := m.pool.Query(ctx, `SELECT hash, translated FROM translation_memory`)
	if err != nil {
		return fmt.Errorf("preload translation memory: %w", err)
	}
	defer rows.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for rows.Next() {
		var hash, translated string
		if err := rows.Scan(&hash, &translated); err != nil {
			return fmt.Errorf("scan translation memory: %w", err)
		}
		m.memory[hash] = translated
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload translation memory: %w", err)
	}

	log.Info().Int("count", count).Msg("Preloaded translation memory")
	return nil
}

// Learn remembers every translated dialogue line of doc.
func (m *TranslationMemory) Learn(ctx context.Context, doc parser.Document) (int, error) {
	learned := 0
	for _, s := range doc {
		for _, c := range s.Characters {
			for _, l := range c.Lines {
				if !l.HasTranslation() {
					continue
				}
				if err := m.Set(ctx, l.Text, *l.Translation); err != nil {
					return learned, err
				}
				learned++
			}
		}
	}
	return learned, nil
}

// Apply fills untranslated dialogue lines of doc from memory and returns
// how many lines were filled.
func (m *TranslationMemory) Apply(ctx context.Context, doc parser.Document) int {
	applied := 0
	for si := range doc {
		for ci := range doc[si].Characters {
			lines := doc[si].Characters[ci].Lines
			for li := range lines {
				if lines[li].HasTranslation() {
					continue
				}
				if translated, ok := m.Get(ctx, lines[li].Text); ok {
					lines[li].SetTranslation(translated)
					applied++
				}
			}
		}
	}
	return applied
}
