package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rpgm-intl/internal/config"
	"rpgm-intl/internal/filewalker"
	"rpgm-intl/internal/parser"
	"rpgm-intl/internal/status"
	"rpgm-intl/internal/store"

	"github.com/rs/zerolog/log"
)

// shell wires the parser and compiler to files, the store and status reporting.
type shell struct {
	cfg    *config.Config
	status status.Reporter
	walker *filewalker.Walker
	store  store.Store
}

func newShell(cfg *config.Config) *shell {
	return &shell{
		cfg:    cfg,
		status: status.NewLogReporter(cfg.StatusReset),
		walker: filewalker.NewWalker(),
	}
}

// openStore opens the configured store once.
func (sh *shell) openStore(ctx context.Context) error {
	if sh.store != nil {
		return nil
	}

	s, fresh, err := store.Open(ctx, sh.cfg)
	if err != nil {
		sh.status.Set(status.Error)
		return fmt.Errorf("open store: %w", err)
	}
	if fresh {
		sh.status.Set(status.FirstRun)
	}
	sh.store = s
	return nil
}

func (sh *shell) close() {
	if sh.store != nil {
		sh.store.Close()
		sh.store = nil
	}
}

// document loads the document at path, or the stored project when path is empty.
func (sh *shell) document(ctx context.Context, path string) (parser.Document, error) {
	sh.status.Set(status.Loading)

	if path != "" {
		doc, err := sh.walker.Load(path)
		if err != nil {
			sh.status.Set(status.Error)
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		return doc, nil
	}

	if err := sh.openStore(ctx); err != nil {
		return nil, err
	}
	doc, ok, err := sh.store.Get(ctx, sh.cfg.ProjectKey)
	if err != nil {
		sh.status.Set(status.Error)
		return nil, fmt.Errorf("get project %s: %w", sh.cfg.ProjectKey, err)
	}
	if !ok {
		sh.status.Set(status.Error)
		return nil, fmt.Errorf("no stored project %q, run load first", sh.cfg.ProjectKey)
	}

	log.Debug().Str("project", sh.cfg.ProjectKey).Int("sections", len(doc)).Msg("Loaded stored project")
	return doc, nil
}

// putDocument stores doc under the project key.
func (sh *shell) putDocument(ctx context.Context, doc parser.Document) error {
	if err := sh.openStore(ctx); err != nil {
		return err
	}

	sh.status.Set(status.Saving)
	if err := sh.store.Put(ctx, sh.cfg.ProjectKey, doc); err != nil {
		sh.status.Set(status.Error)
		return fmt.Errorf("put project %s: %w", sh.cfg.ProjectKey, err)
	}
	sh.status.Set(status.Saved)

	log.Info().Str("project", sh.cfg.ProjectKey).Int("sections", len(doc)).Msg("Project stored")
	return nil
}

// writeDraft writes doc as a draft file.
func (sh *shell) writeDraft(doc parser.Document, output string) error {
	sh.status.Set(status.SavingDraft)

	data, err := parser.EncodeDraft(doc)
	if err != nil {
		sh.status.Set(status.Error)
		return err
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			sh.status.Set(status.Error)
			return fmt.Errorf("create draft directory: %w", err)
		}
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		sh.status.Set(status.Error)
		return fmt.Errorf("write draft: %w", err)
	}

	sh.status.Set(status.Saved)
	return nil
}

// saveResult writes a modified document back where it came from: the
// store when it was loaded from there, otherwise a draft file. Raw
// scripts are never overwritten.
func (sh *shell) saveResult(ctx context.Context, doc parser.Document, path, output string) error {
	switch {
	case output != "":
		return sh.writeDraft(doc, output)
	case path == "":
		return sh.putDocument(ctx, doc)
	case strings.EqualFold(filepath.Ext(path), ".json"):
		return sh.writeDraft(doc, path)
	default:
		return fmt.Errorf("refusing to overwrite script %s, pass --output", path)
	}
}
