package filewalker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rpgm-intl/internal/parser"

	"github.com/rs/zerolog/log"
)

// Loader turns one kind of input file into a document.
type Loader interface {
	// CanLoad returns true if this loader handles the given file extension.
	CanLoad(ext string) bool
	// Load reads and parses the file at path.
	Load(path string) (parser.Document, error)
}

// ScriptLoader parses raw dialogue scripts (.txt).
type ScriptLoader struct{}

func (ScriptLoader) CanLoad(ext string) bool { return ext == ".txt" }

func (ScriptLoader) Load(path string) (parser.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return parser.ParseScript(string(data))
}

// DraftLoader reads previously saved drafts (.json).
type DraftLoader struct{}

func (DraftLoader) CanLoad(ext string) bool { return ext == ".json" }

func (DraftLoader) Load(path string) (parser.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	return parser.LoadDraft(data)
}

// Walker picks the loader for a file by its name and discovers loadable
// files in directories.
type Walker struct {
	loaders []Loader
}

// NewWalker creates a Walker with the script and draft loaders.
func NewWalker() *Walker {
	return &Walker{
		loaders: []Loader{
			ScriptLoader{},
			DraftLoader{},
		},
	}
}

// FileEntry represents a discovered file ready for processing.
type FileEntry struct {
	Path   string
	Ext    string
	Loader Loader
}

// Entry returns the FileEntry for path, or an error if no loader handles it.
func (w *Walker) Entry(path string) (FileEntry, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, l := range w.loaders {
		if l.CanLoad(ext) {
			return FileEntry{Path: path, Ext: ext, Loader: l}, nil
		}
	}
	return FileEntry{}, fmt.Errorf("unsupported file type %q: %s", ext, path)
}

// Load reads the document at path with the matching loader.
func (w *Walker) Load(path string) (parser.Document, error) {
	entry, err := w.Entry(path)
	if err != nil {
		return nil, err
	}
	return entry.Loader.Load(entry.Path)
}

// Walk discovers all loadable files under the given root directory.
func (w *Walker) Walk(root string) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	var entries []FileEntry

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}
		if d.IsDir() {
			return nil
		}

		entry, err := w.Entry(path)
		if err != nil {
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	log.Info().Int("count", len(entries)).Str("root", root).Msg("Discovered files")
	return entries, nil
}
