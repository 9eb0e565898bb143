// Package loader reads source documents into Pages.
package loader

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/humble/internal/models"
	"github.com/starford/humble/internal/parser"
	"github.com/starford/humble/internal/storage"
)

// DefaultPattern selects Markdown files.
const DefaultPattern = "*.md"

// Loader builds Pages from files in a source tree.
type Loader struct {
	store  storage.Provider
	parser *parser.Parser
}

// New creates a Loader reading from store.
func New(store storage.Provider, p *parser.Parser) *Loader {
	return &Loader{store: store, parser: p}
}

// Load reads the file at rel (relative to the source root) and extracts its
// wikilinks. A read failure is returned unchanged to the caller.
func (l *Loader) Load(rel string) (*models.Page, error) {
	data, err := l.store.Read(rel)
	if err != nil {
		return nil, err
	}
	contents := string(data)
	return &models.Page{
		Title:     TitleFromPath(rel),
		Path:      filepath.Join(l.store.Root(), filepath.FromSlash(rel)),
		Contents:  contents,
		Wikilinks: l.parser.Extract(contents),
	}, nil
}

// LoadAll loads every file under the source root whose base name matches
// pattern. Pages come back in lexical path order.
func (l *Loader) LoadAll(pattern string) ([]*models.Page, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("loader: bad pattern %q: %w", pattern, err)
	}

	files, err := l.store.List("", storage.Glob(pattern))
	if err != nil {
		return nil, err
	}
	pages := make([]*models.Page, 0, len(files))
	for _, f := range files {
		p, err := l.Load(f.Path)
		if err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// TitleFromPath returns the base name of p without its extension.
func TitleFromPath(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
