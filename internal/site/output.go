package site

import (
	"fmt"

	"github.com/starford/humble/internal/apperr"
	"github.com/starford/humble/internal/models"
)

// IndexTitle is the page rendered as the section index.
const IndexTitle = "Index"

// OutputPath returns where a page is written, relative to the destination.
func OutputPath(title string) string {
	if title == IndexTitle {
		return "_index.md"
	}
	return "posts/" + title + ".md"
}

// checkDuplicateTitles fails when two pages share a title: they would be
// written to the same output file.
func checkDuplicateTitles(pages []*models.Page) error {
	seen := make(map[string]string, len(pages))
	for _, p := range pages {
		if prev, ok := seen[p.Title]; ok {
			return fmt.Errorf("site: %w: %q (%s, %s)", apperr.ErrDuplicateTitle, p.Title, prev, p.Path)
		}
		seen[p.Title] = p.Path
	}
	return nil
}
