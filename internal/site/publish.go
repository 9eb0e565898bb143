package site

import (
	"strings"

	"github.com/starford/humble/internal/models"
)

// DefaultPublishMarker is the line that marks a page for publication.
const DefaultPublishMarker = "publish: true"

// IsPublishable reports whether some line of contents, trimmed of
// surrounding whitespace, equals one of markers.
func IsPublishable(contents string, markers []string) bool {
	for line := range strings.Lines(contents) {
		line = strings.TrimSpace(line)
		for _, m := range markers {
			if line == m {
				return true
			}
		}
	}
	return false
}

// FilterPublishable keeps the publishable pages, in input order.
func FilterPublishable(pages []*models.Page, markers []string) []*models.Page {
	out := make([]*models.Page, 0, len(pages))
	for _, p := range pages {
		if IsPublishable(p.Contents, markers) {
			out = append(out, p)
		}
	}
	return out
}
