// Package backlinks builds the reverse link index of a page set.
package backlinks

import (
	"slices"

	"github.com/starford/humble/internal/models"
)

// Index maps a target page title to the pages linking to it.
// It is read-only once Build returns and safe for concurrent readers.
type Index struct {
	entries map[string][]models.Backlink
}

// Build scans the text wikilinks of every page and counts, per target title,
// how often each source page links to it. Image links and pure anchors are
// ignored. Referrers are kept in the order they are first seen.
func Build(pages []*models.Page) *Index {
	idx := &Index{entries: make(map[string][]models.Backlink)}
	for _, page := range pages {
		for _, link := range page.Wikilinks {
			if link.Type != models.LinkText || link.Link == "" {
				continue
			}
			idx.add(link.Link, page.Title)
		}
	}
	return idx
}

func (idx *Index) add(target, source string) {
	refs := idx.entries[target]
	for i := range refs {
		if refs[i].Source == source {
			refs[i].Count++
			return
		}
	}
	idx.entries[target] = append(refs, models.Backlink{Source: source, Count: 1})
}

// Lookup returns a copy of the backlinks recorded for title.
func (idx *Index) Lookup(title string) ([]models.Backlink, bool) {
	refs, ok := idx.entries[title]
	if !ok {
		return nil, false
	}
	return slices.Clone(refs), true
}

// Targets returns every linked title, sorted.
func (idx *Index) Targets() []string {
	out := make([]string, 0, len(idx.entries))
	for t := range idx.entries {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of distinct targets.
func (idx *Index) Len() int {
	return len(idx.entries)
}
