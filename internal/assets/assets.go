// Package assets locates image files and copies the ones pages embed.
package assets

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/starford/humble/internal/models"
	"github.com/starford/humble/internal/storage"
)

// Extensions lists the file types collected from the asset tree. It differs
// from the wikilink image set: svg files are copied but [[x.svg]] is a text
// link.
var Extensions = []string{"png", "jpg", "gif", "svg"}

// ImageMap maps an image base name to the file it was found at.
// Base names are case sensitive. When two files share a base name the one
// listed last wins.
type ImageMap map[string]models.FileMeta

// Resolve walks the asset store and records every image file.
func Resolve(store storage.Provider) (ImageMap, error) {
	files, err := store.List("", storage.Extensions(Extensions...))
	if err != nil {
		return nil, fmt.Errorf("assets: resolve: %w", err)
	}
	m := make(ImageMap, len(files))
	for _, f := range files {
		m[path.Base(f.Path)] = f
	}
	return m, nil
}

// EmbeddedImages returns the targets of every ![[...]] embed in contents,
// with any |alias removed.
func EmbeddedImages(contents string, embed *regexp.Regexp) []string {
	matches := embed.FindAllStringSubmatch(contents, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		link, _, _ := strings.Cut(m[1], "|")
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		out = append(out, link)
	}
	return out
}

// CopyResult summarizes the embeds of one page.
type CopyResult struct {
	Copied     []string // destination paths, relative to the asset destination
	Unresolved []string // embeds with no matching file
	Skipped    []string // embeds whose destination would leave the asset destination
}

// Copier copies embedded images from the asset source to the asset
// destination, keeping the path written in the embed. A Copier serves one
// build: each embed target is handled once, whichever page embeds it first.
type Copier struct {
	seen   map[string]struct{}
	images ImageMap
	src    storage.Provider
	dest   storage.Provider
	embed  *regexp.Regexp
	logger *slog.Logger
}

// NewCopier creates a Copier. embed must capture the embed target in group 1.
func NewCopier(images ImageMap, src, dest storage.Provider, embed *regexp.Regexp, logger *slog.Logger) *Copier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Copier{
		seen:   make(map[string]struct{}),
		images: images,
		src:    src,
		dest:   dest,
		embed:  embed,
		logger: logger,
	}
}

// CopyReferenced copies every image embedded in page that no earlier call
// has handled. Unresolved embeds are skipped. Read and write failures abort
// with an error.
func (c *Copier) CopyReferenced(page *models.Page) (CopyResult, error) {
	var res CopyResult

	for _, link := range EmbeddedImages(page.Contents, c.embed) {
		if _, dup := c.seen[link]; dup {
			continue
		}
		c.seen[link] = struct{}{}

		img, ok := c.images[path.Base(link)]
		if !ok {
			c.logger.Debug("image not found", "page", page.Title, "image", link)
			res.Unresolved = append(res.Unresolved, link)
			continue
		}

		data, err := c.src.Read(img.Path)
		if err != nil {
			return res, fmt.Errorf("assets: copy %s: %w", link, err)
		}
		if err := c.dest.Write(link, data); err != nil {
			if errors.Is(err, storage.ErrPathEscapes) {
				c.logger.Warn("image destination outside assets directory", "page", page.Title, "image", link)
				res.Skipped = append(res.Skipped, link)
				continue
			}
			return res, fmt.Errorf("assets: copy %s: %w", link, err)
		}
		c.logger.Debug("image copied", "page", page.Title, "image", link, "from", img.Path)
		res.Copied = append(res.Copied, link)
	}
	return res, nil
}
