// Package parser extracts wikilinks from Markdown content.
package parser

import (
	"path"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/humble/internal/models"
)

// Patterns holds the expressions and extension sets shared by the parser,
// the link rewriter and the asset copier. Build it once with DefaultPatterns
// and pass it around; it is never mutated.
type Patterns struct {
	// Wikilink matches [[...]] with an optional leading '!' in group 1 and
	// the inner text in group 2.
	Wikilink *regexp.Regexp
	// Embed matches only image embeds, ![[...]], inner text in group 1.
	Embed *regexp.Regexp
	// ImageExts classifies a link target as an image. svg is not part of
	// this set, so [[diagram.svg]] is a text link.
	ImageExts map[string]struct{}
}

// DefaultPatterns returns the standard wikilink syntax.
func DefaultPatterns() Patterns {
	return Patterns{
		Wikilink: regexp.MustCompile(`(!)?\[\[(.*?)\]\]`),
		Embed:    regexp.MustCompile(`!\[\[(.*?)\]\]`),
		ImageExts: map[string]struct{}{
			"jpg":  {},
			"jpeg": {},
			"png":  {},
			"gif":  {},
		},
	}
}

// Parser turns raw page contents into WikiLink records.
type Parser struct {
	patterns Patterns
	md       goldmark.Markdown
}

// New creates a Parser using the given patterns.
func New(p Patterns) *Parser {
	return &Parser{patterns: p, md: goldmark.New()}
}

// Extract returns every wikilink in contents, in document order.
// Links inside fenced code blocks are ignored and references that do not
// parse into a target or an anchor are dropped.
func (p *Parser) Extract(contents string) []models.WikiLink {
	src := p.StripCodeBlocks(contents)
	matches := p.patterns.Wikilink.FindAllStringSubmatch(src, -1)
	out := make([]models.WikiLink, 0, len(matches))
	for _, m := range matches {
		if wl, ok := p.ParseLink(m[2]); ok {
			out = append(out, wl)
		}
	}
	return out
}

// ParseLink parses the inner text of a wikilink, e.g. "Page#Section|Label".
// ok is false when the text has neither a link target nor an anchor.
func (p *Parser) ParseLink(raw string) (models.WikiLink, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "[["), "]]")

	link, alias, hasAlias := strings.Cut(inner, "|")
	link = strings.TrimSpace(link)
	alias = strings.TrimSpace(alias)

	var anchor string
	if strings.HasPrefix(link, "#") {
		// Pure in-page anchor: [[#Section]].
		anchor = strings.TrimSpace(strings.TrimLeft(link, "#"))
		link = ""
	} else if target, frag, found := strings.Cut(link, "#"); found {
		link = strings.TrimSpace(target)
		anchor = strings.TrimSpace(frag)
	}

	if link == "" && anchor == "" {
		return models.WikiLink{}, false
	}

	name := link
	if hasAlias && alias != "" {
		name = alias
	}

	return models.WikiLink{
		Name:   name,
		Link:   link,
		Anchor: anchor,
		Type:   p.LinkType(link),
	}, true
}

// LinkType classifies a link target by its lowercase file extension.
func (p *Parser) LinkType(link string) models.LinkType {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(link), "."))
	if _, ok := p.patterns.ImageExts[ext]; ok {
		return models.LinkImage
	}
	return models.LinkText
}

// StripCodeBlocks blanks the contents of fenced code blocks with spaces,
// keeping newlines so byte offsets and line numbers are unchanged.
func (p *Parser) StripCodeBlocks(contents string) string {
	src := []byte(contents)
	root := p.md.Parser().Parse(text.NewReader(src))

	var out []byte
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if out == nil {
			out = make([]byte, len(src))
			copy(out, src)
		}
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			for j := seg.Start; j < seg.Stop && j < len(out); j++ {
				if out[j] != '\n' && out[j] != '\r' {
					out[j] = ' '
				}
			}
		}
		return ast.WalkSkipChildren, nil
	})

	if out == nil {
		return contents
	}
	return string(out)
}
