// Package frontmatter splits, edits and reassembles the metadata block at the
// top of a page. YAML (---) and TOML (+++) blocks are supported.
package frontmatter

import (
	"bytes"
	"errors"

	"github.com/starford/humble/internal/apperr"
)

// Format identifies the front matter syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// Delimiter returns the fence line of the format.
func (f Format) Delimiter() string {
	if f == FormatTOML {
		return "+++"
	}
	return "---"
}

// ErrMissingFrontMatter is returned when a page does not start with a
// front matter block.
var ErrMissingFrontMatter = apperr.ErrMissingFrontMatter

// ErrMissingClosingDelimiter indicates the page opened a front matter block
// but never closed it.
var ErrMissingClosingDelimiter = errors.New("front matter start delimiter found but closing delimiter is missing")

var utf8BOM = []byte("\xef\xbb\xbf")

// Style captures the newline convention so rewritten blocks match the page.
type Style struct {
	Newline string
}

// Block is a page split into its front matter and body.
type Block struct {
	Format Format
	Style  Style
	Prefix []byte // BOM and blank lines before the opening fence
	Raw    []byte // block contents without fences; ends with a newline when non-empty
	Body   []byte
}

// Split separates the front matter block from the body. The block must be
// the first thing in the content, after an optional BOM and blank lines.
func Split(content []byte) (Block, error) {
	style := detectStyle(content)
	nl := style.Newline

	i := 0
	if bytes.HasPrefix(content, utf8BOM) {
		i = len(utf8BOM)
	}
	for i < len(content) && (content[i] == '\n' || content[i] == '\r') {
		i++
	}
	b := Block{Style: style, Prefix: content[:i]}
	rest := content[i:]

	switch {
	case bytes.HasPrefix(rest, []byte(FormatYAML.Delimiter()+nl)):
		b.Format = FormatYAML
	case bytes.HasPrefix(rest, []byte(FormatTOML.Delimiter()+nl)):
		b.Format = FormatTOML
	default:
		return Block{}, ErrMissingFrontMatter
	}

	delim := b.Format.Delimiter()
	inner := rest[len(delim)+len(nl):]

	// Empty block: the closing fence follows immediately.
	if bytes.HasPrefix(inner, []byte(delim+nl)) {
		b.Raw = []byte{}
		b.Body = inner[len(delim)+len(nl):]
		return b, nil
	}
	if bytes.Equal(inner, []byte(delim)) {
		b.Raw = []byte{}
		b.Body = []byte{}
		return b, nil
	}

	closing := []byte(nl + delim + nl)
	if idx := bytes.Index(inner, closing); idx >= 0 {
		b.Raw = inner[:idx+len(nl)]
		b.Body = inner[idx+len(closing):]
		return b, nil
	}
	if bytes.HasSuffix(inner, []byte(nl+delim)) {
		b.Raw = inner[:len(inner)-len(delim)]
		b.Body = []byte{}
		return b, nil
	}
	return Block{}, ErrMissingClosingDelimiter
}

// Join reassembles a page from b with raw as the new block contents.
func Join(b Block, raw []byte) []byte {
	nl := b.Style.Newline
	if nl == "" {
		nl = "\n"
	}
	fence := []byte(b.Format.Delimiter() + nl)

	out := make([]byte, 0, len(b.Prefix)+2*len(fence)+len(raw)+len(b.Body))
	out = append(out, b.Prefix...)
	out = append(out, fence...)
	out = append(out, raw...)
	if len(raw) > 0 && !bytes.HasSuffix(raw, []byte("\n")) {
		out = append(out, nl...)
	}
	out = append(out, fence...)
	out = append(out, b.Body...)
	return out
}

func detectStyle(content []byte) Style {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return Style{Newline: "\r\n"}
	}
	return Style{Newline: "\n"}
}
