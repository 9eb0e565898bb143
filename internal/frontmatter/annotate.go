package frontmatter

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/starford/humble/internal/models"
)

// Front matter keys written by Annotate.
const (
	KeyBacklinks      = "backlinks"
	KeyBacklinksCount = "backlinks_count"
)

// Annotate writes the backlinks of a page into its front matter:
//
//	backlinks: ["Source A", "Source B"]
//	backlinks_count: [3, 1]
//
// Both keys become the first entries of the block (or are replaced where they
// already exist). A nil or empty refs writes two empty lists. Pages without a
// front matter block return ErrMissingFrontMatter.
func Annotate(content string, refs []models.Backlink) (string, error) {
	b, err := Split([]byte(content))
	if err != nil {
		return "", err
	}

	titles := make([]string, len(refs))
	counts := make([]int, len(refs))
	for i, r := range refs {
		titles[i] = r.Source
		counts[i] = r.Count
	}

	var raw []byte
	switch b.Format {
	case FormatTOML:
		raw, err = annotateTOML(b.Raw, titles, counts)
	default:
		raw, err = annotateYAML(b.Raw, titles, counts)
	}
	if err != nil {
		return "", err
	}
	if nl := b.Style.Newline; nl != "\n" {
		raw = bytes.ReplaceAll(raw, []byte("\n"), []byte(nl))
	}
	return string(Join(b, raw)), nil
}

func annotateYAML(raw []byte, titles []string, counts []int) ([]byte, error) {
	var doc yaml.Node
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("frontmatter: parse yaml: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc.Kind = yaml.DocumentNode
	}
	if len(doc.Content) == 0 {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("frontmatter: yaml block is not a mapping")
	}

	titleSeq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, t := range titles {
		titleSeq.Content = append(titleSeq.Content, &yaml.Node{
			Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: t,
		})
	}
	countSeq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, c := range counts {
		countSeq.Content = append(countSeq.Content, &yaml.Node{
			Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(c),
		})
	}

	upsertKey(mapping, 0, KeyBacklinks, titleSeq)
	upsertKey(mapping, 1, KeyBacklinksCount, countSeq)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("frontmatter: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("frontmatter: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// upsertKey replaces the value of key in mapping, or inserts the pair as
// entry number pos.
func upsertKey(mapping *yaml.Node, pos int, key string, val *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = val
			return
		}
	}
	at := min(pos*2, len(mapping.Content))
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	mapping.Content = slices.Insert(mapping.Content, at, keyNode, val)
}

// annotateTOML writes both keys as the first lines of the block, titles as
// basic (double-quoted) strings. The remaining keys are re-encoded by
// go-toml, which sorts them.
func annotateTOML(raw []byte, titles []string, counts []int) ([]byte, error) {
	fields := map[string]any{}
	if err := toml.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("frontmatter: parse toml: %w", err)
	}
	delete(fields, KeyBacklinks)
	delete(fields, KeyBacklinksCount)

	rest, err := toml.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: encode toml: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(KeyBacklinks + " = [")
	for i, t := range titles {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(tomlQuote(t))
	}
	buf.WriteString("]\n" + KeyBacklinksCount + " = [")
	for i, c := range counts {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(strconv.Itoa(c))
	}
	buf.WriteString("]\n")
	buf.Write(rest)
	return buf.Bytes(), nil
}

// tomlQuote returns s as a TOML basic string.
func tomlQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\f':
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
