package mcpserver

// NoteFormatContract describes the Markdown note format the site build
// understands. LLM consumers should follow it when writing notes meant to
// be published.
const NoteFormatContract = `# humble Note Format

Notes live under the source directory as Markdown files. Only notes that
opt in are published.

## Structure

` + "```" + `markdown
---
publish: true                       # REQUIRED to publish, on a line of its own
title: Optional display title       # OPTIONAL – the page title is the file name
---

Body text in standard Markdown.

Link to other notes with [[Other Note]].
Use [[Other Note|alias]] for display text that differs from the target.
Use [[Other Note#Heading]] to link to a section.
Embed images with ![[diagram.png]] or ![[diagram.png|alt text]].
` + "```" + `

## Rules

1. **Publishing is opt-in.** A note is published only if one of its lines,
   trimmed, is exactly ` + "`" + `publish: true` + "`" + `.
2. **Front matter is required.** Published notes start with a YAML (` + "`" + `---` + "`" + `)
   or TOML (` + "`" + `+++` + "`" + `) block. The build adds ` + "`" + `backlinks` + "`" + ` and
   ` + "`" + `backlinks_count` + "`" + ` keys to it; do not maintain them by hand.
3. **Page titles** are file names without ` + "`" + `.md` + "`" + `. Titles must be unique among
   published notes, regardless of folder.
4. **Wikilink targets** are page titles, not paths. Links inside code blocks
   are not counted as backlinks.
5. **The page titled ` + "`" + `Index` + "`" + `** becomes the site home page. Every other
   page is written to ` + "`" + `posts/<title>.md` + "`" + `.
6. **Images** (png, jpg, gif, svg) are looked up by file name anywhere under
   the assets directory and copied next to the site. A missing image is
   reported but does not fail the build.
7. **Encoding** is UTF-8.

## Example

` + "```" + `markdown
---
publish: true
tags:
  - meeting-notes
---

# Weekly standup

![[whiteboard.jpg|Whiteboard photo]]

- Review the [[Design Doc]]
- Update [[Roadmap#Q3|the roadmap]]
` + "```" + `
`
