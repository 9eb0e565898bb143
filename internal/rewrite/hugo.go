// Package rewrite converts wikilinks into Hugo shortcodes.
package rewrite

import (
	"fmt"
	"strings"

	"github.com/starford/humble/internal/parser"
)

// Hugo rewrites every wikilink in contents in a single pass:
//
//	![[pic.png]]      -> {{< figure src="/assets/pic.png" alt="pic.png" >}}
//	![[pic.png|Cap]]  -> {{< figure src="/assets/pic.png" alt="Cap" >}}
//	[[Page|Label]]    -> [Label]({{< ref "Page" >}})
//	[[Page]]          -> [Page]({{< ref "Page" >}})
//
// Text outside wikilinks is left byte-for-byte unchanged.
func Hugo(contents string, p parser.Patterns) string {
	return p.Wikilink.ReplaceAllStringFunc(contents, func(match string) string {
		sub := p.Wikilink.FindStringSubmatch(match)
		if len(sub) < 3 {
			return match
		}
		inner := sub[2]

		if sub[1] == "!" {
			return figure(inner)
		}
		if link, name, ok := strings.Cut(inner, "|"); ok {
			return ref(name, link)
		}
		return ref(inner, inner)
	})
}

func figure(inner string) string {
	src, alt := inner, inner
	if link, caption, ok := strings.Cut(inner, "|"); ok {
		src, alt = link, caption
	}
	return fmt.Sprintf(`{{< figure src="/assets/%s" alt="%s" >}}`, src, alt)
}

func ref(name, link string) string {
	return fmt.Sprintf(`[%s]({{< ref "%s" >}})`, name, link)
}
