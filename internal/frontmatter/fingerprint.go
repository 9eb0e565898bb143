package frontmatter

import (
	"strings"

	"github.com/inful/mdfp"
)

// Fingerprint returns the content fingerprint of a page: the front matter
// block (without fences, trailing newline trimmed) and the body are hashed
// separately. Pages without front matter hash as body only.
func Fingerprint(content string) string {
	b, err := Split([]byte(content))
	if err != nil {
		return mdfp.CalculateFingerprintFromParts("", content)
	}
	fm := strings.TrimSuffix(strings.ReplaceAll(string(b.Raw), "\r\n", "\n"), "\n")
	return mdfp.CalculateFingerprintFromParts(fm, string(b.Body))
}
