package content

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugTransformer decomposes accented characters and drops the combining
// marks, so "Héllo Wörld.md" becomes the slug "hello-world".
var slugTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Slugify normalizes a file stem into a URL-safe slug.
func Slugify(stem string) string {
	folded, _, err := transform.String(slugTransformer, stem)
	if err != nil {
		folded = stem
	}

	var b strings.Builder
	lastDash := true // suppress leading dashes
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
