package post

import (
	"strings"
	"unicode"
)

const slugSeparator = '-'

// Slugify lower-cases title and collapses every run of non letter/digit
// characters into a single separator. Separators never lead or trail.
func Slugify(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	pending := false
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteRune(slugSeparator)
			}
			pending = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pending = true
	}
	return b.String()
}
