package pipeline

import (
	"strings"
	"unicode"
)

// maxSlugLen bounds canonical slugs so they stay usable as URL segments and
// index keys.
const maxSlugLen = 100

// Slugify normalizes question text into the canonical cross-venue join key:
// lowercase, characters outside letters/digits/whitespace/hyphen stripped,
// surrounding whitespace trimmed, each whitespace run collapsed to a single
// hyphen, truncated to maxSlugLen. The result is matched across venues, so
// any change here re-keys the canonical table.
func Slugify(question string) string {
	lowered := strings.ToLower(question)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	slug := strings.Join(strings.Fields(b.String()), "-")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return slug
}
