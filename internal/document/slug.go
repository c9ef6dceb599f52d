package document

import (
	"strconv"
	"strings"
	"unicode"
)

// Slugify turns heading text into a GitHub-style anchor: lower-case, drop
// punctuation except hyphens and underscores, spaces become hyphens.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return b.String()
}

// collapseSlug is the looser form some renderers produce: repeated hyphens
// collapsed and trimmed
func collapseSlug(slug string) string {
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

// slugger disambiguates duplicate headings with -1, -2, ... suffixes
type slugger struct {
	seen map[string]int
}

func newSlugger() *slugger {
	return &slugger{seen: make(map[string]int)}
}

func (s *slugger) slug(text string) string {
	base := Slugify(text)
	n, dup := s.seen[base]
	s.seen[base] = n + 1
	if !dup {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
