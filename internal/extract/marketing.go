package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/readmecheck/internal/document"
	"github.com/ppiankov/readmecheck/internal/model"
)

var (
	hypePhrases = []string{
		"enterprise", "production-ready", "massive", "complex", "scalable", "robust",
		"comprehensive", "full-featured", "industrial-strength", "battle-tested",
	}
	completenessPhrases = []string{
		"feature-complete", "production-ready", "stable", "mature", "battle-tested",
	}

	hypePatterns         = phrasePatterns(hypePhrases)
	completenessPatterns = phrasePatterns(completenessPhrases)
)

// phrasePatterns matches each phrase case-insensitively on word boundaries,
// with a hyphen or spaces between its parts
func phrasePatterns(phrases []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(phrases))
	for i, p := range phrases {
		parts := strings.Split(p, "-")
		for j := range parts {
			parts[j] = regexp.QuoteMeta(parts[j])
		}
		out[i] = regexp.MustCompile(`(?i)\b` + strings.Join(parts, `[-\s]+`) + `\b`)
	}
	return out
}

// marketingClaims records the first prose line using each hype or
// completeness phrase
func (e *ClaimExtractor) marketingClaims(doc *document.Document) []model.Claim {
	var out []model.Claim
	prose := doc.ProseLines()
	scan := func(kind model.ClaimKind, phrases []string, patterns []*regexp.Regexp) {
		for i, re := range patterns {
			for _, pl := range prose {
				if re.MatchString(pl.Text) {
					out = append(out, model.Claim{
						Kind:     kind,
						Value:    phrases[i],
						Location: e.at(doc, pl.Number),
						RawText:  strings.TrimSpace(pl.Text),
					})
					break
				}
			}
		}
	}
	scan(model.ClaimHypeMention, hypePhrases, hypePatterns)
	scan(model.ClaimCompleteness, completenessPhrases, completenessPatterns)
	return out
}
