package extract

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/ppiankov/readmecheck/internal/document"
	"github.com/ppiankov/readmecheck/internal/manifest"
	"github.com/ppiankov/readmecheck/internal/model"
)

var (
	versionPattern = regexp.MustCompile(`\bv?(\d+\.\d+\.\d+(?:-[\w.]+)?)\b`)

	// a runtime name right before the version: "Python 3.11.4", "node >= 18.0.0"
	runtimeBefore = regexp.MustCompile(`(?i)\b(?:python|py|node(?:\.?js)?|go|golang|java|jdk|jre|openjdk|rust|rustc|ruby|npm|pip|cargo|gradle|maven|dotnet|\.net|php|perl|deno|bun|yarn|pnpm|docker|kubernetes|postgres(?:ql)?|mysql|redis)\s*(?:version\s*)?(?:[><=~^]=?\s*)?v?$`)

	pinnedPackage = regexp.MustCompile(`([@A-Za-z0-9][\w./@-]*?)(?:@|==|===|:)v?(\d+\.\d+\.\d+(?:-[\w.]+)?)\b`)

	badgeColors = regexp.MustCompile(`-(?:brightgreen|green|yellowgreen|yellow|orange|red|blue|lightgrey|lightgray|grey|gray|success|important|critical|informational|inactive|blueviolet|[0-9a-fA-F]{6})$`)
)

// versionClaims records semantic versions on lines that talk about the
// project version: headings, "version" sentences, badges, and pinned
// installs of the project's own package
func (e *ClaimExtractor) versionClaims(doc *document.Document) []model.Claim {
	var out []model.Claim
	for i, line := range doc.Lines {
		lineNo := i + 1
		lower := strings.ToLower(line)
		inCode := doc.InCode(lineNo)

		pinned := e.pinnedVersions(line)
		for _, v := range pinned {
			out = append(out, e.versionClaim(doc, lineNo, v, line))
		}
		if inCode || len(pinned) > 0 {
			continue
		}

		badge := strings.Contains(lower, "shields.io") || strings.Contains(lower, "badge")
		heading := strings.HasPrefix(strings.TrimSpace(line), "#")
		if !badge && !heading && !strings.Contains(lower, "version") && !strings.Contains(lower, "release") {
			continue
		}

		for _, m := range versionPattern.FindAllStringSubmatchIndex(line, -1) {
			version := line[m[2]:m[3]]
			if badge {
				version = badgeColors.ReplaceAllString(version, "")
			}
			if !isProjectVersion(version, line[:m[0]], lower) {
				continue
			}
			out = append(out, e.versionClaim(doc, lineNo, version, line))
		}
	}
	return out
}

func (e *ClaimExtractor) versionClaim(doc *document.Document, line int, version, raw string) model.Claim {
	return model.Claim{
		Kind:     model.ClaimVersionMention,
		Value:    version,
		Location: e.at(doc, line),
		RawText:  strings.TrimSpace(raw),
	}
}

// pinnedVersions finds pkg@X.Y.Z / pkg==X.Y.Z where pkg is the project itself
func (e *ClaimExtractor) pinnedVersions(line string) []string {
	if len(e.projectNames) == 0 {
		return nil
	}
	var out []string
	for _, m := range pinnedPackage.FindAllStringSubmatch(line, -1) {
		pkg := strings.ToLower(m[1])
		if e.projectNames[pkg] || e.projectNames[lastElem(pkg)] {
			out = append(out, m[2])
		}
	}
	return out
}

func lastElem(pkg string) string {
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		return pkg[i+1:]
	}
	return pkg
}

// isProjectVersion filters out runtime requirements ("Python 3.11.0",
// "node 18.0.0") and strings that are not semantic versions
func isProjectVersion(version, before, lowerLine string) bool {
	if !semver.IsValid("v" + version) {
		return false
	}
	if runtimeBefore.MatchString(strings.TrimSpace(before)) {
		return false
	}
	if strings.Contains(lowerLine, "python") && strings.HasPrefix(version, "3.") {
		return false
	}
	if strings.Contains(lowerLine, "node") {
		for _, p := range []string{"14.", "16.", "18.", "20.", "22."} {
			if strings.HasPrefix(version, p) {
				return false
			}
		}
	}
	return true
}

// licensePatterns match known license names case-insensitively, with spaces,
// hyphens and underscores interchangeable. Longer names are tried first.
var licensePatterns = func() []struct {
	name string
	re   *regexp.Regexp
} {
	names := append([]string(nil), manifest.KnownLicenses...)
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	out := make([]struct {
		name string
		re   *regexp.Regexp
	}, 0, len(names))
	for _, n := range names {
		quoted := regexp.QuoteMeta(n)
		quoted = strings.NewReplacer(`\ `, `[\s_-]+`, " ", `[\s_-]+`, "-", `[\s_-]+`).Replace(quoted)
		out = append(out, struct {
			name string
			re   *regexp.Regexp
		}{n, regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9])(` + quoted + `)(?:$|[^A-Za-z0-9])`)})
	}
	return out
}()

var licenseContext = regexp.MustCompile(`(?i)licen[cs]ed under|licen[cs]e:|badge/licen[cs]e|/github/license/|\blicen[cs]e\b`)

// licenseClaims records license names in prose under a License heading, in
// license badges and in "licensed under" sentences
func (e *ClaimExtractor) licenseClaims(doc *document.Document) []model.Claim {
	var out []model.Claim
	for _, pl := range doc.ProseLines() {
		section := doc.SectionOf(pl.Number)
		underHeading := section != nil && licenseContext.MatchString(section.Text)
		if !underHeading && !licenseContext.MatchString(pl.Text) {
			continue
		}
		if name, ok := findLicense(pl.Text); ok {
			out = append(out, model.Claim{
				Kind:     model.ClaimLicenseMention,
				Value:    name,
				Location: e.at(doc, pl.Number),
				RawText:  strings.TrimSpace(pl.Text),
			})
		}
	}
	return out
}

// findLicense returns the first known license named in text, as written
func findLicense(text string) (string, bool) {
	best, bestPos := "", -1
	for _, p := range licensePatterns {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if bestPos < 0 || loc[2] < bestPos {
			best, bestPos = text[loc[2]:loc[3]], loc[2]
		}
	}
	return best, bestPos >= 0
}
