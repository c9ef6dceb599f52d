package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/readmecheck/internal/document"
	"github.com/ppiankov/readmecheck/internal/model"
)

// systemEnvVars are read by programs everywhere and never need documenting
var systemEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true, "LANG": true, "TERM": true,
	"PWD": true, "OLDPWD": true, "HOSTNAME": true, "LOGNAME": true, "NODE_ENV": true,
	"DEBUG": true, "CI": true, "GITHUB_ACTIONS": true, "PYTHONPATH": true,
	"PYTHONDONTWRITEBYTECODE": true, "TMPDIR": true, "TEMP": true, "TMP": true, "TZ": true,
	"USERPROFILE": true, "APPDATA": true, "EDITOR": true, "NO_COLOR": true,
}

func (r *Reconciler) envVars(_ context.Context, in *Input) model.ReconciliationResult {
	documented := make(map[string]bool)
	for _, c := range model.ClaimsOfKind(in.Claims, model.ClaimEnvVarMention) {
		documented[c.Value] = true
	}

	groups, names := groupFacts(in.Facts, model.FactEnvVarRead, func(f model.Fact) string { return f.Name })

	var (
		issues []model.Issue
		notes  []string
	)
	for _, name := range names {
		if systemEnvVars[name] || documented[name] {
			continue
		}
		if mentioned(in.Document, name) {
			documented[name] = true
			continue
		}
		sites := groups[name]
		first := sites[0]

		msg := fmt.Sprintf("environment variable %s is read but not documented", name)
		if extra := len(sites) - 1; extra > 0 {
			msg += fmt.Sprintf(" (%d more %s)", extra, plural(extra, "site", "sites"))
		}
		sev := severityOf(sites)
		if sev == model.SeverityWarning {
			msg += "; low-confidence match"
		}
		issues = append(issues, issue(model.CategoryEnvVars, sev, first.Location, msg,
			fmt.Sprintf("document %s in %s or an .env.example file", name, docName(in))))
	}

	read := make(map[string]bool, len(groups))
	for name := range groups {
		read[name] = true
	}
	var unused []string
	for name := range documented {
		if !read[name] && !systemEnvVars[name] {
			unused = append(unused, name)
		}
	}
	sort.Strings(unused)
	if len(unused) > 0 && len(groups) > 0 {
		notes = append(notes, "documented but not read by analyzed sources: "+strings.Join(unused, ", "))
	}

	result := model.NewResult(model.CategoryEnvVars, issues)
	result.Notes = notes
	return result
}

// mentioned reports whether name appears as a whole word, case-sensitively,
// anywhere in the document
func mentioned(doc *document.Document, name string) bool {
	if doc == nil || name == "" {
		return false
	}
	for _, line := range doc.Lines {
		for off := 0; off < len(line); {
			i := strings.Index(line[off:], name)
			if i < 0 {
				break
			}
			start, end := off+i, off+i+len(name)
			if (start == 0 || !isWordByte(line[start-1])) && (end == len(line) || !isWordByte(line[end])) {
				return true
			}
			off = start + 1
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func docName(in *Input) string {
	if in.Document.Path == "" {
		return "the documentation"
	}
	return in.Document.Path
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
