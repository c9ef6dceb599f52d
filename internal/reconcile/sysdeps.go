package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/readmecheck/internal/command"
	"github.com/ppiankov/readmecheck/internal/model"
)

func (r *Reconciler) systemDeps(_ context.Context, in *Input) model.ReconciliationResult {
	mentioned := make(map[string]bool)
	for _, c := range model.ClaimsOfKind(in.Claims, model.ClaimSystemDepMention) {
		mentioned[strings.ToLower(c.Value)] = true
	}
	own := projectExecutables(in)

	groups, names := groupFacts(in.Facts, model.FactSystemToolCall, func(f model.Fact) string { return command.Name(f.Name) })

	var issues []model.Issue
	for _, tool := range names {
		if tool == "" || command.Implicit(tool) || mentioned[tool] || own[tool] {
			continue
		}
		sites := groups[tool]
		msg := fmt.Sprintf("system tool %s is invoked but never mentioned", tool)
		if extra := len(sites) - 1; extra > 0 {
			msg += fmt.Sprintf(" (%d more %s)", extra, plural(extra, "site", "sites"))
		}
		issues = append(issues, issue(model.CategorySystemDeps, severityOf(sites), sites[0].Location, msg,
			fmt.Sprintf("list %s under the prerequisites of %s", tool, docName(in))))
	}
	return model.NewResult(model.CategorySystemDeps, issues)
}

// projectExecutables are the names the project itself installs or runs:
// package names, declared bins and console scripts, and main packages
func projectExecutables(in *Input) map[string]bool {
	out := make(map[string]bool)
	for _, f := range in.Manifest.Facts {
		switch {
		case f.Kind == model.FactProjectName:
			out[strings.ToLower(f.Name)] = true
		case f.Kind != model.FactRunnableTarget:
		case f.Ecosystem == model.EcosystemMake:
		case f.Ecosystem == model.EcosystemNode && f.Detail != "bin":
		default:
			out[strings.ToLower(f.Name)] = true
		}
	}
	for _, f := range in.Facts {
		if f.Kind == model.FactRunnableTarget && (f.Ecosystem == model.EcosystemGo || f.Ecosystem == model.EcosystemNode) {
			out[strings.ToLower(f.Name)] = true
		}
	}
	return out
}
