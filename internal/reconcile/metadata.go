package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/readmecheck/internal/manifest"
	"github.com/ppiankov/readmecheck/internal/model"
)

// normalizeVersion trims whitespace and a leading v
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 1 && (v[0] == 'v' || v[0] == 'V') {
		v = v[1:]
	}
	return v
}

func (r *Reconciler) metadata(_ context.Context, in *Input) model.ReconciliationResult {
	var issues []model.Issue
	add := func(sev model.Severity, loc model.Location, msg, suggestion string) {
		issues = append(issues, issue(model.CategoryMetadata, sev, loc, msg, suggestion))
	}

	declared := make(map[string]model.Fact)
	for _, f := range in.Manifest.Of(model.FactDeclaredVersion, "") {
		if _, ok := declared[normalizeVersion(f.Name)]; !ok {
			declared[normalizeVersion(f.Name)] = f
		}
	}
	if len(declared) > 0 {
		for _, c := range model.ClaimsOfKind(in.Claims, model.ClaimVersionMention) {
			if _, ok := declared[normalizeVersion(c.Value)]; ok {
				continue
			}
			want := describeDeclared(declared)
			add(model.SeverityError, c.Location,
				fmt.Sprintf("documented version %s does not match declared version %s", c.Value, want),
				"update the documentation to "+want)
		}
	}

	high, low := make(map[string]model.Fact), make(map[string]model.Fact)
	for _, f := range in.Manifest.Of(model.FactDeclaredLicense, "") {
		key := manifest.NormalizeLicense(f.Name)
		if f.Confidence == model.ConfidenceHigh {
			high[key] = f
		} else {
			low[key] = f
		}
	}
	for _, c := range model.ClaimsOfKind(in.Claims, model.ClaimLicenseMention) {
		key := manifest.NormalizeLicense(c.Value)
		switch {
		case len(high) > 0:
			if _, ok := high[key]; !ok {
				add(model.SeverityError, c.Location,
					fmt.Sprintf("documented license %s does not match declared license %s", c.Value, describeDeclared(high)), "")
			}
		case len(low) > 0:
			if _, ok := low[key]; !ok {
				add(model.SeverityWarning, c.Location,
					fmt.Sprintf("documented license %s does not match the license file (%s); low-confidence match", c.Value, describeDeclared(low)), "")
			}
		}
	}

	// a manifest license contradicting the LICENSE file
	if len(high) > 0 {
		for key, f := range low {
			if _, ok := high[key]; !ok {
				add(model.SeverityWarning, f.Location,
					fmt.Sprintf("license file looks like %s but manifests declare %s", f.Name, describeDeclared(high)), "")
			}
		}
	}

	return model.NewResult(model.CategoryMetadata, issues)
}

// describeDeclared lists declared values with their manifest, sorted
func describeDeclared(facts map[string]model.Fact) string {
	parts := make([]string, 0, len(facts))
	for _, f := range facts {
		parts = append(parts, fmt.Sprintf("%s (%s)", f.Name, f.Location.File))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
