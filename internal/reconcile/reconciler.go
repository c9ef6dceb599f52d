// Package reconcile matches documentation claims against codebase facts and
// turns every discrepancy into a categorized issue.
package reconcile

import (
	"context"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/readmecheck/internal/document"
	"github.com/ppiankov/readmecheck/internal/manifest"
	"github.com/ppiankov/readmecheck/internal/model"
	"github.com/ppiankov/readmecheck/internal/sandbox"
)

// Input is everything one reconciliation needs. Facts are the deduplicated
// source facts; manifest facts stay in Manifest.
type Input struct {
	Root     string // Absolute project root
	Document *document.Document
	Claims   []model.Claim
	Facts    []model.Fact
	Manifest *manifest.Result
	Files    []string // Project files relative to the root, used for suggestions
}

// Verifier runs documented commands in the sandbox
type Verifier interface {
	VerifyBlocks(ctx context.Context, blocks [][]sandbox.Command) [][]model.Verification
}

// LinkChecker checks external URLs online
type LinkChecker interface {
	CheckLinks(ctx context.Context, urls []string) []model.LinkStatus
}

// HeadingResolver answers whether a Markdown file in the project defines an anchor
type HeadingResolver interface {
	HasAnchor(file, anchor string) (bool, error)
}

// Options select and tune the category passes
type Options struct {
	Ignore         map[model.Category]bool
	Dynamic        bool
	RepoURLPattern *regexp.Regexp
	Verifier       Verifier        // Required when Dynamic is set
	LinkChecker    LinkChecker     // nil disables online checks
	Headings       HeadingResolver // nil uses a file-backed resolver
}

// Reconciler runs the category passes
type Reconciler struct {
	opts   Options
	logger *zap.Logger
}

// New creates a reconciler
func New(opts Options, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{opts: opts, logger: logger}
}

type pass func(r *Reconciler, ctx context.Context, in *Input) model.ReconciliationResult

var passes = map[model.Category]pass{
	model.CategoryLinks:      (*Reconciler).links,
	model.CategoryCodeBlocks: (*Reconciler).codeBlocks,
	model.CategoryEnvVars:    (*Reconciler).envVars,
	model.CategorySystemDeps: (*Reconciler).systemDeps,
	model.CategoryMetadata:   (*Reconciler).metadata,
	model.CategoryCommands:   (*Reconciler).commands,
}

// Reconcile runs every category that is not ignored, in fixed order.
// Ignored categories are absent from the result.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) map[model.Category]model.ReconciliationResult {
	if in.Manifest == nil {
		in.Manifest = &manifest.Result{}
	}
	if in.Document == nil {
		in.Document = &document.Document{}
	}
	if r.opts.Headings == nil {
		r.opts.Headings = NewFileHeadings(in.Root)
	}

	results := make(map[model.Category]model.ReconciliationResult)
	for _, category := range model.AllCategories {
		if r.opts.Ignore[category] {
			continue
		}
		result := passes[category](r, ctx, &in)
		results[category] = result

		errs, warns := result.Counts()
		r.logger.Debug("category reconciled",
			zap.String("category", string(category)),
			zap.String("status", string(result.Status)),
			zap.Int("errors", errs),
			zap.Int("warnings", warns))
	}
	return results
}

// issue builds an issue of one category
func issue(category model.Category, sev model.Severity, loc model.Location, msg, suggestion string) model.Issue {
	return model.Issue{Severity: sev, Category: category, Message: msg, Location: loc, Suggestion: suggestion}
}

// severityOf applies the corroboration policy: an error needs High evidence,
// or Low evidence from at least two files
func severityOf(facts []model.Fact) model.Severity {
	files := make(map[string]bool)
	for _, f := range facts {
		if f.Confidence == model.ConfidenceHigh {
			return model.SeverityError
		}
		files[f.Location.File] = true
	}
	if len(files) >= 2 {
		return model.SeverityError
	}
	return model.SeverityWarning
}

// groupFacts groups facts of one kind by a key, each group sorted by location
func groupFacts(facts []model.Fact, kind model.FactKind, key func(model.Fact) string) (map[string][]model.Fact, []string) {
	groups := make(map[string][]model.Fact)
	for _, f := range facts {
		if f.Kind != kind {
			continue
		}
		k := key(f)
		groups[k] = append(groups[k], f)
	}
	names := make([]string, 0, len(groups))
	for k, g := range groups {
		model.SortFacts(g)
		names = append(names, k)
	}
	sort.Strings(names)
	return groups, names
}
