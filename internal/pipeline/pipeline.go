// Package pipeline wires the extractors, the reconciler and the scorer into a
// single check of one project root, and renders the resulting report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/readmecheck/internal/cache"
	"github.com/ppiankov/readmecheck/internal/document"
	"github.com/ppiankov/readmecheck/internal/extract"
	"github.com/ppiankov/readmecheck/internal/extract/adapters"
	"github.com/ppiankov/readmecheck/internal/llm"
	"github.com/ppiankov/readmecheck/internal/manifest"
	"github.com/ppiankov/readmecheck/internal/model"
	"github.com/ppiankov/readmecheck/internal/reconcile"
	"github.com/ppiankov/readmecheck/internal/sandbox"
	"github.com/ppiankov/readmecheck/internal/scan"
	"github.com/ppiankov/readmecheck/internal/score"
	"github.com/ppiankov/readmecheck/internal/validate"
)

// Pipeline orchestrates the complete check of a project
type Pipeline struct {
	config     *model.Config
	ignore     map[model.Category]bool
	repoURL    *regexp.Regexp
	manifests  *manifest.Extractor
	scanner    *scan.Scanner
	links      reconcile.LinkChecker // nil unless external link checks are on
	scorer     *score.Scorer
	summarizer *llm.Summarizer // nil if disabled
	logger     *zap.Logger
	now        func() time.Time
}

// New validates cfg and creates a pipeline. Configuration problems are
// returned as *model.ConfigurationError before any work starts.
func New(cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ignore, err := cfg.IgnoredCategories()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:    cfg,
		ignore:    ignore,
		manifests: manifest.NewExtractor(logger),
		scanner: scan.New(scan.Options{
			IgnorePatterns: cfg.Scan.IgnorePatterns,
			MaxFileBytes:   cfg.Scan.MaxFileBytes,
			Workers:        cfg.Concurrency.Workers,
		}, adapters.NewRegistry(), logger),
		scorer: score.NewScorer(),
		logger: logger,
		now:    time.Now,
	}

	if cfg.Checks.RepoURLPattern != "" {
		re, err := regexp.Compile(cfg.Checks.RepoURLPattern)
		if err != nil {
			return nil, &model.ConfigurationError{Field: "checks.repo_url_pattern", Reason: err.Error()}
		}
		p.repoURL = re
	}

	if cfg.Checks.CheckExternalLinks && !ignore[model.CategoryLinks] {
		c, err := cache.New(cfg.Cache)
		if err != nil {
			logger.Warn("link cache disabled", zap.Error(err))
			c = nil
		}
		p.links = validate.NewValidator(cfg, c, logger)
	}

	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg), logger)
		if err != nil {
			return nil, &model.ConfigurationError{Field: "llm.provider", Reason: err.Error()}
		}
		p.summarizer = s
	}

	return p, nil
}

// Check runs every stage against one project root. Manifest and source
// extraction run concurrently; reconciliation starts once both are done.
func (p *Pipeline) Check(ctx context.Context, root string) (*model.Report, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "path", Reason: err.Error()}
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, &model.ConfigurationError{Field: "path", Reason: fmt.Sprintf("%s is not a directory", root)}
	}

	docRel := filepath.ToSlash(filepath.Clean(p.config.Scan.Document))
	docAbs := filepath.Join(abs, filepath.FromSlash(docRel))
	if _, err := os.Stat(docAbs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &model.ConfigurationError{Field: "document", Reason: fmt.Sprintf("%s not found in %s", docRel, root)}
		}
		return nil, fmt.Errorf("stat document: %w", err)
	}

	started := p.now()

	var (
		manifests *manifest.Result
		scanned   *scan.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := p.manifests.Extract(gctx, abs)
		if err != nil {
			return fmt.Errorf("read manifests: %w", err)
		}
		manifests = res
		return nil
	})
	g.Go(func() error {
		res, err := p.scanner.Scan(gctx, abs)
		if err != nil {
			return fmt.Errorf("scan sources: %w", err)
		}
		scanned = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc, err := document.ParseFile(docAbs, docRel)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, f := range manifests.Of(model.FactProjectName, "") {
		names = append(names, f.Name)
	}
	claims := extract.NewClaimExtractor(p.logger, names...).Extract(doc)
	envClaims, envDiags := extract.ExtractEnvFiles(abs)
	claims = append(claims, envClaims...)

	opts := reconcile.Options{
		Ignore:         p.ignore,
		Dynamic:        p.config.Dynamic.Enabled,
		RepoURLPattern: p.repoURL,
		LinkChecker:    p.links,
	}
	if p.config.Dynamic.Enabled {
		opts.Verifier = sandbox.New(sandbox.PolicyFromConfig(abs, p.config.Dynamic), p.logger)
	}

	results := reconcile.New(opts, p.logger).Reconcile(ctx, reconcile.Input{
		Root:     abs,
		Document: doc,
		Claims:   claims,
		Facts:    scanned.Facts,
		Manifest: manifests,
		Files:    scanned.Files,
	})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("check %s: %w", root, err)
	}

	report := &model.Report{
		Project:     abs,
		Document:    docRel,
		GeneratedAt: started.UTC(),
		Results:     results,
		Score:       p.scorer.Calculate(results, scanned.Metrics, claims),
		Metrics:     scanned.Metrics,
		Diagnostics: mergeDiagnostics(manifests.Diagnostics, scanned.Diagnostics, envDiags),
		Facts:       len(scanned.Facts),
		Claims:      len(claims),
	}

	// After scoring: the summary never feeds back into the report's results
	if p.summarizer != nil && p.summarizer.IsEnabled() {
		summary, err := p.summarizer.GenerateSummary(ctx, *report)
		if err != nil {
			p.logger.Warn("llm summary failed", zap.Error(err))
		} else {
			report.LLM = summary
		}
	}

	p.logger.Info("check complete",
		zap.String("project", abs),
		zap.Int("score", report.Score.Value),
		zap.Bool("failed", report.Failed()),
		zap.Duration("elapsed", p.now().Sub(started)))

	return report, nil
}

func mergeDiagnostics(groups ...[]model.Diagnostic) []model.Diagnostic {
	var out []model.Diagnostic
	for _, g := range groups {
		out = append(out, g...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Message < out[j].Message
	})
	return out
}
