package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/ppiankov/readmecheck/internal/document"
	"github.com/ppiankov/readmecheck/internal/model"
)

var skippedSchemes = map[string]bool{"mailto": true, "tel": true, "data": true, "javascript": true}

func (r *Reconciler) links(ctx context.Context, in *Input) model.ReconciliationResult {
	var (
		issues   []model.Issue
		external []string
		sites    = make(map[string][]model.Location)
	)
	add := func(sev model.Severity, loc model.Location, msg, suggestion string) {
		issues = append(issues, issue(model.CategoryLinks, sev, loc, msg, suggestion))
	}

	for _, c := range model.ClaimsOfKind(in.Claims, model.ClaimLinkTarget) {
		target := c.Value

		if strings.HasPrefix(target, "#") {
			if !in.Document.HasSlug(target) {
				add(model.SeverityError, c.Location, fmt.Sprintf("anchor %s does not match any heading", target),
					suggestAnchor(target, in.Document.Slugs()))
			}
			continue
		}

		u, err := url.Parse(target)
		if err != nil {
			add(model.SeverityWarning, c.Location, fmt.Sprintf("malformed link %q", target), "")
			continue
		}
		scheme := strings.ToLower(u.Scheme)
		switch {
		case skippedSchemes[scheme]:
			continue
		case scheme != "" || u.Host != "":
			if r.opts.RepoURLPattern != nil && r.opts.RepoURLPattern.MatchString(target) {
				add(model.SeverityWarning, c.Location, "absolute link to this repository: "+target,
					"use a relative link so it works on forks and branches")
				continue
			}
			if scheme == "http" || scheme == "https" {
				if _, seen := sites[target]; !seen {
					external = append(external, target)
				}
				sites[target] = append(sites[target], c.Location)
			}
			continue
		}

		issues = append(issues, r.checkRelativeLink(in, c, u)...)
	}

	if r.opts.LinkChecker != nil && len(external) > 0 {
		for _, st := range r.opts.LinkChecker.CheckLinks(ctx, external) {
			if st.Alive || st.Skipped != "" {
				continue
			}
			reason := st.Error
			if st.StatusCode != 0 {
				reason = fmt.Sprintf("HTTP %d", st.StatusCode)
			}
			for _, loc := range sites[st.URL] {
				add(model.SeverityWarning, loc, fmt.Sprintf("external link unreachable: %s (%s)", st.URL, reason), "")
			}
		}
	}

	return model.NewResult(model.CategoryLinks, issues)
}

// checkRelativeLink resolves a path link against the document directory.
// Root-relative paths ("/docs/x.md") resolve against the project root.
func (r *Reconciler) checkRelativeLink(in *Input, c model.Claim, u *url.URL) []model.Issue {
	var out []model.Issue
	add := func(sev model.Severity, msg, suggestion string) {
		out = append(out, issue(model.CategoryLinks, sev, c.Location, msg, suggestion))
	}

	p := u.Path
	if p == "" {
		return nil
	}
	var rel string
	if strings.HasPrefix(p, "/") {
		rel = path.Clean(strings.TrimPrefix(p, "/"))
	} else {
		rel = path.Clean(path.Join(path.Dir(in.Document.Path), p))
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		add(model.SeverityError, fmt.Sprintf("link %s points outside the project", c.Value), "")
		return out
	}

	info, err := os.Stat(filepath.Join(in.Root, filepath.FromSlash(rel)))
	if err != nil {
		err = &model.ClaimResolutionError{Claim: c, Err: err}
		if !errors.Is(err, fs.ErrNotExist) {
			add(model.SeverityWarning, err.Error(), "")
			return out
		}
		suggestion := fmt.Sprintf("create %s or remove the link", rel)
		if best := closestPath(rel, in.Files); best != "" {
			suggestion = fmt.Sprintf("did you mean %s?", relativeTo(path.Dir(in.Document.Path), best))
		}
		add(model.SeverityError, fmt.Sprintf("link target %s does not exist", p), suggestion)
		return out
	}

	if u.Fragment == "" || info.IsDir() || !isMarkdown(rel) {
		return out
	}
	ok, err := r.opts.Headings.HasAnchor(rel, u.Fragment)
	if err != nil {
		r.logger.Debug("anchor lookup failed", zap.String("file", rel), zap.Error(err))
		return out
	}
	if !ok {
		add(model.SeverityError, fmt.Sprintf("anchor #%s not found in %s", u.Fragment, rel), "")
	}
	return out
}

func isMarkdown(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown", ".mdown", ".mkd":
		return true
	}
	return false
}

func relativeTo(dir, target string) string {
	if dir == "." || dir == "" {
		return target
	}
	if rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target)); err == nil {
		return filepath.ToSlash(rel)
	}
	return target
}

func suggestAnchor(anchor string, slugs []string) string {
	if best := closest(strings.TrimPrefix(strings.ToLower(anchor), "#"), slugs, 3); best != "" {
		return "did you mean #" + best + "?"
	}
	return ""
}

// closestPath picks the project file whose name is nearest to the missing
// one, preferring a same-named file anywhere in the tree
func closestPath(missing string, files []string) string {
	base := strings.ToLower(path.Base(missing))
	var names []string
	byName := make(map[string]string)
	for _, f := range files {
		name := strings.ToLower(path.Base(f))
		if name == base {
			return f
		}
		if _, ok := byName[name]; !ok {
			byName[name] = f
			names = append(names, name)
		}
	}
	if best := closest(base, names, 3); best != "" {
		return byName[best]
	}
	return ""
}

// closest returns the candidate within maxDist edits of s, nearest first
func closest(s string, candidates []string, maxDist int) string {
	best, bestDist := "", maxDist+1
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(s, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// FileHeadings resolves anchors by parsing Markdown files under a root.
// Parsed documents are cached.
type FileHeadings struct {
	root string
	mu   sync.Mutex
	docs map[string]*document.Document
}

// NewFileHeadings creates a resolver rooted at root
func NewFileHeadings(root string) *FileHeadings {
	return &FileHeadings{root: root, docs: make(map[string]*document.Document)}
}

// HasAnchor reports whether file (relative to the root) defines anchor
func (h *FileHeadings) HasAnchor(file, anchor string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, ok := h.docs[file]
	if !ok {
		var err error
		doc, err = document.ParseFile(filepath.Join(h.root, filepath.FromSlash(file)), file)
		if err != nil {
			return false, err
		}
		h.docs[file] = doc
	}
	return doc.HasSlug(anchor), nil
}
