// Package scan walks a project tree and extracts source facts and raw
// metrics on the worker pool.
package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/readmecheck/internal/extract/adapters"
	"github.com/ppiankov/readmecheck/internal/model"
	"github.com/ppiankov/readmecheck/internal/worker"
)

// sourceExts are counted for LOC and TODO metrics
var sourceExts = map[string]bool{
	".py": true, ".js": true, ".mjs": true, ".cjs": true, ".ts": true, ".jsx": true, ".tsx": true,
	".go": true, ".rs": true, ".java": true, ".kt": true, ".c": true, ".cc": true, ".cpp": true,
	".h": true, ".hpp": true, ".rb": true, ".php": true, ".cs": true, ".swift": true,
	".sh": true, ".bash": true,
}

var todoMarker = regexp.MustCompile(`\b(FIXME|HACK|XXX|TODO|OPTIMIZE|NOTE)\b`)

// Options configure a scan
type Options struct {
	IgnorePatterns []string
	MaxFileBytes   int64 // <= 0 means 10 MiB
	Workers        int
}

// Result is everything the scan produced
type Result struct {
	Files       []string           // Every non-ignored file, relative and slash separated
	Facts       []model.Fact       // Deduplicated and sorted
	Diagnostics []model.Diagnostic // Files that were skipped, sorted by file
	Metrics     model.Metrics
}

// Scanner extracts facts from a project tree
type Scanner struct {
	opts     Options
	registry *adapters.Registry
	logger   *zap.Logger
}

// New creates a scanner
func New(opts Options, registry *adapters.Registry, logger *zap.Logger) *Scanner {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 10 << 20
	}
	if registry == nil {
		registry = adapters.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{opts: opts, registry: registry, logger: logger}
}

// Scan walks root and runs every file through its adapter. Per-file failures
// become diagnostics; only a missing root or cancellation returns an error.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, &model.ConfigurationError{Field: "path", Reason: fmt.Sprintf("%s is not a directory", root)}
	}
	matcher := NewMatcher(root, s.opts.IgnorePatterns)
	project := filepath.Base(absPath(root))

	res := &Result{}
	var jobs []worker.Job

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			if rel == "." {
				return err
			}
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{File: rel, Message: err.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if rel != "." && matcher.Ignored(rel, true) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.Ignored(rel, false) {
			return nil
		}
		res.Files = append(res.Files, rel)

		adapter, _ := s.registry.FindAdapter(rel)
		counted := sourceExts[strings.ToLower(path.Ext(rel))]
		if adapter == nil && !counted {
			return nil
		}
		jobs = append(jobs, &fileJob{
			abs:     p,
			file:    adapters.SourceFile{Path: rel, Project: project},
			adapter: adapter,
			counted: counted,
			maxSize: s.opts.MaxFileBytes,
		})
		return nil
	})
	if walkErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	s.logger.Debug("walk complete", zap.Int("files", len(res.Files)), zap.Int("jobs", len(jobs)))

	results := worker.NewPool(ctx, s.opts.Workers).Run(jobs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var facts []model.Fact
	res.Metrics.Todos = make(map[string]int)
	for _, r := range results {
		fr := r.(*fileResult)
		if fr.err != nil {
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{File: fr.path, Message: fr.err.Error()})
			s.logger.Debug("file skipped", zap.String("file", fr.path), zap.Error(fr.err))
			continue
		}
		if fr.counted {
			res.Metrics.Files++
			res.Metrics.LOC += fr.loc
			for marker, n := range fr.todos {
				res.Metrics.Todos[marker] += n
			}
		}
		if fr.analyzed {
			res.Metrics.Analyzed++
			facts = append(facts, fr.facts...)
		}
	}

	res.Facts = model.DedupeFacts(facts)
	sort.Strings(res.Files)
	sort.SliceStable(res.Diagnostics, func(i, j int) bool { return res.Diagnostics[i].File < res.Diagnostics[j].File })

	s.logger.Info("source scan complete",
		zap.Int("files", len(res.Files)),
		zap.Int("analyzed", res.Metrics.Analyzed),
		zap.Int("facts", len(res.Facts)),
		zap.Int("diagnostics", len(res.Diagnostics)))

	return res, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// fileJob reads, measures and analyzes one file
type fileJob struct {
	abs     string
	file    adapters.SourceFile
	adapter adapters.Adapter
	counted bool
	maxSize int64
}

type fileResult struct {
	path     string
	facts    []model.Fact
	counted  bool
	analyzed bool
	loc      int
	todos    map[string]int
	err      error
}

func (r *fileResult) GetError() error { return r.err }

func (j *fileJob) Execute(ctx context.Context) worker.Result {
	res := &fileResult{path: j.file.Path, counted: j.counted}
	fail := func(err error) worker.Result {
		res.err = &model.ExtractionError{Path: j.file.Path, Err: err}
		return res
	}

	info, err := os.Stat(j.abs)
	if err != nil {
		return fail(err)
	}
	if info.Size() > j.maxSize {
		return fail(fmt.Errorf("file is %d bytes, larger than the %d byte limit", info.Size(), j.maxSize))
	}
	data, err := os.ReadFile(j.abs)
	if err != nil {
		return fail(err)
	}
	if isBinary(data) {
		return fail(errors.New("binary file"))
	}

	if j.counted {
		res.loc, res.todos = countLines(data)
	}
	if j.adapter != nil {
		j.file.Content = data
		facts, err := j.adapter.Extract(ctx, j.file)
		if err != nil {
			return fail(err)
		}
		res.facts = facts
		res.analyzed = true
	}
	return res
}

// isBinary looks for a NUL byte in the first 8000 bytes, as git does
func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// countLines returns the non-blank line count and the first debt marker of
// every line
func countLines(data []byte) (int, map[string]int) {
	loc := 0
	todos := make(map[string]int)
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		loc++
		if m := todoMarker.Find(line); m != nil {
			todos[string(m)]++
		}
	}
	return loc, todos
}
