package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/readmecheck/internal/model"
)

// Checker checks a single project root
type Checker interface {
	Check(ctx context.Context, root string) (*model.Report, error)
}

// CheckJob is one project check
type CheckJob struct {
	Root    string
	Checker Checker
}

// Execute runs the check
func (j *CheckJob) Execute(ctx context.Context) Result {
	report, err := j.Checker.Check(ctx, j.Root)
	return &CheckResult{Root: j.Root, Report: report, Error: err}
}

// CheckResult is the outcome of a check job
type CheckResult struct {
	Root   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the check result
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor checks multiple project roots concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessRoots checks every root and returns the results in input order.
// Roots that were never checked because ctx was cancelled carry ctx.Err().
func (b *BatchProcessor) ProcessRoots(ctx context.Context, roots []string) []*CheckResult {
	if len(roots) == 0 {
		return []*CheckResult{}
	}

	jobs := make([]Job, len(roots))
	for i, root := range roots {
		jobs[i] = &CheckJob{Root: root, Checker: b.checker}
	}

	byRoot := make(map[string]*CheckResult, len(roots))
	for _, r := range NewPool(ctx, b.concurrency).Run(jobs) {
		res := r.(*CheckResult)
		byRoot[res.Root] = res
	}

	out := make([]*CheckResult, len(roots))
	for i, root := range roots {
		res, ok := byRoot[root]
		if !ok {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			res = &CheckResult{Root: root, Error: err}
		}
		out[i] = res
	}
	return out
}

// ProcessFile reads project roots from a file and checks them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CheckResult, error) {
	roots, err := ReadRootsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read roots: %w", err)
	}

	return b.ProcessRoots(ctx, roots), nil
}

// ReadRootsFromFile reads project directories from a file, one per line.
// Relative paths resolve against the file's directory.
func ReadRootsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var roots []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		root := line
		if !filepath.IsAbs(root) {
			root = filepath.Join(base, root)
		}
		root = filepath.Clean(root)

		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return roots, nil
}
