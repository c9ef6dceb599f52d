package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/readmecheck/internal/pipeline"
	"github.com/ppiankov/readmecheck/internal/worker"
)

var (
	batchWorkers int
	outputDir    string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file|dir...>",
	Short: "Check several projects concurrently",
	Long: `Batch checks many project roots with a pool of workers. Pass either a file
listing one project directory per line (# starts a comment, relative paths are
resolved against the file) or the directories themselves.

Example:
  readmecheck batch projects.txt --out reports/
  readmecheck batch ./svc-a ./svc-b ./svc-c --batch-workers 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addCheckFlags(batchCmd.Flags())

	batchCmd.Flags().IntVar(&batchWorkers, "batch-workers", 4, "projects checked concurrently")
	batchCmd.Flags().StringVar(&outputDir, "out", "", "directory for per-project JSON and Markdown reports")
}

// batchRoots expands the arguments: a single regular file is a list of roots
func batchRoots(args []string) ([]string, string, error) {
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.Mode().IsRegular() {
			roots, err := worker.ReadRootsFromFile(args[0])
			return roots, args[0], err
		}
	}
	return args, "", nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	roots, listFile, err := batchRoots(args)
	if err != nil {
		return err
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  readmecheck batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	if listFile != "" {
		fmt.Fprintf(os.Stderr, "  Input file:   %s\n", listFile)
	}
	fmt.Fprintf(os.Stderr, "  Projects:     %d\n", len(roots))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", batchWorkers)
	if outputDir != "" {
		fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter, cfg.Output.Verbose)

	results := worker.NewBatchProcessor(p, batchWorkers).ProcessRoots(ctx, roots)

	var passed, failed, errored int
	slugs := make(map[string]int)
	for _, result := range results {
		if result.Error != nil {
			errored++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Root, result.Error)
			continue
		}

		report := result.Report
		mark := "✓"
		if report.Failed() {
			failed++
			mark = "✗"
		} else {
			passed++
		}
		fmt.Fprintf(os.Stdout, "%s %-40s %3d/100 %s\n", mark, result.Root, report.Score.Value, report.Score.Rating)

		if outputDir == "" {
			continue
		}
		slug := uniqueSlug(slugs, sanitizeFilename(report.Project))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")
		if _, err := renderer.WriteReports(report, jsonPath, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Root, err)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d projects\n", len(results))
	fmt.Fprintf(os.Stderr, "  Passed:    %d\n", passed)
	fmt.Fprintf(os.Stderr, "  Failed:    %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Errors:    %d\n", errored)
	fmt.Fprintf(os.Stderr, "\n")

	switch {
	case errored > 0:
		return &ExitError{Code: 2}
	case failed > 0:
		return &ExitError{Code: 1}
	}
	return nil
}

// sanitizeFilename turns a project path into a file name
func sanitizeFilename(s string) string {
	s = filepath.Base(filepath.Clean(s))
	s = strings.NewReplacer(
		"\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_",
		"<", "_", ">", "_", "|", "_", " ", "-",
	).Replace(s)
	if s == "" || s == "." || s == string(filepath.Separator) {
		s = "project"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// uniqueSlug appends -2, -3 ... to repeated names
func uniqueSlug(seen map[string]int, slug string) string {
	seen[slug]++
	if n := seen[slug]; n > 1 {
		return fmt.Sprintf("%s-%d", slug, n)
	}
	return slug
}
