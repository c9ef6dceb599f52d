package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ppiankov/readmecheck/internal/model"
	"github.com/ppiankov/readmecheck/internal/pipeline"
)

var (
	docPath      string
	ignoreList   []string
	ignoreGlobs  []string
	dynamic      bool
	dryRun       bool
	allowNetwork bool
	cmdTimeout   time.Duration
	parallel     int
	checkLinks   bool
	repoURL      string
	workers      int
	noCache      bool
	noFooter     bool
	noColor      bool
	llmEnabled   bool
	llmProvider  string
	llmModel     string
	outJSON      string
	outMD        string
	checkTimeout time.Duration
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Check one project's README against its code",
	Long: `Check reads the project's manifests and source files, parses the README and
reports every claim the code does not back up.

Categories: links, code-blocks, env-vars, system-deps, metadata, commands.
The exit status is 1 when any category fails and 2 on configuration errors.

Example:
  readmecheck check
  readmecheck check ./service --doc docs/README.md --ignore metadata
  readmecheck check . --dynamic --dry-run --json report.json --md report.md
  readmecheck check . --check-links --repo-url '^https://github\.com/acme/tool/'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	addCheckFlags(checkCmd.Flags())

	checkCmd.Flags().StringVar(&outJSON, "json", "", "write the JSON report to this path")
	checkCmd.Flags().StringVar(&outMD, "md", "", "write the Markdown report to this path (LLM summary goes to <name>.llm.md)")
}

// addCheckFlags registers the flags shared by check and batch
func addCheckFlags(fs *pflag.FlagSet) {
	fs.StringVar(&docPath, "doc", "README.md", "document to check, relative to the project root")
	fs.StringSliceVar(&ignoreList, "ignore", nil, "categories to skip (comma separated)")
	fs.StringSliceVar(&ignoreGlobs, "exclude", nil, "extra glob patterns of files to leave out of the scan")
	fs.BoolVar(&dynamic, "dynamic", false, "run documented commands in the sandbox")
	fs.BoolVar(&dryRun, "dry-run", false, "with --dynamic, only check command syntax")
	fs.BoolVar(&allowNetwork, "allow-network", false, "with --dynamic, let commands use the network")
	fs.DurationVar(&cmdTimeout, "cmd-timeout", 30*time.Second, "per-command timeout in the sandbox")
	fs.IntVar(&parallel, "parallel", 1, "code blocks verified concurrently in the sandbox")
	fs.BoolVar(&checkLinks, "check-links", false, "check external http(s) links online")
	fs.StringVar(&repoURL, "repo-url", "", "regex matching absolute links to this repository")
	fs.IntVar(&workers, "workers", 0, "source extraction workers (default: number of CPUs)")
	fs.BoolVar(&noCache, "no-cache", false, "disable the link-check cache")
	fs.BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	fs.BoolVar(&noColor, "no-color", false, "disable colored terminal output")
	fs.BoolVar(&llmEnabled, "llm", false, "add an LLM summary (never affects the score)")
	fs.StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, ollama)")
	fs.StringVar(&llmModel, "llm-model", "", "LLM model name")
	fs.DurationVar(&checkTimeout, "timeout", 10*time.Minute, "overall timeout")
}

// applyCheckFlags overrides cfg with the flags the user actually set
func applyCheckFlags(fs *pflag.FlagSet, cfg *model.Config) {
	set := fs.Changed
	if set("doc") {
		cfg.Scan.Document = docPath
	}
	if set("ignore") {
		cfg.Checks.Ignore = trimAll(ignoreList)
	}
	if set("exclude") {
		cfg.Scan.IgnorePatterns = append(cfg.Scan.IgnorePatterns, ignoreGlobs...)
	}
	if set("dynamic") {
		cfg.Dynamic.Enabled = dynamic
	}
	if set("dry-run") {
		cfg.Dynamic.DryRun = dryRun
	}
	if set("allow-network") {
		cfg.Dynamic.AllowNetwork = allowNetwork
	}
	if set("cmd-timeout") {
		cfg.Dynamic.Timeout = cmdTimeout
	}
	if set("parallel") {
		cfg.Dynamic.Parallel = parallel
	}
	if set("check-links") {
		cfg.Checks.CheckExternalLinks = checkLinks
	}
	if set("repo-url") {
		cfg.Checks.RepoURLPattern = repoURL
	}
	if set("workers") {
		cfg.Concurrency.Workers = workers
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if noColor {
		cfg.Output.Color = false
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	if llmEnabled {
		if set("llm-provider") || cfg.LLM.Provider == "" {
			cfg.LLM.Provider = llmProvider
		}
		if llmModel != "" {
			cfg.LLM.Model = llmModel
		}
		if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	} else {
		cfg.LLM.Provider = ""
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// buildConfig loads file and environment settings and applies the flags of cmd
func buildConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	applyCheckFlags(cmd.Flags(), cfg)
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey == "" {
		return nil, &model.ConfigurationError{Field: "llm.api_key", Reason: "OPENAI_API_KEY environment variable not set"}
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT/SIGTERM or after the overall timeout.
// Cancellation reaches sandboxed processes through the pipeline.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func useColor(cfg *model.Config) bool {
	if !cfg.Output.Color || os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s (%s)\n", root, cfg.Scan.Document)
		fmt.Fprintf(os.Stderr, "Dynamic:  %v (dry-run %v, network %v, timeout %v)\n",
			cfg.Dynamic.Enabled, cfg.Dynamic.DryRun, cfg.Dynamic.AllowNetwork, cfg.Dynamic.Timeout)
		fmt.Fprintln(os.Stderr)
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	report, err := p.Check(ctx, root)
	if err != nil {
		if ctx.Err() != nil {
			return &ExitError{Code: 2, Err: fmt.Errorf("check interrupted: %w", err)}
		}
		return err
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter, cfg.Output.Verbose)
	if err := renderer.RenderTerminal(cmd.OutOrStdout(), report, useColor(cfg)); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	written, err := renderer.WriteReports(report, outJSON, outMD)
	for _, path := range written {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
	}
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if report.LLM != nil && !report.LLM.Enabled {
		for _, w := range report.LLM.Warnings {
			fmt.Fprintf(os.Stderr, "⚠ LLM: %s\n", w)
		}
	}

	if report.Failed() {
		return &ExitError{Code: 1}
	}
	return nil
}
