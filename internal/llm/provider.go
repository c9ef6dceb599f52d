package llm

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/readmecheck/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a summary of the report
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	Report model.Report

	// Locations is the allowlist of file:line locations the model may cite
	Locations []string

	Prompt    string // Optional custom prompt
	Model     string
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary        string
	CitedLocations []string // file:line references found in Summary
	Model          string
	TokensUsed     int
}

// Config holds LLM provider configuration
type Config struct {
	Provider  string // openai, ollama, "" (disabled)
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   int // seconds
	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel builds the provider config from the application config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Timeout:    cfg.LLM.Timeout,
		MaxTokens:  cfg.LLM.MaxTokens,
		HTTPProxy:  cfg.HTTP.HTTPProxy,
		HTTPSProxy: cfg.HTTP.HTTPSProxy,
		NoProxy:    cfg.HTTP.NoProxy,
	}
}

const systemPrompt = "You summarize documentation audit reports. You only describe findings that are in the report and never invent files, lines or issues."

// BuildPrompt constructs the default summarization prompt
func BuildPrompt(report model.Report, locations []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Summarize this README audit. The audit compares what the documentation claims with what the code actually contains.

RULES:
1. You may only cite locations (file:line) from this list:
%s

2. Do not mention files, commands or variables that are not in the findings below.
3. Describe the most important problems first and say what a maintainer should fix.

Report:
- Project: %s
- Document: %s
- Score: %d/100 (%s, grade %s)

Findings:
`, joinLocations(locations), report.Project, report.Document, report.Score.Value, report.Score.Rating, report.Score.Grade)

	for _, result := range report.OrderedResults() {
		errs, warns := result.Counts()
		fmt.Fprintf(&b, "\n[%s] %s: %d errors, %d warnings\n", result.Category, result.Status, errs, warns)
		for i, issue := range result.Issues {
			if i >= 10 {
				fmt.Fprintf(&b, "  ... and %d more\n", len(result.Issues)-10)
				break
			}
			fmt.Fprintf(&b, "  - %s %s: %s\n", issue.Severity, issue.Location, issue.Message)
		}
	}

	b.WriteString("\nProvide a 3-5 sentence summary in Markdown.")
	return b.String()
}

// ReportLocations returns the sorted, unique issue locations of a report
func ReportLocations(report model.Report) []string {
	seen := make(map[string]bool)
	var out []string
	for _, result := range report.OrderedResults() {
		for _, issue := range result.Issues {
			loc := issue.Location.String()
			if loc == "" || seen[loc] {
				continue
			}
			seen[loc] = true
			out = append(out, loc)
		}
	}
	sort.Strings(out)
	return out
}

func joinLocations(locations []string) string {
	if len(locations) == 0 {
		return "(no locations; the report has no issues)"
	}
	var b strings.Builder
	for i, loc := range locations {
		if i >= 40 {
			fmt.Fprintf(&b, "\n... and %d more", len(locations)-40)
			break
		}
		b.WriteString("\n- ")
		b.WriteString(loc)
	}
	return b.String()
}

var (
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	locationPattern = regexp.MustCompile(`[A-Za-z0-9_./-]*[A-Za-z0-9_-]\.[A-Za-z0-9]+:\d+`)
)

// extractLocations finds file:line references in text, ignoring URLs
func extractLocations(text string) []string {
	text = urlPattern.ReplaceAllString(text, " ")
	seen := make(map[string]bool)
	var out []string
	for _, m := range locationPattern.FindAllString(text, -1) {
		m = strings.TrimPrefix(m, "./")
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
