package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/readmecheck/internal/model"
)

// Renderer writes reports as JSON, Markdown or styled terminal text
type Renderer struct {
	includeFooter bool
	verbose       bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter, verbose bool) *Renderer {
	return &Renderer{includeFooter: includeFooter, verbose: verbose}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// RenderMarkdown writes the report as a Markdown document
func (r *Renderer) RenderMarkdown(w io.Writer, report *model.Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# README check: %s\n\n", filepath.Base(report.Project))
	fmt.Fprintf(&b, "- **Document:** `%s`\n", report.Document)
	fmt.Fprintf(&b, "- **Score:** %d/100 (%s, grade %s)\n", report.Score.Value, report.Score.Rating, report.Score.Grade)
	fmt.Fprintf(&b, "- **Files:** %d scanned, %d analyzed, %d lines of code\n", report.Metrics.Files, report.Metrics.Analyzed, report.Metrics.LOC)
	fmt.Fprintf(&b, "- **Claims / facts:** %d / %d\n\n", report.Claims, report.Facts)

	b.WriteString("## Categories\n\n")
	b.WriteString("| Category | Status | Score | Errors | Warnings |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, res := range report.OrderedResults() {
		errs, warns := res.Counts()
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d |\n", res.Category, res.Status, res.Score, errs, warns)
	}
	b.WriteString("\n")

	for _, res := range report.OrderedResults() {
		if len(res.Issues) == 0 && len(res.Verifications) == 0 && (!r.verbose || len(res.Notes) == 0) {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", res.Category)
		for _, is := range res.Issues {
			fmt.Fprintf(&b, "- **%s** `%s`: %s\n", is.Severity, is.Location, escapeMarkdown(is.Message))
			if is.Suggestion != "" {
				fmt.Fprintf(&b, "  - suggestion: %s\n", escapeMarkdown(is.Suggestion))
			}
		}
		if len(res.Verifications) > 0 {
			b.WriteString("\n| Command | Location | Outcome | Exit | Reason |\n|---|---|---|---|---|\n")
			for _, v := range res.Verifications {
				outcome := string(v.Outcome)
				if v.DryRun {
					outcome += " (dry-run)"
				}
				fmt.Fprintf(&b, "| `%s` | %s | %s | %d | %s |\n",
					strings.ReplaceAll(v.Command, "|", `\|`), v.Location, outcome, v.ExitCode, strings.ReplaceAll(v.Reason, "|", `\|`))
			}
		}
		if r.verbose && len(res.Notes) > 0 {
			b.WriteString("\nNotes:\n\n")
			for _, n := range res.Notes {
				fmt.Fprintf(&b, "- %s\n", escapeMarkdown(n))
			}
		}
		b.WriteString("\n")
	}

	if len(report.Diagnostics) > 0 {
		b.WriteString("## Skipped files\n\n")
		for _, d := range report.Diagnostics {
			fmt.Fprintf(&b, "- `%s`: %s\n", d.File, escapeMarkdown(d.Message))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Score breakdown\n\n")
	for _, s := range report.Score.Signals {
		fmt.Fprintf(&b, "- **%s**: %s", s.Type, s.Description)
		if f, ok := s.Data["formula"]; ok {
			fmt.Fprintf(&b, " (`%v`)", f)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "\n---\n\n_Generated by readmecheck at %s. Scores describe agreement between documentation and code, not code quality._\n",
			report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderLLMMarkdown writes the optional summary as its own document so it is
// never mistaken for the deterministic report
func (r *Renderer) RenderLLMMarkdown(w io.Writer, summary *model.LLMSummary) error {
	var b strings.Builder
	b.WriteString("# LLM summary\n\n")
	fmt.Fprintf(&b, "_Provider: %s, model: %s. This summary is advisory and does not affect the score._\n\n", summary.Provider, summary.Model)
	b.WriteString(summary.SummaryMD)
	b.WriteString("\n")
	if len(summary.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type styles struct {
	title, bold, muted, ok, warn, fail lipgloss.Style
}

func newStyles(lr *lipgloss.Renderer, color bool) styles {
	if !color {
		plain := lr.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain}
	}
	return styles{
		title: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7")),
		bold:  lr.NewStyle().Bold(true),
		muted: lr.NewStyle().Foreground(lipgloss.Color("#6C7A89")),
		ok:    lr.NewStyle().Foreground(lipgloss.Color("#2CD7C7")),
		warn:  lr.NewStyle().Foreground(lipgloss.Color("#F4D03F")),
		fail:  lr.NewStyle().Foreground(lipgloss.Color("#E74C3C")),
	}
}

// RenderTerminal writes a human-readable report. color is decided by the
// caller, usually from whether w is a terminal.
func (r *Renderer) RenderTerminal(w io.Writer, report *model.Report, color bool) error {
	st := newStyles(lipgloss.NewRenderer(w), color)
	rule := strings.Repeat("═", 60)

	var b strings.Builder
	fmt.Fprintln(&b, st.muted.Render(rule))
	fmt.Fprintln(&b, st.title.Render("README CHECK: "+filepath.Base(report.Project)))
	fmt.Fprintln(&b, st.muted.Render(rule))

	scoreStyle := st.ok
	switch report.Score.Rating {
	case model.RatingSuspicious:
		scoreStyle = st.warn
	case model.RatingUntrustworthy:
		scoreStyle = st.fail
	}
	fmt.Fprintf(&b, "Document: %s\n", report.Document)
	fmt.Fprintf(&b, "Score:    %s\n\n", scoreStyle.Render(fmt.Sprintf("%d/100 %s (grade %s)", report.Score.Value, report.Score.Rating, report.Score.Grade)))

	for _, res := range report.OrderedResults() {
		mark, style := "✓", st.ok
		switch res.Status {
		case model.StatusWarn:
			mark, style = "⚠", st.warn
		case model.StatusFail:
			mark, style = "✗", st.fail
		}
		errs, warns := res.Counts()
		fmt.Fprintf(&b, "%s %-12s %s %3d", style.Render(mark), res.Category, style.Render(fmt.Sprintf("%-4s", res.Status)), res.Score)
		if errs+warns > 0 {
			fmt.Fprintf(&b, "  %s", st.muted.Render(fmt.Sprintf("%d errors, %d warnings", errs, warns)))
		}
		b.WriteString("\n")

		for _, is := range res.Issues {
			sev := st.warn.Render("warning")
			if is.Severity == model.SeverityError {
				sev = st.fail.Render("error  ")
			}
			fmt.Fprintf(&b, "    %s %s %s\n", sev, st.bold.Render(is.Location.String()), is.Message)
			if is.Suggestion != "" {
				fmt.Fprintf(&b, "            %s\n", st.muted.Render("→ "+is.Suggestion))
			}
		}
		if r.verbose {
			for _, v := range res.Verifications {
				fmt.Fprintf(&b, "    %s %s %s\n", st.muted.Render(string(v.Outcome)), v.Location, v.Command)
			}
			for _, n := range res.Notes {
				fmt.Fprintf(&b, "    %s\n", st.muted.Render("• "+n))
			}
		}
	}

	if len(report.Diagnostics) > 0 {
		fmt.Fprintf(&b, "\n%s\n", st.bold.Render("Skipped files"))
		for _, d := range report.Diagnostics {
			fmt.Fprintf(&b, "    %s: %s\n", d.File, st.muted.Render(d.Message))
		}
	}

	if r.verbose {
		fmt.Fprintf(&b, "\n%s\n", st.bold.Render("Score breakdown"))
		for _, s := range report.Score.Signals {
			fmt.Fprintf(&b, "    %s: %s\n", s.Type, s.Description)
		}
		if len(report.Metrics.Todos) > 0 {
			markers := make([]string, 0, len(report.Metrics.Todos))
			for m := range report.Metrics.Todos {
				markers = append(markers, m)
			}
			sort.Strings(markers)
			parts := make([]string, len(markers))
			for i, m := range markers {
				parts[i] = fmt.Sprintf("%s=%d", m, report.Metrics.Todos[m])
			}
			fmt.Fprintf(&b, "    markers: %s\n", strings.Join(parts, " "))
		}
	}

	if report.LLM != nil && report.LLM.Enabled {
		fmt.Fprintf(&b, "\n%s\n%s\n", st.bold.Render("Summary ("+report.LLM.Provider+")"), report.LLM.SummaryMD)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteReports writes the JSON and Markdown files that were requested. The
// LLM summary goes to a sibling .llm.md file next to the Markdown report.
// It returns the paths written.
func (r *Renderer) WriteReports(report *model.Report, jsonPath, mdPath string) ([]string, error) {
	var written []string

	if jsonPath != "" {
		if err := writeFile(jsonPath, func(w io.Writer) error { return r.RenderJSON(w, report) }); err != nil {
			return written, fmt.Errorf("render JSON: %w", err)
		}
		written = append(written, jsonPath)
	}

	if mdPath != "" {
		if err := writeFile(mdPath, func(w io.Writer) error { return r.RenderMarkdown(w, report) }); err != nil {
			return written, fmt.Errorf("render markdown: %w", err)
		}
		written = append(written, mdPath)

		if report.LLM != nil && report.LLM.Enabled {
			llmPath := strings.TrimSuffix(mdPath, ".md") + ".llm.md"
			if err := writeFile(llmPath, func(w io.Writer) error { return r.RenderLLMMarkdown(w, report.LLM) }); err != nil {
				return written, fmt.Errorf("render LLM summary: %w", err)
			}
			written = append(written, llmPath)
		}
	}

	return written, nil
}

func writeFile(path string, render func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var markdownEscaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "<", "&lt;")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
