package model

import "time"

// Report is the single structured value handed to renderers
type Report struct {
	Project     string    `json:"project"`      // Project root that was checked
	Document    string    `json:"document"`     // Document path relative to the root
	GeneratedAt time.Time `json:"generated_at"` // When the check ran

	Results map[Category]ReconciliationResult `json:"results"` // Absent keys were ignored

	Score       Score        `json:"score"`
	Metrics     Metrics      `json:"metrics"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"` // Files that could not be analyzed

	Facts  int `json:"facts"`  // Number of facts after dedupe
	Claims int `json:"claims"` // Number of claims

	LLM *LLMSummary `json:"llm,omitempty"` // Optional LLM summary (separate, never affects score)
}

// Failed reports whether any category resolved to fail
func (r *Report) Failed() bool {
	for _, result := range r.Results {
		if result.Status == StatusFail {
			return true
		}
	}
	return false
}

// OrderedResults returns the present results in category order
func (r *Report) OrderedResults() []ReconciliationResult {
	var out []ReconciliationResult
	for _, c := range AllCategories {
		if result, ok := r.Results[c]; ok {
			out = append(out, result)
		}
	}
	return out
}

// Metrics are raw counts supplied to the scorer
type Metrics struct {
	Files    int            `json:"files"`
	LOC      int            `json:"loc"`
	Todos    map[string]int `json:"todos,omitempty"` // marker -> count (TODO, FIXME, ...)
	Analyzed int            `json:"analyzed"`        // Files handled by a fact adapter
}

// Score is the transparent scoring breakdown
type Score struct {
	Value   int      `json:"value"`  // 0-100
	Rating  Rating   `json:"rating"` // trustworthy, suspicious, untrustworthy
	Grade   string   `json:"grade"`  // A-F
	Signals []Signal `json:"signals"`
}

// Rating tier derived from the score
type Rating string

const (
	RatingTrustworthy   Rating = "trustworthy"
	RatingSuspicious    Rating = "suspicious"
	RatingUntrustworthy Rating = "untrustworthy"
)

// Signal is one scoring component with its inputs and formula
type Signal struct {
	Type        SignalType             `json:"type"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies scoring components
type SignalType string

const (
	SignalIssuePenalty SignalType = "issue_penalty"
	SignalTodoDensity  SignalType = "todo_density"
	SignalCodeSize     SignalType = "code_size"
	SignalHype         SignalType = "hype"
	SignalCompleteness SignalType = "completeness"
)

// Outcome of a sandboxed command
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomeBlocked  Outcome = "blocked"
)

// Verification records one sandboxed command run
type Verification struct {
	Command  string        `json:"command"`
	Location Location      `json:"location"`
	Outcome  Outcome       `json:"outcome"`
	DryRun   bool          `json:"dry_run,omitempty"`
	ExitCode int           `json:"exit_code,omitempty"` // -1 when the process could not be started
	Duration time.Duration `json:"duration_ns,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Stderr   string        `json:"stderr,omitempty"` // Tail of stderr
}

// LLMSummary contains an optional LLM-generated summary.
// It never affects scoring.
type LLMSummary struct {
	Enabled   bool     `json:"enabled"`
	Provider  string   `json:"provider,omitempty"`
	Model     string   `json:"model,omitempty"`
	SummaryMD string   `json:"summary_md,omitempty"`
	Warnings  []string `json:"warnings,omitempty"` // e.g. cited locations not present in the report
}

// LinkStatus is the result of an online check of one external URL
type LinkStatus struct {
	URL        string `json:"url"`
	Alive      bool   `json:"alive"`
	Dead       bool   `json:"dead,omitempty"` // 404/410 or unreachable host
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	Skipped    string `json:"skipped,omitempty"` // e.g. disallowed by robots.txt
}
