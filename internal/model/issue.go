package model

import (
	"fmt"
	"sort"
	"strings"
)

// Severity of an issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Category is the closed set of reconciliation categories
type Category string

const (
	CategoryLinks      Category = "links"
	CategoryCodeBlocks Category = "code-blocks"
	CategoryEnvVars    Category = "env-vars"
	CategorySystemDeps Category = "system-deps"
	CategoryMetadata   Category = "metadata"
	CategoryCommands   Category = "commands"
)

// AllCategories lists every category in reconciliation order
var AllCategories = []Category{
	CategoryLinks,
	CategoryCodeBlocks,
	CategoryEnvVars,
	CategorySystemDeps,
	CategoryMetadata,
	CategoryCommands,
}

// ParseCategory parses a category key
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, c := range AllCategories {
		if string(c) == key {
			return c, nil
		}
	}
	return "", &ConfigurationError{
		Field:  "ignore",
		Reason: fmt.Sprintf("unknown category %q (valid: %s)", s, categoryList()),
	}
}

func categoryList() string {
	names := make([]string, len(AllCategories))
	for i, c := range AllCategories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// Status of a category after reconciliation
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Per-issue score penalties within a category
const (
	ErrorPenalty   = 15
	WarningPenalty = 5
)

// Issue is a single discrepancy between documentation and code
type Issue struct {
	Severity   Severity `json:"severity"`
	Category   Category `json:"category"`
	Message    string   `json:"message"`
	Location   Location `json:"location"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// ReconciliationResult is the outcome of one category pass
type ReconciliationResult struct {
	Category      Category       `json:"category"`
	Status        Status         `json:"status"`
	Score         int            `json:"score"`
	Issues        []Issue        `json:"issues"`
	Verifications []Verification `json:"verifications,omitempty"` // Sandbox outcomes (commands only)
	Notes         []string       `json:"notes,omitempty"`         // Verbose-only observations
}

// NewResult builds a result from the issues of one category. Issues are
// sorted by location and message, then status and score are derived.
func NewResult(category Category, issues []Issue) ReconciliationResult {
	sorted := make([]Issue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Location != b.Location {
			return a.Location.Less(b.Location)
		}
		return a.Message < b.Message
	})

	return ReconciliationResult{
		Category: category,
		Status:   StatusOf(sorted),
		Score:    CategoryScore(sorted),
		Issues:   sorted,
	}
}

// StatusOf derives the category status: fail iff any error, warn iff only warnings
func StatusOf(issues []Issue) Status {
	status := StatusPass
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			return StatusFail
		case SeverityWarning:
			status = StatusWarn
		}
	}
	return status
}

// CategoryScore returns 100 minus the per-issue penalties, floored at 0
func CategoryScore(issues []Issue) int {
	score := 100
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			score -= ErrorPenalty
		} else {
			score -= WarningPenalty
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Counts returns the number of errors and warnings
func (r ReconciliationResult) Counts() (errors, warnings int) {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			errors++
		} else {
			warnings++
		}
	}
	return errors, warnings
}
