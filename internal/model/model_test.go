package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown category", func(c *Config) { c.Checks.Ignore = []string{"links", "spelling"} }, "ignore"},
		{"all categories", func(c *Config) {
			for _, cat := range AllCategories {
				c.Checks.Ignore = append(c.Checks.Ignore, string(cat))
			}
		}, "ignore"},
		{"dry run without dynamic", func(c *Config) { c.Dynamic.DryRun = true }, "dynamic.dry_run"},
		{"network without dynamic", func(c *Config) { c.Dynamic.AllowNetwork = true }, "dynamic.allow_network"},
		{"zero timeout", func(c *Config) { c.Dynamic.Enabled = true; c.Dynamic.Timeout = 0 }, "dynamic.timeout"},
		{"zero workers", func(c *Config) { c.Concurrency.Workers = 0 }, "concurrency.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestIgnoredCategories_CaseAndDuplicates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Checks.Ignore = []string{"Links", "links", " env-vars "}

	ignored, err := cfg.IgnoredCategories()
	require.NoError(t, err)
	assert.Equal(t, map[Category]bool{CategoryLinks: true, CategoryEnvVars: true}, ignored)
}

func TestNewResult_StatusInvariant(t *testing.T) {
	warn := Issue{Severity: SeverityWarning, Category: CategoryLinks, Message: "w"}
	fail := Issue{Severity: SeverityError, Category: CategoryLinks, Message: "e"}

	assert.Equal(t, StatusPass, NewResult(CategoryLinks, nil).Status)
	assert.Equal(t, StatusWarn, NewResult(CategoryLinks, []Issue{warn, warn}).Status)
	assert.Equal(t, StatusFail, NewResult(CategoryLinks, []Issue{warn, fail}).Status)
}

func TestCategoryScore_Monotonic(t *testing.T) {
	var issues []Issue
	prev := CategoryScore(issues)
	assert.Equal(t, 100, prev)

	for i := 0; i < 10; i++ {
		sev := SeverityWarning
		if i%2 == 0 {
			sev = SeverityError
		}
		issues = append(issues, Issue{Severity: sev})
		score := CategoryScore(issues)
		assert.LessOrEqual(t, score, prev)
		assert.GreaterOrEqual(t, score, 0)
		prev = score
	}
}

func TestNewResult_SortsIssues(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityError, Message: "b", Location: Location{File: "z.go", Line: 1}},
		{Severity: SeverityError, Message: "a", Location: Location{File: "a.go", Line: 9}},
		{Severity: SeverityError, Message: "c", Location: Location{File: "a.go", Line: 2}},
	}

	result := NewResult(CategoryEnvVars, issues)
	require.Len(t, result.Issues, 3)
	assert.Equal(t, "c", result.Issues[0].Message)
	assert.Equal(t, "a", result.Issues[1].Message)
	assert.Equal(t, "b", result.Issues[2].Message)
	assert.Equal(t, "b", issues[0].Message, "input must not be mutated")
}

func TestDedupeFacts(t *testing.T) {
	loc := Location{File: "main.go", Line: 3}
	facts := []Fact{
		{Kind: FactSystemToolCall, Name: "ffmpeg", Location: loc, Confidence: ConfidenceLow},
		{Kind: FactSystemToolCall, Name: "ffmpeg", Location: loc, Confidence: ConfidenceHigh},
		{Kind: FactSystemToolCall, Name: "ffmpeg", Location: Location{File: "main.go", Line: 4}, Confidence: ConfidenceLow},
		{Kind: FactEnvVarRead, Name: "ffmpeg", Location: loc, Confidence: ConfidenceLow},
	}

	out := DedupeFacts(facts)
	require.Len(t, out, 3)
	assert.Equal(t, ConfidenceHigh, FactsOfKind(out, FactSystemToolCall)[0].Confidence)
}
