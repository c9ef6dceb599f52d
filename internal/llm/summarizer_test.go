package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/readmecheck/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name      string
	available bool
	response  *SummarizeResponse
	err       error
	request   SummarizeRequest
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	m.request = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

func sampleReport() model.Report {
	issues := []model.Issue{
		{Severity: model.SeverityError, Category: model.CategoryCommands, Message: "script checker is not declared", Location: model.Location{File: "README.md", Line: 4}},
		{Severity: model.SeverityWarning, Category: model.CategoryCommands, Message: "untagged", Location: model.Location{File: "README.md", Line: 9}},
	}
	return model.Report{
		Project:  "demo",
		Document: "README.md",
		Results: map[model.Category]model.ReconciliationResult{
			model.CategoryCommands: model.NewResult(model.CategoryCommands, issues),
		},
		Score: model.Score{Value: 80, Rating: model.RatingTrustworthy, Grade: "B"},
	}
}

func hasWarning(summary *model.LLMSummary, substr string) bool {
	for _, w := range summary.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestNewSummarizer_Disabled(t *testing.T) {
	summarizer, err := NewSummarizer(Config{}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summarizer.IsEnabled() || summarizer.ProviderName() != "" {
		t.Error("Expected summarizer to be disabled")
	}

	summary, err := summarizer.GenerateSummary(context.Background(), sampleReport())
	if err != nil || summary != nil {
		t.Errorf("Expected nil summary and no error, got %v, %v", summary, err)
	}
}

func TestNewSummarizer_UnknownProvider(t *testing.T) {
	if _, err := NewSummarizer(Config{Provider: "nope"}, nil); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestSummarizer_ProviderUnavailable(t *testing.T) {
	summarizer := &Summarizer{provider: &MockProvider{name: "mock"}}

	summary, err := summarizer.GenerateSummary(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary.Enabled {
		t.Error("Expected summary to be disabled")
	}
	if !hasWarning(summary, "not available") {
		t.Errorf("Expected availability warning, got %v", summary.Warnings)
	}
}

func TestSummarizer_Success(t *testing.T) {
	mock := &MockProvider{
		name:      "mock",
		available: true,
		response: &SummarizeResponse{
			Summary:        "README.md:4 runs an undeclared script.",
			CitedLocations: []string{"README.md:4"},
			Model:          "test-model",
			TokensUsed:     150,
		},
	}
	summarizer := &Summarizer{provider: mock, config: Config{Model: "test-model"}}

	summary, err := summarizer.GenerateSummary(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !summary.Enabled || summary.Provider != "mock" || summary.Model != "test-model" {
		t.Errorf("Unexpected summary header: %+v", summary)
	}
	if summary.SummaryMD != "README.md:4 runs an undeclared script." {
		t.Errorf("Unexpected summary text %q", summary.SummaryMD)
	}
	if !hasWarning(summary, "Tokens used: 150") || !hasWarning(summary, "Verified 1 cited") {
		t.Errorf("Expected token and citation notes, got %v", summary.Warnings)
	}

	want := "README.md:4,README.md:9"
	if got := strings.Join(mock.request.Locations, ","); got != want {
		t.Errorf("Expected allowlist %s, got %s", want, got)
	}
}

func TestSummarizer_UnknownCitationDiscardsSummary(t *testing.T) {
	mock := &MockProvider{
		name:      "mock",
		available: true,
		response: &SummarizeResponse{
			Summary:        "main.go:99 is broken.",
			CitedLocations: []string{"main.go:99"},
		},
	}
	summarizer := &Summarizer{provider: mock}

	summary, err := summarizer.GenerateSummary(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary.Enabled || summary.SummaryMD != "" {
		t.Errorf("Expected summary to be discarded, got %+v", summary)
	}
	if !hasWarning(summary, "main.go:99") {
		t.Errorf("Expected warning naming the unknown location, got %v", summary.Warnings)
	}
}

func TestSummarizer_ProviderError(t *testing.T) {
	summarizer := &Summarizer{provider: &MockProvider{name: "mock", available: true, err: errors.New("boom")}}

	summary, err := summarizer.GenerateSummary(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("Provider errors must not fail the report, got %v", err)
	}
	if summary.Enabled || !hasWarning(summary, "boom") {
		t.Errorf("Expected disabled summary with error warning, got %+v", summary)
	}
}

func TestSummarizer_DoesNotTouchScore(t *testing.T) {
	report := sampleReport()
	before := report.Score.Value
	summarizer := &Summarizer{provider: &MockProvider{name: "mock", available: true, response: &SummarizeResponse{Summary: "ok"}}}

	if _, err := summarizer.GenerateSummary(context.Background(), report); err != nil {
		t.Fatal(err)
	}
	if report.Score.Value != before {
		t.Error("Summary must not change the score")
	}
}

func TestBuildPrompt(t *testing.T) {
	report := sampleReport()
	prompt := BuildPrompt(report, ReportLocations(report))

	for _, want := range []string{"README.md:4", "Score: 80/100", "[commands] fail: 1 errors, 1 warnings", "script checker is not declared"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}
