package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/readmecheck/internal/model"
)

// Summarizer attaches an optional LLM summary to a finished report. It never
// changes scores or results.
type Summarizer struct {
	provider Provider
	config   Config
	logger   *zap.Logger
}

// NewSummarizer creates a summarizer. A disabled config yields a summarizer
// whose GenerateSummary returns nil.
func NewSummarizer(config Config, logger *zap.Logger) (*Summarizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config, logger: logger}, nil
}

func (s *Summarizer) IsEnabled() bool {
	return s.provider != nil
}

func (s *Summarizer) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary asks the provider for a summary and checks every cited
// location against the report. A summary citing unknown locations is
// discarded. Provider failures are reported as warnings, not errors.
func (s *Summarizer) GenerateSummary(ctx context.Context, report model.Report) (*model.LLMSummary, error) {
	if s.provider == nil {
		return nil, nil
	}

	name := s.provider.Name()
	out := &model.LLMSummary{Provider: name, Model: s.config.Model}

	if !s.provider.IsAvailable(ctx) {
		out.Warnings = append(out.Warnings, fmt.Sprintf("LLM provider %s is not available", name))
		return out, nil
	}

	locations := ReportLocations(report)
	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Report:    report,
		Locations: locations,
		Model:     s.config.Model,
		MaxTokens: s.config.MaxTokens,
	})
	if err != nil {
		s.logger.Warn("llm summary failed", zap.String("provider", name), zap.Error(err))
		out.Warnings = append(out.Warnings, fmt.Sprintf("summary failed: %v", err))
		return out, nil
	}

	allowed := make(map[string]bool, len(locations))
	for _, loc := range locations {
		allowed[loc] = true
	}
	var unknown []string
	for _, loc := range resp.CitedLocations {
		if !allowed[loc] {
			unknown = append(unknown, loc)
		}
	}

	out.Model = resp.Model
	if len(unknown) > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("summary discarded: cited locations not in the report: %v", unknown))
		return out, nil
	}

	out.Enabled = true
	out.SummaryMD = resp.Summary
	if resp.TokensUsed > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	}
	if n := len(resp.CitedLocations); n > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("Verified %d cited locations", n))
	}
	return out, nil
}
