package score

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ppiankov/readmecheck/internal/model"
)

// Severity and category weights of the overall deduction
var (
	severityWeights = map[model.Severity]float64{
		model.SeverityError:   1.0,
		model.SeverityWarning: 0.5,
	}
	categoryWeights = map[model.Category]float64{
		model.CategoryLinks:      1.0,
		model.CategoryCodeBlocks: 0.5,
		model.CategoryEnvVars:    1.5,
		model.CategorySystemDeps: 1.0,
		model.CategoryMetadata:   0.8,
		model.CategoryCommands:   1.2,
	}
	// TodoWeights weighs debt markers by how urgent they usually are
	TodoWeights = map[string]float64{
		"FIXME":    1.0,
		"HACK":     0.8,
		"XXX":      0.7,
		"TODO":     0.5,
		"OPTIMIZE": 0.3,
		"NOTE":     0.1,
	}
)

const (
	issueScale     = 10
	maxTodoPenalty = 10

	// hype words on fewer lines of code than this are over-claimed
	hypeLOCThreshold = 100
	// completeness claims with more open debt markers than this are half-baked
	todoCountThreshold = 10
	claimPenalty       = 5
)

// debtMarkers are the markers counted against completeness claims
var debtMarkers = []string{"FIXME", "HACK", "TODO", "XXX"}

// Scorer calculates the trust score and its signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate derives the overall score from category results, raw metrics and
// the document's hype and completeness claims. It is a pure function of its inputs.
func (s *Scorer) Calculate(results map[model.Category]model.ReconciliationResult, metrics model.Metrics, claims []model.Claim) model.Score {
	var signals []model.Signal

	// 1. Issue deductions, one signal per reconciled category
	deduction := 0.0
	for _, category := range model.AllCategories {
		result, ok := results[category]
		if !ok {
			continue
		}
		d, signal := s.categoryDeduction(result)
		deduction += d
		signals = append(signals, signal)
	}

	// 2. TODO density
	todoPenalty, todoSignal := s.todoDensity(metrics)
	signals = append(signals, todoSignal)

	// 3. Code size, informational
	signals = append(signals, model.Signal{
		Type:        model.SignalCodeSize,
		Description: fmt.Sprintf("%d files, %d lines of code, %d analyzed", metrics.Files, metrics.LOC, metrics.Analyzed),
		Data: map[string]interface{}{
			"files":    metrics.Files,
			"loc":      metrics.LOC,
			"analyzed": metrics.Analyzed,
		},
	})

	// 4. Claims the codebase cannot back up
	claimDeduction := 0.0
	if d, signal, ok := s.hype(claims, metrics); ok {
		claimDeduction += d
		signals = append(signals, signal)
	}
	if d, signal, ok := s.completeness(claims, metrics); ok {
		claimDeduction += d
		signals = append(signals, signal)
	}

	value := int(math.Round(100 - deduction - todoPenalty - claimDeduction))
	value = max(0, min(100, value))

	return model.Score{
		Value:   value,
		Rating:  RatingOf(value),
		Grade:   GradeOf(value),
		Signals: signals,
	}
}

// categoryDeduction sums severity_weight * category_weight * 10 over the issues
func (s *Scorer) categoryDeduction(result model.ReconciliationResult) (float64, model.Signal) {
	errs, warns := result.Counts()
	weight := categoryWeights[result.Category]

	deduction := 0.0
	for _, is := range result.Issues {
		deduction += severityWeights[is.Severity] * weight * issueScale
	}

	return deduction, model.Signal{
		Type:        model.SignalIssuePenalty,
		Description: fmt.Sprintf("%s: %d errors, %d warnings (-%.1f)", result.Category, errs, warns, deduction),
		Data: map[string]interface{}{
			"category":        string(result.Category),
			"errors":          errs,
			"warnings":        warns,
			"category_weight": weight,
			"deduction":       deduction,
			"formula":         "sum(severity_weight * category_weight * 10), error=1.0 warning=0.5",
		},
	}
}

// todoDensity weighs TODO markers per thousand lines of code
func (s *Scorer) todoDensity(metrics model.Metrics) (float64, model.Signal) {
	if metrics.LOC <= 0 {
		return 0, model.Signal{
			Type:        model.SignalTodoDensity,
			Description: "No lines of code counted",
			Data:        map[string]interface{}{"loc": 0, "penalty": 0.0},
		}
	}

	markers := make([]string, 0, len(metrics.Todos))
	for m := range metrics.Todos {
		markers = append(markers, m)
	}
	sort.Strings(markers)

	weighted := 0.0
	for _, m := range markers {
		weighted += TodoWeights[m] * float64(metrics.Todos[m])
	}
	density := weighted / (float64(metrics.LOC) / 1000)
	penalty := math.Min(density, maxTodoPenalty)

	return penalty, model.Signal{
		Type:        model.SignalTodoDensity,
		Description: fmt.Sprintf("Weighted TODO density: %.2f per KLOC (-%.1f)", density, penalty),
		Data: map[string]interface{}{
			"markers":  metrics.Todos,
			"weighted": weighted,
			"loc":      metrics.LOC,
			"density":  density,
			"penalty":  penalty,
			"formula":  "min(sum(marker_weight * count) / (loc / 1000), 10)",
		},
	}
}

// hype compares marketing superlatives with the size of the codebase
func (s *Scorer) hype(claims []model.Claim, metrics model.Metrics) (float64, model.Signal, bool) {
	words, locations := claimValues(claims, model.ClaimHypeMention)
	if len(words) == 0 {
		return 0, model.Signal{}, false
	}
	penalty := 0.0
	desc := fmt.Sprintf("Claims %s with %d lines of code", strings.Join(words, ", "), metrics.LOC)
	if metrics.LOC < hypeLOCThreshold {
		penalty = claimPenalty
		desc = fmt.Sprintf("Over-hyped: claims %s but has only %d lines of code (-%d)", strings.Join(words, ", "), metrics.LOC, claimPenalty)
	}
	return penalty, model.Signal{
		Type:        model.SignalHype,
		Description: desc,
		Data: map[string]interface{}{
			"words":     words,
			"locations": locations,
			"loc":       metrics.LOC,
			"threshold": hypeLOCThreshold,
			"penalty":   penalty,
		},
	}, true
}

// completeness compares maturity claims with the open debt markers
func (s *Scorer) completeness(claims []model.Claim, metrics model.Metrics) (float64, model.Signal, bool) {
	words, locations := claimValues(claims, model.ClaimCompleteness)
	if len(words) == 0 {
		return 0, model.Signal{}, false
	}
	todos := 0
	for _, m := range debtMarkers {
		todos += metrics.Todos[m]
	}
	penalty := 0.0
	desc := fmt.Sprintf("Claims %s with %d open TODO markers", strings.Join(words, ", "), todos)
	if todos > todoCountThreshold {
		penalty = claimPenalty
		desc = fmt.Sprintf("Half-baked: claims %s but has %d open TODO markers (-%d)", strings.Join(words, ", "), todos, claimPenalty)
	}
	return penalty, model.Signal{
		Type:        model.SignalCompleteness,
		Description: desc,
		Data: map[string]interface{}{
			"words":     words,
			"locations": locations,
			"todos":     todos,
			"threshold": todoCountThreshold,
			"penalty":   penalty,
		},
	}, true
}

func claimValues(claims []model.Claim, kind model.ClaimKind) ([]string, []string) {
	var words, locations []string
	for _, c := range model.ClaimsOfKind(claims, kind) {
		words = append(words, c.Value)
		locations = append(locations, c.Location.String())
	}
	return words, locations
}

// RatingOf maps a score to its rating tier
func RatingOf(value int) model.Rating {
	switch {
	case value >= 80:
		return model.RatingTrustworthy
	case value >= 50:
		return model.RatingSuspicious
	default:
		return model.RatingUntrustworthy
	}
}

// GradeOf maps a score to a letter grade
func GradeOf(value int) string {
	switch {
	case value >= 90:
		return "A"
	case value >= 80:
		return "B"
	case value >= 70:
		return "C"
	case value >= 60:
		return "D"
	default:
		return "F"
	}
}
