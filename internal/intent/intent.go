// Package intent decides whether a documented command line is meant to be
// run or merely illustrates something.
package intent

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/readmecheck/internal/command"
)

// Intent is the classification of a command line
type Intent string

const (
	Runnable    Intent = "runnable"
	Descriptive Intent = "descriptive"
	Ambiguous   Intent = "ambiguous"
)

// Context is what surrounds a command line in the document
type Context struct {
	Language string // fenced block tag, "" when untagged
	Before   string // prose immediately preceding the block
	Prompted bool   // a prompt was already stripped by the claim extractor
}

// Result is a classification with its evidence
type Result struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Scores are in tenths of confidence
const (
	runnableAt    = 5
	descriptiveAt = 1
)

var (
	negation = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:do\s+)?not\s+(?:run|execute|use)\b`),
		regexp.MustCompile(`(?i)\bnever\s+(?:run|execute|use)\b`),
		regexp.MustCompile(`(?i)\bavoid\s+(?:running|executing|using)\b`),
		regexp.MustCompile(`(?i)\bdon'?t\s+(?:run|execute|use)\b`),
		regexp.MustCompile(`(?i)\bdeprecated\b`),
		regexp.MustCompile(`(?i)\bno\s+longer\s+(?:supported|recommended|needed)\b`),
	}

	conditional = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bif\s+you\s+(?:want|need|prefer|would\s+like)\b`),
		regexp.MustCompile(`(?i)\boptionally\b`),
		regexp.MustCompile(`(?i)\balternatively\b`),
		regexp.MustCompile(`(?i)\byou\s+(?:can|may|might|could)\s+(?:also\s+)?(?:run|execute|use)\b`),
	}

	placeholder = []*regexp.Regexp{
		regexp.MustCompile(`<[A-Za-z][\w .-]*>`),
		regexp.MustCompile(`\[[a-z][\w-]*(?:\.\.\.)?\]`),
		regexp.MustCompile(`\{[a-z][\w-]*\}`),
		regexp.MustCompile(`\bYOUR_[A-Z0-9_]+\b|\byour[-_][a-z][\w-]*\b`),
		regexp.MustCompile(`\.\.\.|…`),
	}

	capsArg     = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,}$`)
	plainWord   = regexp.MustCompile(`^[a-z]+$`)
	commandWord = regexp.MustCompile(`^[a-z0-9_][a-z0-9_.+-]*$`)
	shellOps    = regexp.MustCompile(`&&|\|\||[|;<>]|\$\(|\$\{?[A-Za-z_]|\s-{1,2}[A-Za-z]`)
)

// Classifier classifies command lines. Project executables (declared bins,
// scripts, package names) count as recognized executables.
type Classifier struct {
	projectExecutables map[string]bool
}

// NewClassifier creates a classifier aware of the project's own executables
func NewClassifier(projectExecutables ...string) *Classifier {
	m := make(map[string]bool, len(projectExecutables))
	for _, e := range projectExecutables {
		if e != "" {
			m[strings.ToLower(e)] = true
		}
	}
	return &Classifier{projectExecutables: m}
}

// Classify scores the signals of a command line. Negation in the preceding
// prose forces Descriptive; otherwise the score decides, with Ambiguous
// between the two thresholds.
func (c *Classifier) Classify(line string, ctx Context) Result {
	var (
		score   int
		reasons []string
	)
	note := func(delta int, reason string) {
		score += delta
		reasons = append(reasons, reason)
	}

	for _, re := range negation {
		if re.MatchString(ctx.Before) {
			return Result{Intent: Descriptive, Confidence: 0.9, Reasons: []string{"negated in surrounding text: " + re.FindString(ctx.Before)}}
		}
	}

	text, prompted := command.StripPrompt(command.Head(line))
	if prompted || ctx.Prompted {
		note(3, "shell prompt")
	}
	text = strings.TrimSpace(text)

	segments := command.Segments(text)
	if len(segments) == 0 {
		return Result{Intent: Descriptive, Confidence: 1, Reasons: []string{"empty"}}
	}
	exe, args := command.Executable(segments[0])
	if exe == "" {
		return Result{Intent: Descriptive, Confidence: 1, Reasons: []string{"no executable"}}
	}

	capitalized := unicode.IsUpper([]rune(exe)[0])
	recognized := command.IsPath(exe) ||
		(!capitalized && (command.Known(exe) || c.projectExecutables[command.Name(exe)]))
	if recognized {
		note(4, "recognized executable "+exe)
	}

	lang := strings.ToLower(ctx.Language)
	switch {
	case lang != "" && command.IsShellLanguage(lang):
		note(3, "shell block")
	case lang != "":
		note(-5, "non-shell block "+lang)
	}

	if commandWord.MatchString(exe) || command.IsPath(exe) {
		if simpleArgs(args) {
			note(2, "command shape")
		}
	} else if capitalized {
		note(-3, "capitalized first word")
	}

	if !recognized && wordy(args) && !shellOps.MatchString(text) {
		note(-2, "reads like a sentence")
	}

	if prosePunctuation(text) {
		note(-4, "prose punctuation")
	}

	for _, re := range placeholder {
		if re.MatchString(text) {
			note(-3, "placeholder "+re.FindString(text))
			break
		}
	}
	for _, a := range args {
		if capsArg.MatchString(a) {
			note(-3, "all-caps placeholder "+a)
			break
		}
	}

	for _, re := range conditional {
		if re.MatchString(ctx.Before) {
			note(-2, "conditional context")
			break
		}
	}

	return decide(score, reasons)
}

func decide(score int, reasons []string) Result {
	switch {
	case score >= runnableAt:
		return Result{Intent: Runnable, Confidence: clamp(float64(score) / 10), Reasons: reasons}
	case score <= descriptiveAt:
		return Result{Intent: Descriptive, Confidence: clamp(1 - float64(score)/10), Reasons: reasons}
	default:
		return Result{Intent: Ambiguous, Confidence: 0.5, Reasons: reasons}
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// simpleArgs reports whether every argument looks like a flag, path, value or word
func simpleArgs(args []string) bool {
	for _, a := range args {
		if strings.ContainsAny(a, "`") {
			return false
		}
	}
	return true
}

// wordy reports two or more bare lower-case words and no flags
func wordy(args []string) bool {
	words := 0
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			return false
		}
		if plainWord.MatchString(a) {
			words++
		}
	}
	return words >= 2
}

// prosePunctuation spots sentences: a trailing period, question mark or colon,
// or a comma followed by a space between words
func prosePunctuation(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	last := t[len(t)-1]
	if last == '?' || last == '!' {
		return true
	}
	if last == '.' || last == ':' {
		// "cd .", "pip install -e ." and "image:tag" style endings are not prose
		fields := strings.Fields(t)
		tail := fields[len(fields)-1]
		if tail != "." && tail != ".." && !strings.ContainsAny(tail[:len(tail)-1], "/.:=") && len(fields) > 2 {
			return true
		}
	}
	if strings.Contains(t, ", ") && !strings.ContainsAny(t, `"'`) {
		return true
	}
	return false
}
