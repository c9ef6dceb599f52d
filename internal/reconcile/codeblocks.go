package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/readmecheck/internal/command"
	"github.com/ppiankov/readmecheck/internal/document"
	"github.com/ppiankov/readmecheck/internal/model"
)

var (
	treeDrawing = regexp.MustCompile(`[├└│┬┼]|\|--|` + "`--" + `|\+--`)
	pathLike    = regexp.MustCompile(`^\s*[\w.\-]+(?:/[\w.\-]*)*/?\s*(?:#.*)?$`)
	jsonComment = regexp.MustCompile(`(?m)^\s*//|\s//\s`)
)

func (r *Reconciler) codeBlocks(_ context.Context, in *Input) model.ReconciliationResult {
	var issues []model.Issue
	for _, b := range in.Document.CodeBlocks {
		loc := model.Location{File: in.Document.Path, Line: b.FenceLine}
		add := func(sev model.Severity, msg, suggestion string) {
			issues = append(issues, issue(model.CategoryCodeBlocks, sev, loc, msg, suggestion))
		}

		switch b.Language {
		case "":
			lines := nonBlank(b.ContentLines())
			if isDirectoryTree(lines) || isNarrative(lines) {
				continue
			}
			add(model.SeverityWarning, "code block has no language tag", "add a tag such as ```bash so readers and tools know how to treat it")

		case "json":
			if err := validJSON(b.Content); err != nil {
				if strings.Contains(b.Content, "...") || jsonComment.MatchString(b.Content) {
					add(model.SeverityWarning, "json block is illustrative and does not parse", "use a jsonc tag for annotated examples")
					continue
				}
				add(model.SeverityError, "json block does not parse: "+describeJSONError(b, err), "")
			}

		case "yaml", "yml":
			if err := validYAML(b.Content); err != nil {
				add(model.SeverityError, "yaml block does not parse: "+err.Error(), "")
			}

		case "toml":
			var v map[string]interface{}
			if err := toml.Unmarshal([]byte(b.Content), &v); err != nil {
				add(model.SeverityError, "toml block does not parse: "+describeTOMLError(err), "")
			}
		}
	}
	return model.NewResult(model.CategoryCodeBlocks, issues)
}

func nonBlank(lines []string) []string {
	var out []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// isDirectoryTree accepts blocks where most lines draw a tree or name paths
func isDirectoryTree(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	hits := 0
	for _, l := range lines {
		if treeDrawing.MatchString(l) || (pathLike.MatchString(l) && strings.ContainsAny(l, "/.")) {
			hits++
		}
	}
	return hits*2 > len(lines)
}

// isNarrative accepts prose-like blocks: long enough, with few command lines
func isNarrative(lines []string) bool {
	chars := 0
	for _, l := range lines {
		chars += len(strings.TrimSpace(l))
	}
	if len(lines) < 3 && chars < 50 {
		return false
	}
	commands := 0
	for _, l := range lines {
		if commandLike(l) {
			commands++
		}
	}
	return commands*5 < len(lines)
}

func commandLike(line string) bool {
	text, prompted := command.StripPrompt(strings.TrimSpace(line))
	if prompted || strings.Contains(text, "&&") || strings.Contains(text, " | ") {
		return true
	}
	exe, _ := command.Executable(text)
	return exe != "" && (command.IsPath(exe) || command.Known(exe)) && exe == strings.ToLower(exe)
}

func validJSON(content string) error {
	dec := json.NewDecoder(strings.NewReader(content))
	for {
		var v interface{}
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// describeJSONError points syntax errors at their document line
func describeJSONError(b document.CodeBlock, err error) string {
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		line := b.StartLine + bytes.Count([]byte(b.Content[:min(int(syntax.Offset), len(b.Content))]), []byte("\n"))
		return fmt.Sprintf("%v (line %d)", err, line)
	}
	return err.Error()
}

func validYAML(content string) error {
	dec := yaml.NewDecoder(strings.NewReader(content))
	for {
		var v interface{}
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func describeTOMLError(err error) string {
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Sprintf("%v (row %d, column %d)", err, row, col)
	}
	return err.Error()
}
