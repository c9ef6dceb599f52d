package reconcile

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/readmecheck/internal/command"
	"github.com/ppiankov/readmecheck/internal/intent"
	"github.com/ppiankov/readmecheck/internal/model"
	"github.com/ppiankov/readmecheck/internal/sandbox"
)

// finding is a static-check result before it is tied to a location
type finding struct {
	sev        model.Severity
	msg        string
	suggestion string
}

func errorf(format string, args ...interface{}) finding {
	return finding{sev: model.SeverityError, msg: fmt.Sprintf(format, args...)}
}

func warnf(format string, args ...interface{}) finding {
	return finding{sev: model.SeverityWarning, msg: fmt.Sprintf(format, args...)}
}

func (f finding) suggest(format string, args ...interface{}) finding {
	f.suggestion = fmt.Sprintf(format, args...)
	return f
}

func (r *Reconciler) commands(ctx context.Context, in *Input) model.ReconciliationResult {
	exes := projectExecutables(in)
	classifier := intent.NewClassifier(sortedSet(exes)...)

	var (
		issues     []model.Issue
		notes      []string
		blockOrder []int
		blocks     = make(map[int][]sandbox.Command)
		dirs       = make(map[int]string)
	)
	prereqs := prerequisiteWords(in)

	for _, c := range model.ClaimsOfKind(in.Claims, model.ClaimCodeBlockCommand) {
		before := ""
		if b := in.Document.Block(c.Block); b != nil {
			before = in.Document.ParagraphBefore(b.FenceLine, 3)
		}
		_, prompted := command.StripPrompt(strings.TrimSpace(c.RawText))

		res := classifier.Classify(c.Value, intent.Context{Language: c.Language, Before: before, Prompted: prompted})
		switch res.Intent {
		case intent.Ambiguous:
			notes = append(notes, fmt.Sprintf("%s: ambiguous, not checked: %s", c.Location, c.Value))
			continue
		case intent.Descriptive:
			continue
		}

		rs := &resolver{in: in, exes: exes, prereqs: prereqs, dir: dirs[c.Block]}
		failed := false
		for _, f := range rs.check(command.Head(c.Value)) {
			issues = append(issues, issue(model.CategoryCommands, f.sev, c.Location, f.msg, f.suggestion))
			if f.sev == model.SeverityError {
				failed = true
			}
		}
		dirs[c.Block] = rs.dir

		if r.opts.Dynamic && !failed {
			if _, ok := blocks[c.Block]; !ok {
				blockOrder = append(blockOrder, c.Block)
			}
			blocks[c.Block] = append(blocks[c.Block], sandbox.Command{Text: c.Value, Location: c.Location})
		}
	}

	var verifications []model.Verification
	if r.opts.Dynamic && r.opts.Verifier != nil && len(blockOrder) > 0 {
		ordered := make([][]sandbox.Command, 0, len(blockOrder))
		for _, b := range blockOrder {
			ordered = append(ordered, blocks[b])
		}
		for _, block := range r.opts.Verifier.VerifyBlocks(ctx, ordered) {
			for _, v := range block {
				verifications = append(verifications, v)
				if is, ok := verificationIssue(v); ok {
					issues = append(issues, is)
				}
			}
		}
	}

	result := model.NewResult(model.CategoryCommands, issues)
	result.Verifications = verifications
	result.Notes = notes
	return result
}

// verificationIssue maps a sandbox outcome to an issue: failures are errors,
// everything that prevented a verdict is a warning
func verificationIssue(v model.Verification) (model.Issue, bool) {
	var f finding
	switch v.Outcome {
	case model.OutcomeSuccess:
		return model.Issue{}, false
	case model.OutcomeFailure:
		switch {
		case v.ExitCode < 0:
			f = warnf("command could not be started: %s", v.Reason)
		case v.DryRun:
			f = errorf("command does not parse: %s", v.Reason)
		default:
			f = errorf("command failed in the sandbox: %s", v.Reason)
			if tail := lastLine(v.Stderr); tail != "" {
				f = f.suggest("stderr: %s", tail)
			}
		}
	case model.OutcomeTimedOut:
		f = warnf("command timed out in the sandbox: %s", v.Reason)
	case model.OutcomeBlocked:
		f = warnf("command not executed: %s", v.Reason)
	}
	return issue(model.CategoryCommands, f.sev, v.Location, f.msg, f.suggestion), true
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// versioned interpreters: python3.12, pip3.11
var versioned = regexp.MustCompile(`^(python3?|pip3?)\.?\d+(?:\.\d+)?$`)

var prerequisiteContext = regexp.MustCompile(`(?i)\b(?:install(?:ed|ing)?|requires?|required|requirements?|prerequisites?|dependenc(?:y|ies)|depends|needs?)\b`)

// prerequisiteWords are the words of prose lines that talk about installing
// or requiring something, including lines under such a heading
func prerequisiteWords(in *Input) map[string]bool {
	words := make(map[string]bool)
	for _, pl := range in.Document.ProseLines() {
		section := in.Document.SectionOf(pl.Number)
		if !prerequisiteContext.MatchString(pl.Text) && (section == nil || !prerequisiteContext.MatchString(section.Text)) {
			continue
		}
		for _, w := range strings.FieldsFunc(strings.ToLower(pl.Text), func(r rune) bool {
			return !(r == '-' || r == '_' || r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
		}) {
			words[strings.Trim(w, ".")] = true
		}
	}
	return words
}

// resolver checks the segments of one command line. dir follows cd through
// the block.
type resolver struct {
	in      *Input
	exes    map[string]bool
	prereqs map[string]bool
	dir     string
}

func (rs *resolver) check(text string) []finding {
	var out []finding
	for _, seg := range command.Segments(text) {
		out = append(out, rs.segment(seg)...)
	}
	return out
}

func (rs *resolver) segment(seg string) []finding {
	exe, args := command.Executable(seg)
	if exe == "" || strings.HasPrefix(exe, "$") {
		return nil
	}
	name := command.Name(exe)
	if versioned.MatchString(name) {
		name = versioned.FindStringSubmatch(name)[1]
	}

	if name == "cd" {
		rs.cd(args)
		return nil
	}
	if command.IsPath(exe) {
		return rs.checkPath(exe)
	}

	switch name {
	case "npm", "yarn", "pnpm", "bun":
		return rs.node(name, args)
	case "npx", "pnpx", "bunx":
		return nil
	case "pip", "pip3":
		return rs.pip(args)
	case "python", "python3", "py":
		return rs.python(args)
	case "poetry", "pipenv":
		return rs.pyRun(name, args)
	case "uv":
		if p := positional(args, nil); len(p) > 0 && p[0] == "pip" {
			return rs.pip(args[1:])
		}
		return rs.pyRun(name, args)
	case "go":
		return rs.golang(args)
	case "cargo":
		return rs.cargo(args)
	case "make":
		return rs.makeTargets(args)
	case "mvn", "gradle":
		if !rs.in.Manifest.Has(model.EcosystemJava) {
			return []finding{warnf("%s command but no pom.xml or build.gradle found", name)}
		}
		return nil
	case "docker", "podman":
		return rs.docker(args)
	case "docker-compose":
		return rs.compose(args)
	case "node", "deno", "ts-node", "tsx", "bash", "sh", "zsh":
		return rs.scriptArg(args)
	}

	if command.Known(name) {
		return nil
	}
	return rs.project(name)
}

// project checks a command that is neither a known tool nor a path: the
// project has to declare it, or the document has to name it as a prerequisite
func (rs *resolver) project(name string) []finding {
	if rs.exes[name] || rs.prereqs[name] {
		return nil
	}
	f := errorf("command target %s is not declared by the project", name)
	if len(rs.in.Manifest.Ecosystems) == 0 {
		f = warnf("command target %s is not declared and no manifest was found", name)
	}
	if best := closest(name, sortedSet(rs.exes), 2); best != "" {
		return []finding{f.suggest("did you mean %s?", best)}
	}
	return []finding{f.suggest("declare %s as a bin/script entry or document how to install it", name)}
}

func (rs *resolver) cd(args []string) {
	p := positional(args, nil)
	if len(p) == 0 {
		return
	}
	if rel, ok := rs.resolve(p[0]); ok {
		if info, err := os.Stat(rs.abs(rel)); err == nil && info.IsDir() {
			rs.dir = rel
		}
	}
}

// resolve maps a shell path to a root-relative one. Absolute, home and
// variable paths cannot be checked.
func (rs *resolver) resolve(p string) (string, bool) {
	if p == "" || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "~") || strings.ContainsAny(p, "$*?`") {
		return "", false
	}
	return path.Clean(path.Join(rs.dir, p)), true
}

func (rs *resolver) abs(rel string) string {
	return filepath.Join(rs.in.Root, filepath.FromSlash(rel))
}

func (rs *resolver) exists(rel string) bool {
	_, err := os.Stat(rs.abs(rel))
	return err == nil
}

// checkPath requires a referenced file or directory to exist inside the root
func (rs *resolver) checkPath(p string) []finding {
	rel, ok := rs.resolve(p)
	if !ok {
		return nil
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return []finding{errorf("path %s points outside the project", p)}
	}
	if rs.exists(rel) {
		return nil
	}
	f := errorf("path %s does not exist", p)
	if best := closestPath(rel, rs.in.Files); best != "" {
		f = f.suggest("did you mean %s?", best)
	}
	return []finding{f}
}

// positional returns the non-flag arguments. Flags listed in valueFlags
// consume the next argument.
func positional(args []string, valueFlags map[string]bool) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			return append(out, args[i+1:]...)
		}
		if strings.HasPrefix(a, "-") {
			if valueFlags[a] && i+1 < len(args) {
				i++
			}
			continue
		}
		out = append(out, a)
	}
	return out
}

// flagValue returns the value of the first of the given flags
func flagValue(args []string, flags ...string) (string, bool) {
	for i, a := range args {
		for _, f := range flags {
			if a == f && i+1 < len(args) {
				return args[i+1], true
			}
			if strings.HasPrefix(a, f+"=") {
				return strings.TrimPrefix(a, f+"="), true
			}
		}
	}
	return "", false
}

func hasFlag(args []string, flags ...string) bool {
	for _, a := range args {
		for _, f := range flags {
			if a == f {
				return true
			}
		}
	}
	return false
}

func (rs *resolver) scriptArg(args []string) []finding {
	if hasFlag(args, "-c", "-e", "--eval", "-p", "--print") {
		return nil
	}
	p := positional(args, map[string]bool{"-r": true, "--require": true, "--import": true})
	if len(p) == 0 {
		return nil
	}
	switch strings.ToLower(path.Ext(p[0])) {
	case ".js", ".mjs", ".cjs", ".ts", ".mts", ".sh", ".bash", ".zsh":
		return rs.checkPath(p[0])
	}
	if command.IsPath(p[0]) {
		return rs.checkPath(p[0])
	}
	return nil
}

// declaredNames lists declared fact names of one kind and ecosystem
func (rs *resolver) declaredNames(kind model.FactKind, eco model.Ecosystem, keep func(model.Fact) bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range rs.in.Manifest.Of(kind, eco) {
		if keep != nil && !keep(f) {
			continue
		}
		if !seen[f.Name] {
			seen[f.Name] = true
			out = append(out, f.Name)
		}
	}
	sort.Strings(out)
	return out
}

func missingTarget(f finding, name string, declared []string, fallback string) finding {
	if best := closest(name, declared, 2); best != "" {
		return f.suggest("did you mean %s?", best)
	}
	return f.suggest("%s", fallback)
}
