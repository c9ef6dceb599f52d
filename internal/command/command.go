// Package command splits documented shell snippets into logical command lines,
// segments and argv tokens, and knows which executables are system tools.
package command

import (
	"regexp"
	"strings"
)

// Line is one logical command of a shell block: continuations joined,
// prompt removed, trailing comment dropped
type Line struct {
	Text     string // Command text as it would be typed
	Raw      string // Source text, continuation lines included
	Line     int    // 1-based document line of the first source line
	Prompted bool   // A prompt marker preceded the command
}

var (
	userHostPrompt = regexp.MustCompile(`^[\w.-]+@[\w.-]+(?::[^\s$#%]*)?[$#%]\s+`)
	dollarPrompt   = regexp.MustCompile(`^(?:\([\w.-]+\)\s+)?[$%]\s+`)
	psPrompt       = regexp.MustCompile(`^PS [^>]*>\s+`)
	contPrompt     = regexp.MustCompile(`^>\s+`)
	rootPrompt     = regexp.MustCompile(`^#\s+`)
	heredocStart   = regexp.MustCompile(`<<-?\s*['"]?([A-Za-z_][A-Za-z0-9_]*)['"]?`)
	envRef         = regexp.MustCompile(`\$\{?([A-Za-z_][A-Za-z0-9_]*)\}?`)
)

// StripPrompt removes a leading shell prompt ($, %, >, user@host:path$,
// PS C:\>, or a root # followed by a known command)
func StripPrompt(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, re := range []*regexp.Regexp{userHostPrompt, dollarPrompt, psPrompt, contPrompt} {
		if loc := re.FindStringIndex(s); loc != nil {
			return strings.TrimSpace(s[loc[1]:]), true
		}
	}
	if s == "$" || s == "%" {
		return "", true
	}
	if loc := rootPrompt.FindStringIndex(s); loc != nil {
		rest := strings.TrimSpace(s[loc[1]:])
		if exe, _ := Executable(rest); exe != "" && Known(exe) {
			return rest, true
		}
	}
	return s, false
}

// hasPrompt reports whether the line starts with a $/% or user@host prompt
func hasPrompt(s string) bool {
	s = strings.TrimSpace(s)
	return userHostPrompt.MatchString(s) || dollarPrompt.MatchString(s) || psPrompt.MatchString(s)
}

// FromBlock splits the content of a shell code block into logical commands.
// startLine is the document line of the first content line. When any line of
// the block carries a prompt, unprompted lines are treated as program output.
func FromBlock(content string, startLine int) []Line {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	usesPrompts := false
	for _, l := range lines {
		if hasPrompt(l) {
			usesPrompts = true
			break
		}
	}

	var out []Line
	for i := 0; i < len(lines); i++ {
		first := i
		raw := lines[i]
		logical := strings.TrimRight(lines[i], " \t")
		for strings.HasSuffix(logical, `\`) && i+1 < len(lines) {
			i++
			raw += "\n" + lines[i]
			logical = strings.TrimRight(strings.TrimSuffix(logical, `\`), " \t") + " " + strings.TrimSpace(lines[i])
			logical = strings.TrimRight(logical, " \t")
		}
		logical = strings.TrimSuffix(logical, `\`)

		trimmed := strings.TrimSpace(logical)
		if trimmed == "" {
			continue
		}

		text, prompted := StripPrompt(trimmed)
		if !prompted {
			if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
				continue
			}
			if usesPrompts {
				continue
			}
		}
		text = StripComment(text)
		if text == "" {
			continue
		}

		// heredoc bodies belong to the command that opens them
		if m := heredocStart.FindStringSubmatch(text); m != nil {
			body := []string{text}
			for i+1 < len(lines) {
				i++
				raw += "\n" + lines[i]
				body = append(body, lines[i])
				if strings.TrimSpace(lines[i]) == m[1] {
					break
				}
			}
			text = strings.Join(body, "\n")
		}

		out = append(out, Line{Text: text, Raw: raw, Line: startLine + first, Prompted: prompted})
	}
	return out
}

// StripComment drops an unquoted trailing " # comment"
func StripComment(s string) string {
	var quote rune
	escaped := false
	prev := ' '
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#' && (prev == ' ' || prev == '\t'):
			return strings.TrimSpace(s[:i])
		}
		prev = r
	}
	return strings.TrimSpace(s)
}

// Segments splits a command line on &&, ||, ;, | and & outside quotes
func Segments(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quote   rune
		escaped bool
	)
	flush := func() {
		if seg := strings.TrimSpace(cur.String()); seg != "" {
			out = append(out, seg)
		}
		cur.Reset()
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escaped:
			escaped = false
			cur.WriteRune(r)
		case r == '\\' && quote != '\'':
			escaped = true
			cur.WriteRune(r)
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == ';' || r == '\n':
			flush()
		case r == '&' || r == '|':
			// redirections like 2>&1 and >| stay inside the segment
			if i > 0 && (runes[i-1] == '>' || runes[i-1] == '<') {
				cur.WriteRune(r)
				continue
			}
			if i+1 < len(runes) && runes[i+1] == r {
				i++
			}
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// Fields tokenizes a segment the way a POSIX shell would split words,
// honoring single quotes, double quotes and backslash escapes
func Fields(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quote   rune
		escaped bool
		inWord  bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				out = append(out, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		out = append(out, cur.String())
	}
	return out
}

var assignment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

var wrappers = map[string]bool{
	"sudo": true, "env": true, "time": true, "nohup": true, "exec": true, "command": true, "nice": true,
}

// Executable returns the program a segment runs and its arguments. Leading
// VAR=value assignments and wrappers (sudo, env, time, nohup) are skipped.
func Executable(segment string) (string, []string) {
	tokens := Fields(segment)
	afterWrapper := false
	for len(tokens) > 0 {
		t := tokens[0]
		switch {
		case assignment.MatchString(t):
		case wrappers[t]:
			afterWrapper = true
		case afterWrapper && strings.HasPrefix(t, "-"):
		default:
			return t, tokens[1:]
		}
		tokens = tokens[1:]
	}
	return "", nil
}

// EnvRefs returns the $VAR and ${VAR} references in s
func EnvRefs(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range envRef.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

var shellLanguages = map[string]bool{
	"bash": true, "sh": true, "shell": true, "zsh": true, "console": true,
	"terminal": true, "shellsession": true, "shell-session": true, "": true,
}

// IsShellLanguage reports whether a fenced block tag denotes shell input.
// Untagged blocks count.
func IsShellLanguage(lang string) bool {
	return shellLanguages[strings.ToLower(lang)]
}
