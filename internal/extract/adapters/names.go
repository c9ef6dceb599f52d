package adapters

import (
	"path"
	"regexp"
	"strings"
)

var envNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsEnvName reports whether s is a plausible environment variable name
func IsEnvName(s string) bool {
	return envNameRe.MatchString(s)
}

// ToolName reduces a command string to the invoked program name: first
// token, directory and .exe stripped. Dynamic commands yield "".
func ToolName(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	prog := strings.Trim(fields[0], `"'`)
	if prog == "" || strings.ContainsAny(prog, "$%{}()<>|&;*") || strings.HasPrefix(prog, "-") {
		return ""
	}
	prog = path.Base(strings.ReplaceAll(prog, `\`, "/"))
	prog = strings.TrimSuffix(strings.ToLower(prog), ".exe")
	if prog == "." || prog == "/" {
		return ""
	}
	return prog
}

// unquote strips string-literal prefixes and quotes used by Python and
// JavaScript. Interpolated strings return ok=false.
func unquote(lit string) (string, bool) {
	s := strings.TrimSpace(lit)
	prefix := strings.IndexAny(s, `"'`+"`")
	if prefix < 0 || prefix > 3 {
		return "", false
	}
	mods := strings.ToLower(s[:prefix])
	if strings.ContainsAny(mods, "f") {
		return "", false
	}
	s = s[prefix:]

	for _, q := range []string{`"""`, `'''`, `"`, `'`, "`"} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			inner := s[len(q) : len(s)-len(q)]
			if q == "`" && strings.Contains(inner, "${") {
				return "", false
			}
			return inner, true
		}
	}
	return "", false
}
