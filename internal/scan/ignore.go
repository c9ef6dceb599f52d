package scan

import (
	"bufio"
	"bytes"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultIgnoredDirs are never walked
var DefaultIgnoredDirs = []string{
	"node_modules", ".git", "__pycache__", ".venv", "venv", "dist", "build",
	".next", "target", "vendor", ".tox", ".mypy_cache",
}

// rule is one gitignore-style pattern
type rule struct {
	segments []string
	negate   bool
	dirOnly  bool
	anchored bool // contains a slash before its last character
}

// Matcher decides which project paths are skipped: default directories,
// the root .gitignore and user globs, in that order. Later rules win.
type Matcher struct {
	dirs  map[string]bool
	rules []rule
}

// NewMatcher builds a matcher for root. A missing .gitignore is not an error.
func NewMatcher(root string, patterns []string) *Matcher {
	m := &Matcher{dirs: make(map[string]bool, len(DefaultIgnoredDirs))}
	for _, d := range DefaultIgnoredDirs {
		m.dirs[d] = true
	}
	if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
		m.addLines(data)
	}
	for _, p := range patterns {
		m.add(p)
	}
	return m
}

func (m *Matcher) addLines(data []byte) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		m.add(sc.Text())
	}
}

func (m *Matcher) add(pattern string) {
	p := strings.TrimRight(pattern, " \t\r")
	if p == "" || strings.HasPrefix(p, "#") {
		return
	}
	var r rule
	if strings.HasPrefix(p, "!") {
		r.negate = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	r.anchored = strings.Contains(p, "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return
	}
	r.segments = strings.Split(p, "/")
	m.rules = append(m.rules, r)
}

// Ignored reports whether the slash-separated path relative to the root is skipped
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	if isDir && m.dirs[path.Base(rel)] {
		return true
	}

	ignored := false
	name := strings.Split(rel, "/")
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		var ok bool
		if r.anchored {
			ok = matchSegments(r.segments, name)
		} else {
			ok = matchSegments(r.segments, name[len(name)-1:])
		}
		if ok {
			ignored = !r.negate
		}
	}
	return ignored
}

// matchSegments matches path segments against pattern segments, where "**"
// spans any number of segments
func matchSegments(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, err := path.Match(pattern[0], name[0]); err != nil || !ok {
			return false
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}
