package sandbox

import (
	"regexp"
	"strings"

	"github.com/ppiankov/readmecheck/internal/command"
)

var dangerousPatterns = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`\brm\s+(?:-[A-Za-z]+\s+|--[a-z-]+\s+)*(?:/|/\*|~|~/|\$HOME|\*)(?:\s|$)`), "recursive removal of a root or home directory"},
	{regexp.MustCompile(`\bmkfs(?:\.\w+)?\b`), "filesystem formatting"},
	{regexp.MustCompile(`\bdd\s+.*\b(?:if|of)=`), "raw disk copy"},
	{regexp.MustCompile(`>\s*/dev/(?:sd|nvme|hd|disk)`), "write to a block device"},
	{regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`), "fork bomb"},
	{regexp.MustCompile(`\b(?:curl|wget)\b[^|]*\|\s*(?:sudo\s+)?(?:ba|z|da)?sh\b`), "piping a download into a shell"},
	{regexp.MustCompile(`\bchmod\s+(?:-R\s+)?[0-7]*777\s+/(?:\s|$)`), "world-writable root"},
	{regexp.MustCompile(`\bkill\s+-9\s+-1\b`), "kill every process"},
}

// privileged executables are refused outright
var privileged = map[string]bool{
	"sudo": true, "su": true, "doas": true, "shutdown": true, "reboot": true,
	"halt": true, "poweroff": true, "shred": true,
}

// Dangerous reports commands that must never run on a developer machine
func Dangerous(text string) (string, bool) {
	for _, p := range dangerousPatterns {
		if p.re.MatchString(text) {
			return "dangerous command: " + p.reason, true
		}
	}
	for _, seg := range command.Segments(text) {
		if first := firstWord(seg); privileged[first] {
			return "dangerous command: " + first, true
		}
	}
	return "", false
}

func firstWord(segment string) string {
	for _, t := range command.Fields(segment) {
		if strings.Contains(t, "=") {
			continue
		}
		return command.Name(t)
	}
	return ""
}

// networkTools always talk to the network
var networkTools = map[string]bool{
	"curl": true, "wget": true, "ssh": true, "scp": true, "sftp": true, "ftp": true,
	"rsync": true, "telnet": true, "nc": true, "ping": true, "dig": true, "nslookup": true,
	"npx": true, "pnpx": true, "bunx": true,
}

// networkSubcommands are the subcommands of package managers and VCS tools
// that fetch from the network
var networkSubcommands = map[string]map[string]bool{
	"git":     set("clone", "fetch", "pull", "push", "ls-remote", "submodule"),
	"npm":     set("install", "i", "ci", "add", "update", "publish", "audit", "outdated", "view", "info"),
	"pnpm":    set("install", "i", "add", "update", "publish", "audit", "outdated", "dlx"),
	"yarn":    set("", "install", "add", "upgrade", "publish", "audit", "outdated", "dlx"),
	"bun":     set("install", "i", "add", "update"),
	"pip":     set("install", "download"),
	"pip3":    set("install", "download"),
	"pipx":    set("install", "run"),
	"uv":      set("pip", "sync", "add", "tool"),
	"poetry":  set("install", "add", "update", "lock"),
	"pipenv":  set("install", "update", "lock"),
	"go":      set("get", "install", "mod"),
	"cargo":   set("install", "fetch", "update", "publish", "search"),
	"docker":  set("pull", "push", "login", "search"),
	"podman":  set("pull", "push", "login", "search"),
	"gem":     set("install", "update", "push"),
	"bundle":  set("", "install", "update"),
	"apt":     set("install", "update", "upgrade"),
	"apt-get": set("install", "update", "upgrade"),
	"brew":    set("install", "update", "upgrade", "tap"),
	"yum":     set("install", "update"),
	"dnf":     set("install", "update"),
	"pacman":  set("-S", "-Sy", "-Syu"),
	"apk":     set("add", "update", "upgrade"),
	"snap":    set("install"),
	"choco":   set("install"),
	"winget":  set("install"),
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// NetworkBound reports commands that need the network to do their job
func NetworkBound(text string) (string, bool) {
	for _, seg := range command.Segments(command.Head(text)) {
		exe, args := command.Executable(seg)
		name := command.Name(exe)
		if networkTools[name] {
			return "network access denied: " + name, true
		}
		subs, ok := networkSubcommands[name]
		if !ok {
			continue
		}
		sub := ""
		for _, a := range args {
			if !strings.HasPrefix(a, "-") || name == "pacman" {
				sub = a
				break
			}
		}
		if subs[sub] {
			return "network access denied: " + strings.TrimSpace(name+" "+sub), true
		}
	}
	return "", false
}

var networkFailurePatterns = regexp.MustCompile(`(?i)(could not resolve host|temporary failure in name resolution|name or service not known|no such host|getaddrinfo|ENOTFOUND|EAI_AGAIN|ECONNREFUSED|connection refused|network is unreachable|proxyconnect|module lookup disabled by GOPROXY=off|failed to establish a new connection|could not connect to|unable to access 'https?://)`)

// networkFailure matches resolver and connection errors in process output
func networkFailure(output string) (string, bool) {
	m := networkFailurePatterns.FindString(output)
	return m, m != ""
}
