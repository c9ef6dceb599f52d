package command

import (
	"path"
	"strings"
)

// Kind classifies an executable name
type Kind int

const (
	Unknown Kind = iota
	ShellBuiltin
	SystemTool
	EcosystemTool
)

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

var (
	shellBuiltins = set(
		"cd", "echo", "export", "source", ".", "set", "unset", "alias", "read", "printf",
		"test", "[", "true", "false", "exit", "eval", "exec", "pwd", "pushd", "popd", "type",
		"command", "hash", "ulimit", "umask", "wait", "trap", "shift", "let", "local", "declare",
	)

	systemTools = set(
		// coreutils and friends
		"ls", "cat", "cp", "mv", "rm", "mkdir", "rmdir", "touch", "chmod", "chown", "ln", "find",
		"grep", "egrep", "sed", "awk", "head", "tail", "sort", "uniq", "wc", "tr", "cut", "xargs",
		"tee", "diff", "patch", "date", "sleep", "kill", "killall", "ps", "top", "htop", "watch",
		"which", "whereis", "whoami", "uname", "hostname", "id", "env", "sudo", "su", "basename",
		"dirname", "realpath", "readlink", "mktemp", "stat", "du", "df", "file", "less", "more",
		"base64", "sha256sum", "shasum", "md5sum", "openssl", "ssh-keygen", "install", "yes",
		"sh", "bash", "zsh", "fish", "pwsh", "powershell", "cmd", "nohup", "time", "nice",
		// archives and transfer
		"tar", "zip", "unzip", "gzip", "gunzip", "curl", "wget", "ssh", "scp", "rsync", "nc", "ping",
		"dig", "nslookup", "telnet",
		// editors and openers
		"open", "xdg-open", "start", "vi", "vim", "nvim", "nano", "emacs", "code", "man",
		// package managers of the OS
		"apt", "apt-get", "dpkg", "brew", "yum", "dnf", "pacman", "apk", "snap", "choco", "winget",
		"scoop", "port", "nix", "systemctl", "service", "journalctl", "launchctl",
		// common external tools
		"git", "gh", "docker", "docker-compose", "podman", "kubectl", "helm", "minikube", "kind",
		"terraform", "ansible", "ansible-playbook", "vagrant", "jq", "yq", "ffmpeg", "ffprobe",
		"convert", "magick", "imagemagick", "dot", "graphviz", "gcc", "g++", "cc", "clang", "clang++",
		"cmake", "make", "ninja", "meson", "psql", "mysql", "redis-cli", "redis-server", "mongo",
		"mongosh", "sqlite3", "pg_dump", "createdb", "aws", "gcloud", "az", "heroku", "flyctl",
		"pandoc", "protoc", "sqlc", "buf",
	)

	ecosystemTools = set(
		"go", "gofmt", "golangci-lint",
		"python", "python3", "python2", "py", "pip", "pip3", "pipx", "poetry", "pipenv", "uv", "uvx",
		"conda", "mamba", "virtualenv", "pytest", "tox", "nox", "ruff", "black", "mypy", "flake8",
		"node", "npm", "npx", "yarn", "pnpm", "pnpx", "bun", "bunx", "deno", "tsc", "ts-node", "tsx",
		"jest", "vitest", "eslint", "prettier",
		"cargo", "rustc", "rustup", "cross",
		"java", "javac", "mvn", "mvnw", "gradle", "gradlew", "kotlin", "kotlinc",
		"ruby", "gem", "bundle", "bundler", "rake", "rails", "irb",
	)

	// implicit tools are never expected to be documented as dependencies:
	// interpreters, package managers, shells and coreutils
	implicitTools = set(
		"python", "python3", "python2", "py", "node", "deno", "bun", "go", "java", "ruby", "rustc",
		"sh", "bash", "zsh", "fish", "cmd", "powershell", "pwsh",
		"npm", "npx", "yarn", "pnpm", "pip", "pip3", "cargo", "gem", "bundle", "mvn", "gradle",
		"git", "echo", "ls", "cat", "rm", "cp", "mv", "mkdir", "rmdir", "touch", "chmod", "chown",
		"ln", "which", "where", "env", "test", "true", "false", "pwd", "cd", "printf", "sleep",
		"kill", "ps", "date", "find", "grep", "sed", "awk", "head", "tail", "sort", "xargs", "tee",
		"wc", "tr", "cut", "uniq", "uname", "whoami", "hostname", "id", "dirname", "basename",
		"readlink", "realpath", "mktemp", "stat", "open", "xdg-open", "start", "sudo", "nohup",
		"time", "tput", "stty", "clear", "less", "more",
	)
)

// Classify returns the kind of an executable name
func Classify(exe string) Kind {
	name := Name(exe)
	switch {
	case shellBuiltins[name]:
		return ShellBuiltin
	case ecosystemTools[name]:
		return EcosystemTool
	case systemTools[name]:
		return SystemTool
	}
	return Unknown
}

// Known reports whether exe is a shell builtin, system tool or ecosystem tool
func Known(exe string) bool {
	return Classify(exe) != Unknown
}

// Implicit reports whether a tool is assumed present on any developer machine
func Implicit(tool string) bool {
	return implicitTools[Name(tool)]
}

// Name normalizes an executable to its lower-cased basename without .exe
func Name(exe string) string {
	name := strings.ToLower(path.Base(strings.ReplaceAll(exe, `\`, "/")))
	name = strings.TrimSuffix(name, ".exe")
	name = strings.TrimSuffix(name, ".cmd")
	return name
}

// IsPath reports whether exe is invoked by path (./run.sh, bin/tool, ../x)
func IsPath(exe string) bool {
	return strings.HasPrefix(exe, "./") || strings.HasPrefix(exe, "../") || strings.HasPrefix(exe, "/") ||
		strings.HasPrefix(exe, "~/") || strings.Contains(exe, "/")
}

// Head returns the first line of a command (the heredoc opener)
func Head(text string) string {
	head, _, _ := strings.Cut(text, "\n")
	return head
}
