// Package sandbox runs documented commands under a restrictive policy:
// pinned working directory, wall-clock timeout with process-group kill,
// network denied by default, and a syntax-only dry-run mode.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/readmecheck/internal/command"
	"github.com/ppiankov/readmecheck/internal/model"
)

// Policy bounds every sandboxed run
type Policy struct {
	Root         string        // Absolute project root; commands start here
	Timeout      time.Duration // Per-command wall clock
	AllowNetwork bool
	DryRun       bool     // Syntax check only, never spawn
	Shell        string   // Defaults to /bin/sh
	Env          []string // Extra variable names passed through from the caller's environment
	Parallel     int      // Blocks verified concurrently; 1 or less is sequential
}

// PolicyFromConfig builds the policy of a project root
func PolicyFromConfig(root string, cfg model.DynamicConfig) Policy {
	return Policy{
		Root:         root,
		Timeout:      cfg.Timeout,
		AllowNetwork: cfg.AllowNetwork,
		DryRun:       cfg.DryRun,
		Shell:        cfg.Shell,
		Parallel:     cfg.Parallel,
	}
}

// Command is one documented command line
type Command struct {
	Text     string
	Location model.Location
}

// Sandbox verifies commands under one policy
type Sandbox struct {
	policy Policy
	logger *zap.Logger
}

const (
	waitDelay = 2 * time.Second
	tailBytes = 2048
)

// baseEnv are the variables inherited from the caller's environment
var baseEnv = []string{
	"PATH", "HOME", "USER", "LOGNAME", "LANG", "LC_ALL", "TERM", "TMPDIR", "SHELL",
	"GOPATH", "GOCACHE", "GOMODCACHE", "GOROOT", "CARGO_HOME", "RUSTUP_HOME", "JAVA_HOME",
	"NVM_DIR", "PYENV_ROOT", "VIRTUAL_ENV",
}

// offlineEnv points every proxy at a closed port and switches package
// managers to offline mode
var offlineEnv = []string{
	"HTTP_PROXY=http://127.0.0.1:9", "http_proxy=http://127.0.0.1:9",
	"HTTPS_PROXY=http://127.0.0.1:9", "https_proxy=http://127.0.0.1:9",
	"ALL_PROXY=http://127.0.0.1:9", "all_proxy=http://127.0.0.1:9",
	"NO_PROXY=", "no_proxy=",
	"GOPROXY=off", "GOFLAGS=-mod=mod",
	"CARGO_NET_OFFLINE=true", "PIP_NO_INDEX=1",
	"npm_config_offline=true", "YARN_ENABLE_OFFLINE_MODE=1",
}

// New creates a sandbox
func New(policy Policy, logger *zap.Logger) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Shell == "" {
		policy.Shell = "/bin/sh"
	}
	return &Sandbox{policy: policy, logger: logger}
}

// blockState carries cd and export effects between the commands of one block
type blockState struct {
	dir string // relative to the root
	env []string
}

// Verify runs a single command in a fresh block
func (s *Sandbox) Verify(ctx context.Context, cmd Command) model.Verification {
	return s.verify(ctx, cmd, &blockState{})
}

// VerifyBlocks verifies independent blocks, at most Parallel at a time.
// Commands inside a block run in order and share cd/export effects.
func (s *Sandbox) VerifyBlocks(ctx context.Context, blocks [][]Command) [][]model.Verification {
	out := make([][]model.Verification, len(blocks))

	limit := s.policy.Parallel
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for i, block := range blocks {
		g.Go(func() error {
			st := &blockState{}
			for _, c := range block {
				out[i] = append(out[i], s.verify(ctx, c, st))
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Sandbox) verify(ctx context.Context, cmd Command, st *blockState) model.Verification {
	v := model.Verification{
		Command:  cmd.Text,
		Location: cmd.Location,
		DryRun:   s.policy.DryRun,
	}
	start := time.Now()
	defer func() {
		v.Duration = time.Since(start)
		s.logger.Debug("verified command",
			zap.String("command", cmd.Text),
			zap.String("location", cmd.Location.String()),
			zap.String("outcome", string(v.Outcome)),
			zap.Duration("duration", v.Duration))
	}()

	if s.policy.DryRun {
		if err := CheckSyntax(ctx, cmd.Text); err != nil {
			v.Outcome = model.OutcomeFailure
			v.Reason = err.Error()
		} else {
			v.Outcome = model.OutcomeSuccess
		}
		return v
	}

	if reason, ok := Dangerous(cmd.Text); ok {
		v.Outcome, v.Reason = model.OutcomeBlocked, reason
		return v
	}
	if !s.policy.AllowNetwork {
		if reason, ok := NetworkBound(cmd.Text); ok {
			v.Outcome, v.Reason = model.OutcomeBlocked, reason
			return v
		}
	}
	if reason, ok := s.escapesRoot(cmd.Text, st); ok {
		v.Outcome, v.Reason = model.OutcomeBlocked, reason
		return v
	}
	if handled := s.applyBuiltins(cmd.Text, st, &v); handled {
		return v
	}

	s.run(ctx, cmd.Text, st, &v)
	return v
}

// applyBuiltins handles lines that only change directory or export
// variables; their effect is kept for the rest of the block
func (s *Sandbox) applyBuiltins(text string, st *blockState, v *model.Verification) bool {
	segments := command.Segments(command.Head(text))
	if len(segments) == 0 {
		return false
	}
	var (
		dir = st.dir
		env []string
	)
	for _, seg := range segments {
		exe, args := command.Executable(seg)
		switch exe {
		case "cd":
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			next := filepath.ToSlash(filepath.Clean(filepath.Join(dir, target)))
			info, err := os.Stat(filepath.Join(s.policy.Root, next))
			if err != nil || !info.IsDir() {
				v.Outcome, v.ExitCode = model.OutcomeFailure, 1
				v.Reason = fmt.Sprintf("cd: no such directory %s", target)
				return true
			}
			dir = next
		case "export":
			for _, a := range args {
				if strings.Contains(a, "=") {
					env = append(env, a)
				}
			}
		default:
			return false
		}
	}
	st.dir = dir
	st.env = append(st.env, env...)
	v.Outcome = model.OutcomeSuccess
	return true
}

// escapesRoot blocks cd targets that resolve outside the project root
func (s *Sandbox) escapesRoot(text string, st *blockState) (string, bool) {
	for _, seg := range command.Segments(command.Head(text)) {
		exe, args := command.Executable(seg)
		if exe != "cd" || len(args) == 0 {
			continue
		}
		target := args[0]
		if target == "-" || strings.HasPrefix(target, "~") || strings.HasPrefix(target, "$") {
			return "cd leaves the project root: " + target, true
		}
		var abs string
		if filepath.IsAbs(target) {
			abs = filepath.Clean(target)
		} else {
			abs = filepath.Join(s.policy.Root, st.dir, target)
		}
		rel, err := filepath.Rel(s.policy.Root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "cd leaves the project root: " + target, true
		}
	}
	return "", false
}

func (s *Sandbox) run(ctx context.Context, text string, st *blockState, v *model.Verification) {
	runCtx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()

	stdout, stderr := newTail(tailBytes), newTail(tailBytes)

	c := exec.CommandContext(runCtx, s.policy.Shell, "-c", text)
	c.Dir = filepath.Join(s.policy.Root, st.dir)
	c.Env = s.environ(st)
	c.Stdout = stdout
	c.Stderr = stderr
	setupProcessGroup(c)
	c.Cancel = func() error { return killProcessGroup(c) }
	c.WaitDelay = waitDelay

	err := c.Run()
	v.Stderr = strings.TrimSpace(stderr.String())

	switch {
	case err == nil:
		v.Outcome = model.OutcomeSuccess

	case ctx.Err() != nil:
		v.Outcome, v.Reason = model.OutcomeTimedOut, "cancelled"

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		v.Outcome = model.OutcomeTimedOut
		v.Reason = fmt.Sprintf("exceeded %s", s.policy.Timeout)

	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			v.Outcome, v.ExitCode = model.OutcomeFailure, -1
			v.Reason = (&model.SandboxError{Command: text, Reason: "spawn", Err: err}).Error()
			return
		}
		v.ExitCode = exitErr.ExitCode()
		if !s.policy.AllowNetwork {
			if pattern, ok := networkFailure(stderr.String() + "\n" + stdout.String()); ok {
				v.Outcome = model.OutcomeBlocked
				v.Reason = "network access denied (" + pattern + ")"
				return
			}
		}
		v.Outcome = model.OutcomeFailure
		v.Reason = fmt.Sprintf("exit status %d", v.ExitCode)
	}
}

func (s *Sandbox) environ(st *blockState) []string {
	var env []string
	for _, name := range append(append([]string(nil), baseEnv...), s.policy.Env...) {
		if val, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+val)
		}
	}
	env = append(env, "CI=true")
	if !s.policy.AllowNetwork {
		env = append(env, offlineEnv...)
	}
	return append(env, st.env...)
}

// tail keeps the last n bytes written to it
type tail struct {
	n   int
	buf []byte
}

func newTail(n int) *tail { return &tail{n: n} }

func (t *tail) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.n {
		t.buf = t.buf[len(t.buf)-t.n:]
	}
	return len(p), nil
}

func (t *tail) String() string { return string(t.buf) }
