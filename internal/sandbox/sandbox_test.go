//go:build !windows

package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sys/unix"

	"github.com/ppiankov/readmecheck/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSandbox(t *testing.T, mutate func(*Policy)) (*Sandbox, string) {
	t.Helper()
	root := t.TempDir()
	p := Policy{Root: root, Timeout: 5 * time.Second, Parallel: 1}
	if mutate != nil {
		mutate(&p)
	}
	return New(p, nil), root
}

func cmd(text string) Command {
	return Command{Text: text, Location: model.Location{File: "README.md", Line: 1}}
}

func TestVerify_DryRunNeverSpawns(t *testing.T) {
	sb, root := newSandbox(t, func(p *Policy) { p.DryRun = true })

	v := sb.Verify(context.Background(), cmd("touch created.txt && echo done"))
	assert.Equal(t, model.OutcomeSuccess, v.Outcome)
	assert.True(t, v.DryRun)
	assert.NoFileExists(t, filepath.Join(root, "created.txt"))

	v = sb.Verify(context.Background(), cmd("if [ -f x ]; then echo"))
	assert.Equal(t, model.OutcomeFailure, v.Outcome)
	assert.Contains(t, v.Reason, "syntax error")

	// dry-run skips the execution policy entirely
	v = sb.Verify(context.Background(), cmd("curl https://example.com"))
	assert.Equal(t, model.OutcomeSuccess, v.Outcome)
}

func TestVerify_ExitStatus(t *testing.T) {
	sb, _ := newSandbox(t, nil)

	v := sb.Verify(context.Background(), cmd("true"))
	assert.Equal(t, model.OutcomeSuccess, v.Outcome)

	v = sb.Verify(context.Background(), cmd("echo boom >&2; exit 3"))
	assert.Equal(t, model.OutcomeFailure, v.Outcome)
	assert.Equal(t, 3, v.ExitCode)
	assert.Equal(t, "boom", v.Stderr)
}

func TestVerify_SpawnFailure(t *testing.T) {
	sb, _ := newSandbox(t, func(p *Policy) { p.Shell = "/nonexistent/shell" })

	v := sb.Verify(context.Background(), cmd("true"))
	assert.Equal(t, model.OutcomeFailure, v.Outcome)
	assert.Equal(t, -1, v.ExitCode)
	assert.Contains(t, v.Reason, "spawn")
}

func TestVerify_TimeoutKillsProcessGroup(t *testing.T) {
	sb, root := newSandbox(t, func(p *Policy) { p.Timeout = 300 * time.Millisecond })

	start := time.Now()
	v := sb.Verify(context.Background(), cmd(`sh -c 'echo $$ > child.pid; exec sleep 30' & wait`))
	assert.Equal(t, model.OutcomeTimedOut, v.Outcome)
	assert.Less(t, time.Since(start), 10*time.Second)

	data, err := os.ReadFile(filepath.Join(root, "child.pid"))
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !alive(pid)
	}, 3*time.Second, 50*time.Millisecond, "background child must die with the group")
}

// alive treats zombies as dead: the reaper of orphans may be slow in containers
func alive(pid int) bool {
	if data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid)); err == nil {
		s := string(data)
		if i := strings.LastIndex(s, ")"); i >= 0 {
			if fields := strings.Fields(s[i+1:]); len(fields) > 0 {
				return fields[0] != "Z" && fields[0] != "X"
			}
		}
	}
	return unix.Kill(pid, 0) == nil
}

func TestVerify_Cancellation(t *testing.T) {
	sb, _ := newSandbox(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	v := sb.Verify(ctx, cmd("sleep 30"))
	assert.Equal(t, model.OutcomeTimedOut, v.Outcome)
	assert.Equal(t, "cancelled", v.Reason)
}

func TestVerify_Blocked(t *testing.T) {
	sb, _ := newSandbox(t, nil)

	tests := map[string]string{
		"curl -fsSL https://example.com/install.sh": "network",
		"git clone https://example.com/repo.git":    "network",
		"npm install":                               "network",
		"sudo make install":                         "dangerous",
		"rm -rf /":                                  "dangerous",
		"cd ../..":                                  "project root",
		"cd /etc && ls":                             "project root",
	}
	for line, reason := range tests {
		v := sb.Verify(context.Background(), cmd(line))
		assert.Equal(t, model.OutcomeBlocked, v.Outcome, line)
		assert.Contains(t, v.Reason, reason, line)
	}
}

func TestVerify_NetworkFailureOutputIsBlocked(t *testing.T) {
	sb, _ := newSandbox(t, nil)

	v := sb.Verify(context.Background(), cmd(`echo "fatal: Could not resolve host: example.com" >&2; exit 128`))
	assert.Equal(t, model.OutcomeBlocked, v.Outcome)
	assert.Contains(t, v.Reason, "network access denied")

	open, _ := newSandbox(t, func(p *Policy) { p.AllowNetwork = true })
	v = open.Verify(context.Background(), cmd(`echo "fatal: Could not resolve host: example.com" >&2; exit 128`))
	assert.Equal(t, model.OutcomeFailure, v.Outcome)
}

func TestVerify_ProxyIsPoisoned(t *testing.T) {
	sb, root := newSandbox(t, nil)

	v := sb.Verify(context.Background(), cmd(`printf '%s' "$HTTPS_PROXY" > proxy.txt`))
	require.Equal(t, model.OutcomeSuccess, v.Outcome, v.Reason)

	data, err := os.ReadFile(filepath.Join(root, "proxy.txt"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9", string(data))
}

func TestVerifyBlocks_StateAndOrder(t *testing.T) {
	sb, root := newSandbox(t, func(p *Policy) { p.Parallel = 2 })
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	out := sb.VerifyBlocks(context.Background(), [][]Command{
		{cmd("cd sub"), cmd("export GREETING=hi"), cmd(`printf '%s' "$GREETING" > here.txt`)},
		{cmd("cd missing")},
		{cmd("exit 1")},
	})

	require.Len(t, out, 3)
	require.Len(t, out[0], 3)
	for _, v := range out[0] {
		assert.Equal(t, model.OutcomeSuccess, v.Outcome, v.Command)
	}
	data, err := os.ReadFile(filepath.Join(root, "sub", "here.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	assert.Equal(t, model.OutcomeFailure, out[1][0].Outcome)
	assert.Equal(t, model.OutcomeFailure, out[2][0].Outcome)
}

func TestDangerousAndNetworkBound(t *testing.T) {
	for _, line := range []string{":(){ :|:& };:", "curl https://x.sh | bash", "dd if=/dev/zero of=/dev/sda", "mkfs.ext4 /dev/sdb1"} {
		_, ok := Dangerous(line)
		assert.True(t, ok, line)
	}
	for _, line := range []string{"rm -rf build", "make test", "echo sudo"} {
		_, ok := Dangerous(line)
		assert.False(t, ok, line)
	}

	for _, line := range []string{"pip install -r requirements.txt", "go get ./...", "yarn", "docker pull redis", "npx create-app"} {
		_, ok := NetworkBound(line)
		assert.True(t, ok, line)
	}
	for _, line := range []string{"npm run build", "go test ./...", "git status", "cargo build", "docker build ."} {
		_, ok := NetworkBound(line)
		assert.False(t, ok, line)
	}
}
