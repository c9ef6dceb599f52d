package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/readmecheck/internal/model"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(&ExitError{Code: 1}))
	assert.Equal(t, 2, ExitCode(&model.ConfigurationError{Field: "ignore", Reason: "x"}))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("wrapped: %w", &model.ConfigurationError{})))
	assert.Equal(t, 2, ExitCode(errors.New("boom")))
	assert.Equal(t, "", (&ExitError{Code: 1}).Error())
}

func TestApplyCheckFlags(t *testing.T) {
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	addCheckFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--doc", "docs/INDEX.md",
		"--ignore", "metadata, links",
		"--dynamic", "--dry-run",
		"--cmd-timeout", "5s",
		"--check-links",
	}))

	cfg := model.DefaultConfig()
	cfg.Concurrency.Workers = 3
	applyCheckFlags(fs, cfg)

	assert.Equal(t, "docs/INDEX.md", cfg.Scan.Document)
	assert.Equal(t, []string{"metadata", "links"}, cfg.Checks.Ignore)
	assert.True(t, cfg.Dynamic.Enabled)
	assert.True(t, cfg.Dynamic.DryRun)
	assert.Equal(t, 5*time.Second, cfg.Dynamic.Timeout)
	assert.True(t, cfg.Checks.CheckExternalLinks)
	assert.Equal(t, 3, cfg.Concurrency.Workers, "unset flags keep configured values")
	assert.Empty(t, cfg.LLM.Provider, "LLM stays off without --llm")
	require.NoError(t, cfg.Validate())
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "tool", sanitizeFilename("/work/tool"))
	assert.Equal(t, "my-tool", sanitizeFilename("/work/my tool/"))
	assert.Equal(t, "project", sanitizeFilename("/"))

	seen := map[string]int{}
	assert.Equal(t, "api", uniqueSlug(seen, "api"))
	assert.Equal(t, "api-2", uniqueSlug(seen, "api"))
}

func TestBatchRoots(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "projects.txt")
	require.NoError(t, os.WriteFile(list, []byte("# projects\na\n\nb\n"), 0o644))

	roots, file, err := batchRoots([]string{list})
	require.NoError(t, err)
	assert.Equal(t, list, file)
	assert.Equal(t, []string{filepath.Join(dir, "a"), filepath.Join(dir, "b")}, roots)

	roots, file, err = batchRoots([]string{dir, "other"})
	require.NoError(t, err)
	assert.Empty(t, file)
	assert.Equal(t, []string{dir, "other"}, roots)
}

func TestCheckCommand_FailingProject(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"name": "tool", "scripts": {"build": "tsc"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# Tool\n\n```bash\nchecker -v\n```\n"), 0o644))
	jsonPath := filepath.Join(t.TempDir(), "report.json")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"check", root, "--json", jsonPath})
	defer rootCmd.SetArgs(nil)

	err := Execute()
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, out.String(), "✗ commands")
	assert.Contains(t, out.String(), "README.md:4")

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var report model.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, model.StatusFail, report.Results[model.CategoryCommands].Status)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	assert.Equal(t, "readmecheck "+Version+"\n", out.String())
}
