package reconcile

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/readmecheck/internal/manifest"
	"github.com/ppiankov/readmecheck/internal/model"
	"github.com/ppiankov/readmecheck/internal/sandbox"
)

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		name  string
		facts []model.Fact
		want  model.Severity
	}{
		{"high evidence", []model.Fact{envRead("X", "a.py", 1, model.ConfidenceHigh)}, model.SeverityError},
		{"single low", []model.Fact{envRead("X", "a.sh", 1, model.ConfidenceLow)}, model.SeverityWarning},
		{"low twice in one file", []model.Fact{envRead("X", "a.sh", 1, model.ConfidenceLow), envRead("X", "a.sh", 9, model.ConfidenceLow)}, model.SeverityWarning},
		{"low in two files", []model.Fact{envRead("X", "a.sh", 1, model.ConfidenceLow), envRead("X", "b.sh", 2, model.ConfidenceLow)}, model.SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, severityOf(tt.facts))
		})
	}
}

func TestLinks(t *testing.T) {
	in := project(t, map[string]string{
		"docs/setup.md": "# Setup\n\n## Linux\n",
		"README.md": "# Project\n\n## Usage\n\n" +
			"[usage](#usage) [nope](#usgae)\n" +
			"[setup](docs/setup.md#linux) [bad](docs/setup.md#windows)\n" +
			"[typo](docs/setpu.md) [mail](mailto:a@b.c)\n" +
			"[self](https://github.com/acme/project/blob/main/docs/setup.md)\n" +
			"[out](../outside.md)\n",
	})

	res := reconcile(t, in, Options{RepoURLPattern: regexp.MustCompile(`^https://github\.com/acme/project/`)})[model.CategoryLinks]
	require.Len(t, res.Issues, 5, messages(res))

	bySeverity := map[model.Severity]int{}
	for _, is := range res.Issues {
		bySeverity[is.Severity]++
	}
	assert.Equal(t, 4, bySeverity[model.SeverityError])
	assert.Equal(t, 1, bySeverity[model.SeverityWarning])

	var anchor, typo *model.Issue
	for i, is := range res.Issues {
		switch {
		case is.Location.Line == 5 && anchor == nil && is.Suggestion != "":
			anchor = &res.Issues[i]
		case is.Location.Line == 7:
			typo = &res.Issues[i]
		}
	}
	require.NotNil(t, anchor)
	assert.Equal(t, "did you mean #usage?", anchor.Suggestion)
	require.NotNil(t, typo)
	assert.Equal(t, "did you mean docs/setup.md?", typo.Suggestion)
}

type deadLinks map[string]bool

func (d deadLinks) CheckLinks(_ context.Context, urls []string) []model.LinkStatus {
	out := make([]model.LinkStatus, 0, len(urls))
	for _, u := range urls {
		st := model.LinkStatus{URL: u, Alive: !d[u], Dead: d[u], StatusCode: 200}
		if d[u] {
			st.StatusCode = 404
		}
		out = append(out, st)
	}
	return out
}

func TestLinks_External(t *testing.T) {
	in := project(t, map[string]string{
		"README.md": "[a](https://example.com/gone) [b](https://example.com/ok)\n\nAgain [a](https://example.com/gone)\n",
	})

	res := reconcile(t, in, Options{LinkChecker: deadLinks{"https://example.com/gone": true}})[model.CategoryLinks]
	require.Len(t, res.Issues, 2)
	for _, is := range res.Issues {
		assert.Equal(t, model.SeverityWarning, is.Severity)
		assert.Contains(t, is.Message, "https://example.com/gone")
	}
	assert.Equal(t, model.StatusWarn, res.Status)

	offline := reconcile(t, in, Options{})[model.CategoryLinks]
	assert.Empty(t, offline.Issues)
}

func TestCodeBlocks(t *testing.T) {
	in := project(t, map[string]string{
		"README.md": "```\nsrc/\n├── main.go\n└── util.go\n```\n\n" +
			"```\nwidgetctl run --fast\n```\n\n" +
			"```json\n{\"a\": 1,}\n```\n\n" +
			"```json\n{\"a\": 1, ...}\n```\n\n" +
			"```json\n{\"a\": [1, 2]}\n```\n\n" +
			"```yaml\nkey: [unclosed\n```\n\n" +
			"```yaml\nkey: value\nlist:\n  - a\n```\n\n" +
			"```toml\n[server\nport = 1\n```\n\n" +
			"```toml\n[server]\nport = 1\n```\n",
	})

	res := reconcile(t, in, Options{})[model.CategoryCodeBlocks]
	assert.Equal(t, model.StatusFail, res.Status)

	type key struct {
		line int
		sev  model.Severity
	}
	var got []key
	for _, is := range res.Issues {
		got = append(got, key{is.Location.Line, is.Severity})
	}
	assert.ElementsMatch(t, []key{
		{7, model.SeverityWarning},  // untagged command
		{11, model.SeverityError},   // trailing comma
		{15, model.SeverityWarning}, // illustrative json
		{23, model.SeverityError},   // yaml
		{33, model.SeverityError},   // toml
	}, got)
}

func TestEnvVars_Corroboration(t *testing.T) {
	in := project(t, map[string]string{"README.md": "# App\n"},
		envRead("ONE_FILE", "run.sh", 2, model.ConfidenceLow),
		envRead("TWO_FILES", "run.sh", 3, model.ConfidenceLow),
		envRead("TWO_FILES", "deploy.sh", 7, model.ConfidenceLow),
		envRead("HOME", "run.sh", 4, model.ConfidenceHigh),
	)

	res := reconcile(t, in, Options{})[model.CategoryEnvVars]
	require.Len(t, res.Issues, 2)
	assert.Equal(t, model.SeverityError, res.Issues[0].Severity)
	assert.Contains(t, res.Issues[0].Message, "TWO_FILES")
	assert.Contains(t, res.Issues[0].Message, "(1 more site)")
	assert.Equal(t, model.Location{File: "deploy.sh", Line: 7}, res.Issues[0].Location)
	assert.Equal(t, model.SeverityWarning, res.Issues[1].Severity)
	assert.Contains(t, res.Issues[1].Message, "low-confidence")
}

func TestEnvVars_ShortAndLowercaseNames(t *testing.T) {
	readme := "# App\n\nSet `DB` and `redis_url` before starting.\nExport api_host to reach the server. Uses IPC sockets.\n"
	in := project(t, map[string]string{"README.md": readme},
		envRead("DB", "app.py", 3, model.ConfidenceHigh),
		envRead("redis_url", "app.py", 4, model.ConfidenceHigh),
		envRead("api_host", "app.py", 5, model.ConfidenceHigh),
		envRead("IP", "app.py", 6, model.ConfidenceHigh),
	)

	res := reconcile(t, in, Options{})[model.CategoryEnvVars]
	require.Len(t, res.Issues, 1, "IPC is not a mention of IP")
	assert.Equal(t, model.SeverityError, res.Issues[0].Severity)
	assert.Contains(t, res.Issues[0].Message, "environment variable IP ")
	assert.Equal(t, model.Location{File: "app.py", Line: 6}, res.Issues[0].Location)
}

func TestSystemDeps(t *testing.T) {
	in := project(t, map[string]string{
		"README.md": "# Media\n\nRequires ffmpeg.\n",
	},
		toolCall("ffmpeg", "media.py", 10, model.ConfidenceHigh),
		toolCall("git", "media.py", 11, model.ConfidenceHigh),
		toolCall("pandoc", "docs.py", 4, model.ConfidenceHigh),
		toolCall("/usr/bin/pandoc", "docs.py", 9, model.ConfidenceHigh),
		toolCall("convert", "thumbs.sh", 2, model.ConfidenceLow),
	)

	res := reconcile(t, in, Options{})[model.CategorySystemDeps]
	require.Len(t, res.Issues, 2, messages(res))
	assert.Equal(t, "system tool pandoc is invoked but never mentioned (1 more site)", res.Issues[0].Message)
	assert.Equal(t, model.SeverityError, res.Issues[0].Severity)
	assert.Equal(t, "system tool convert is invoked but never mentioned", res.Issues[1].Message)
	assert.Equal(t, model.SeverityWarning, res.Issues[1].Severity)
}

func TestMetadata(t *testing.T) {
	in := project(t, map[string]string{
		"package.json": `{"name": "tool", "version": "1.4.0", "license": "MIT"}`,
		"README.md":    "# Tool\n\nCurrent version: 1.3.0\n\nInstall version v1.4.0 from npm.\n\n## License\n\nApache-2.0\n",
	})

	res := reconcile(t, in, Options{})[model.CategoryMetadata]
	require.Len(t, res.Issues, 2, messages(res))
	assert.Contains(t, res.Issues[0].Message, "documented version 1.3.0")
	assert.Contains(t, res.Issues[0].Message, "1.4.0 (package.json)")
	assert.Equal(t, model.SeverityError, res.Issues[1].Severity)
	assert.Contains(t, res.Issues[1].Message, "documented license Apache-2.0")
}

func TestMetadata_LicenseFileOnly(t *testing.T) {
	in := project(t, map[string]string{"README.md": "## License\n\nApache-2.0\n"})
	in.Manifest = &manifest.Result{Facts: []model.Fact{{
		Kind: model.FactDeclaredLicense, Name: "MIT", Confidence: model.ConfidenceLow,
		Location: model.Location{File: "LICENSE", Line: 1},
	}}}

	res := reconcile(t, in, Options{})[model.CategoryMetadata]
	require.Len(t, res.Issues, 1)
	assert.Equal(t, model.SeverityWarning, res.Issues[0].Severity)
}

func TestCommands_StaticChecks(t *testing.T) {
	files := map[string]string{
		"package.json":     `{"name": "tool", "scripts": {"build": "tsc", "test": "jest"}}`,
		"Makefile":         "all: build\n\nbuild:\n\tgo build ./...\n",
		"scripts/setup.sh": "#!/bin/sh\n",
		"tools/gen.py":     "print('x')\n",
	}
	tests := []struct {
		name       string
		block      string
		wantSev    []model.Severity
		suggestion string
	}{
		{"declared script", "npm run build", nil, ""},
		{"lifecycle script", "npm test", nil, ""},
		{"misspelled script", "npm run buidl", []model.Severity{model.SeverityError}, "did you mean build?"},
		{"undeclared install", "npm install left-pad", []model.Severity{model.SeverityError}, ""},
		{"python install without manifest", "pip install flask", []model.Severity{model.SeverityWarning}, ""},
		{"global install", "npm install -g typescript", nil, ""},
		{"make target", "make build", nil, ""},
		{"missing make target", "make deploy", []model.Severity{model.SeverityError}, ""},
		{"existing script path", "./scripts/setup.sh", nil, ""},
		{"missing script path", "./scripts/install.sh", []model.Severity{model.SeverityError}, ""},
		{"python file", "python tools/gen.py", nil, ""},
		{"missing python file", "python3.12 tools/run.py", []model.Severity{model.SeverityError}, ""},
		{"missing requirements file", "pip install -r requirements-dev.txt", []model.Severity{model.SeverityError}, ""},
		{"cd then script", "cd scripts && ./setup.sh", nil, ""},
		{"project name", "tool --help", nil, ""},
		{"undeclared target", "checker --all", []model.Severity{model.SeverityError}, ""},
		{"known tool", "git clone https://example.com/x.git", nil, ""},
		{"docker compose without file", "docker compose up -d", []model.Severity{model.SeverityError}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := map[string]string{"README.md": "# Tool\n\n```bash\n" + tt.block + "\n```\n"}
			for k, v := range files {
				f[k] = v
			}
			res := reconcile(t, project(t, f), Options{})[model.CategoryCommands]

			var sevs []model.Severity
			for _, is := range res.Issues {
				sevs = append(sevs, is.Severity)
			}
			assert.Equal(t, tt.wantSev, sevs, messages(res))
			if tt.suggestion != "" {
				assert.Equal(t, tt.suggestion, res.Issues[0].Suggestion)
			}
		})
	}
}

func TestCommands_PackageInstallAgainstManifest(t *testing.T) {
	files := map[string]string{
		"README.md":        "# App\n\n```bash\npip install flask\npip install requests==2.31.0\n```\n",
		"requirements.txt": "requests\n",
	}
	res := reconcile(t, project(t, files), Options{})[model.CategoryCommands]

	require.Len(t, res.Issues, 1, messages(res))
	assert.Equal(t, model.SeverityError, res.Issues[0].Severity)
	assert.Equal(t, "package flask is installed but not declared as a dependency", res.Issues[0].Message)
	assert.Equal(t, model.Location{File: "README.md", Line: 4}, res.Issues[0].Location)
	assert.Equal(t, model.StatusFail, res.Status)
}

func TestCommands_IntentAndContext(t *testing.T) {
	t.Run("negated block is not checked", func(t *testing.T) {
		in := project(t, map[string]string{
			"package.json": `{"name": "tool"}`,
			"README.md":    "# Tool\n\nDo not run this anymore:\n\n```bash\nnpm run nuke\n```\n",
		})
		res := reconcile(t, in, Options{})[model.CategoryCommands]
		assert.Empty(t, res.Issues)
	})

	t.Run("ambiguous line goes to notes", func(t *testing.T) {
		in := project(t, map[string]string{
			"package.json": `{"name": "tool"}`,
			"README.md":    "# Tool\n\n```\nwidgetctl run\n```\n",
		})
		res := reconcile(t, in, Options{})[model.CategoryCommands]
		assert.Empty(t, res.Issues)
		require.Len(t, res.Notes, 1)
		assert.Contains(t, res.Notes[0], "widgetctl run")
	})

	t.Run("prerequisite tool", func(t *testing.T) {
		in := project(t, map[string]string{
			"package.json": `{"name": "tool"}`,
			"README.md":    "# Tool\n\n## Requirements\n\nInstall mytool 3.x first.\n\n```bash\nmytool --version\n```\n",
		})
		res := reconcile(t, in, Options{})[model.CategoryCommands]
		assert.Empty(t, res.Issues)
	})

	t.Run("no manifest downgrades unknown targets", func(t *testing.T) {
		in := project(t, map[string]string{
			"README.md": "# Tool\n\n```bash\nfoo --bar\n```\n",
		})
		res := reconcile(t, in, Options{})[model.CategoryCommands]
		require.Len(t, res.Issues, 1)
		assert.Equal(t, model.SeverityWarning, res.Issues[0].Severity)
	})
}

// scripted returns a fixed outcome per command text and records what ran
type scripted struct {
	outcomes map[string]model.Verification
	seen     []string
}

func (s *scripted) VerifyBlocks(_ context.Context, blocks [][]sandbox.Command) [][]model.Verification {
	out := make([][]model.Verification, len(blocks))
	for i, block := range blocks {
		for _, c := range block {
			s.seen = append(s.seen, c.Text)
			v := s.outcomes[c.Text]
			v.Command, v.Location = c.Text, c.Location
			if v.Outcome == "" {
				v.Outcome = model.OutcomeSuccess
			}
			out[i] = append(out[i], v)
		}
	}
	return out
}

func TestCommands_DynamicOutcomes(t *testing.T) {
	in := project(t, map[string]string{
		"package.json": `{"name": "tool", "scripts": {"build": "tsc", "test": "jest", "lint": "eslint ."}}`,
		"README.md": "# Tool\n\n```bash\nnpm run build\nnpm run missing\nnpm test\n```\n\n" +
			"```bash\nnpm run lint\ncurl https://example.com\nnpx some-tool\n```\n",
	})
	verifier := &scripted{outcomes: map[string]model.Verification{
		"npm test":                 {Outcome: model.OutcomeFailure, ExitCode: 1, Reason: "exit status 1", Stderr: "jest: not found\n"},
		"npm run lint":             {Outcome: model.OutcomeTimedOut, Reason: "exceeded 1s"},
		"curl https://example.com": {Outcome: model.OutcomeBlocked, Reason: "network access is disabled"},
		"npx some-tool":            {Outcome: model.OutcomeFailure, ExitCode: -1, Reason: "spawn failed"},
	}}

	res := reconcile(t, in, Options{Dynamic: true, Verifier: verifier})[model.CategoryCommands]

	assert.Equal(t, []string{"npm run build", "npm test", "npm run lint", "curl https://example.com", "npx some-tool"}, verifier.seen,
		"commands with static errors are not executed")
	assert.Len(t, res.Verifications, 5)

	type key struct {
		line int
		sev  model.Severity
	}
	var got []key
	for _, is := range res.Issues {
		got = append(got, key{is.Location.Line, is.Severity})
	}
	assert.Equal(t, []key{
		{5, model.SeverityError},    // static: missing script
		{6, model.SeverityError},    // failed run
		{10, model.SeverityWarning}, // timed out
		{11, model.SeverityWarning}, // blocked
		{12, model.SeverityWarning}, // could not start
	}, got)
	assert.Equal(t, model.StatusFail, res.Status)

	for _, is := range res.Issues {
		if is.Location.Line == 6 {
			assert.Equal(t, "stderr: jest: not found", is.Suggestion)
		}
	}
}
