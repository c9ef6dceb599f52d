package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/subosito/gotenv"

	"github.com/ppiankov/readmecheck/internal/model"
)

var dotenvSuffixes = []string{".example", ".sample", ".template", ".dist"}

// EnvFiles lists the .env.example-like files at the project root
func EnvFiles(root string) []string {
	matches, err := filepath.Glob(filepath.Join(root, ".env*"))
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range matches {
		name := filepath.Base(m)
		for _, suffix := range dotenvSuffixes {
			if strings.HasSuffix(name, suffix) {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// ExtractEnvFiles turns every key of the root's .env.example-like files into
// an EnvVarMention claim attributed to that file. A malformed file still
// contributes the keys a lenient parse recovers, plus a diagnostic.
func ExtractEnvFiles(root string) ([]model.Claim, []model.Diagnostic) {
	var (
		claims []model.Claim
		diags  []model.Diagnostic
	)
	for _, name := range EnvFiles(root) {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			diags = append(diags, model.Diagnostic{File: name, Message: err.Error()})
			continue
		}

		env, err := gotenv.StrictParse(bytes.NewReader(data))
		if err != nil {
			diags = append(diags, model.Diagnostic{File: name, Message: err.Error()})
			env = gotenv.Parse(bytes.NewReader(data))
		}

		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			line := dotenvLine(data, k)
			claims = append(claims, model.Claim{
				Kind:     model.ClaimEnvVarMention,
				Value:    k,
				Location: model.Location{File: name, Line: line},
				RawText:  lineText(data, line),
			})
		}
	}
	return claims, diags
}

func dotenvLine(data []byte, key string) int {
	re := regexp.MustCompile(`(?m)^\s*(?:export\s+)?` + regexp.QuoteMeta(key) + `\s*[=:]`)
	if loc := re.FindIndex(data); loc != nil {
		return bytes.Count(data[:loc[0]], []byte("\n")) + 1
	}
	return 1
}

func lineText(data []byte, line int) string {
	lines := strings.Split(string(data), "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}
