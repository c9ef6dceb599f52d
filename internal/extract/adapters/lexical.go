package adapters

import (
	"context"
	"regexp"

	"github.com/ppiankov/readmecheck/internal/model"
)

// rule is one trigger pattern. The match must start in code; group 1 is the
// captured name (which usually lives inside a string literal).
type rule struct {
	kind model.FactKind
	re   *regexp.Regexp
}

// LexicalAdapter matches per-language trigger tables against masked source.
// Its facts are low confidence.
type LexicalAdapter struct {
	eco    model.Ecosystem
	syntax syntax
	rules  []rule
	mains  *regexp.Regexp
}

var lexicalTables = map[model.Ecosystem]struct {
	syntax syntax
	rules  []rule
	mains  *regexp.Regexp
}{
	model.EcosystemC: {
		syntax: cSyntax,
		rules: []rule{
			{model.FactEnvVarRead, regexp.MustCompile(`\b(?:std::)?(?:secure_)?getenv\s*\(\s*"([^"]+)"`)},
			{model.FactSystemToolCall, regexp.MustCompile(`\b(?:std::)?(?:system|popen)\s*\(\s*"([^"]+)"`)},
			{model.FactSystemToolCall, regexp.MustCompile(`\bexec(?:l|lp|le|v|vp|vpe)\s*\(\s*"([^"]+)"`)},
		},
		mains: regexp.MustCompile(`\bint\s+main\s*\(`),
	},
	model.EcosystemJava: {
		syntax: javaSyntax,
		rules: []rule{
			{model.FactEnvVarRead, regexp.MustCompile(`\bSystem\.getenv\s*\(\s*"([^"]+)"`)},
			{model.FactEnvVarRead, regexp.MustCompile(`\bSystem\.getProperty\s*\(\s*"([A-Z][A-Z0-9_]*)"`)},
			{model.FactSystemToolCall, regexp.MustCompile(`\.exec\s*\(\s*"([^"]+)"`)},
			{model.FactSystemToolCall, regexp.MustCompile(`\bProcessBuilder\s*\(\s*(?:listOf\s*\(\s*|Arrays\.asList\s*\(\s*|List\.of\s*\(\s*)?"([^"]+)"`)},
		},
		mains: regexp.MustCompile(`\bpublic\s+static\s+void\s+main\s*\(`),
	},
	model.EcosystemRust: {
		syntax: rustSyntax,
		rules: []rule{
			{model.FactEnvVarRead, regexp.MustCompile(`\b(?:std::)?env::var(?:_os)?\s*\(\s*"([^"]+)"`)},
			{model.FactEnvVarRead, regexp.MustCompile(`\b(?:option_)?env!\s*\(\s*"([^"]+)"`)},
			{model.FactSystemToolCall, regexp.MustCompile(`\bCommand::new\s*\(\s*"([^"]+)"`)},
		},
	},
	model.EcosystemRuby: {
		syntax: rubySyntax,
		rules: []rule{
			{model.FactEnvVarRead, regexp.MustCompile(`\bENV\s*\[\s*["']([^"']+)["']\s*\]`)},
			{model.FactEnvVarRead, regexp.MustCompile(`\bENV\.fetch\s*\(\s*["']([^"']+)["']`)},
			{model.FactSystemToolCall, regexp.MustCompile(`\b(?:system|spawn|exec)\s*\(?\s*["']([^"']+)["']`)},
			{model.FactSystemToolCall, regexp.MustCompile(`\bOpen3\.\w+\s*\(\s*["']([^"']+)["']`)},
		},
	},
}

// NewLexicalAdapter returns the lexical adapter for a C, Java, Rust or Ruby source
func NewLexicalAdapter(eco model.Ecosystem) *LexicalAdapter {
	table, ok := lexicalTables[eco]
	if !ok {
		table = lexicalTables[model.EcosystemC]
	}
	return &LexicalAdapter{eco: eco, syntax: table.syntax, rules: table.rules, mains: table.mains}
}

func (a *LexicalAdapter) Ecosystem() model.Ecosystem   { return a.eco }
func (a *LexicalAdapter) Confidence() model.Confidence { return model.ConfidenceLow }

// Extract matches every rule whose trigger starts in code
func (a *LexicalAdapter) Extract(ctx context.Context, file SourceFile) ([]model.Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := file.Content
	mask := a.syntax.mask(src)
	b := newFactBuilder(file, a.eco, model.ConfidenceLow)

	for _, r := range a.rules {
		for _, m := range r.re.FindAllSubmatchIndex(src, -1) {
			if mask[m[0]] != regionCode {
				continue
			}
			name := string(src[m[2]:m[3]])
			line := lineAt(src, m[0])
			switch r.kind {
			case model.FactEnvVarRead:
				b.envVar(name, line)
			case model.FactSystemToolCall:
				b.tool(name, line)
			}
		}
	}

	if a.mains != nil {
		for _, m := range a.mains.FindAllIndex(src, -1) {
			if mask[m[0]] == regionCode {
				b.add(model.FactRunnableTarget, file.Stem(), lineAt(src, m[0]))
				break
			}
		}
	}

	return b.facts, nil
}
