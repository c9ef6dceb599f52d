// Package manifest reads build and packaging files (package.json, pyproject.toml,
// go.mod, Cargo.toml, Makefile, pom.xml, LICENSE) into facts.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/readmecheck/internal/model"
)

// Result is everything the manifests of one project declare
type Result struct {
	Facts       []model.Fact       `json:"facts"`
	Ecosystems  []model.Ecosystem  `json:"ecosystems"`
	Diagnostics []model.Diagnostic `json:"diagnostics,omitempty"`
}

// Has reports whether a manifest of the ecosystem was found
func (r *Result) Has(eco model.Ecosystem) bool {
	for _, e := range r.Ecosystems {
		if e == eco {
			return true
		}
	}
	return false
}

// Of returns the facts of one kind, optionally restricted to an ecosystem ("" = any)
func (r *Result) Of(kind model.FactKind, eco model.Ecosystem) []model.Fact {
	var out []model.Fact
	for _, f := range r.Facts {
		if f.Kind == kind && (eco == "" || f.Ecosystem == eco) {
			out = append(out, f)
		}
	}
	return out
}

// Declares reports whether a fact of kind with the given name exists. Dependency
// names are compared after normalization.
func (r *Result) Declares(kind model.FactKind, eco model.Ecosystem, name string) bool {
	want := NormalizeName(eco, name)
	for _, f := range r.Of(kind, eco) {
		if NormalizeName(f.Ecosystem, f.Name) == want {
			return true
		}
	}
	return false
}

// Lookup returns the first matching fact
func (r *Result) Lookup(kind model.FactKind, eco model.Ecosystem, name string) (model.Fact, bool) {
	want := NormalizeName(eco, name)
	for _, f := range r.Of(kind, eco) {
		if NormalizeName(f.Ecosystem, f.Name) == want {
			return f, true
		}
	}
	return model.Fact{}, false
}

// NormalizeName folds package names so that equivalent spellings compare equal.
// Python follows PEP 503; everything else is case-insensitive.
func NormalizeName(eco model.Ecosystem, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if eco != model.EcosystemPython {
		return name
	}
	var b strings.Builder
	dash := false
	for _, r := range name {
		if r == '-' || r == '_' || r == '.' {
			if !dash {
				b.WriteByte('-')
			}
			dash = true
			continue
		}
		dash = false
		b.WriteRune(r)
	}
	return b.String()
}

// Extractor reads the manifests at a project root
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a manifest extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

type parser struct {
	name  string
	files []string
	parse func(c *collector, rel string, data []byte) error
}

var parsers = []parser{
	{"package.json", []string{"package.json"}, parsePackageJSON},
	{"pyproject", []string{"pyproject.toml"}, parsePyproject},
	{"go.mod", []string{"go.mod"}, parseGoMod},
	{"cargo", []string{"Cargo.toml"}, parseCargo},
	{"makefile", []string{"Makefile", "makefile", "GNUmakefile"}, parseMakefile},
	{"pom", []string{"pom.xml"}, parsePom},
}

// presence-only markers
var markers = map[string]model.Ecosystem{
	"setup.py":         model.EcosystemPython,
	"setup.cfg":        model.EcosystemPython,
	"Pipfile":          model.EcosystemPython,
	"build.gradle":     model.EcosystemJava,
	"build.gradle.kts": model.EcosystemJava,
	"settings.gradle":  model.EcosystemJava,
	"Gemfile":          model.EcosystemRuby,
	"CMakeLists.txt":   model.EcosystemC,
}

// Extract reads every known manifest directly under root. A missing manifest
// contributes nothing; a malformed one contributes what could be read plus a
// diagnostic. The only error returned is for an unreadable root.
func (e *Extractor) Extract(ctx context.Context, root string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		return nil, &model.ExtractionError{Path: root, Err: err}
	}

	c := newCollector(root)

	for _, p := range parsers {
		for _, name := range p.files {
			data, ok := c.read(name)
			if !ok {
				continue
			}
			if err := p.parse(c, name, data); err != nil {
				c.diagnose(name, err)
			}
			e.logger.Debug("manifest parsed", zap.String("file", name), zap.String("parser", p.name))
			break
		}
	}

	for _, rel := range requirementFiles(root) {
		if data, ok := c.read(rel); ok {
			parseRequirements(c, rel, data)
		}
	}

	for name, eco := range markers {
		if c.exists(name) {
			c.mark(eco)
		}
	}

	detectLicenseFile(c)

	res := c.result()
	e.logger.Debug("manifests extracted",
		zap.Int("facts", len(res.Facts)),
		zap.Int("diagnostics", len(res.Diagnostics)))
	return res, nil
}

// collector accumulates facts of several manifests
type collector struct {
	root        string
	facts       []model.Fact
	ecosystems  map[model.Ecosystem]bool
	diagnostics []model.Diagnostic
}

func newCollector(root string) *collector {
	return &collector{root: root, ecosystems: make(map[model.Ecosystem]bool)}
}

func (c *collector) read(rel string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(rel)))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.diagnose(rel, err)
		}
		return nil, false
	}
	return data, true
}

func (c *collector) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(c.root, filepath.FromSlash(rel)))
	return err == nil
}

func (c *collector) mark(eco model.Ecosystem) {
	c.ecosystems[eco] = true
}

func (c *collector) diagnose(rel string, err error) {
	c.diagnostics = append(c.diagnostics, model.Diagnostic{File: rel, Message: err.Error()})
}

func (c *collector) add(kind model.FactKind, eco model.Ecosystem, name, rel string, line int, detail string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	c.facts = append(c.facts, model.Fact{
		Kind:       kind,
		Name:       name,
		Location:   model.Location{File: rel, Line: line},
		Ecosystem:  eco,
		Confidence: model.ConfidenceHigh,
		Detail:     detail,
	})
}

func (c *collector) result() *Result {
	res := &Result{
		Facts:       model.DedupeFacts(c.facts),
		Diagnostics: c.diagnostics,
	}
	for eco := range c.ecosystems {
		res.Ecosystems = append(res.Ecosystems, eco)
	}
	sort.Slice(res.Ecosystems, func(i, j int) bool { return res.Ecosystems[i] < res.Ecosystems[j] })
	sort.Slice(res.Diagnostics, func(i, j int) bool { return res.Diagnostics[i].File < res.Diagnostics[j].File })
	return res
}

// lineOf returns the 1-based line of the first needle found in data, or 1
func lineOf(data []byte, needles ...string) int {
	for _, n := range needles {
		if i := bytes.Index(data, []byte(n)); i >= 0 {
			return bytes.Count(data[:i], []byte("\n")) + 1
		}
	}
	return 1
}

func typeError(field string, v interface{}) error {
	return fmt.Errorf("field %q has unexpected type %T", field, v)
}
