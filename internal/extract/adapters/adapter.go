// Package adapters holds one fact extractor per supported ecosystem.
package adapters

import (
	"context"
	"path"
	"strings"

	"github.com/ppiankov/readmecheck/internal/model"
)

// SourceFile is a single file handed to an adapter
type SourceFile struct {
	Path    string // Relative to the project root, slash separated
	Content []byte
	Project string // Base name of the project root, used for root-level entry points
}

// Ext returns the lower-cased file extension
func (f SourceFile) Ext() string {
	return strings.ToLower(path.Ext(f.Path))
}

// Stem returns the file name without its extension
func (f SourceFile) Stem() string {
	base := path.Base(f.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Adapter extracts environment-variable reads, runnable targets and
// system-tool invocations from one ecosystem's source files
type Adapter interface {
	// Ecosystem returns the tag the registry dispatches on
	Ecosystem() model.Ecosystem

	// Confidence returns the confidence of every fact the adapter emits
	Confidence() model.Confidence

	// Extract returns the facts of a single file. An error means the file
	// could not be analyzed and must be skipped.
	Extract(ctx context.Context, file SourceFile) ([]model.Fact, error)
}

// Registry maps file extensions to the closed set of adapters
type Registry struct {
	adapters map[model.Ecosystem]Adapter
	byExt    map[string]model.Ecosystem
}

// NewRegistry creates a registry with every built-in adapter
func NewRegistry() *Registry {
	r := &Registry{
		adapters: make(map[model.Ecosystem]Adapter),
		byExt:    make(map[string]model.Ecosystem),
	}

	r.register(NewGoAdapter(), ".go")
	r.register(NewPythonAdapter(), ".py", ".pyw")
	r.register(NewJavaScriptAdapter(), ".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx")
	r.register(NewLexicalAdapter(model.EcosystemC), ".c", ".h", ".cc", ".cpp", ".cxx", ".hpp", ".hxx")
	r.register(NewLexicalAdapter(model.EcosystemJava), ".java", ".kt", ".kts")
	r.register(NewLexicalAdapter(model.EcosystemRust), ".rs")
	r.register(NewLexicalAdapter(model.EcosystemRuby), ".rb")

	return r
}

func (r *Registry) register(adapter Adapter, exts ...string) {
	r.adapters[adapter.Ecosystem()] = adapter
	for _, ext := range exts {
		r.byExt[ext] = adapter.Ecosystem()
	}
}

// FindAdapter returns the adapter for a file path, if any
func (r *Registry) FindAdapter(filePath string) (Adapter, bool) {
	eco, ok := r.byExt[strings.ToLower(path.Ext(filePath))]
	if !ok {
		return nil, false
	}
	return r.Get(eco)
}

// Get returns the adapter for an ecosystem
func (r *Registry) Get(eco model.Ecosystem) (Adapter, bool) {
	a, ok := r.adapters[eco]
	return a, ok
}

// Ecosystems lists the registered ecosystems
func (r *Registry) Ecosystems() []model.Ecosystem {
	out := make([]model.Ecosystem, 0, len(r.adapters))
	for eco := range r.adapters {
		out = append(out, eco)
	}
	return out
}

// factBuilder stamps common fields onto facts of one file
type factBuilder struct {
	file       SourceFile
	eco        model.Ecosystem
	confidence model.Confidence
	facts      []model.Fact
}

func newFactBuilder(file SourceFile, eco model.Ecosystem, confidence model.Confidence) *factBuilder {
	return &factBuilder{file: file, eco: eco, confidence: confidence}
}

func (b *factBuilder) add(kind model.FactKind, name string, line int) {
	if name == "" {
		return
	}
	b.facts = append(b.facts, model.Fact{
		Kind:       kind,
		Name:       name,
		Location:   model.Location{File: b.file.Path, Line: line},
		Ecosystem:  b.eco,
		Confidence: b.confidence,
	})
}

func (b *factBuilder) envVar(name string, line int) {
	if IsEnvName(name) {
		b.add(model.FactEnvVarRead, name, line)
	}
}

func (b *factBuilder) tool(command string, line int) {
	b.add(model.FactSystemToolCall, ToolName(command), line)
}
