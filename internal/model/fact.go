package model

import "sort"

// Fact is an observation extracted directly from source or manifest files
type Fact struct {
	Kind       FactKind   `json:"kind"`
	Name       string     `json:"name"`
	Location   Location   `json:"location"`
	Ecosystem  Ecosystem  `json:"ecosystem"`
	Confidence Confidence `json:"confidence"`
	Detail     string     `json:"detail,omitempty"` // e.g. script body for a runnable target
}

// FactKind categorizes facts
type FactKind string

const (
	FactEnvVarRead         FactKind = "env_var_read"
	FactRunnableTarget     FactKind = "runnable_target"
	FactSystemToolCall     FactKind = "system_tool_call"
	FactDeclaredVersion    FactKind = "declared_version"
	FactDeclaredLicense    FactKind = "declared_license"
	FactDeclaredDependency FactKind = "declared_dependency"
	FactProjectName        FactKind = "project_name"
)

// Ecosystem is the closed set of supported language/build ecosystems
type Ecosystem string

const (
	EcosystemGo     Ecosystem = "go"
	EcosystemPython Ecosystem = "python"
	EcosystemNode   Ecosystem = "node"
	EcosystemRust   Ecosystem = "rust"
	EcosystemJava   Ecosystem = "java"
	EcosystemC      Ecosystem = "c"
	EcosystemRuby   Ecosystem = "ruby"
	EcosystemMake   Ecosystem = "make"
)

// Confidence tags how a fact was produced
type Confidence string

const (
	ConfidenceHigh Confidence = "high" // syntax tree or structured manifest
	ConfidenceLow  Confidence = "low"  // lexical pattern match
)

// Diagnostic records a file that could not be analyzed. The file is excluded
// from further processing.
type Diagnostic struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

type factKey struct {
	kind FactKind
	name string
	file string
	line int
}

// DedupeFacts collapses facts with the same kind, name, file and line. When
// duplicates disagree on confidence the high-confidence one wins. The result
// is sorted by file, line, kind, name.
func DedupeFacts(facts []Fact) []Fact {
	index := make(map[factKey]int, len(facts))
	out := make([]Fact, 0, len(facts))

	for _, f := range facts {
		key := factKey{f.Kind, f.Name, f.Location.File, f.Location.Line}
		if i, ok := index[key]; ok {
			if out[i].Confidence == ConfidenceLow && f.Confidence == ConfidenceHigh {
				out[i] = f
			}
			continue
		}
		index[key] = len(out)
		out = append(out, f)
	}

	SortFacts(out)
	return out
}

// SortFacts sorts facts deterministically
func SortFacts(facts []Fact) {
	sort.SliceStable(facts, func(i, j int) bool {
		a, b := facts[i], facts[j]
		if a.Location != b.Location {
			return a.Location.Less(b.Location)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})
}

// FactsOfKind filters facts by kind, preserving order
func FactsOfKind(facts []Fact, kind FactKind) []Fact {
	var out []Fact
	for _, f := range facts {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}
