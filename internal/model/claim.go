package model

import "fmt"

// Location points at a line in a file (1-based). File is relative to the project root.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line,omitempty"`
}

// String renders the location as file:line
func (l Location) String() string {
	if l.Line <= 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Less orders locations by file, then line
func (l Location) Less(o Location) bool {
	if l.File != o.File {
		return l.File < o.File
	}
	return l.Line < o.Line
}

// Claim represents an assertion the documentation makes about the codebase.
// A claim is never authoritative on its own.
type Claim struct {
	Kind     ClaimKind `json:"kind"`
	Value    string    `json:"value"`              // Normalized value (variable name, link target, command line, ...)
	Location Location  `json:"location"`           // Where the claim appears
	RawText  string    `json:"raw_text,omitempty"` // Source text the claim was extracted from
	Language string    `json:"language,omitempty"` // Code block language tag (code block claims only)
	Block    int       `json:"block,omitempty"`    // 1-based fenced block index (code block claims only)
}

// ClaimKind categorizes claims
type ClaimKind string

const (
	ClaimEnvVarMention     ClaimKind = "env_var_mention"
	ClaimLinkTarget        ClaimKind = "link_target"
	ClaimCodeBlockCommand  ClaimKind = "code_block_command"
	ClaimCodeBlockLanguage ClaimKind = "code_block_language"
	ClaimVersionMention    ClaimKind = "version_mention"
	ClaimLicenseMention    ClaimKind = "license_mention"
	ClaimSystemDepMention  ClaimKind = "system_dep_mention"
	ClaimHypeMention       ClaimKind = "hype_mention"         // marketing superlative: robust, scalable, ...
	ClaimCompleteness      ClaimKind = "completeness_mention" // maturity claim: stable, production-ready, ...
)

// ClaimsOfKind filters claims by kind, preserving order
func ClaimsOfKind(claims []Claim, kind ClaimKind) []Claim {
	var out []Claim
	for _, c := range claims {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
