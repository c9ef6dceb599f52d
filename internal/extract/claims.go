// Package extract turns a parsed document into typed claims about the codebase.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/readmecheck/internal/command"
	"github.com/ppiankov/readmecheck/internal/document"
	"github.com/ppiankov/readmecheck/internal/model"
)

var (
	envToken  = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)
	envSpan   = regexp.MustCompile("`\\$?\\{?([A-Za-z_][A-Za-z0-9_]*)\\}?`")
	toolToken = regexp.MustCompile(`[a-z0-9][a-z0-9+_.-]*`)
)

// commonWords are upper-case tokens that are not environment variables
var commonWords = map[string]bool{
	"README": true, "TODO": true, "FIXME": true, "NOTE": true, "WARNING": true, "ERROR": true,
	"API": true, "URL": true, "URI": true, "HTTP": true, "HTTPS": true, "JSON": true, "XML": true,
	"HTML": true, "CSS": true, "SQL": true, "CLI": true, "GUI": true, "SDK": true, "IDE": true,
	"MIT": true, "BSD": true, "GPL": true, "APACHE": true, "LICENSE": true, "CHANGELOG": true,
	"FAQ": true, "TBD": true, "USAGE": true, "YAML": true, "TOML": true, "CSV": true, "PDF": true,
	"PNG": true, "SVG": true, "TLS": true, "SSL": true, "SSH": true, "DNS": true, "TCP": true,
	"UDP": true, "AWS": true, "GCP": true, "CPU": true, "GPU": true, "RAM": true, "MUST": true,
	"SHOULD": true, "MAY": true, "NOT": true, "AND": true, "THE": true, "REQUIRED": true,
	"OPTIONAL": true, "NEW": true, "GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true, "UTF": true, "ASCII": true, "UUID": true,
	"JWT": true, "REST": true, "RPC": true, "GRPC": true, "LLM": true, "EOF": true, "WIP": true,
	"IMPORTANT": true, "TIP": true, "CAUTION": true, "DANGER": true, "INFO": true, "DEBUG": true,
	"WARN": true, "FATAL": true, "TRUE": true, "FALSE": true, "NULL": true, "NONE": true,
	"CONTRIBUTING": true, "AUTHORS": true, "MAKEFILE": true, "DOCKERFILE": true,
}

// IsCommonWord reports whether an upper-case token is vocabulary rather than
// an environment variable
func IsCommonWord(s string) bool {
	return commonWords[s]
}

// ClaimExtractor extracts claims from a parsed Markdown document
type ClaimExtractor struct {
	logger       *zap.Logger
	projectNames map[string]bool
}

// NewClaimExtractor creates a claim extractor. projectNames are the project's
// declared package names, used to recognize pkg@X.Y.Z version mentions.
func NewClaimExtractor(logger *zap.Logger, projectNames ...string) *ClaimExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := make(map[string]bool, len(projectNames))
	for _, n := range projectNames {
		if n != "" {
			names[strings.ToLower(n)] = true
		}
	}
	return &ClaimExtractor{logger: logger, projectNames: names}
}

// Extract returns every claim of the document, sorted by location
func (e *ClaimExtractor) Extract(doc *document.Document) []model.Claim {
	var claims []model.Claim
	claims = append(claims, e.codeBlockClaims(doc)...)
	claims = append(claims, e.linkClaims(doc)...)
	claims = append(claims, e.envClaims(doc)...)
	claims = append(claims, e.versionClaims(doc)...)
	claims = append(claims, e.licenseClaims(doc)...)
	claims = append(claims, e.toolClaims(doc)...)
	claims = append(claims, e.marketingClaims(doc)...)

	sort.SliceStable(claims, func(i, j int) bool {
		a, b := claims[i], claims[j]
		if a.Location != b.Location {
			return a.Location.Less(b.Location)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Value < b.Value
	})

	e.logger.Debug("claims extracted", zap.String("document", doc.Path), zap.Int("claims", len(claims)))
	return claims
}

func (e *ClaimExtractor) at(doc *document.Document, line int) model.Location {
	return model.Location{File: doc.Path, Line: line}
}

// codeBlockClaims emits one language claim per fenced block and one command
// claim per logical line of shell blocks
func (e *ClaimExtractor) codeBlockClaims(doc *document.Document) []model.Claim {
	var out []model.Claim
	for _, b := range doc.CodeBlocks {
		out = append(out, model.Claim{
			Kind:     model.ClaimCodeBlockLanguage,
			Value:    b.Language,
			Location: e.at(doc, b.FenceLine),
			RawText:  b.Info,
			Language: b.Language,
			Block:    b.Index,
		})
		if !command.IsShellLanguage(b.Language) || b.Content == "" {
			continue
		}
		for _, l := range command.FromBlock(b.Content, b.StartLine) {
			out = append(out, model.Claim{
				Kind:     model.ClaimCodeBlockCommand,
				Value:    l.Text,
				Location: e.at(doc, l.Line),
				RawText:  l.Raw,
				Language: b.Language,
				Block:    b.Index,
			})
		}
	}
	return out
}

func (e *ClaimExtractor) linkClaims(doc *document.Document) []model.Claim {
	out := make([]model.Claim, 0, len(doc.Links))
	for _, l := range doc.Links {
		target := strings.TrimSpace(l.Target)
		if target == "" {
			continue
		}
		out = append(out, model.Claim{
			Kind:     model.ClaimLinkTarget,
			Value:    target,
			Location: e.at(doc, l.Line),
			RawText:  l.Text,
		})
	}
	return out
}

// envClaims records upper-snake tokens on every line, prose and code alike,
// plus inline-code names of any case such as `DB` or `redis_url`
func (e *ClaimExtractor) envClaims(doc *document.Document) []model.Claim {
	var out []model.Claim
	for i, line := range doc.Lines {
		seen := make(map[string]bool)
		add := func(name string) {
			if seen[name] {
				return
			}
			seen[name] = true
			out = append(out, model.Claim{
				Kind:     model.ClaimEnvVarMention,
				Value:    name,
				Location: e.at(doc, i+1),
				RawText:  strings.TrimSpace(line),
			})
		}
		for _, m := range envToken.FindAllStringSubmatch(line, -1) {
			if !commonWords[m[1]] {
				add(m[1])
			}
		}
		if doc.InCode(i + 1) {
			continue
		}
		for _, m := range envSpan.FindAllStringSubmatch(line, -1) {
			if envShaped(m[1]) {
				add(m[1])
			}
		}
	}
	return out
}

// envShaped accepts inline-code names that look like variables rather than
// commands: an underscore, or at least two letters all upper-case
func envShaped(name string) bool {
	if strings.Contains(name, "_") {
		return strings.Trim(name, "_") != ""
	}
	return len(name) >= 2 && name == strings.ToUpper(name) && name != strings.ToLower(name)
}

// toolClaims records every tool-name-shaped token once, at its first line
func (e *ClaimExtractor) toolClaims(doc *document.Document) []model.Claim {
	var out []model.Claim
	seen := make(map[string]bool)
	add := func(token string, line int) {
		token = strings.Trim(token, ".-_")
		if len(token) < 2 || seen[token] {
			return
		}
		seen[token] = true
		out = append(out, model.Claim{
			Kind:     model.ClaimSystemDepMention,
			Value:    token,
			Location: e.at(doc, line),
		})
	}
	for i, line := range doc.Lines {
		for _, tok := range toolToken.FindAllString(strings.ToLower(line), -1) {
			add(tok, i+1)
			if strings.ContainsAny(tok, "-.") {
				for _, part := range strings.FieldsFunc(tok, func(r rune) bool { return r == '-' || r == '.' }) {
					add(part, i+1)
				}
			}
		}
	}
	return out
}
