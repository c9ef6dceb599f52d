// Package document turns a Markdown file into the block/link/heading tree
// consumed by the claim extractor.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is a parsed Markdown document
type Document struct {
	Path       string      // Path relative to the project root (slash separated)
	Lines      []string    // Raw source lines, index 0 is line 1
	Headings   []Heading   // In document order
	CodeBlocks []CodeBlock // Fenced code blocks in document order
	Links      []Link      // Markdown, autolink and raw HTML links
	Anchors    []string    // Explicit HTML anchors (id= / name=)

	codeLines map[int]bool
}

// Heading is a section heading with its GitHub-style slug
type Heading struct {
	Level int
	Text  string
	Slug  string
	Line  int
}

// CodeBlock is a fenced code block
type CodeBlock struct {
	Index     int    // 1-based position among fenced blocks
	Language  string // First word of the info string, lower-cased; "" when absent
	Info      string // Full info string
	Content   string
	FenceLine int // Line of the opening fence
	StartLine int // Line of the first content line
}

// ContentLines splits the block content into lines
func (b CodeBlock) ContentLines() []string {
	content := strings.TrimSuffix(b.Content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// Link is a link or image reference
type Link struct {
	Target string
	Text   string
	Line   int
	Image  bool
	HTML   bool // Found in raw HTML rather than Markdown syntax
}

// ProseLine is a document line outside fenced code
type ProseLine struct {
	Number int
	Text   string
}

// ProseLines returns every line that is not part of a fenced code block
func (d *Document) ProseLines() []ProseLine {
	out := make([]ProseLine, 0, len(d.Lines))
	for i, line := range d.Lines {
		if d.codeLines[i+1] {
			continue
		}
		out = append(out, ProseLine{Number: i + 1, Text: line})
	}
	return out
}

// InCode reports whether the 1-based line belongs to a fenced code block,
// fences included
func (d *Document) InCode(line int) bool {
	return d.codeLines[line]
}

// SectionOf returns the nearest heading above the line, or nil
func (d *Document) SectionOf(line int) *Heading {
	var found *Heading
	for i := range d.Headings {
		if d.Headings[i].Line > line {
			break
		}
		found = &d.Headings[i]
	}
	return found
}

// HasSlug reports whether an anchor matches a heading slug or explicit anchor
func (d *Document) HasSlug(anchor string) bool {
	anchor = strings.ToLower(strings.TrimPrefix(anchor, "#"))
	for _, h := range d.Headings {
		if h.Slug == anchor || collapseSlug(h.Slug) == anchor {
			return true
		}
	}
	for _, a := range d.Anchors {
		if strings.ToLower(a) == anchor {
			return true
		}
	}
	return false
}

// Slugs returns all anchor targets of the document
func (d *Document) Slugs() []string {
	out := make([]string, 0, len(d.Headings)+len(d.Anchors))
	for _, h := range d.Headings {
		out = append(out, h.Slug)
	}
	return append(out, d.Anchors...)
}

// ParseFile reads and parses a Markdown file. relPath is recorded as the
// document path.
func ParseFile(absPath, relPath string) (*Document, error) {
	src, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Parse(filepath.ToSlash(relPath), src), nil
}

// ParagraphBefore returns the prose paragraph that ends right above line,
// at most maxLines long. It stops at headings, code and blank lines.
func (d *Document) ParagraphBefore(line, maxLines int) string {
	var collected []string
	for n := line - 1; n >= 1 && len(collected) < maxLines; n-- {
		if d.codeLines[n] {
			break
		}
		text := strings.TrimSpace(d.Lines[n-1])
		if text == "" {
			if len(collected) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(text, "#") {
			break
		}
		collected = append(collected, text)
	}
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return strings.Join(collected, " ")
}

// Block returns the fenced block with the given 1-based index, or nil
func (d *Document) Block(index int) *CodeBlock {
	if index < 1 || index > len(d.CodeBlocks) {
		return nil
	}
	return &d.CodeBlocks[index-1]
}
