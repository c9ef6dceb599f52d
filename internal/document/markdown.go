package document

import (
	"bytes"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Parse builds a Document from Markdown source
func Parse(path string, src []byte) *Document {
	doc := &Document{
		Path:      path,
		Lines:     splitLines(src),
		codeLines: make(map[int]bool),
	}

	p := &walker{
		doc:        doc,
		src:        src,
		lineStarts: lineStarts(src),
		slugs:      newSlugger(),
	}

	root := markdown.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(root, p.visit)

	return doc
}

type walker struct {
	doc        *Document
	src        []byte
	lineStarts []int
	slugs      *slugger
	curLine    int
	blocks     int
}

func (w *walker) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		w.curLine = w.lineOf(n.Lines().At(0).Start)
	}

	switch node := n.(type) {
	case *ast.Heading:
		headingText := strings.TrimSpace(w.textOf(node))
		w.doc.Headings = append(w.doc.Headings, Heading{
			Level: node.Level,
			Text:  headingText,
			Slug:  w.slugs.slug(headingText),
			Line:  w.curLine,
		})

	case *ast.FencedCodeBlock:
		w.addCodeBlock(node)
		return ast.WalkSkipChildren, nil

	case *ast.Link:
		w.doc.Links = append(w.doc.Links, Link{
			Target: string(node.Destination),
			Text:   strings.TrimSpace(w.textOf(node)),
			Line:   w.inlineLine(node),
		})

	case *ast.Image:
		w.doc.Links = append(w.doc.Links, Link{
			Target: string(node.Destination),
			Text:   strings.TrimSpace(w.textOf(node)),
			Line:   w.inlineLine(node),
			Image:  true,
		})

	case *ast.AutoLink:
		w.doc.Links = append(w.doc.Links, Link{
			Target: string(node.URL(w.src)),
			Text:   string(node.Label(w.src)),
			Line:   w.inlineLine(node),
		})

	case *ast.HTMLBlock:
		var buf bytes.Buffer
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(w.src))
		}
		if node.HasClosure() {
			buf.Write(node.ClosureLine.Value(w.src))
		}
		w.addHTML(buf.String(), w.curLine)

	case *ast.RawHTML:
		segs := node.Segments
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			w.addHTML(string(seg.Value(w.src)), w.lineOf(seg.Start))
		}
	}

	return ast.WalkContinue, nil
}

func (w *walker) addCodeBlock(node *ast.FencedCodeBlock) {
	w.blocks++

	var content strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		content.Write(seg.Value(w.src))
	}

	block := CodeBlock{
		Index:    w.blocks,
		Language: strings.ToLower(string(node.Language(w.src))),
		Content:  content.String(),
	}
	if node.Info != nil {
		block.Info = strings.TrimSpace(string(node.Info.Segment.Value(w.src)))
	}

	switch {
	case lines.Len() > 0:
		block.StartLine = w.lineOf(lines.At(0).Start)
		block.FenceLine = block.StartLine - 1
	case node.Info != nil:
		block.FenceLine = w.lineOf(node.Info.Segment.Start)
		block.StartLine = block.FenceLine + 1
	default:
		block.FenceLine = w.curLine + 1
		block.StartLine = block.FenceLine + 1
	}

	closing := block.StartLine + lines.Len()
	for line := block.FenceLine; line <= closing; line++ {
		w.doc.codeLines[line] = true
	}
	w.curLine = closing

	w.doc.CodeBlocks = append(w.doc.CodeBlocks, block)
}

// textOf concatenates the visible text below a node
func (w *walker) textOf(n ast.Node) string {
	var buf strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(w.src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(w.textOf(c))
		}
	}
	return buf.String()
}

// inlineLine finds the source line of an inline node through its first text descendant
func (w *walker) inlineLine(n ast.Node) int {
	var found = -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			found = t.Segment.Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if found >= 0 {
		return w.lineOf(found)
	}
	return w.curLine
}

func (w *walker) lineOf(offset int) int {
	return sort.Search(len(w.lineStarts), func(i int) bool { return w.lineStarts[i] > offset })
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func splitLines(src []byte) []string {
	s := strings.ReplaceAll(string(src), "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
