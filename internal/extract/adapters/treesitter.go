package adapters

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// parseTree parses content with a fresh parser. Parsers are not safe for
// concurrent use, so each call owns one. A tree with syntax errors is
// rejected so the file is skipped rather than half-read.
func parseTree(ctx context.Context, lang *sitter.Language, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	if root := tree.RootNode(); root.HasError() {
		row, col := firstErrorPoint(root)
		tree.Close()
		return nil, fmt.Errorf("syntax error at line %d, column %d", row+1, col+1)
	}
	return tree, nil
}

// firstErrorPoint locates the first ERROR or MISSING node
func firstErrorPoint(n *sitter.Node) (uint32, uint32) {
	if n.IsError() || n.IsMissing() {
		return n.StartPoint().Row, n.StartPoint().Column
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.HasError() {
			return firstErrorPoint(child)
		}
	}
	return n.StartPoint().Row, n.StartPoint().Column
}

// walkTree visits every named node depth-first
func walkTree(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walkTree(n.NamedChild(i), visit)
	}
}

func nodeLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// firstArg returns the first named argument of an argument list node
func firstArg(args *sitter.Node) *sitter.Node {
	if args == nil {
		return nil
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		return child
	}
	return nil
}

// keywordArg returns the value of a Python keyword argument
func keywordArg(args *sitter.Node, src []byte, name string) *sitter.Node {
	if args == nil {
		return nil
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() != "keyword_argument" {
			continue
		}
		if key := child.ChildByFieldName("name"); key != nil && key.Content(src) == name {
			return child.ChildByFieldName("value")
		}
	}
	return nil
}

// stringScope resolves identifiers to string constants assigned in the same
// file. Resolution is flow-insensitive; a name assigned two different
// strings resolves to neither.
type stringScope map[string]string

const ambiguous = "\x00"

func (s stringScope) set(name, value string) {
	if prev, ok := s[name]; ok && prev != value {
		s[name] = ambiguous
		return
	}
	s[name] = value
}

func (s stringScope) get(name string) (string, bool) {
	v, ok := s[name]
	if !ok || v == ambiguous {
		return "", false
	}
	return v, true
}
