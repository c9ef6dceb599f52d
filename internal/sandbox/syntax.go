package sandbox

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
)

// CheckSyntax validates a command with the bash grammar without running it.
// The error names the first ERROR or MISSING node.
func CheckSyntax(ctx context.Context, text string) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(bash.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, []byte(text))
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}
	n := firstError(root)
	p := n.StartPoint()
	if n.IsMissing() {
		return fmt.Errorf("syntax error: missing %q at line %d, column %d", n.Type(), p.Row+1, p.Column+1)
	}
	return fmt.Errorf("syntax error at line %d, column %d", p.Row+1, p.Column+1)
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil && (child.HasError() || child.IsMissing()) {
			return firstError(child)
		}
	}
	return n
}
