package adapters

import (
	"bytes"
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/ppiankov/readmecheck/internal/model"
)

var jsProcessCalls = map[string]bool{
	"exec": true, "execSync": true, "spawn": true, "spawnSync": true,
	"execFile": true, "execFileSync": true,
	"execa": true, "execaSync": true,
}

// JavaScriptAdapter extracts facts from JavaScript and TypeScript syntax trees
type JavaScriptAdapter struct{}

// NewJavaScriptAdapter creates the JavaScript/TypeScript adapter
func NewJavaScriptAdapter() *JavaScriptAdapter {
	return &JavaScriptAdapter{}
}

func (a *JavaScriptAdapter) Ecosystem() model.Ecosystem   { return model.EcosystemNode }
func (a *JavaScriptAdapter) Confidence() model.Confidence { return model.ConfidenceHigh }

func languageFor(ext string) *sitter.Language {
	switch ext {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// Extract collects process.env reads, child_process invocations and node
// shebang entry points
func (a *JavaScriptAdapter) Extract(ctx context.Context, file SourceFile) ([]model.Fact, error) {
	tree, err := parseTree(ctx, languageFor(file.Ext()), file.Content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	v := &jsVisitor{
		src:          file.Content,
		b:            newFactBuilder(file, model.EcosystemNode, model.ConfidenceHigh),
		scope:        make(stringScope),
		childProcess: bytes.Contains(file.Content, []byte("child_process")) || bytes.Contains(file.Content, []byte("execa")),
	}

	root := tree.RootNode()
	walkTree(root, v.collect)
	walkTree(root, v.visit)

	if bytes.HasPrefix(file.Content, []byte("#!")) {
		firstLine, _, _ := bytes.Cut(file.Content, []byte("\n"))
		if bytes.Contains(firstLine, []byte("node")) || bytes.Contains(firstLine, []byte("deno")) || bytes.Contains(firstLine, []byte("bun")) {
			v.b.add(model.FactRunnableTarget, file.Stem(), 1)
		}
	}

	return v.b.facts, nil
}

type jsVisitor struct {
	src          []byte
	b            *factBuilder
	scope        stringScope
	childProcess bool
}

// collect records const/let string bindings used as dynamic keys
func (v *jsVisitor) collect(n *sitter.Node) {
	if n.Type() != "variable_declarator" {
		return
	}
	name, value := n.ChildByFieldName("name"), n.ChildByFieldName("value")
	if name == nil || value == nil || name.Type() != "identifier" {
		return
	}
	if value.Type() == "string" || value.Type() == "template_string" {
		if s, ok := unquote(value.Content(v.src)); ok {
			v.scope.set(name.Content(v.src), s)
		}
	}
}

// envMethods are the env-object methods whose first argument names a
// variable the code depends on; other methods (set, delete, toObject) are not reads
var envMethods = map[string]bool{"get": true, "has": true, "hasOwnProperty": true}

// isCallee reports whether n is the function being called, as in Deno.env.get(...)
func isCallee(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil || parent.Type() != "call_expression" {
		return false
	}
	fn := parent.ChildByFieldName("function")
	return fn != nil && fn.StartByte() == n.StartByte() && fn.EndByte() == n.EndByte()
}

func isEnvObject(text string) bool {
	switch text {
	case "process.env", "import.meta.env", "Deno.env", "Bun.env":
		return true
	}
	return false
}

func (v *jsVisitor) visit(n *sitter.Node) {
	switch n.Type() {
	case "member_expression":
		obj, prop := n.ChildByFieldName("object"), n.ChildByFieldName("property")
		if obj != nil && prop != nil && isEnvObject(obj.Content(v.src)) && !isCallee(n) {
			v.b.envVar(prop.Content(v.src), nodeLine(n))
		}

	case "subscript_expression":
		obj := n.ChildByFieldName("object")
		if obj != nil && isEnvObject(obj.Content(v.src)) {
			if name, ok := v.resolve(n.ChildByFieldName("index")); ok {
				v.b.envVar(name, nodeLine(n))
			}
		}

	case "variable_declarator":
		name, value := n.ChildByFieldName("name"), n.ChildByFieldName("value")
		if name != nil && value != nil && name.Type() == "object_pattern" && isEnvObject(value.Content(v.src)) {
			v.destructured(name)
		}

	case "call_expression":
		v.call(n)
	}
}

// destructured handles const { A, B: b, C = "x" } = process.env
func (v *jsVisitor) destructured(pattern *sitter.Node) {
	for i := 0; i < int(pattern.NamedChildCount()); i++ {
		child := pattern.NamedChild(i)
		switch child.Type() {
		case "shorthand_property_identifier_pattern":
			v.b.envVar(child.Content(v.src), nodeLine(child))
		case "pair_pattern":
			if key := child.ChildByFieldName("key"); key != nil {
				name := key.Content(v.src)
				if key.Type() == "string" {
					name, _ = unquote(name)
				}
				v.b.envVar(name, nodeLine(child))
			}
		case "object_assignment_pattern":
			if left := child.ChildByFieldName("left"); left != nil {
				v.b.envVar(left.Content(v.src), nodeLine(child))
			}
		}
	}
}

func (v *jsVisitor) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	if fn.Type() == "member_expression" {
		obj, prop := fn.ChildByFieldName("object"), fn.ChildByFieldName("property")
		if obj != nil && prop != nil && isEnvObject(obj.Content(v.src)) {
			if envMethods[prop.Content(v.src)] {
				if name, ok := v.resolve(firstArg(n.ChildByFieldName("arguments"))); ok {
					v.b.envVar(name, nodeLine(n))
				}
			}
			return
		}
	}
	if !v.childProcess {
		return
	}

	var name string
	switch fn.Type() {
	case "identifier":
		name = fn.Content(v.src)
	case "member_expression":
		if prop := fn.ChildByFieldName("property"); prop != nil {
			name = prop.Content(v.src)
		}
	}
	if !jsProcessCalls[name] {
		return
	}

	arg := firstArg(n.ChildByFieldName("arguments"))
	if arg != nil && arg.Type() == "array" {
		arg = firstArg(arg)
	}
	if cmd, ok := v.resolve(arg); ok {
		v.b.tool(cmd, nodeLine(n))
	}
}

func (v *jsVisitor) resolve(n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "string", "template_string":
		return unquote(n.Content(v.src))
	case "identifier", "property_identifier":
		return v.scope.get(n.Content(v.src))
	}
	return "", false
}
