package adapters

import (
	"bytes"
	"context"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/ppiankov/readmecheck/internal/model"
)

var (
	pyEnvGetters = map[string]bool{
		"os.getenv": true, "getenv": true,
		"os.environ.get": true, "environ.get": true,
		"os.environ.setdefault": true, "environ.setdefault": true,
		"os.environ.pop": true, "environ.pop": true,
	}

	pyToolCalls = map[string]bool{
		"subprocess.run": true, "subprocess.call": true, "subprocess.check_call": true,
		"subprocess.check_output": true, "subprocess.Popen": true, "subprocess.getoutput": true,
		"os.system": true, "os.popen": true, "os.execvp": true, "os.execlp": true,
		"shutil.which":                    true,
		"asyncio.create_subprocess_exec":  true,
		"asyncio.create_subprocess_shell": true,
	}

	pySubprocessNames = map[string]bool{
		"run": true, "call": true, "check_call": true, "check_output": true, "Popen": true,
	}

	// django-environ / environs typed getters
	pyEnvMethods = map[string]bool{
		"str": true, "int": true, "bool": true, "float": true, "list": true, "dict": true,
		"json": true, "url": true, "db": true, "db_url": true, "cache": true, "cache_url": true,
		"email": true, "email_url": true, "search_url": true, "path": true, "tuple": true,
		"decimal": true, "date": true, "datetime": true, "timedelta": true, "get_value": true,
	}
)

// PythonAdapter extracts facts from Python syntax trees
type PythonAdapter struct{}

// NewPythonAdapter creates the Python adapter
func NewPythonAdapter() *PythonAdapter {
	return &PythonAdapter{}
}

func (a *PythonAdapter) Ecosystem() model.Ecosystem   { return model.EcosystemPython }
func (a *PythonAdapter) Confidence() model.Confidence { return model.ConfidenceHigh }

// Extract parses the file and collects direct and structured env reads,
// subprocess invocations and __main__ entry points
func (a *PythonAdapter) Extract(ctx context.Context, file SourceFile) ([]model.Fact, error) {
	tree, err := parseTree(ctx, python.GetLanguage(), file.Content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	v := &pyVisitor{
		src:          file.Content,
		file:         file,
		b:            newFactBuilder(file, model.EcosystemPython, model.ConfidenceHigh),
		scope:        make(stringScope),
		envInstances: make(map[string]bool),
		decouple:     bytes.Contains(file.Content, []byte("decouple")),
		subprocess:   bytes.Contains(file.Content, []byte("from subprocess import")),
	}

	root := tree.RootNode()
	walkTree(root, v.collect)
	walkTree(root, v.visit)

	return v.b.facts, nil
}

type pyVisitor struct {
	src          []byte
	file         SourceFile
	b            *factBuilder
	scope        stringScope
	envInstances map[string]bool
	decouple     bool
	subprocess   bool
}

// collect records string constants and environ.Env() instances
func (v *pyVisitor) collect(n *sitter.Node) {
	if n.Type() != "assignment" {
		return
	}
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" {
		return
	}
	name := left.Content(v.src)

	switch right.Type() {
	case "string":
		if s, ok := unquote(right.Content(v.src)); ok {
			v.scope.set(name, s)
		}
	case "call":
		fn := right.ChildByFieldName("function")
		if fn == nil {
			return
		}
		switch fn.Content(v.src) {
		case "environ.Env", "Env", "environs.Env":
			v.envInstances[name] = true
		}
	}
}

func (v *pyVisitor) visit(n *sitter.Node) {
	switch n.Type() {
	case "call":
		v.call(n)
	case "subscript":
		value := n.ChildByFieldName("value")
		if value == nil {
			return
		}
		switch value.Content(v.src) {
		case "os.environ", "environ":
			if isWriteTarget(n) {
				return
			}
			if name, ok := v.resolve(n.ChildByFieldName("subscript")); ok {
				v.b.envVar(name, nodeLine(n))
			}
		}
	case "class_definition":
		v.settingsClass(n)
	case "if_statement":
		v.mainGuard(n)
	}
}

func (v *pyVisitor) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return
	}
	fnText := fn.Content(v.src)
	line := nodeLine(n)

	switch {
	case pyEnvGetters[fnText]:
		if name, ok := v.resolve(firstArg(args)); ok {
			v.b.envVar(name, line)
		}

	case fnText == "config" && v.decouple:
		if name, ok := v.resolve(firstArg(args)); ok {
			v.b.envVar(name, line)
		}

	case fn.Type() == "identifier" && v.envInstances[fnText]:
		if name, ok := v.resolve(firstArg(args)); ok {
			v.b.envVar(name, line)
		}

	case fn.Type() == "attribute" && v.isEnvMethod(fn):
		if name, ok := v.resolve(firstArg(args)); ok {
			v.b.envVar(name, line)
		}

	case pyToolCalls[fnText] || (v.subprocess && pySubprocessNames[fnText]):
		v.toolArg(firstArg(args), line)
	}
}

func (v *pyVisitor) isEnvMethod(fn *sitter.Node) bool {
	obj, attr := fn.ChildByFieldName("object"), fn.ChildByFieldName("attribute")
	if obj == nil || attr == nil {
		return false
	}
	return v.envInstances[obj.Content(v.src)] && pyEnvMethods[attr.Content(v.src)]
}

// toolArg records the program of a command string or argv list
func (v *pyVisitor) toolArg(arg *sitter.Node, line int) {
	if arg == nil {
		return
	}
	if arg.Type() == "list" || arg.Type() == "tuple" {
		arg = firstArg(arg)
	}
	if cmd, ok := v.resolve(arg); ok {
		v.b.tool(cmd, line)
	}
}

func (v *pyVisitor) resolve(n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "string":
		return unquote(n.Content(v.src))
	case "identifier":
		return v.scope.get(n.Content(v.src))
	}
	return "", false
}

// settingsClass maps pydantic BaseSettings fields to the variables they read
func (v *pyVisitor) settingsClass(n *sitter.Node) {
	supers := n.ChildByFieldName("superclasses")
	body := n.ChildByFieldName("body")
	if supers == nil || body == nil {
		return
	}

	isSettings := false
	for i := 0; i < int(supers.NamedChildCount()); i++ {
		s := supers.NamedChild(i).Content(v.src)
		if s == "BaseSettings" || strings.HasSuffix(s, ".BaseSettings") {
			isSettings = true
			break
		}
	}
	if !isSettings {
		return
	}

	prefix := v.envPrefix(body)

	for i := 0; i < int(body.NamedChildCount()); i++ {
		assign := assignmentOf(body.NamedChild(i))
		if assign == nil || assign.ChildByFieldName("type") == nil {
			continue
		}
		left := assign.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" {
			continue
		}
		field := left.Content(v.src)
		if strings.HasPrefix(field, "_") || field == "model_config" {
			continue
		}

		name := prefix + strings.ToUpper(field)
		if alias, ok := v.fieldAlias(assign.ChildByFieldName("right")); ok {
			name = alias
		}
		v.b.envVar(name, nodeLine(assign))
	}
}

// envPrefix reads env_prefix from model_config = SettingsConfigDict(...) or
// an inner class Config
func (v *pyVisitor) envPrefix(body *sitter.Node) string {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)

		if assign := assignmentOf(child); assign != nil {
			left, right := assign.ChildByFieldName("left"), assign.ChildByFieldName("right")
			if left != nil && right != nil && left.Content(v.src) == "model_config" && right.Type() == "call" {
				if p, ok := v.resolve(keywordArg(right.ChildByFieldName("arguments"), v.src, "env_prefix")); ok {
					return strings.ToUpper(p)
				}
			}
		}

		if child.Type() == "class_definition" {
			name := child.ChildByFieldName("name")
			inner := child.ChildByFieldName("body")
			if name == nil || inner == nil || name.Content(v.src) != "Config" {
				continue
			}
			for j := 0; j < int(inner.NamedChildCount()); j++ {
				assign := assignmentOf(inner.NamedChild(j))
				if assign == nil {
					continue
				}
				left := assign.ChildByFieldName("left")
				if left != nil && left.Content(v.src) == "env_prefix" {
					if p, ok := v.resolve(assign.ChildByFieldName("right")); ok {
						return strings.ToUpper(p)
					}
				}
			}
		}
	}
	return ""
}

// fieldAlias reads Field(env=...), Field(alias=...) or Field(validation_alias=...)
func (v *pyVisitor) fieldAlias(right *sitter.Node) (string, bool) {
	if right == nil || right.Type() != "call" {
		return "", false
	}
	fn := right.ChildByFieldName("function")
	if fn == nil || (fn.Content(v.src) != "Field" && !strings.HasSuffix(fn.Content(v.src), ".Field")) {
		return "", false
	}
	args := right.ChildByFieldName("arguments")
	for _, key := range []string{"env", "validation_alias", "alias"} {
		if alias, ok := v.resolve(keywordArg(args, v.src, key)); ok {
			return alias, true
		}
	}
	return "", false
}

// mainGuard turns `if __name__ == "__main__":` into a runnable target
func (v *pyVisitor) mainGuard(n *sitter.Node) {
	cond := n.ChildByFieldName("condition")
	if cond == nil {
		return
	}
	text := strings.NewReplacer(" ", "", "'", `"`).Replace(cond.Content(v.src))
	if text != `__name__=="__main__"` && text != `"__main__"==__name__` {
		return
	}

	name := v.file.Stem()
	if name == "__main__" {
		name = path.Base(path.Dir(v.file.Path))
		if name == "." {
			name = v.file.Project
		}
	}
	v.b.add(model.FactRunnableTarget, name, nodeLine(n))
}

func assignmentOf(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.Type() == "assignment" {
		return n
	}
	if n.Type() == "expression_statement" && n.NamedChildCount() > 0 {
		if child := n.NamedChild(0); child.Type() == "assignment" {
			return child
		}
	}
	return nil
}

// isWriteTarget reports whether n is assigned to or deleted, as in
// os.environ["X"] = "1", a, os.environ["Y"] = ... or del os.environ["Z"]
func isWriteTarget(n *sitter.Node) bool {
	cur := n
	parent := cur.Parent()
	for parent != nil {
		switch parent.Type() {
		case "pattern_list", "tuple_pattern", "list_pattern", "expression_list":
			cur, parent = parent, parent.Parent()
			continue
		case "assignment":
			left := parent.ChildByFieldName("left")
			return left != nil && left.StartByte() == cur.StartByte() && left.EndByte() == cur.EndByte()
		case "delete_statement":
			return true
		}
		return false
	}
	return false
}
