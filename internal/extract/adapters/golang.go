package adapters

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/ppiankov/readmecheck/internal/model"
)

// GoAdapter extracts facts from Go syntax trees
type GoAdapter struct{}

// NewGoAdapter creates the Go adapter
func NewGoAdapter() *GoAdapter {
	return &GoAdapter{}
}

func (a *GoAdapter) Ecosystem() model.Ecosystem   { return model.EcosystemGo }
func (a *GoAdapter) Confidence() model.Confidence { return model.ConfidenceHigh }

// Extract parses the file with go/parser and collects os.Getenv-style reads,
// env struct tags, viper.BindEnv names, exec.Command programs and main packages
func (a *GoAdapter) Extract(ctx context.Context, file SourceFile) ([]model.Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file.Path, file.Content, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	v := &goVisitor{
		fset:    fset,
		b:       newFactBuilder(file, model.EcosystemGo, model.ConfidenceHigh),
		scope:   make(stringScope),
		imports: importNames(f),
	}

	ast.Inspect(f, v.collect)
	ast.Inspect(f, v.visit)

	if f.Name.Name == "main" {
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if ok && fn.Recv == nil && fn.Name.Name == "main" {
				name := path.Base(path.Dir(file.Path))
				if name == "." || name == "/" {
					name = file.Project
				}
				v.b.add(model.FactRunnableTarget, name, fset.Position(fn.Pos()).Line)
				break
			}
		}
	}

	return v.b.facts, nil
}

type goVisitor struct {
	fset    *token.FileSet
	b       *factBuilder
	scope   stringScope
	imports map[string]string // local name -> import path
}

// importNames maps the local package name of each import to its path
func importNames(f *ast.File) map[string]string {
	names := make(map[string]string)
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		local := path.Base(p)
		if imp.Name != nil {
			local = imp.Name.Name
		}
		names[local] = p
	}
	return names
}

// collect records string constants and variables
func (v *goVisitor) collect(n ast.Node) bool {
	spec, ok := n.(*ast.ValueSpec)
	if !ok {
		return true
	}
	for i, name := range spec.Names {
		if i >= len(spec.Values) {
			break
		}
		if s, ok := stringLit(spec.Values[i]); ok {
			v.scope.set(name.Name, s)
		}
	}
	return true
}

func (v *goVisitor) visit(n ast.Node) bool {
	switch node := n.(type) {
	case *ast.CallExpr:
		v.call(node)
	case *ast.StructType:
		v.structTags(node)
	}
	return true
}

func (v *goVisitor) call(call *ast.CallExpr) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok {
		return
	}
	line := v.fset.Position(call.Pos()).Line
	importPath := v.imports[pkg.Name]

	switch {
	case (importPath == "os" || importPath == "syscall") && (sel.Sel.Name == "Getenv" || sel.Sel.Name == "LookupEnv"):
		if name, ok := v.resolve(call.Args, 0); ok {
			v.b.envVar(name, line)
		}

	case importPath == "os/exec" && sel.Sel.Name == "Command":
		if cmd, ok := v.resolve(call.Args, 0); ok {
			v.b.tool(cmd, line)
		}

	case importPath == "os/exec" && sel.Sel.Name == "CommandContext":
		if cmd, ok := v.resolve(call.Args, 1); ok {
			v.b.tool(cmd, line)
		}

	case importPath == "os/exec" && sel.Sel.Name == "LookPath":
		if cmd, ok := v.resolve(call.Args, 0); ok {
			v.b.tool(cmd, line)
		}

	case strings.HasSuffix(importPath, "spf13/viper") && sel.Sel.Name == "BindEnv":
		// viper.BindEnv("key", "ENV_A", "ENV_B"); a bare key depends on the runtime prefix
		for i := 1; i < len(call.Args); i++ {
			if name, ok := v.resolve(call.Args, i); ok {
				v.b.envVar(name, line)
			}
		}
	}
}

// structTags reads `env:"NAME"` and `envconfig:"NAME"` field tags
func (v *goVisitor) structTags(st *ast.StructType) {
	for _, field := range st.Fields.List {
		if field.Tag == nil {
			continue
		}
		raw, err := strconv.Unquote(field.Tag.Value)
		if err != nil {
			continue
		}
		tag := reflect.StructTag(raw)
		for _, key := range []string{"env", "envconfig"} {
			value, ok := tag.Lookup(key)
			if !ok {
				continue
			}
			name, _, _ := strings.Cut(value, ",")
			if name == "" || name == "-" {
				continue
			}
			v.b.envVar(name, v.fset.Position(field.Pos()).Line)
		}
	}
}

func (v *goVisitor) resolve(args []ast.Expr, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	if s, ok := stringLit(args[i]); ok {
		return s, true
	}
	if id, ok := args[i].(*ast.Ident); ok {
		return v.scope.get(id.Name)
	}
	return "", false
}

func stringLit(expr ast.Expr) (string, bool) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return s, true
}
