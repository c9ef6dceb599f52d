package reconcile

import (
	"path"
	"strings"

	"github.com/ppiankov/readmecheck/internal/command"
	"github.com/ppiankov/readmecheck/internal/model"
)

// npmBuiltins are package-manager subcommands that need no script
var npmBuiltins = map[string]bool{
	"install": true, "ci": true, "i": true, "add": true, "init": true, "publish": true,
	"update": true, "upgrade": true, "audit": true, "outdated": true, "exec": true, "dlx": true,
	"create": true, "x": true, "link": true, "pack": true, "uninstall": true, "remove": true,
	"rm": true, "version": true, "login": true, "logout": true, "config": true, "help": true,
	"ls": true, "list": true, "view": true, "info": true, "why": true, "cache": true,
	"prune": true, "rebuild": true, "dedupe": true, "fund": true, "doctor": true,
	"workspace": true, "workspaces": true, "global": true, "set": true,
}

var nodeLifecycle = map[string]bool{"start": true, "test": true, "stop": true, "restart": true}

func (rs *resolver) node(tool string, args []string) []finding {
	if rs.dir != "" && rs.dir != "." {
		// a nested package.json is not read
		return nil
	}
	if !rs.in.Manifest.Has(model.EcosystemNode) {
		return []finding{warnf("%s command but no package.json found", tool).suggest("add a package.json or fix the instructions")}
	}
	p := positional(args, map[string]bool{"--prefix": true, "-w": true, "--workspace": true, "--filter": true, "--cwd": true})
	if len(p) == 0 {
		return nil
	}
	sub := p[0]

	switch {
	case sub == "run" || sub == "run-script":
		if len(p) < 2 {
			return nil
		}
		return rs.nodeScript(tool, p[1])

	case nodeLifecycle[sub]:
		if sub == "start" && rs.exists("server.js") {
			return nil
		}
		return rs.nodeScript(tool, sub)

	case sub == "install" || sub == "i" || sub == "add":
		if hasFlag(args, "-g", "--global") {
			return nil
		}
		var out []finding
		for _, pkg := range p[1:] {
			name, ok := nodePackageName(pkg)
			if !ok {
				continue
			}
			if rs.in.Manifest.Declares(model.FactDeclaredDependency, model.EcosystemNode, name) || rs.exes[strings.ToLower(name)] {
				continue
			}
			out = append(out, rs.undeclaredPackage(model.EcosystemNode, name, "package.json").
				suggest("add %s to dependencies or devDependencies", name))
		}
		return out

	case npmBuiltins[sub]:
		return nil
	}

	// yarn, pnpm and bun run scripts without "run"; npm rejects unknown commands
	return rs.nodeScript(tool, sub)
}

func (rs *resolver) nodeScript(tool, script string) []finding {
	scripts := rs.declaredNames(model.FactRunnableTarget, model.EcosystemNode, func(f model.Fact) bool { return f.Detail != "bin" })
	for _, s := range scripts {
		if s == script {
			return nil
		}
	}
	f := errorf("%s script %s is not declared in package.json", tool, script)
	return []finding{missingTarget(f, script, scripts, "add \""+script+"\" to scripts in package.json")}
}

// nodePackageName strips the version from pkg, pkg@1.2, @scope/pkg@1.2.
// Paths, URLs and tarballs are not package names.
func nodePackageName(spec string) (string, bool) {
	if spec == "" || strings.ContainsAny(spec, ":") || strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") ||
		strings.HasSuffix(spec, ".tgz") || strings.HasPrefix(spec, "$") {
		return "", false
	}
	if strings.HasPrefix(spec, "@") {
		if i := strings.Index(spec[1:], "@"); i >= 0 {
			return spec[:i+1], true
		}
		return spec, true
	}
	if i := strings.Index(spec, "@"); i >= 0 {
		return spec[:i], true
	}
	return spec, true
}

var pipValueFlags = map[string]bool{
	"-r": true, "--requirement": true, "-c": true, "--constraint": true, "-e": true, "--editable": true,
	"-i": true, "--index-url": true, "--extra-index-url": true, "-f": true, "--find-links": true,
	"-t": true, "--target": true, "--python": true,
}

func (rs *resolver) pip(args []string) []finding {
	p := positional(args, pipValueFlags)
	if len(p) == 0 || p[0] != "install" {
		return nil
	}
	var out []finding
	for i := 0; i < len(args); i++ {
		a := args[i]
		var file string
		switch {
		case (a == "-r" || a == "--requirement" || a == "-c" || a == "--constraint" || a == "-e" || a == "--editable") && i+1 < len(args):
			file = args[i+1]
			i++
		case strings.HasPrefix(a, "--requirement=") || strings.HasPrefix(a, "--editable="):
			file = a[strings.Index(a, "=")+1:]
		default:
			continue
		}
		if strings.Contains(file, "://") || strings.HasPrefix(file, "git+") {
			continue
		}
		out = append(out, rs.checkPath(strings.SplitN(file, "[", 2)[0])...)
	}

	for _, spec := range p[1:] {
		if spec == "." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") ||
			strings.HasSuffix(spec, ".whl") || strings.HasSuffix(spec, ".tar.gz") {
			out = append(out, rs.checkPath(strings.SplitN(spec, "[", 2)[0])...)
			continue
		}
		if strings.Contains(spec, "://") || strings.HasPrefix(spec, "$") {
			continue
		}
		name := pythonPackageName(spec)
		if name == "" || rs.in.Manifest.Declares(model.FactDeclaredDependency, model.EcosystemPython, name) ||
			rs.in.Manifest.Declares(model.FactProjectName, model.EcosystemPython, name) {
			continue
		}
		out = append(out, rs.undeclaredPackage(model.EcosystemPython, name, "pyproject.toml or requirements.txt").
			suggest("add %s to pyproject.toml or requirements.txt", name))
	}
	return out
}

// undeclaredPackage reports an installed package missing from the declared
// dependencies. Without a manifest for the ecosystem there is nothing to
// check against, so it is only a warning.
func (rs *resolver) undeclaredPackage(eco model.Ecosystem, name, manifestName string) finding {
	if !rs.in.Manifest.Has(eco) {
		return warnf("package %s is installed but no %s was found", name, manifestName)
	}
	return errorf("package %s is installed but not declared as a dependency", name)
}

// pythonPackageName cuts version specifiers and extras from a requirement
func pythonPackageName(spec string) string {
	if i := strings.IndexAny(spec, "=<>~![;@ "); i >= 0 {
		spec = spec[:i]
	}
	return strings.TrimSpace(spec)
}

// stdlibMains are standard-library modules commonly run with python -m
var stdlibMains = map[string]bool{
	"venv": true, "pip": true, "ensurepip": true, "http": true, "unittest": true, "doctest": true,
	"json": true, "pydoc": true, "timeit": true, "cProfile": true, "profile": true, "pdb": true,
	"compileall": true, "py_compile": true, "zipapp": true, "zipfile": true, "tarfile": true,
	"base64": true, "calendar": true, "site": true, "sysconfig": true, "trace": true,
	"webbrowser": true, "uuid": true, "idlelib": true, "tkinter": true, "asyncio": true,
	"pickle": true, "platform": true, "smtpd": true, "gzip": true, "ast": true, "tokenize": true,
	"dis": true, "sqlite3": true, "code": true, "this": true, "antigravity": true,
}

func (rs *resolver) python(args []string) []finding {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-c":
			return nil
		case a == "-m" && i+1 < len(args):
			return rs.pythonModule(args[i+1])
		case strings.HasPrefix(a, "-m") && len(a) > 2:
			return rs.pythonModule(a[2:])
		case strings.HasPrefix(a, "-"):
			continue
		default:
			return rs.checkPath(a)
		}
	}
	return nil
}

func (rs *resolver) pythonModule(mod string) []finding {
	top := strings.SplitN(mod, ".", 2)[0]
	if stdlibMains[mod] || stdlibMains[top] {
		return nil
	}
	m := rs.in.Manifest
	if m.Declares(model.FactDeclaredDependency, model.EcosystemPython, top) ||
		m.Declares(model.FactProjectName, model.EcosystemPython, top) ||
		m.Declares(model.FactProjectName, model.EcosystemPython, strings.ReplaceAll(top, "_", "-")) {
		return nil
	}

	rel := strings.ReplaceAll(mod, ".", "/")
	for _, base := range []string{rs.dir, path.Join(rs.dir, "src")} {
		for _, candidate := range []string{rel + ".py", rel + "/__init__.py", rel + "/__main__.py"} {
			if rs.exists(path.Join(base, candidate)) {
				return nil
			}
		}
	}
	return []finding{warnf("python module %s is not in the project or its declared dependencies", mod)}
}

func (rs *resolver) pyRun(tool string, args []string) []finding {
	if !rs.in.Manifest.Has(model.EcosystemPython) {
		return []finding{warnf("%s command but no pyproject.toml or requirements file found", tool)}
	}
	p := positional(args, nil)
	if len(p) < 2 || p[0] != "run" {
		return nil
	}
	target := p[1]
	rest := args[indexOf(args, target)+1:]

	switch name := strings.ToLower(target); {
	case name == "python" || name == "python3":
		return rs.python(rest)
	case strings.HasSuffix(name, ".py") || strings.Contains(name, "/"):
		return rs.checkPath(target)
	case rs.in.Manifest.Declares(model.FactRunnableTarget, model.EcosystemPython, target),
		rs.in.Manifest.Declares(model.FactDeclaredDependency, model.EcosystemPython, target),
		rs.exes[name], rs.prereqs[name], command.Known(name):
		return nil
	}

	scripts := rs.declaredNames(model.FactRunnableTarget, model.EcosystemPython, nil)
	f := errorf("%s run target %s is not a declared script or dependency", tool, target)
	return []finding{missingTarget(f, target, scripts, "declare "+target+" under [project.scripts]")}
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return len(args) - 1
}

var goValueFlags = map[string]bool{
	"-o": true, "-tags": true, "-ldflags": true, "-gcflags": true, "-run": true, "-bench": true,
	"-coverprofile": true, "-timeout": true, "-count": true, "-p": true, "-mod": true, "-exec": true,
	"-C": true, "-covermode": true, "-cpu": true, "-parallel": true,
}

var goPackageCommands = map[string]bool{"run": true, "build": true, "install": true, "test": true, "vet": true, "generate": true}

func (rs *resolver) golang(args []string) []finding {
	p := positional(args, goValueFlags)
	if len(p) == 0 {
		return nil
	}
	sub, targets := p[0], p[1:]
	if sub == "install" || sub == "run" {
		for _, t := range targets {
			if strings.Contains(t, "@") {
				return nil
			}
		}
	}
	if !rs.in.Manifest.Has(model.EcosystemGo) {
		return []finding{warnf("go %s but no go.mod found", sub)}
	}
	if !goPackageCommands[sub] {
		return nil
	}
	if sub == "run" && len(targets) > 1 {
		targets = targets[:1]
	}

	modPath := ""
	if f, ok := firstFact(rs.in.Manifest.Of(model.FactProjectName, model.EcosystemGo)); ok {
		modPath = f.Detail
	}

	var out []finding
	for _, t := range targets {
		switch {
		case modPath != "" && (t == modPath || strings.HasPrefix(t, modPath+"/")):
			local := "." + strings.TrimPrefix(t, modPath)
			out = append(out, rs.checkPath(strings.TrimSuffix(local, "/..."))...)
		case t == "." || strings.HasPrefix(t, "./") || strings.HasPrefix(t, "../") || strings.HasSuffix(t, ".go"):
			out = append(out, rs.checkPath(strings.TrimSuffix(t, "/..."))...)
		}
	}
	return out
}

func firstFact(facts []model.Fact) (model.Fact, bool) {
	if len(facts) == 0 {
		return model.Fact{}, false
	}
	return facts[0], true
}

var cargoValueFlags = map[string]bool{
	"--bin": true, "--example": true, "--features": true, "-F": true, "-p": true, "--package": true,
	"--target": true, "--manifest-path": true, "--profile": true, "-j": true, "--jobs": true, "--path": true,
}

func (rs *resolver) cargo(args []string) []finding {
	p := positional(args, cargoValueFlags)
	if len(p) > 0 && p[0] == "install" {
		if dir, ok := flagValue(args, "--path"); ok {
			return rs.checkPath(dir)
		}
		return nil
	}
	if !rs.in.Manifest.Has(model.EcosystemRust) {
		sub := ""
		if len(p) > 0 {
			sub = p[0]
		}
		return []finding{warnf("cargo %s but no Cargo.toml found", sub)}
	}
	if len(p) == 0 || p[0] != "run" {
		return nil
	}
	bin, ok := flagValue(args, "--bin")
	if !ok {
		return nil
	}
	bins := rs.declaredNames(model.FactRunnableTarget, model.EcosystemRust, nil)
	for _, b := range bins {
		if b == bin {
			return nil
		}
	}
	f := errorf("cargo bin %s is not declared", bin)
	return []finding{missingTarget(f, bin, bins, "add a [[bin]] entry or src/bin/"+bin+".rs")}
}

var makefiles = []string{"Makefile", "makefile", "GNUmakefile"}

func (rs *resolver) makeTargets(args []string) []finding {
	if dir, ok := flagValue(args, "-C", "--directory"); ok {
		return rs.checkPath(dir)
	}
	if file, ok := flagValue(args, "-f", "--file", "--makefile"); ok {
		return rs.checkPath(file)
	}

	found := false
	for _, m := range makefiles {
		if rs.exists(path.Join(rs.dir, m)) {
			found = true
			break
		}
	}
	if !found {
		return []finding{errorf("make is used but no Makefile exists").suggest("add a Makefile or fix the build instructions")}
	}
	if rs.dir != "" && rs.dir != "." {
		return nil
	}

	targets := rs.declaredNames(model.FactRunnableTarget, model.EcosystemMake, nil)
	declared := make(map[string]bool, len(targets))
	for _, t := range targets {
		declared[t] = true
	}
	var out []finding
	for _, t := range positional(args, map[string]bool{"-j": true, "--jobs": true, "-l": true}) {
		if strings.Contains(t, "=") || declared[t] {
			continue
		}
		f := errorf("make target %s is not declared in the Makefile", t)
		out = append(out, missingTarget(f, t, targets, "add a "+t+" rule to the Makefile"))
	}
	return out
}

var dockerBuildValueFlags = map[string]bool{
	"-t": true, "--tag": true, "-f": true, "--file": true, "--build-arg": true, "--target": true,
	"--platform": true, "--label": true, "--secret": true, "--ssh": true, "--cache-from": true,
	"--network": true, "--progress": true, "-o": true, "--output": true,
}

func (rs *resolver) docker(args []string) []finding {
	p := positional(args, map[string]bool{"--context": true, "-H": true, "--host": true})
	if len(p) == 0 {
		return nil
	}
	switch p[0] {
	case "compose":
		return rs.compose(args[indexOf(args, "compose")+1:])
	case "build", "buildx":
		rest := args[indexOf(args, p[0])+1:]
		if file, ok := flagValue(rest, "-f", "--file"); ok {
			return rs.checkPath(file)
		}
		ctxArgs := positional(rest, dockerBuildValueFlags)
		if len(ctxArgs) > 0 && ctxArgs[0] == "build" {
			ctxArgs = ctxArgs[1:]
		}
		if len(ctxArgs) == 0 || strings.Contains(ctxArgs[len(ctxArgs)-1], "://") || ctxArgs[len(ctxArgs)-1] == "-" {
			return nil
		}
		buildDir := ctxArgs[len(ctxArgs)-1]
		if f := rs.checkPath(buildDir); len(f) > 0 {
			return f
		}
		if rel, ok := rs.resolve(path.Join(buildDir, "Dockerfile")); ok && !rs.exists(rel) {
			return []finding{errorf("docker build context %s has no Dockerfile", buildDir)}
		}
	}
	return nil
}

var composeFiles = []string{"compose.yaml", "compose.yml", "docker-compose.yml", "docker-compose.yaml"}

func (rs *resolver) compose(args []string) []finding {
	if file, ok := flagValue(args, "-f", "--file"); ok {
		return rs.checkPath(file)
	}
	for _, f := range composeFiles {
		if rs.exists(path.Join(rs.dir, f)) {
			return nil
		}
	}
	return []finding{errorf("docker compose is used but no compose file exists").suggest("add a compose.yaml or fix the instructions")}
}
