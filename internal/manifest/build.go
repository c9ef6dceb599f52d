package manifest

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"

	"github.com/ppiankov/readmecheck/internal/model"
)

var majorSuffix = regexp.MustCompile(`^v[0-9]+$`)

// parseGoMod records the module name and its requirements
func parseGoMod(c *collector, rel string, data []byte) error {
	c.mark(model.EcosystemGo)

	f, err := modfile.ParseLax(rel, data, nil)
	if err != nil {
		return err
	}
	if f.Module != nil {
		c.add(model.FactProjectName, model.EcosystemGo, ModuleBase(f.Module.Mod.Path), rel, f.Module.Syntax.Start.Line, f.Module.Mod.Path)
	}
	for _, r := range f.Require {
		detail := "require"
		if r.Indirect {
			detail = "indirect"
		}
		c.add(model.FactDeclaredDependency, model.EcosystemGo, r.Mod.Path, rel, r.Syntax.Start.Line, detail)
	}
	return nil
}

// ModuleBase is the binary name `go install` derives from a module path:
// the last element, skipping a /vN major-version suffix
func ModuleBase(modPath string) string {
	base := path.Base(modPath)
	if majorSuffix.MatchString(base) {
		base = path.Base(path.Dir(modPath))
	}
	return base
}

// parseCargo reads Cargo.toml plus the conventional bin layout under src/
func parseCargo(c *collector, rel string, data []byte) error {
	c.mark(model.EcosystemRust)
	eco := model.EcosystemRust

	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid TOML: %w", err)
	}

	var errs []error
	var name string
	if pkg, ok := tomlTable(doc, "package"); ok {
		name, _ = pkg["name"].(string)
		c.add(model.FactProjectName, eco, name, rel, lineOf(data, "name ="), "")
		// version.workspace = true decodes as a table and is skipped
		if version, ok := pkg["version"].(string); ok {
			c.add(model.FactDeclaredVersion, eco, version, rel, lineOf(data, "version ="), "")
		}
		if lic, ok := pkg["license"].(string); ok {
			c.add(model.FactDeclaredLicense, eco, lic, rel, lineOf(data, "license ="), "")
		}
	}

	for _, table := range []string{"dependencies", "dev-dependencies", "build-dependencies"} {
		deps, ok := tomlTable(doc, table)
		if !ok {
			continue
		}
		for _, dep := range sortedKeys(deps) {
			c.add(model.FactDeclaredDependency, eco, dep, rel, lineOf(data, "\n"+dep+" =", dep+" ="), table)
		}
	}

	if bins, ok := doc["bin"]; ok {
		list, ok := bins.([]interface{})
		if !ok {
			errs = append(errs, typeError("bin", bins))
		}
		for _, b := range list {
			table, _ := b.(map[string]interface{})
			if binName, ok := table["name"].(string); ok {
				c.add(model.FactRunnableTarget, eco, binName, rel, lineOf(data, `"`+binName+`"`), "bin")
			}
		}
	}

	if name != "" && c.exists("src/main.rs") {
		c.add(model.FactRunnableTarget, eco, name, "src/main.rs", 1, "bin")
	}
	if entries, err := os.ReadDir(filepath.Join(c.root, "src", "bin")); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				if c.exists(path.Join("src/bin", e.Name(), "main.rs")) {
					c.add(model.FactRunnableTarget, eco, e.Name(), path.Join("src/bin", e.Name(), "main.rs"), 1, "bin")
				}
				continue
			}
			if strings.HasSuffix(e.Name(), ".rs") {
				c.add(model.FactRunnableTarget, eco, strings.TrimSuffix(e.Name(), ".rs"), "src/bin/"+e.Name(), 1, "bin")
			}
		}
	}

	return errors.Join(errs...)
}

// makeRule matches "target other: deps" but not ":=", "::=" or "?=" assignments
var makeRule = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_./-]*(?:[ \t]+[A-Za-z0-9_][A-Za-z0-9_./-]*)*)[ \t]*::?(?:[^=:]|$)`)

// parseMakefile records explicit rule targets. Pattern rules, special .TARGETS
// and recipe lines are skipped.
func parseMakefile(c *collector, rel string, data []byte) error {
	c.mark(model.EcosystemMake)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.HasPrefix(text, "\t") || strings.HasPrefix(strings.TrimSpace(text), "#") {
			continue
		}
		m := makeRule.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for _, target := range strings.Fields(m[1]) {
			if strings.Contains(target, "%") {
				continue
			}
			c.add(model.FactRunnableTarget, model.EcosystemMake, target, rel, line, "make")
		}
	}
	return sc.Err()
}

type pomProject struct {
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Licenses   []struct {
		Name string `xml:"name"`
	} `xml:"licenses>license"`
	Dependencies []struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
	} `xml:"dependencies>dependency"`
}

func parsePom(c *collector, rel string, data []byte) error {
	c.mark(model.EcosystemJava)
	eco := model.EcosystemJava

	var p pomProject
	if err := xml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid XML: %w", err)
	}
	c.add(model.FactProjectName, eco, p.ArtifactID, rel, lineOf(data, "<artifactId>"+p.ArtifactID), "")
	if p.Version != "" && !strings.Contains(p.Version, "${") {
		c.add(model.FactDeclaredVersion, eco, p.Version, rel, lineOf(data, "<version>"+p.Version), "")
	}
	for _, l := range p.Licenses {
		c.add(model.FactDeclaredLicense, eco, l.Name, rel, lineOf(data, "<name>"+l.Name), "")
	}
	for _, d := range p.Dependencies {
		c.add(model.FactDeclaredDependency, eco, d.ArtifactID, rel, lineOf(data, "<artifactId>"+d.ArtifactID), d.GroupID)
	}
	return nil
}
