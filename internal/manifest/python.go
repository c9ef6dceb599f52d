package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/ppiankov/readmecheck/internal/model"
)

// pep508Name matches the distribution name at the start of a requirement
var pep508Name = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)

var eggName = regexp.MustCompile(`#egg=([A-Za-z0-9][A-Za-z0-9._-]*)`)

func requirementName(spec string) string {
	if m := eggName.FindStringSubmatch(spec); m != nil {
		return m[1]
	}
	if strings.Contains(spec, "://") {
		return ""
	}
	if m := pep508Name.FindStringSubmatch(spec); m != nil {
		return m[1]
	}
	return ""
}

// tomlTable walks a dotted path through decoded TOML tables
func tomlTable(doc map[string]interface{}, keys ...string) (map[string]interface{}, bool) {
	cur := doc
	for _, k := range keys {
		next, ok := cur[k].(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func parsePyproject(c *collector, rel string, data []byte) error {
	c.mark(model.EcosystemPython)

	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid TOML: %w", err)
	}

	var errs []error
	if project, ok := tomlTable(doc, "project"); ok {
		errs = append(errs, pyProjectTable(c, rel, data, project)...)
	}
	if poetry, ok := tomlTable(doc, "tool", "poetry"); ok {
		errs = append(errs, poetryTable(c, rel, data, poetry)...)
	}
	return errors.Join(errs...)
}

// pyProjectTable reads the PEP 621 [project] table
func pyProjectTable(c *collector, rel string, data []byte, project map[string]interface{}) []error {
	var errs []error
	eco := model.EcosystemPython

	if name, ok := project["name"].(string); ok {
		c.add(model.FactProjectName, eco, name, rel, lineOf(data, "name ="), "")
	}
	if version, ok := project["version"].(string); ok {
		c.add(model.FactDeclaredVersion, eco, version, rel, lineOf(data, "version ="), "")
	}

	switch lic := project["license"].(type) {
	case nil:
	case string:
		c.add(model.FactDeclaredLicense, eco, lic, rel, lineOf(data, "license"), "")
	case map[string]interface{}:
		if text, ok := lic["text"].(string); ok {
			c.add(model.FactDeclaredLicense, eco, text, rel, lineOf(data, "license"), "")
		}
		// {file = "LICENSE"} is covered by the license file heuristic
	default:
		errs = append(errs, typeError("project.license", lic))
	}

	if deps, ok := project["dependencies"]; ok {
		list, ok := deps.([]interface{})
		if !ok {
			errs = append(errs, typeError("project.dependencies", deps))
		}
		addRequirementList(c, rel, data, list, "dependencies")
	}

	if optional, ok := project["optional-dependencies"].(map[string]interface{}); ok {
		for _, group := range sortedKeys(optional) {
			list, _ := optional[group].([]interface{})
			addRequirementList(c, rel, data, list, "optional-dependencies."+group)
		}
	}

	for _, table := range []string{"scripts", "gui-scripts"} {
		if scripts, ok := project[table].(map[string]interface{}); ok {
			for _, name := range sortedKeys(scripts) {
				target, _ := scripts[name].(string)
				c.add(model.FactRunnableTarget, eco, name, rel, lineOf(data, name+" =", `"`+name+`"`), target)
			}
		}
	}
	return errs
}

// poetryTable reads [tool.poetry]
func poetryTable(c *collector, rel string, data []byte, poetry map[string]interface{}) []error {
	eco := model.EcosystemPython

	if name, ok := poetry["name"].(string); ok {
		c.add(model.FactProjectName, eco, name, rel, lineOf(data, "name ="), "")
	}
	if version, ok := poetry["version"].(string); ok {
		c.add(model.FactDeclaredVersion, eco, version, rel, lineOf(data, "version ="), "")
	}
	if lic, ok := poetry["license"].(string); ok {
		c.add(model.FactDeclaredLicense, eco, lic, rel, lineOf(data, "license ="), "")
	}

	addKeys := func(table map[string]interface{}, detail string) {
		for _, dep := range sortedKeys(table) {
			if dep == "python" {
				continue
			}
			c.add(model.FactDeclaredDependency, eco, dep, rel, lineOf(data, dep+" =", `"`+dep+`"`), detail)
		}
	}
	if deps, ok := poetry["dependencies"].(map[string]interface{}); ok {
		addKeys(deps, "dependencies")
	}
	if deps, ok := poetry["dev-dependencies"].(map[string]interface{}); ok {
		addKeys(deps, "dev-dependencies")
	}
	if groups, ok := poetry["group"].(map[string]interface{}); ok {
		for _, g := range sortedKeys(groups) {
			if deps, ok := tomlTable(groups, g, "dependencies"); ok {
				addKeys(deps, "group."+g)
			}
		}
	}

	if scripts, ok := poetry["scripts"].(map[string]interface{}); ok {
		for _, name := range sortedKeys(scripts) {
			target, _ := scripts[name].(string)
			c.add(model.FactRunnableTarget, eco, name, rel, lineOf(data, name+" =", `"`+name+`"`), target)
		}
	}
	return nil
}

func addRequirementList(c *collector, rel string, data []byte, list []interface{}, detail string) {
	for _, item := range list {
		spec, ok := item.(string)
		if !ok {
			continue
		}
		if name := requirementName(spec); name != "" {
			c.add(model.FactDeclaredDependency, model.EcosystemPython, name, rel, lineOf(data, spec), detail)
		}
	}
}

// requirementFiles lists requirements*.txt at root and requirements/*.txt
func requirementFiles(root string) []string {
	var out []string
	if matches, err := filepath.Glob(filepath.Join(root, "requirements*.txt")); err == nil {
		for _, m := range matches {
			out = append(out, filepath.Base(m))
		}
	}
	if entries, err := os.ReadDir(filepath.Join(root, "requirements")); err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
				out = append(out, "requirements/"+e.Name())
			}
		}
	}
	sort.Strings(out)
	return out
}

// parseRequirements reads pip requirement lines. Options (-r, -c, --index-url)
// are skipped; -e lines contribute their #egg= name.
func parseRequirements(c *collector, rel string, data []byte) {
	c.mark(model.EcosystemPython)

	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if i := strings.Index(text, " #"); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if strings.HasPrefix(text, "-") && !strings.HasPrefix(text, "-e ") && !strings.HasPrefix(text, "--editable ") {
			continue
		}
		text = strings.TrimPrefix(strings.TrimPrefix(text, "-e "), "--editable ")
		if name := requirementName(strings.TrimSpace(text)); name != "" && name != "." {
			c.add(model.FactDeclaredDependency, model.EcosystemPython, name, rel, line, "requirements")
		}
	}
}
