package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/ppiankov/readmecheck/internal/model"
)

var nodeDependencyFields = []string{"dependencies", "devDependencies", "peerDependencies", "optionalDependencies"}

// parsePackageJSON decodes package.json field by field so that one field of
// the wrong type does not hide the others
func parsePackageJSON(c *collector, rel string, data []byte) error {
	c.mark(model.EcosystemNode)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	var errs []error
	decode := func(key string, v interface{}) bool {
		raw, ok := fields[key]
		if !ok {
			return false
		}
		if err := json.Unmarshal(raw, v); err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", key, err))
			return false
		}
		return true
	}
	at := func(key string) int { return lineOf(data, `"`+key+`"`) }

	var name string
	if decode("name", &name) {
		c.add(model.FactProjectName, model.EcosystemNode, name, rel, at("name"), "")
	}

	var version string
	if decode("version", &version) {
		c.add(model.FactDeclaredVersion, model.EcosystemNode, version, rel, at("version"), "")
	}

	if raw, ok := fields["license"]; ok {
		if lic, err := nodeLicense(raw); err != nil {
			errs = append(errs, err)
		} else {
			c.add(model.FactDeclaredLicense, model.EcosystemNode, lic, rel, at("license"), "")
		}
	}

	var scripts map[string]string
	if decode("scripts", &scripts) {
		for _, key := range sortedKeys(scripts) {
			c.add(model.FactRunnableTarget, model.EcosystemNode, key, rel, lineOf(data, `"`+key+`":`, `"`+key+`"`), scripts[key])
		}
	}

	if raw, ok := fields["bin"]; ok {
		bins, err := nodeBins(raw, name)
		if err != nil {
			errs = append(errs, err)
		}
		for _, b := range bins {
			c.add(model.FactRunnableTarget, model.EcosystemNode, b, rel, at("bin"), "bin")
		}
	}

	for _, field := range nodeDependencyFields {
		var deps map[string]string
		if decode(field, &deps) {
			for _, dep := range sortedKeys(deps) {
				c.add(model.FactDeclaredDependency, model.EcosystemNode, dep, rel, lineOf(data, `"`+dep+`"`), field)
			}
		}
	}

	return errors.Join(errs...)
}

// nodeLicense accepts "MIT" or the legacy {"type": "MIT"} form
func nodeLicense(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("field \"license\": %w", err)
	}
	return obj.Type, nil
}

// nodeBins accepts "bin": "cli.js" (named after the package) or a name map
func nodeBins(raw json.RawMessage, pkg string) ([]string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if pkg == "" {
			return nil, nil
		}
		// scoped packages install the bin under the bare name
		return []string{path.Base(pkg)}, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("field \"bin\": %w", err)
	}
	return sortedKeys(m), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
