package manifest

import (
	"regexp"
	"strings"

	"github.com/ppiankov/readmecheck/internal/model"
)

var licenseFiles = []string{"LICENSE", "LICENSE.md", "LICENSE.txt", "LICENCE", "LICENCE.md", "COPYING", "COPYING.md"}

// licenseSignatures are checked in order; the first match wins
var licenseSignatures = []struct {
	id      string
	needles []string
}{
	{"AGPL-3.0", []string{"GNU AFFERO GENERAL PUBLIC LICENSE"}},
	{"LGPL-3.0", []string{"GNU LESSER GENERAL PUBLIC LICENSE", "Version 3"}},
	{"LGPL-2.1", []string{"GNU LESSER GENERAL PUBLIC LICENSE", "Version 2.1"}},
	{"GPL-3.0", []string{"GNU GENERAL PUBLIC LICENSE", "Version 3"}},
	{"GPL-2.0", []string{"GNU GENERAL PUBLIC LICENSE", "Version 2"}},
	{"Apache-2.0", []string{"Apache License", "Version 2.0"}},
	{"MPL-2.0", []string{"Mozilla Public License", "2.0"}},
	{"BSD-3-Clause", []string{"Redistribution and use", "Neither the name"}},
	{"BSD-2-Clause", []string{"Redistribution and use"}},
	{"ISC", []string{"ISC License"}},
	{"Unlicense", []string{"This is free and unencumbered software"}},
	{"MIT", []string{"Permission is hereby granted, free of charge"}},
	{"MIT", []string{"MIT License"}},
}

// detectLicenseFile recognizes common license texts. The result is heuristic
// and tagged Low.
func detectLicenseFile(c *collector) {
	for _, name := range licenseFiles {
		data, ok := c.read(name)
		if !ok {
			continue
		}
		text := string(data)
		for _, sig := range licenseSignatures {
			if containsAll(text, sig.needles) {
				c.facts = append(c.facts, model.Fact{
					Kind:       model.FactDeclaredLicense,
					Name:       sig.id,
					Location:   model.Location{File: name, Line: 1},
					Confidence: model.ConfidenceLow,
					Detail:     "license file",
				})
				break
			}
		}
		return
	}
}

func containsAll(text string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(text, n) {
			return false
		}
	}
	return true
}

// KnownLicenses are the names the claim extractor looks for in prose
var KnownLicenses = []string{
	"MIT", "Apache-2.0", "Apache 2.0", "Apache License 2.0", "Apache License, Version 2.0",
	"GPL-3.0", "GPLv3", "GPL-2.0", "GPLv2", "LGPL-3.0", "LGPLv3", "LGPL-2.1", "AGPL-3.0", "AGPLv3",
	"BSD-3-Clause", "BSD 3-Clause", "BSD-2-Clause", "BSD 2-Clause", "BSD",
	"MPL-2.0", "MPL 2.0", "ISC", "Unlicense", "CC0-1.0", "CC0", "EPL-2.0", "Zlib", "BSL-1.0",
}

var licenseAliases = map[string]string{
	"APACHE":                     "APACHE-2.0",
	"APACHE-2":                   "APACHE-2.0",
	"APACHE-LICENSE-2.0":         "APACHE-2.0",
	"APACHE-LICENSE-VERSION-2.0": "APACHE-2.0",
	"APACHE-SOFTWARE-LICENSE":    "APACHE-2.0",
	"GPLV3":                      "GPL-3.0",
	"GPL-3":                      "GPL-3.0",
	"GPL-3.0-ONLY":               "GPL-3.0",
	"GPL-3.0-OR-LATER":           "GPL-3.0",
	"GPLV2":                      "GPL-2.0",
	"GPL-2":                      "GPL-2.0",
	"GPL-2.0-ONLY":               "GPL-2.0",
	"GPL-2.0-OR-LATER":           "GPL-2.0",
	"LGPLV3":                     "LGPL-3.0",
	"LGPL-3.0-ONLY":              "LGPL-3.0",
	"LGPL-3.0-OR-LATER":          "LGPL-3.0",
	"LGPL-2.1-ONLY":              "LGPL-2.1",
	"LGPL-2.1-OR-LATER":          "LGPL-2.1",
	"AGPLV3":                     "AGPL-3.0",
	"AGPL-3.0-ONLY":              "AGPL-3.0",
	"AGPL-3.0-OR-LATER":          "AGPL-3.0",
	"BSD-3":                      "BSD-3-CLAUSE",
	"NEW-BSD":                    "BSD-3-CLAUSE",
	"BSD-2":                      "BSD-2-CLAUSE",
	"SIMPLIFIED-BSD":             "BSD-2-CLAUSE",
	"MIT-LICENSE":                "MIT",
	"THE-MIT-LICENSE":            "MIT",
	"MPL-2":                      "MPL-2.0",
	"THE-UNLICENSE":              "UNLICENSE",
	"CC0":                        "CC0-1.0",
}

var licenseSeparators = regexp.MustCompile(`[\s_,]+`)

// NormalizeLicense upper-cases a license name, folds spaces and underscores to
// "-" and resolves common aliases (Apache 2.0, GPLv3)
func NormalizeLicense(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, " LICENSE")
	n = licenseSeparators.ReplaceAllString(n, "-")
	n = strings.Trim(n, "-.")
	if alias, ok := licenseAliases[n]; ok {
		return alias
	}
	return n
}
