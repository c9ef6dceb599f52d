package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "# My Project\n" +
	"\n" +
	"See the [guide](./docs/guide.md) and [install](#installation).\n" +
	"\n" +
	"## Installation\n" +
	"\n" +
	"```bash\n" +
	"$ npm install\n" +
	"npm run build\n" +
	"```\n" +
	"\n" +
	"## Installation\n" +
	"\n" +
	"<p align=\"center\"><img src=\"assets/logo.png\" alt=\"logo\"></p>\n" +
	"\n" +
	"### API & `Config` options!\n" +
	"\n" +
	"```\n" +
	"plain\n" +
	"```\n"

func TestParse_Headings(t *testing.T) {
	doc := Parse("README.md", []byte(sample))

	require.Len(t, doc.Headings, 4)
	assert.Equal(t, "my-project", doc.Headings[0].Slug)
	assert.Equal(t, 1, doc.Headings[0].Line)
	assert.Equal(t, "installation", doc.Headings[1].Slug)
	assert.Equal(t, 5, doc.Headings[1].Line)
	assert.Equal(t, "installation-1", doc.Headings[2].Slug)
	assert.Equal(t, "api--config-options", doc.Headings[3].Slug)

	assert.True(t, doc.HasSlug("#installation"))
	assert.True(t, doc.HasSlug("api-config-options"))
	assert.False(t, doc.HasSlug("#usage"))
}

func TestParse_CodeBlocks(t *testing.T) {
	doc := Parse("README.md", []byte(sample))

	require.Len(t, doc.CodeBlocks, 2)
	first := doc.CodeBlocks[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "bash", first.Language)
	assert.Equal(t, 7, first.FenceLine)
	assert.Equal(t, 8, first.StartLine)
	assert.Equal(t, []string{"$ npm install", "npm run build"}, first.ContentLines())

	second := doc.CodeBlocks[1]
	assert.Equal(t, "", second.Language)
	assert.Equal(t, []string{"plain"}, second.ContentLines())

	assert.True(t, doc.InCode(7))
	assert.True(t, doc.InCode(10))
	assert.False(t, doc.InCode(11))

	for _, line := range doc.ProseLines() {
		assert.NotContains(t, line.Text, "npm run build")
	}
}

func TestParse_Links(t *testing.T) {
	doc := Parse("README.md", []byte(sample))

	targets := map[string]Link{}
	for _, l := range doc.Links {
		targets[l.Target] = l
	}

	require.Contains(t, targets, "./docs/guide.md")
	assert.Equal(t, "guide", targets["./docs/guide.md"].Text)
	assert.Equal(t, 3, targets["./docs/guide.md"].Line)

	require.Contains(t, targets, "#installation")

	require.Contains(t, targets, "assets/logo.png")
	assert.True(t, targets["assets/logo.png"].HTML)
	assert.True(t, targets["assets/logo.png"].Image)
	assert.Equal(t, 14, targets["assets/logo.png"].Line)
}

func TestParse_HTMLAnchors(t *testing.T) {
	doc := Parse("README.md", []byte("<a name=\"top\"></a>\n\n# Title\n"))
	assert.True(t, doc.HasSlug("#top"))
}

func TestSectionOf(t *testing.T) {
	doc := Parse("README.md", []byte(sample))

	h := doc.SectionOf(9)
	require.NotNil(t, h)
	assert.Equal(t, "Installation", h.Text)
	assert.Nil(t, Parse("x.md", []byte("text\n")).SectionOf(1))
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Getting Started":         "getting-started",
		"What's new in v2.0?":     "whats-new-in-v20",
		"snake_case & kebab-case": "snake_case--kebab-case",
		"  Trim  ":                "trim",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestParagraphBefore(t *testing.T) {
	src := "# Setup\n\nIntro line.\n\nDo not run this\non production:\n\n```sh\nrm -rf build\n```\n"
	doc := Parse("README.md", []byte(src))
	block := doc.Block(1)
	require.NotNil(t, block)

	assert.Equal(t, "Do not run this on production:", doc.ParagraphBefore(block.FenceLine, 3))
	assert.Equal(t, "on production:", doc.ParagraphBefore(block.FenceLine, 1))
	assert.Empty(t, doc.ParagraphBefore(2, 3))
	assert.Nil(t, doc.Block(2))
}
