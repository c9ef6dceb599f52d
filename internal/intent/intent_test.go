package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := NewClassifier("checker")

	tests := []struct {
		name string
		line string
		ctx  Context
		want Intent
	}{
		{"known tool in shell block", "npm install", Context{Language: "bash"}, Runnable},
		{"known tool untagged", "make build", Context{}, Runnable},
		{"prompted", "$ git clone https://example.com/x.git", Context{}, Runnable},
		{"project executable", "checker -v", Context{Language: "sh"}, Runnable},
		{"unknown tool with flags in shell block", "widgetctl --help", Context{Language: "bash"}, Runnable},
		{"relative script", "./scripts/setup.sh", Context{}, Runnable},
		{"sentence", "This tool checks your files.", Context{}, Descriptive},
		{"capitalized prose in shell block", "Then start the server", Context{Language: "bash"}, Descriptive},
		{"non-shell block", "npm install", Context{Language: "python"}, Descriptive},
		{"negated", "rm -rf build", Context{Language: "sh", Before: "Do not run this on production:"}, Descriptive},
		{"deprecated", "npm run legacy", Context{Language: "sh", Before: "This script is deprecated."}, Descriptive},
		{"untagged unknown", "widgetctl run", Context{}, Ambiguous},
		{"empty", "   ", Context{Language: "sh"}, Descriptive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.line, tt.ctx)
			assert.Equal(t, tt.want, got.Intent, "reasons: %v", got.Reasons)
		})
	}
}

func TestClassify_Placeholders(t *testing.T) {
	c := NewClassifier()

	for _, line := range []string{
		"mytool --config <path>",
		"mytool [options]",
		"mytool --token YOUR_API_KEY",
		"mytool --input INPUT_FILE",
		"mytool ...",
	} {
		got := c.Classify(line, Context{})
		assert.NotEqual(t, Runnable, got.Intent, line)
	}

	// a known tool with a placeholder drops below runnable in an untagged block
	got := c.Classify("docker run <image>", Context{})
	assert.NotEqual(t, Runnable, got.Intent)
}

func TestClassify_ConditionalLowersConfidence(t *testing.T) {
	c := NewClassifier()
	plain := c.Classify("pip install -e .", Context{Language: "bash"})
	cond := c.Classify("pip install -e .", Context{Language: "bash", Before: "Optionally, install in editable mode:"})

	assert.Equal(t, Runnable, plain.Intent)
	assert.Equal(t, Runnable, cond.Intent)
	assert.Less(t, cond.Confidence, plain.Confidence)
}

func TestProsePunctuation(t *testing.T) {
	assert.True(t, prosePunctuation("Run the tests first."))
	assert.True(t, prosePunctuation("ready?"))
	assert.True(t, prosePunctuation("first, build it"))
	assert.False(t, prosePunctuation("pip install -e ."))
	assert.False(t, prosePunctuation("cd .."))
	assert.False(t, prosePunctuation("ls docs/"))
}
