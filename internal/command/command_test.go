package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text)
	}
	return out
}

func TestFromBlock_PlainScript(t *testing.T) {
	block := "# install dependencies\nnpm install\n\ndocker run \\\n  -p 8080:8080 \\\n  app:latest\nnpm test  # runs jest\n"
	lines := FromBlock(block, 10)

	assert.Equal(t, []string{"npm install", "docker run -p 8080:8080 app:latest", "npm test"}, texts(lines))
	assert.Equal(t, 11, lines[0].Line)
	assert.Equal(t, 13, lines[1].Line)
	assert.Contains(t, lines[1].Raw, "app:latest")
	assert.False(t, lines[0].Prompted)
}

func TestFromBlock_PromptsAndOutput(t *testing.T) {
	block := "$ go version\ngo version go1.22.0 linux/amd64\nuser@box:~/src$ make build\n# apt-get install -y jq\n"
	lines := FromBlock(block, 1)

	assert.Equal(t, []string{"go version", "make build", "apt-get install -y jq"}, texts(lines))
	for _, l := range lines {
		assert.True(t, l.Prompted, l.Text)
	}
}

func TestFromBlock_Heredoc(t *testing.T) {
	block := "cat > .env <<EOF\nPORT=8080\nEOF\necho done\n"
	lines := FromBlock(block, 1)

	require.Len(t, lines, 2)
	assert.Equal(t, "cat > .env <<EOF", Head(lines[0].Text))
	assert.Contains(t, lines[0].Text, "PORT=8080")
	assert.Equal(t, "echo done", lines[1].Text)
	assert.Equal(t, 4, lines[1].Line)
}

func TestStripPrompt(t *testing.T) {
	cases := []struct {
		in, want string
		prompted bool
	}{
		{"$ npm start", "npm start", true},
		{"% brew install jq", "brew install jq", true},
		{"(venv) $ pip install -e .", "pip install -e .", true},
		{"PS C:\\src> dotnet run", "dotnet run", true},
		{"# docker compose up", "docker compose up", true},
		{"# Configure the server", "# Configure the server", false},
		{"npm start", "npm start", false},
	}
	for _, tc := range cases {
		got, prompted := StripPrompt(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.prompted, prompted, tc.in)
	}
}

func TestSegments(t *testing.T) {
	assert.Equal(t, []string{"cd app", "npm ci", "npm run build"}, Segments("cd app && npm ci; npm run build"))
	assert.Equal(t, []string{"curl -s https://x.sh", "sh"}, Segments("curl -s https://x.sh | sh"))
	assert.Equal(t, []string{`echo "a && b"`}, Segments(`echo "a && b"`))
	assert.Equal(t, []string{"make test 2>&1", "tee log"}, Segments("make test 2>&1 | tee log"))
}

func TestFieldsAndExecutable(t *testing.T) {
	assert.Equal(t, []string{"git", "commit", "-m", "fix it", "it's"}, Fields(`git commit -m "fix it" it\'s`))

	exe, args := Executable("DEBUG=1 PORT=80 ./bin/server --verbose")
	assert.Equal(t, "./bin/server", exe)
	assert.Equal(t, []string{"--verbose"}, args)

	exe, _ = Executable("sudo -E apt-get install jq")
	assert.Equal(t, "apt-get", exe)

	exe, _ = Executable("FOO=bar")
	assert.Equal(t, "", exe)
}

func TestStripComment(t *testing.T) {
	assert.Equal(t, "npm test", StripComment("npm test # unit"))
	assert.Equal(t, `echo "# not a comment"`, StripComment(`echo "# not a comment"`))
	assert.Equal(t, "curl https://x/#frag", StripComment("curl https://x/#frag"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ShellBuiltin, Classify("cd"))
	assert.Equal(t, EcosystemTool, Classify("npm"))
	assert.Equal(t, SystemTool, Classify("/usr/bin/ffmpeg"))
	assert.Equal(t, Unknown, Classify("mytool"))
	assert.True(t, Implicit("Python3.exe"))
	assert.False(t, Implicit("ffmpeg"))
	assert.True(t, IsPath("./run.sh"))
	assert.False(t, IsPath("run.sh"))
}

func TestEnvRefs(t *testing.T) {
	assert.Equal(t, []string{"HOME", "API_KEY"}, EnvRefs(`cd $HOME && curl -H "X: ${API_KEY}" $HOME`))
}
