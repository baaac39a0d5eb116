package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repo writes a repository with a config using the local transport.
func repo(t *testing.T) string {
	dir := t.TempDir()
	files := map[string]string{
		"src/main.go":    "package main\n\n// TODO: parse flags\nfunc main() {}\n",
		"src/util.go":    "package main\n\n// TODO remove\n",
		"devassist.yaml": "host:\n  transport: local\ntools:\n  root: src\nclient:\n  max_iterations: 2\n",
		"args.json":      `{"keyword": "todo", "glob": "main.go"}`,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestHelp(t *testing.T) {
	code, out, _ := runCLI(t, "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "serve")
	assert.Contains(t, out, "assist")

	code, _, errOut := runCLI(t, "deploy")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unexpected argument deploy")
}

func TestTools(t *testing.T) {
	cfg := filepath.Join(repo(t), "devassist.yaml")

	code, out, errOut := runCLI(t, "-c", cfg, "tools")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "search_repo: ")
	assert.Contains(t, out, "  keyword string (required)")
	assert.Contains(t, out, "generate_release_notes: ")

	code, out, errOut = runCLI(t, "-c", cfg, "tools", "-o", "json")
	require.Equal(t, 0, code, errOut)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 3)
	assert.Equal(t, "run_tests", list[1]["name"])
}

func TestCall(t *testing.T) {
	dir := repo(t)
	cfg := filepath.Join(dir, "devassist.yaml")

	code, out, errOut := runCLI(t, "-c", cfg, "call", "search_repo", "keyword=TODO", "-o", "json")
	require.Equal(t, 0, code, errOut)
	var res struct {
		Matches []struct {
			File string `json:"file"`
			Line int    `json:"line"`
		} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "main.go", res.Matches[0].File)
	assert.Equal(t, 3, res.Matches[0].Line)
	assert.Equal(t, "util.go", res.Matches[1].File)

	code, out, errOut = runCLI(t, "-c", cfg, "call", "search_repo", "--args-file", filepath.Join(dir, "args.json"), "-o", "yaml")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "file: main.go")
	assert.NotContains(t, out, "util.go")

	code, _, errOut = runCLI(t, "-c", cfg, "call", "search_repo", "keyword")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `invalid argument "keyword", expected key=value`)

	code, _, errOut = runCLI(t, "-c", cfg, "call", "deploy")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "deploy")
}

func TestAssist_NoProviders(t *testing.T) {
	cfg := filepath.Join(repo(t), "devassist.yaml")

	code, _, errOut := runCLI(t, "-c", cfg, "assist", "find all TODO comments")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no providers configured")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, int64(42), parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "./...", parseValue("./..."))
}
