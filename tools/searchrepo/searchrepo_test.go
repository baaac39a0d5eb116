package searchrepo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/toolhost"
	"github.com/effective-security/devassist/tools/searchrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Fixture(t *testing.T) {
	t.Parallel()

	tool, err := searchrepo.New("testdata/repo")
	require.NoError(t, err)

	res, err := tool.Run(context.Background(), &searchrepo.SearchRequest{Keyword: "TODO"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, searchrepo.Match{File: "main.go", Line: 3, Text: "// TODO: wire the config loader"}, res.Matches[0])
	assert.Equal(t, searchrepo.Match{File: "pkg/run.go", Line: 4, Text: "// todo: handle the retry budget"}, res.Matches[1])
	assert.False(t, res.Truncated)

	res, err = tool.Run(context.Background(), &searchrepo.SearchRequest{Keyword: "todo", Glob: "pkg/**/*.go"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "pkg/run.go", res.Matches[0].File)

	res, err = tool.Run(context.Background(), &searchrepo.SearchRequest{Keyword: "Todo", Path: "pkg"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	res, err = tool.Run(context.Background(), &searchrepo.SearchRequest{Keyword: "no-such-keyword"})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.NotNil(t, res.Matches)
}

func TestSearch_Invalid(t *testing.T) {
	t.Parallel()

	tool, err := searchrepo.New("testdata/repo")
	require.NoError(t, err)
	ctx := context.Background()

	tcases := []struct {
		req   searchrepo.SearchRequest
		param string
	}{
		{req: searchrepo.SearchRequest{Keyword: " "}, param: "keyword"},
		{req: searchrepo.SearchRequest{Keyword: "x", Glob: "[a-"}, param: "glob"},
		{req: searchrepo.SearchRequest{Keyword: "x", Path: "../.."}, param: "path"},
		{req: searchrepo.SearchRequest{Keyword: "x", Path: "/etc"}, param: "path"},
		{req: searchrepo.SearchRequest{Keyword: "x", Path: "main.go"}, param: "path"},
	}
	for _, tc := range tcases {
		_, err := tool.Run(ctx, &tc.req)
		require.Error(t, err)
		f, ok := mcp.AsFailure(err)
		require.True(t, ok, err.Error())
		assert.Equal(t, mcp.KindInvalidArgument, f.Kind)
		assert.Equal(t, tc.param, f.Param)
	}

	_, err = searchrepo.New("testdata/repo/main.go")
	assert.Error(t, err)
	_, err = searchrepo.New("testdata/missing")
	assert.Error(t, err)
}

func TestSearch_IgnoreAndLimits(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write := func(name, content string) {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write(".gitignore", "vendor/\n*.log\n")
	write("vendor/dep.go", "// TODO vendored\n")
	write("build.log", "TODO in log\n")
	write(".git/HEAD", "TODO ref\n")
	write("bin/tool", "TODO\x00binary")
	write("a.txt", "TODO one\nTODO two\nTODO three\n")
	write("b.txt", "TODO four\n")

	tool, err := searchrepo.New(root)
	require.NoError(t, err)

	res, err := tool.Run(context.Background(), &searchrepo.SearchRequest{Keyword: "todo"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 4)
	for _, m := range res.Matches {
		assert.Contains(t, []string{"a.txt", "b.txt"}, m.File)
	}

	tool.WithMaxMatches(2)
	res, err = tool.Run(context.Background(), &searchrepo.SearchRequest{Keyword: "todo"})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
	assert.True(t, res.Truncated)

	tool.WithMaxMatches(100).WithMaxFileSize(12)
	res, err = tool.Run(context.Background(), &searchrepo.SearchRequest{Keyword: "todo"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "b.txt", res.Matches[0].File)
}

func TestSearch_Registered(t *testing.T) {
	t.Parallel()

	tool, err := searchrepo.New("testdata/repo")
	require.NoError(t, err)

	reg := toolhost.NewRegistry()
	require.NoError(t, reg.Register(tool.Spec(), tool.Call))

	res := reg.Invoke(context.Background(), searchrepo.ToolName, map[string]any{"keyword": "TODO"})
	require.True(t, res.IsSuccess(), res.String())
	out, ok := res.Value.(*searchrepo.SearchResult)
	require.True(t, ok)
	assert.Len(t, out.Matches, 2)

	res = reg.Invoke(context.Background(), searchrepo.ToolName, map[string]any{"keyword": "x", "path": "../"})
	assert.Equal(t, mcp.KindInvalidArgument, res.Kind())
	assert.Equal(t, "path", res.Failure.Param)
}
