package runtests_test

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/effective-security/devassist/mcp"
	"github.com/effective-security/devassist/toolhost"
	"github.com/effective-security/devassist/tools/runtests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvents(t *testing.T) {
	t.Parallel()

	in := `{"Action":"output","Package":"example.com/broken","Output":"# example.com/broken\n"}
{"Action":"output","Package":"example.com/broken","Output":"broken/x.go:3:2: undefined: y\n"}
{"Action":"fail","Package":"example.com/broken","Elapsed":0}
not a json line
{"Action":"run","Package":"example.com/ok","Test":"TestOK"}
{"Action":"pass","Package":"example.com/ok","Test":"TestOK"}
{"Action":"output","Package":"example.com/ok","Test":"TestPanics","Output":"panic: runtime error: index out of range\n"}
{"Action":"fail","Package":"example.com/ok","Test":"TestPanics"}
`
	res := runtests.ParseEvents(strings.NewReader(in))
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, []string{
		"example.com/broken: broken/x.go:3:2: undefined: y",
		"example.com/ok TestPanics: panic: runtime error: index out of range",
	}, res.Failures)
	assert.Equal(t, "1 passed, 2 failed", res.Summary())

	res = runtests.ParseEvents(strings.NewReader(""))
	assert.Equal(t, 0, res.Passed+res.Failed)
	assert.NotNil(t, res.Failures)
}

func TestRun(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat is not available")
	}
	t.Parallel()

	tool := runtests.New(runtests.Config{
		Command:  []string{"cat"},
		Packages: "testdata/events.json",
	})

	res, err := tool.Run(context.Background(), &runtests.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Passed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"example.com/calc TestDiv: calc_test.go:41: expected error for division by zero"}, res.Failures)
	assert.Equal(t, "5 passed, 1 failed, 1 skipped", res.Summary())

	reg := toolhost.NewRegistry()
	require.NoError(t, reg.Register(tool.Spec(), tool.Call))

	r := reg.Invoke(context.Background(), runtests.ToolName, nil)
	require.True(t, r.IsSuccess(), r.String())
	assert.Contains(t, r.String(), `"failed":1`)

	r = reg.Invoke(context.Background(), runtests.ToolName, map[string]any{"path": "../outside"})
	assert.Equal(t, mcp.KindInvalidArgument, r.Kind())
	assert.Equal(t, "path", r.Failure.Param)

	r = reg.Invoke(context.Background(), runtests.ToolName, map[string]any{"path": "testdata/missing.json"})
	require.True(t, r.IsSuccess(), r.String())
	out := r.Value.(*runtests.Result)
	assert.Equal(t, 1, out.Failed)
	assert.Zero(t, out.Passed)
	require.Len(t, out.Failures, 1)
	assert.Contains(t, out.Failures[0], "missing.json")
}

func TestRun_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep is not available")
	}
	t.Parallel()

	tool := runtests.New(runtests.Config{
		Command:  []string{"sleep"},
		Packages: "10",
		Timeout:  100 * time.Millisecond,
	})

	started := time.Now()
	res, err := tool.Run(context.Background(), &runtests.RunRequest{})
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 5*time.Second)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "timed out")
}

func TestRun_NoCommand(t *testing.T) {
	t.Parallel()

	tool := runtests.New(runtests.Config{Command: []string{"devassist-no-such-binary"}})
	_, err := tool.Run(context.Background(), &runtests.RunRequest{})
	assert.Error(t, err)
}
