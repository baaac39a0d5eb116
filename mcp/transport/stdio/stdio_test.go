package stdio_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/devassist/mcp/transport/stdio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawn_Echo(t *testing.T) {
	catPath, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat is not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := stdio.Spawn(ctx, stdio.Command{Path: catPath})
	require.NoError(t, err)
	assert.NotZero(t, p.Pid())

	require.NoError(t, p.Send(ctx, []byte(`{"jsonrpc":"2.0","id":1}`)))
	got, err := p.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1}`, string(got))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.Receive(ctx)
	assert.True(t, transport.IsClosed(err))
}

func TestSpawn_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := stdio.Spawn(ctx, stdio.Command{})
	assert.Error(t, err)

	_, err = stdio.Spawn(ctx, stdio.Command{Path: "/nonexistent/devassist-host"})
	assert.Error(t, err)
}

func TestSpawn_ProcessExit(t *testing.T) {
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true is not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := stdio.Spawn(ctx, stdio.Command{Path: truePath})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Receive(ctx)
	assert.True(t, transport.IsClosed(err))
}
