package tcp_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/devassist/mcp/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- tcp.Serve(ctx, l, func(ctx context.Context, ch transport.Channel) {
			for {
				msg, err := ch.Receive(ctx)
				if err != nil {
					return
				}
				if err = ch.Send(ctx, msg); err != nil {
					return
				}
			}
		})
	}()

	dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dcancel()

	ch, err := tcp.Dial(dctx, l.Addr().String())
	require.NoError(t, err)

	require.NoError(t, ch.Send(dctx, []byte(`{"ping":1}`)))
	got, err := ch.Receive(dctx)
	require.NoError(t, err)
	assert.Equal(t, `{"ping":1}`, string(got))
	require.NoError(t, ch.Close())

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestDial_Refused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = tcp.Dial(ctx, addr)
	assert.Error(t, err)
}
