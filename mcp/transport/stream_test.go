package transport_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/devassist/mcp/transport/localtransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_FIFO(t *testing.T) {
	t.Parallel()

	client, server := localtransport.NewPair()
	defer client.Close()
	defer server.Close()

	ctx := context.Background()
	msgs := []string{`{"id":1}`, `{"id":2}`, `{"id":3}`}
	go func() {
		for _, m := range msgs {
			_ = client.Send(ctx, []byte(m))
		}
	}()

	for _, exp := range msgs {
		got, err := server.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, exp, string(got))
	}
}

func TestStream_CompactsMultiline(t *testing.T) {
	t.Parallel()

	client, server := localtransport.NewPair()
	defer client.Close()
	defer server.Close()

	ctx := context.Background()
	go func() {
		_ = client.Send(ctx, []byte("{\n\t\"a\": \"line\\nbreak\"\n}"))
	}()

	got, err := server.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"line\nbreak"}`, string(got))

	err = client.Send(ctx, []byte("not\njson"))
	assert.True(t, errors.Is(err, transport.ErrChannelWrite))
}

func TestStream_ReceiveTimeout(t *testing.T) {
	t.Parallel()

	client, server := localtransport.NewPair()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Receive(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// the channel is still usable
	go func() {
		_ = server.Send(context.Background(), []byte(`{}`))
	}()
	got, err := client.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got))
}

func TestStream_CloseUnblocksReceive(t *testing.T) {
	t.Parallel()

	client, server := localtransport.NewPair()
	defer server.Close()

	errs := make(chan error, 1)
	go func() {
		_, err := client.Receive(context.Background())
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, client.Close())
	// idempotent
	require.NoError(t, client.Close())

	select {
	case err := <-errs:
		assert.True(t, transport.IsClosed(err))
	case <-time.After(time.Second):
		t.Fatal("Receive was not unblocked by Close")
	}

	assert.True(t, transport.IsClosed(client.Send(context.Background(), []byte(`{}`))))
}

func TestStream_RemoteClose(t *testing.T) {
	t.Parallel()

	client, server := localtransport.NewPair()
	defer server.Close()

	require.NoError(t, client.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := server.Receive(ctx)
	assert.True(t, transport.IsClosed(err))

	err = server.Send(ctx, []byte(`{}`))
	assert.True(t, errors.Is(err, transport.ErrChannelWrite))
}

func TestStream_Framing(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("{\"a\":1}\n\n  \r\n{\"b\":2}\r\n{\"c\":3}")
	var out bytes.Buffer
	s := transport.NewStream(in, &out, nil)
	defer s.Close()

	ctx := context.Background()
	for _, exp := range []string{`{"a":1}`, `{"b":2}`, `{"c":3}`} {
		got, err := s.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, exp, string(got))
	}
	_, err := s.Receive(ctx)
	assert.True(t, transport.IsClosed(err))

	require.NoError(t, s.Send(ctx, []byte(`{"d":4}`)))
	assert.Equal(t, "{\"d\":4}\n", out.String())
}
