package httptransport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/devassist/mcp/transport/httptransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) HandleMessage(_ context.Context, msg []byte) []byte {
	if strings.Contains(string(msg), "notify") {
		return nil
	}
	return append([]byte(`{"echo":`), append(msg, '}')...)
}

func TestClient_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(httptransport.Handler(echoHandler{}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c := httptransport.NewClient(srv.URL, srv.Client())
	require.NoError(t, c.Send(ctx, []byte(`{"id":1}`)))
	got, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"echo":{"id":1}}`, string(got))

	// no reply is queued for notifications
	require.NoError(t, c.Send(ctx, []byte(`{"method":"notify"}`)))
	short, scancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer scancel()
	_, err = c.Receive(short)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.Receive(ctx)
	assert.True(t, transport.IsClosed(err))
	assert.True(t, transport.IsClosed(c.Send(ctx, []byte(`{}`))))
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(httptransport.Handler(echoHandler{}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestClient_WriteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := httptransport.NewClient(srv.URL, nil)
	defer c.Close()

	err := c.Send(context.Background(), []byte(`{}`))
	assert.True(t, errors.Is(err, transport.ErrChannelWrite))
}

type blockingHandler struct {
	release chan struct{}
}

func (h blockingHandler) HandleMessage(ctx context.Context, _ []byte) []byte {
	select {
	case <-h.release:
	case <-ctx.Done():
	}
	return []byte(`{"late":true}`)
}

func TestClient_CloseAbortsSend(t *testing.T) {
	h := blockingHandler{release: make(chan struct{})}
	srv := httptest.NewServer(httptransport.Handler(h))
	defer srv.Close()
	defer close(h.release)

	c := httptransport.NewClient(srv.URL, srv.Client())
	done := make(chan error, 1)
	go func() {
		done <- c.Send(context.Background(), []byte(`{"id":1}`))
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-done:
		assert.True(t, transport.IsClosed(err), "unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("send was not aborted by Close")
	}
}

func TestClient_SendCancelled(t *testing.T) {
	h := blockingHandler{release: make(chan struct{})}
	srv := httptest.NewServer(httptransport.Handler(h))
	defer srv.Close()
	defer close(h.release)

	c := httptransport.NewClient(srv.URL, srv.Client())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Send(ctx, []byte(`{"id":1}`))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected error: %v", err)
}
