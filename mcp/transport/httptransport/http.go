// Package httptransport implements a stateless request/response channel over HTTP:
// every message is POSTed to the host endpoint and the reply, if any,
// is returned in the response body.
package httptransport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist/mcp/transport", "httptransport")

// DefaultEndpoint is the path the host handler is mounted on.
const DefaultEndpoint = "/mcp"

// MaxBodySize limits the size of a single message.
const MaxBodySize = transport.MaxFrameSize

const contentTypeJSON = "application/json"

// Handler returns an http.Handler serving messages with h.
// Only POST is accepted. Replies are written as the response body;
// messages without reply get 202 Accepted.
func Handler(h transport.MessageHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
		if err != nil {
			logger.ContextKV(r.Context(), xlog.ERROR, "status", "read_body", "err", err.Error())
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if len(body) > MaxBodySize {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		reply := h.HandleMessage(r.Context(), body)
		if reply == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		if _, err = w.Write(reply); err != nil {
			logger.ContextKV(r.Context(), xlog.DEBUG, "status", "write_reply", "err", err.Error())
		}
	})
}

// Client is the agent side channel. Send performs the HTTP round trip
// and queues the reply for Receive.
type Client struct {
	url    string
	client *http.Client

	replies chan []byte
	done    chan struct{}
	once    sync.Once
}

var _ transport.Channel = (*Client)(nil)

// NewClient returns a channel posting to url.
// If client is nil, http.DefaultClient is used.
func NewClient(url string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		url:     url,
		client:  client,
		replies: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

// Send implements transport.Channel.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	select {
	case <-c.done:
		return transport.ErrChannelClosed
	default:
	}

	// Close aborts the round trip in flight
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-reqCtx.Done():
		}
	}()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url, bytes.NewReader(msg))
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to create request"), transport.ErrChannelWrite)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := c.client.Do(req)
	if err != nil {
		return c.sendError(ctx, errors.Wrapf(err, "failed to post to %s", c.url))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return c.sendError(ctx, errors.Wrap(err, "failed to read response"))
	}

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode != http.StatusOK:
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "unexpected_status",
			"code", resp.StatusCode,
			"url", c.url)
		return errors.Mark(errors.Errorf("unexpected status %d from %s", resp.StatusCode, c.url), transport.ErrChannelWrite)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	select {
	case c.replies <- body:
		return nil
	case <-c.done:
		return transport.ErrChannelClosed
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

func (c *Client) sendError(ctx context.Context, err error) error {
	select {
	case <-c.done:
		return transport.ErrChannelClosed
	default:
	}
	if ctx.Err() != nil {
		return errors.WithStack(ctx.Err())
	}
	return errors.Mark(err, transport.ErrChannelWrite)
}

// Receive implements transport.Channel.
func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
		return nil, transport.ErrChannelClosed
	default:
	}

	select {
	case <-c.done:
		return nil, transport.ErrChannelClosed
	case body := <-c.replies:
		return body, nil
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	}
}

// Close implements transport.Channel.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}
