// Package tcp implements the channel over a TCP connection.
package tcp

import (
	"context"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devassist/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist/mcp/transport", "tcp")

// Dial connects to the host at addr.
func Dial(ctx context.Context, addr string) (*transport.Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "tcp: failed to dial %s", addr)
	}
	return transport.NewStream(conn, conn, conn), nil
}

// ServeFunc serves one accepted connection. The channel is closed when it returns.
type ServeFunc func(ctx context.Context, ch transport.Channel)

// Serve accepts connections on l until ctx is done, serving each on its own goroutine.
func Serve(ctx context.Context, l net.Listener, serve ServeFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "tcp: accept failed")
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "accepted",
			"remote", conn.RemoteAddr().String())

		ch := transport.NewStream(conn, conn, conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer ch.Close()
			serve(ctx, ch)
		}()
	}
}

// ListenAndServe listens on addr and calls Serve.
func ListenAndServe(ctx context.Context, addr string, serve ServeFunc) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "tcp: failed to listen on %s", addr)
	}
	logger.ContextKV(ctx, xlog.INFO, "status", "listening", "addr", l.Addr().String())
	return Serve(ctx, l, serve)
}
