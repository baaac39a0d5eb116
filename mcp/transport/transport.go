// Package transport provides the bidirectional message channel between the
// agent-side session and the tool host.
//
// A Channel delivers whole messages only, in FIFO order per direction.
// Stream implements newline-delimited framing over any byte stream;
// the stdio, tcp and localtransport packages build on it, while
// httptransport frames one message per HTTP request.
package transport

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist/mcp", "transport")

var (
	// ErrChannelClosed is returned by Receive and Send once the remote end
	// terminated or Close was called.
	ErrChannelClosed = errors.New("channel closed")
	// ErrChannelWrite is returned by Send when the frame could not be written.
	ErrChannelWrite = errors.New("channel write error")
)

// Channel is a message channel.
type Channel interface {
	// Send writes one complete message.
	Send(ctx context.Context, msg []byte) error
	// Receive blocks until a complete message arrives,
	// the context is done, or the channel is closed.
	// Expired contexts are reported with the context error.
	Receive(ctx context.Context) ([]byte, error)
	// Close releases the underlying resources. It is safe to call more than once,
	// and unblocks pending Receive calls with ErrChannelClosed.
	Close() error
}

// MessageHandler processes one inbound message and returns the reply,
// or nil when no reply is due.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg []byte) []byte
}

// IsClosed returns true if err reports a closed channel.
func IsClosed(err error) bool {
	return errors.Is(err, ErrChannelClosed)
}

type multiCloser []io.Closer

// MultiCloser returns a Closer that closes all of the given closers,
// and returns the first error.
func MultiCloser(closers ...io.Closer) io.Closer {
	return multiCloser(closers)
}

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
