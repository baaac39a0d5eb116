// Package localtransport provides an in-process connected pair of channels.
package localtransport

import (
	"io"

	"github.com/effective-security/devassist/mcp/transport"
)

// NewPair returns two connected channels: frames sent on one are received
// on the other. Closing either end closes the pair.
func NewPair() (client *transport.Stream, server *transport.Stream) {
	// server -> client
	cr, sw := io.Pipe()
	// client -> server
	sr, cw := io.Pipe()

	client = transport.NewStream(cr, cw, transport.MultiCloser(cw, cr))
	server = transport.NewStream(sr, sw, transport.MultiCloser(sw, sr))
	return client, server
}
