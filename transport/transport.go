// Package transport carries protocol buffers between a host and a device.
//
// The protocol assumes a packet transport: each receive delivers exactly one
// frame, and deliveries are serialized. Stream transports (TCP, pipes)
// recover packet boundaries with wire.BufferDecoder framing.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send on a closed connection.
var ErrClosed = errors.New("transport: connection closed")

// Sender delivers one outbound buffer. Sends are fire-and-forget: there is no
// flow control, and callers log and drop failures.
type Sender interface {
	Send(b []byte) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(b []byte) error

// Send implements Sender.
func (f SenderFunc) Send(b []byte) error { return f(b) }

// Discard is a Sender that drops everything.
var Discard Sender = SenderFunc(func([]byte) error { return nil })

// Handler consumes inbound buffers. Handle is never called concurrently for
// the same connection; b is only valid until Handle returns. Responses go to
// reply.
type Handler interface {
	Handle(ctx context.Context, b []byte, reply Sender)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, b []byte, reply Sender)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, b []byte, reply Sender) { f(ctx, b, reply) }
