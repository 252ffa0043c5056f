package transport

import (
	"io"
	"sync"

	"github.com/pithecene-io/modelpush/wire"
)

// Conn frames buffers over a byte stream.
// Send is safe for concurrent use. Recv must be called from one goroutine.
type Conn struct {
	rw  io.ReadWriteCloser
	dec *wire.BufferDecoder

	wmu    sync.Mutex
	closed bool
}

// NewConn wraps rw.
func NewConn(rw io.ReadWriteCloser) *Conn {
	return &Conn{rw: rw, dec: wire.NewBufferDecoder(rw)}
}

// Send writes one length-prefixed buffer.
func (c *Conn) Send(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return wire.WriteBuffer(c.rw, b)
}

// Recv reads the next buffer. The returned slice is overwritten by the next
// call to Recv.
//
// Errors:
//   - io.EOF: peer closed the stream between buffers
//   - *wire.FrameError: framing lost (fatal)
func (c *Conn) Recv() ([]byte, error) {
	return c.dec.ReadBuffer()
}

// Close closes the underlying stream. Safe to call more than once.
func (c *Conn) Close() error {
	c.wmu.Lock()
	if c.closed {
		c.wmu.Unlock()
		return nil
	}
	c.closed = true
	c.wmu.Unlock()
	return c.rw.Close()
}
