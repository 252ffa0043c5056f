package transport

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/pithecene-io/modelpush/iox"
	"github.com/pithecene-io/modelpush/wire"
)

// ServeOptions tunes Serve.
type ServeOptions struct {
	// Heartbeat, when true, sends wire.Heartbeat once before reading.
	Heartbeat bool
}

// Serve reads buffers from rw and delivers each to h, one at a time, until
// the stream ends or ctx is cancelled. rw is closed on return.
//
// A clean EOF or cancellation returns nil. A framing error is returned.
func Serve(ctx context.Context, rw io.ReadWriteCloser, h Handler, opts ServeOptions) error {
	conn := NewConn(rw)
	defer iox.DiscardClose(conn)

	stop := iox.CloseOnDone(ctx, conn)
	defer stop()

	if opts.Heartbeat {
		if err := conn.Send(wire.Heartbeat()); err != nil {
			return closedOr(ctx, err)
		}
	}

	for {
		b, err := conn.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return closedOr(ctx, err)
		}
		h.Handle(ctx, b, conn)
	}
}

// closedOr maps errors caused by our own shutdown to nil.
func closedOr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
