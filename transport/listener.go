package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/pithecene-io/modelpush/log"
)

// Listener accepts TCP connections and serves each with the same Handler.
// The handler sees every connection's buffers; a device behind it must
// serialize them itself.
type Listener struct {
	handler Handler
	opts    ServeOptions
	logger  *log.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewListener creates a listener for h.
func NewListener(h Handler, opts ServeOptions, logger *log.Logger) *Listener {
	return &Listener{handler: h, opts: opts, logger: logger.Component("transport")}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (l *Listener) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return l.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or ln fails.
// It waits for all connection goroutines before returning.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	l.logger.Info("listening", map[string]any{"addr": ln.Addr().String()})

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			remote := c.RemoteAddr().String()
			l.logger.Info("connection opened", map[string]any{"remote": remote})
			if err := Serve(ctx, c, l.handler, l.opts); err != nil {
				l.logger.Warn("connection failed", map[string]any{"remote": remote, "error": err.Error()})
				return
			}
			l.logger.Info("connection closed", map[string]any{"remote": remote})
		}()
	}
}

// Addr returns the bound address, or nil before Serve.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}
