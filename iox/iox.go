// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"context"
	"io"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup and b.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Flush) where errors are unactionable:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }

// CloseOnDone closes c once ctx is done. Use it to unblock a goroutine stuck
// in Read when its context is cancelled. The returned stop func detaches c;
// it reports nothing and is safe to call after c was closed:
//
//	stop := iox.CloseOnDone(ctx, conn)
//	defer stop()
func CloseOnDone(ctx context.Context, c io.Closer) (stop func()) {
	detach := context.AfterFunc(ctx, func() { _ = c.Close() })
	return func() { detach() }
}
