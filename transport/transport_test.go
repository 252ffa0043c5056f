package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pithecene-io/modelpush/wire"
)

// echoHandler replies with the received buffer reversed.
var echoHandler = HandlerFunc(func(_ context.Context, b []byte, reply Sender) {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	_ = reply.Send(out)
})

func TestServe_PipeRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, server, echoHandler, ServeOptions{Heartbeat: true}) }()

	c := NewConn(client)
	defer c.Close()

	hb, err := c.Recv()
	if err != nil {
		t.Fatalf("Recv heartbeat: %v", err)
	}
	if wire.Classify(hb) != wire.ResponseHeartbeat {
		t.Fatalf("first buffer = %q, want heartbeat", hb)
	}

	for _, msg := range []string{"abc", "hello world", ""} {
		if err := c.Send([]byte(msg)); err != nil {
			t.Fatalf("Send: %v", err)
		}
		got, err := c.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		want := []byte(msg)
		for i, j := 0, len(want)-1; i < j; i, j = i+1, j-1 {
			want[i], want[j] = want[j], want[i]
		}
		if !bytes.Equal(got, want) {
			t.Errorf("echo of %q = %q", msg, got)
		}
	}

	_ = c.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v after peer close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after peer close")
	}
}

func TestServe_ContextCancel(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, server, echoHandler, ServeOptions{}) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_SerializedDelivery(t *testing.T) {
	server, client := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	active := 0
	maxActive := 0
	var seen [][]byte
	h := HandlerFunc(func(_ context.Context, b []byte, _ Sender) {
		active++
		if active > maxActive {
			maxActive = active
		}
		seen = append(seen, append([]byte(nil), b...))
		time.Sleep(time.Millisecond)
		active--
	})

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, server, h, ServeOptions{}) }()

	c := NewConn(client)
	for i := range 10 {
		if err := c.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	_ = c.Close()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}

	if maxActive != 1 {
		t.Errorf("max concurrent deliveries = %d, want 1", maxActive)
	}
	if len(seen) != 10 {
		t.Fatalf("delivered %d buffers, want 10", len(seen))
	}
	for i, b := range seen {
		if b[0] != byte(i) {
			t.Errorf("buffer %d out of order: %v", i, b)
		}
	}
}

func TestServe_FramingErrorReturned(t *testing.T) {
	server, client := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, server, echoHandler, ServeOptions{}) }()

	// Length prefix above the buffer limit.
	_, _ = client.Write([]byte{0xFF, 0xFF, 0x00, 0x00})
	err := <-done
	if !errors.Is(err, wire.ErrBufferTooLarge) {
		t.Errorf("Serve error = %v, want ErrBufferTooLarge", err)
	}
	_ = client.Close()
}

func TestConn_SendAfterClose(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	c := NewConn(a)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := c.Send([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	buf := []byte{1, 2, 3}
	if err := r.Send(buf); err != nil {
		t.Fatal(err)
	}
	buf[0] = 9
	if r.Frames()[0][0] != 1 {
		t.Error("Recorder must copy sent buffers")
	}

	boom := errors.New("boom")
	r.FailWith(boom)
	if err := r.Send([]byte{4}); !errors.Is(err, boom) {
		t.Errorf("Send = %v, want boom", err)
	}
	if r.Len() != 2 || r.Bytes() != 4 {
		t.Errorf("Len/Bytes = %d/%d, want 2/4", r.Len(), r.Bytes())
	}

	r.Reset()
	if r.Len() != 0 {
		t.Error("Reset should clear frames")
	}
}

func TestListener_ServesConnections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := NewListener(echoHandler, ServeOptions{Heartbeat: true}, nil)
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx, ln) }()

	for range 2 {
		nc, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		c := NewConn(nc)
		hb, err := c.Recv()
		if err != nil || !bytes.Equal(hb, wire.Heartbeat()) {
			t.Fatalf("heartbeat = %q, %v", hb, err)
		}
		if err := c.Send([]byte("ab")); err != nil {
			t.Fatal(err)
		}
		got, err := c.Recv()
		if err != nil || string(got) != "ba" {
			t.Errorf("echo = %q, %v", got, err)
		}
		_ = c.Close()
	}

	if l.Addr() == nil {
		t.Error("Addr should be set while serving")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
