// Package host implements the sending side of the upload protocol: it splits
// an artifact into MODEL_DATA frames, waits for each acknowledgment and
// retransmits on timeout, then optionally requests a run.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pithecene-io/modelpush/log"
	"github.com/pithecene-io/modelpush/region"
	"github.com/pithecene-io/modelpush/transport"
	"github.com/pithecene-io/modelpush/types"
	"github.com/pithecene-io/modelpush/wire"
)

// Defaults for Options.
const (
	DefaultChunkSize  = 1024
	DefaultAckTimeout = 2 * time.Second
	DefaultRetries    = 3
	DefaultRunTimeout = 30 * time.Second
)

var (
	// ErrNoAck is returned when a chunk is not acknowledged after all retries.
	ErrNoAck = errors.New("host: chunk not acknowledged")
	// ErrRunRejected is returned when the device answers a run request with
	// the error/status sentinel.
	ErrRunRejected = errors.New("host: run rejected by device")
	// ErrNoResponse is returned when a run request gets no answer in time.
	ErrNoResponse = errors.New("host: no response")
)

// Options configures a Client.
type Options struct {
	// ChunkSize is the payload length of every chunk but the last.
	ChunkSize int
	// AckTimeout is how long to wait for each acknowledgment.
	AckTimeout time.Duration
	// Retries is how many times a chunk is retransmitted before giving up.
	Retries int
	// RunTimeout is how long to wait for a run response.
	RunTimeout time.Duration
	Logger     *log.Logger
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = DefaultAckTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = DefaultRunTimeout
	}
	return o
}

// Progress reports upload state after each acknowledged chunk.
type Progress struct {
	Chunk       uint32
	ChunkCount  uint32
	Bytes       int
	TotalBytes  int
	Retransmits int
}

// Fraction returns the acknowledged share of the artifact in [0, 1].
func (p Progress) Fraction() float64 {
	if p.TotalBytes == 0 {
		return 0
	}
	return float64(p.Bytes) / float64(p.TotalBytes)
}

// Client talks to one device. Methods must not be called concurrently.
type Client struct {
	conn   *transport.Conn
	opts   Options
	logger *log.Logger

	inbox   chan []byte
	readErr error
	done    chan struct{}
	once    sync.Once
}

// Dial connects to a device listening on addr.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewClient(nc, opts), nil
}

// NewClient wraps an established stream.
func NewClient(rw io.ReadWriteCloser, opts Options) *Client {
	opts = opts.withDefaults()
	c := &Client{
		conn:   transport.NewConn(rw),
		opts:   opts,
		logger: opts.Logger.Component("host"),
		inbox:  make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.inbox)
	for {
		b, err := c.conn.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.readErr = err
			}
			return
		}
		select {
		case c.inbox <- append([]byte(nil), b...):
		case <-c.done:
			return
		}
	}
}

// Configure selects the device's artifact and scratch regions.
// CONFIG has no response.
func (c *Client) Configure(_ context.Context, sel region.Selection) error {
	if err := c.conn.Send(wire.Encode(types.CommandConfig, 0, 0, sel.Payload())); err != nil {
		return fmt.Errorf("failed to send config: %w", err)
	}
	c.logger.Debug("config sent", map[string]any{
		"artifact": sel.Artifact.String(),
		"scratch":  sel.Scratch.String(),
	})
	return nil
}

// Upload sends artifact chunk by chunk. onProgress, if non-nil, is called
// after each acknowledgment.
func (c *Client) Upload(ctx context.Context, artifact []byte, onProgress func(Progress)) error {
	if len(artifact) == 0 {
		return errors.New("host: empty artifact")
	}
	size := c.opts.ChunkSize
	if size > wire.MaxPayloadSize {
		return fmt.Errorf("host: chunk size %d exceeds maximum %d", size, wire.MaxPayloadSize)
	}

	count := uint32((len(artifact) + size - 1) / size)
	p := Progress{ChunkCount: count, TotalBytes: len(artifact)}

	for i := range count {
		start := int(i) * size
		end := min(start+size, len(artifact))
		frame := wire.Encode(types.CommandModelData, i, count, artifact[start:end])

		acked := false
		for attempt := 0; attempt <= c.opts.Retries; attempt++ {
			if attempt > 0 {
				p.Retransmits++
				c.logger.Debug("retransmitting chunk", map[string]any{"chunk_index": i, "attempt": attempt})
			}
			if err := c.conn.Send(frame); err != nil {
				return fmt.Errorf("failed to send chunk %d: %w", i, err)
			}
			ok, err := c.waitAck(ctx, i)
			if err != nil {
				return err
			}
			if ok {
				acked = true
				break
			}
		}
		if !acked {
			return fmt.Errorf("%w: chunk %d of %d after %d attempts", ErrNoAck, i, count, c.opts.Retries+1)
		}

		p.Chunk = i
		p.Bytes = end
		if onProgress != nil {
			onProgress(p)
		}
	}

	c.logger.Info("upload acknowledged", map[string]any{
		"bytes":       len(artifact),
		"chunks":      count,
		"retransmits": p.Retransmits,
	})
	return nil
}

// waitAck waits up to AckTimeout for the ACK of idx. Other buffers are
// skipped. ok is false on timeout.
func (c *Client) waitAck(ctx context.Context, idx uint32) (ok bool, err error) {
	timer := time.NewTimer(c.opts.AckTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			return false, nil
		case b, open := <-c.inbox:
			if !open {
				return false, c.closedErr()
			}
			if wire.Classify(b) != wire.ResponseAck {
				continue
			}
			got, _ := wire.DecodeAck(b)
			if got == idx {
				return true, nil
			}
		}
	}
}

// Run asks the device to run the uploaded artifact.
func (c *Client) Run(ctx context.Context) (types.RunStats, error) {
	if err := c.conn.Send(wire.EncodeRunStats()); err != nil {
		return types.RunStats{}, fmt.Errorf("failed to send run request: %w", err)
	}

	timer := time.NewTimer(c.opts.RunTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return types.RunStats{}, ctx.Err()
		case <-timer.C:
			return types.RunStats{}, ErrNoResponse
		case b, open := <-c.inbox:
			if !open {
				return types.RunStats{}, c.closedErr()
			}
			switch wire.Classify(b) {
			case wire.ResponseErrorStatus:
				return types.RunStats{}, ErrRunRejected
			case wire.ResponseStats:
				return wire.DecodeStats(b)
			}
		}
	}
}

func (c *Client) closedErr() error {
	if c.readErr != nil {
		return fmt.Errorf("connection lost: %w", c.readErr)
	}
	return transport.ErrClosed
}

// Close closes the connection.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.conn.Close()
}
