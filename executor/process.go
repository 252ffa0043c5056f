package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/pithecene-io/modelpush/ipc"
	"github.com/pithecene-io/modelpush/log"
	"github.com/pithecene-io/modelpush/types"
)

// ProcessConfig configures an external runner.
type ProcessConfig struct {
	// Path is the runner binary.
	Path string
	// Args are passed to the runner.
	Args []string
	// Env is appended to the inherited environment.
	Env []string
	// Timeout bounds the runner's whole lifetime (prepare + run). Zero means none.
	Timeout time.Duration
}

// Process drives an external runner. Each Prepare starts a fresh runner
// process; the returned Model owns it until Close.
//
// Requests and responses are msgpack messages with a 4-byte big-endian
// length prefix, written to the runner's stdin and read from its stdout.
// Stderr is drained for diagnostics and reported once the runner exits.
type Process struct {
	config ProcessConfig
	logger *log.Logger
}

// NewProcess creates a process executor.
func NewProcess(config ProcessConfig, logger *log.Logger) *Process {
	return &Process{config: config, logger: logger}
}

// Name implements Executor.
func (p *Process) Name() string { return "process" }

// Prepare starts the runner and sends it the artifact.
func (p *Process) Prepare(ctx context.Context, artifact, scratch []byte) (Model, error) {
	if p.config.Path == "" {
		return nil, errors.New("executor: runner path not configured")
	}

	var cancel context.CancelFunc
	if p.config.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	cmd := exec.CommandContext(ctx, p.config.Path, p.config.Args...)
	if len(p.config.Env) > 0 {
		cmd.Env = append(cmd.Environ(), p.config.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start runner: %w", err)
	}

	m := &processModel{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: captureStderr(stderr),
		cancel: cancel,
		logger: p.logger,
	}

	req := ipc.Request{Op: ipc.OpPrepare, Artifact: artifact, ScratchSize: len(scratch)}
	var resp ipc.PrepareResponse
	if err := m.roundTrip(&req, &resp); err != nil {
		_ = m.Close()
		return nil, err
	}
	if !resp.Ready {
		_ = m.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotReady, resp.Error)
	}

	m.inputs = resp.InputTensors
	m.outputs = resp.OutputTensors
	return m, nil
}

type processModel struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  *stderrCapture
	cancel  context.CancelFunc
	logger  *log.Logger
	inputs  int
	outputs int
	closed  bool
}

func (m *processModel) InputTensors() int  { return m.inputs }
func (m *processModel) OutputTensors() int { return m.outputs }

func (m *processModel) Run(ctx context.Context) (types.RunStats, error) {
	if err := ctx.Err(); err != nil {
		return types.RunStats{}, err
	}
	var resp ipc.RunResponse
	if err := m.roundTrip(&ipc.Request{Op: ipc.OpRun}, &resp); err != nil {
		return types.RunStats{}, err
	}
	if resp.Error != "" {
		return types.RunStats{}, fmt.Errorf("runner: %s", resp.Error)
	}
	return resp.Stats, nil
}

// Close ends the runner session and waits for the process to exit.
func (m *processModel) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	defer m.cancel()

	_ = m.stdin.Close()
	// All reads from the stderr pipe must finish before Wait.
	tail := m.stderr.String()
	err := m.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			m.logger.Warn("runner exited with error", map[string]any{
				"exit_code": exitErr.ExitCode(),
				"stderr":    tail,
			})
			return fmt.Errorf("runner exited with code %d", exitErr.ExitCode())
		}
		return fmt.Errorf("runner wait failed: %w", err)
	}
	return nil
}

func (m *processModel) roundTrip(req *ipc.Request, resp any) error {
	if err := ipc.WriteMessage(m.stdin, req); err != nil {
		return m.failed(fmt.Sprintf("failed to send %s request", req.Op), err)
	}
	if err := ipc.ReadMessage(m.stdout, resp); err != nil {
		return m.failed(fmt.Sprintf("failed to read %s response", req.Op), err)
	}
	return nil
}

// failed stops the runner and wraps err with whatever it wrote to stderr.
func (m *processModel) failed(msg string, err error) error {
	m.cancel()
	if tail := m.stderr.String(); tail != "" {
		return fmt.Errorf("%s: %w (stderr: %s)", msg, err, tail)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// maxStderr caps how much runner stderr is kept.
const maxStderr = 64 * 1024

// stderrCapture drains a runner's stderr on its own goroutine. The buffer is
// only read after the stream has ended.
type stderrCapture struct {
	buf  bytes.Buffer
	done chan struct{}
}

func captureStderr(r io.Reader) *stderrCapture {
	c := &stderrCapture{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		_, _ = io.Copy(&c.buf, io.LimitReader(r, maxStderr))
		_, _ = io.Copy(io.Discard, r)
	}()
	return c
}

// String waits for stderr to close and returns it trimmed.
func (c *stderrCapture) String() string {
	<-c.done
	return strings.TrimSpace(c.buf.String())
}
