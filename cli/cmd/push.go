package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/modelpush/cli/config"
	"github.com/pithecene-io/modelpush/cli/reader"
	"github.com/pithecene-io/modelpush/cli/render"
	"github.com/pithecene-io/modelpush/cli/tui"
	"github.com/pithecene-io/modelpush/host"
	"github.com/pithecene-io/modelpush/log"
	"github.com/pithecene-io/modelpush/types"
)

// Exit codes for push and device.
const (
	exitSuccess     = 0
	exitUsage       = 1
	exitTransport   = 2
	exitRunRejected = 3
)

// PushResult is the response for the push command.
type PushResult struct {
	Addr           string `json:"addr"`
	Model          string `json:"model"`
	SizeBytes      int    `json:"size_bytes"`
	ChunkCount     uint32 `json:"chunk_count"`
	Retransmits    int    `json:"retransmits"`
	ArtifactRegion string `json:"artifact_region,omitempty"`
	ScratchRegion  string `json:"scratch_region,omitempty"`
	DurationMs     int64  `json:"duration_ms"`

	Ran              bool   `json:"ran"`
	Outcome          string `json:"outcome,omitempty"`
	CycleCount       uint32 `json:"cycle_count,omitempty"`
	StatusCode       uint32 `json:"status_code,omitempty"`
	LayerCount       uint32 `json:"layer_count,omitempty"`
	ScratchBytesUsed uint32 `json:"scratch_bytes_used,omitempty"`
}

// PushCommand returns the push command.
// It uploads a model file to a device and optionally runs it.
func PushCommand() *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Upload a model to a device",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{Name: "addr", Usage: "Device address (default: " + DefaultListenAddr + ")"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model file to upload", Required: true},
			&cli.StringFlag{Name: "artifact-region", Usage: "Artifact region: fast or general"},
			&cli.StringFlag{Name: "scratch-region", Usage: "Scratch region: fast or general (default: mirrors artifact region)"},
			&cli.IntFlag{Name: "chunk-size", Usage: "Chunk payload size in bytes"},
			&cli.DurationFlag{Name: "ack-timeout", Usage: "Wait per chunk acknowledgment"},
			&cli.IntFlag{Name: "retries", Usage: "Retransmissions per chunk before giving up"},
			&cli.BoolFlag{Name: "run", Usage: "Run the model after upload and report statistics"},
			&cli.DurationFlag{Name: "run-timeout", Usage: "Wait for the run response"},
			FormatFlag,
			NoColorFlag,
			TUIFlag,
			LogLevelFlag,
		},
		Action: pushAction,
	}
}

// pushSettings is the merged result of config and flags.
type pushSettings struct {
	addr      string
	model     string
	selection *config.DeviceConfig
	opts      host.Options
	run       bool
	logLevel  string
}

func resolvePushSettings(c *cli.Context) (*pushSettings, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	h := cfg.Host

	s := &pushSettings{
		addr:     stringOr(c, "addr", h.Addr),
		model:    c.String("model"),
		run:      c.Bool("run"),
		logLevel: stringOr(c, "log-level", cfg.Log.Level),
		opts: host.Options{
			ChunkSize:  h.ChunkSize,
			AckTimeout: h.AckTimeout.Duration,
			Retries:    host.DefaultRetries,
			RunTimeout: h.RunTimeout.Duration,
		},
	}
	if s.addr == "" {
		s.addr = DefaultListenAddr
	}
	if h.Retries != nil {
		s.opts.Retries = *h.Retries
	}
	if c.IsSet("chunk-size") {
		s.opts.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("ack-timeout") {
		s.opts.AckTimeout = c.Duration("ack-timeout")
	}
	if c.IsSet("retries") {
		s.opts.Retries = c.Int("retries")
	}
	if c.IsSet("run-timeout") {
		s.opts.RunTimeout = c.Duration("run-timeout")
	}
	if s.opts.ChunkSize < 0 || s.opts.Retries < 0 {
		return nil, errors.New("chunk-size and retries must not be negative")
	}

	if c.IsSet("artifact-region") || c.IsSet("scratch-region") {
		s.selection = &config.DeviceConfig{
			ArtifactRegion: c.String("artifact-region"),
			ScratchRegion:  c.String("scratch-region"),
		}
		if s.selection.ArtifactRegion == "" {
			return nil, errors.New("--scratch-region requires --artifact-region")
		}
	}
	return s, nil
}

func pushAction(c *cli.Context) error {
	s, err := resolvePushSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(s.model)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read model: %v", err), exitUsage)
	}
	if len(data) == 0 {
		return cli.Exit("model file is empty", exitUsage)
	}

	logger := log.NewLogger("host").Component("push")
	level := s.logLevel
	if level == "" {
		level = "warn"
	}
	if err := logger.SetLevel(level); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer func() { _ = logger.Sync() }()
	s.opts.Logger = logger

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := host.Dial(ctx, s.addr, s.opts)
	if err != nil {
		return cli.Exit(err.Error(), exitTransport)
	}
	defer func() { _ = client.Close() }()

	result := PushResult{
		Addr:      s.addr,
		Model:     s.model,
		SizeBytes: len(data),
	}

	if s.selection != nil {
		sel, err := s.selection.Selection()
		if err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
		if err := client.Configure(ctx, sel); err != nil {
			return cli.Exit(err.Error(), exitTransport)
		}
		result.ArtifactRegion = sel.Artifact.String()
		result.ScratchRegion = sel.Scratch.String()
	}

	start := time.Now()
	var last host.Progress
	if err := upload(ctx, c.Bool("tui"), filepath.Base(s.model), client, data, &last); err != nil {
		return cli.Exit(fmt.Sprintf("upload failed: %v", err), exitTransport)
	}
	result.ChunkCount = last.ChunkCount
	result.Retransmits = last.Retransmits

	if s.run {
		if code, err := runAfterPush(ctx, client, &result); err != nil {
			return cli.Exit(err.Error(), code)
		}
	}
	result.DurationMs = time.Since(start).Milliseconds()

	if c.Bool("tui") && s.run {
		row := reader.NewReportRow(types.RunReport{
			RunID:          uuid.NewString(),
			DeviceID:       s.addr,
			Outcome:        types.RunOutcome(result.Outcome),
			ArtifactBytes:  result.SizeBytes,
			ArtifactRegion: result.ArtifactRegion,
			ScratchRegion:  result.ScratchRegion,
			Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
			DurationMs:     result.DurationMs,
			Stats: types.RunStats{
				CycleCount:       result.CycleCount,
				StatusCode:       result.StatusCode,
				LayerCount:       result.LayerCount,
				ScratchBytesUsed: result.ScratchBytesUsed,
			},
		})
		return r.RenderTUI("inspect_run", &row)
	}
	return r.Render(result)
}

// upload sends data and records the last progress in last. With useTUI it
// shows a progress bar; otherwise progress goes to stderr when it is a TTY.
func upload(ctx context.Context, useTUI bool, name string, client *host.Client, data []byte, last *host.Progress) error {
	if useTUI {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		return tui.RunUpload(name, cancel, func(onProgress func(host.Progress)) error {
			return client.Upload(ctx, data, func(p host.Progress) {
				*last = p
				onProgress(p)
			})
		})
	}

	tty := isStderrTTY()
	err := client.Upload(ctx, data, func(p host.Progress) {
		*last = p
		if tty {
			fmt.Fprintf(os.Stderr, "\r%s: chunk %d/%d (%.0f%%)", name, p.Chunk+1, p.ChunkCount, p.Fraction()*100)
		}
	})
	if tty {
		fmt.Fprintln(os.Stderr)
	}
	return err
}

// runAfterPush requests a run and fills the stats fields of result.
// It returns the exit code to use on error.
func runAfterPush(ctx context.Context, client *host.Client, result *PushResult) (int, error) {
	result.Ran = true
	stats, err := client.Run(ctx)
	switch {
	case errors.Is(err, host.ErrRunRejected):
		result.Outcome = string(types.RunOutcomePrepareFailed)
		return exitRunRejected, errors.New("device rejected the run request")
	case err != nil:
		return exitTransport, fmt.Errorf("run failed: %w", err)
	}

	result.Outcome = string(types.RunOutcomeSuccess)
	result.CycleCount = stats.CycleCount
	result.StatusCode = stats.StatusCode
	result.LayerCount = stats.LayerCount
	result.ScratchBytesUsed = stats.ScratchBytesUsed
	return exitSuccess, nil
}
