package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/modelpush/adapter"
	"github.com/pithecene-io/modelpush/cli/config"
	"github.com/pithecene-io/modelpush/device"
	"github.com/pithecene-io/modelpush/lode"
	"github.com/pithecene-io/modelpush/log"
	"github.com/pithecene-io/modelpush/metrics"
	"github.com/pithecene-io/modelpush/transport"
)

// DefaultListenAddr is the device listen address when none is configured.
const DefaultListenAddr = "127.0.0.1:7420"

// DeviceCommand returns the device command.
// It serves the upload protocol until interrupted.
func DeviceCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{Name: "id", Usage: "Device ID used in logs, reports and manifests"},
		&cli.StringFlag{Name: "listen", Usage: "TCP listen address (default: " + DefaultListenAddr + ")"},
		&cli.StringFlag{Name: "artifact-region", Usage: "Initial artifact region: fast or general"},
		&cli.StringFlag{Name: "scratch-region", Usage: "Initial scratch region: fast or general"},
		&cli.StringFlag{Name: "executor", Usage: "Executor: sim or process"},
		&cli.StringFlag{Name: "executor-path", Usage: "Runner binary for the process executor"},
		&cli.DurationFlag{Name: "run-timeout", Usage: "Bound on one prepare and run"},
		&cli.BoolFlag{Name: "no-heartbeat", Usage: "Do not send HELLO on connect"},
		&cli.StringFlag{Name: "adapter", Usage: "Run report adapter: webhook or redis"},
		&cli.StringFlag{Name: "adapter-url", Usage: "Adapter endpoint URL"},
		&cli.StringFlag{Name: "adapter-channel", Usage: "Redis channel (supports {device})"},
		LogLevelFlag,
	}
	flags = append(flags, StorageFlags()...)

	return &cli.Command{
		Name:   "device",
		Usage:  "Serve the chunked upload protocol as a device",
		Flags:  flags,
		Action: deviceAction,
	}
}

// deviceSettings is the merged result of config and flags.
type deviceSettings struct {
	cfg       *config.Config
	listen    string
	heartbeat bool
}

func resolveDeviceSettings(c *cli.Context) (*deviceSettings, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	d := &cfg.Device
	d.ID = stringOr(c, "id", d.ID)
	d.Listen = stringOr(c, "listen", d.Listen)
	d.ArtifactRegion = stringOr(c, "artifact-region", d.ArtifactRegion)
	d.ScratchRegion = stringOr(c, "scratch-region", d.ScratchRegion)
	if c.IsSet("run-timeout") {
		d.RunTimeout = config.Duration{Duration: c.Duration("run-timeout")}
	}
	if d.ID == "" {
		if host, err := os.Hostname(); err == nil {
			d.ID = host
		} else {
			d.ID = "device"
		}
	}

	cfg.Executor.Type = stringOr(c, "executor", cfg.Executor.Type)
	cfg.Executor.Path = stringOr(c, "executor-path", cfg.Executor.Path)

	cfg.Adapter.Type = stringOr(c, "adapter", cfg.Adapter.Type)
	cfg.Adapter.URL = stringOr(c, "adapter-url", cfg.Adapter.URL)
	cfg.Adapter.Channel = stringOr(c, "adapter-channel", cfg.Adapter.Channel)

	cfg.Storage = storageConfig(c, cfg.Storage)
	cfg.Log.Level = stringOr(c, "log-level", cfg.Log.Level)

	s := &deviceSettings{cfg: cfg, listen: d.Listen, heartbeat: true}
	if s.listen == "" {
		s.listen = DefaultListenAddr
	}
	if d.Heartbeat != nil {
		s.heartbeat = *d.Heartbeat
	}
	if c.Bool("no-heartbeat") {
		s.heartbeat = false
	}
	return s, nil
}

func deviceAction(c *cli.Context) error {
	s, err := resolveDeviceSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	cfg := s.cfg

	logger := log.NewLogger(cfg.Device.ID)
	if cfg.Log.Level != "" {
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
	}
	defer func() { _ = logger.Sync() }()

	selection, err := cfg.Device.Selection()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	exec, err := buildExecutor(cfg.Executor, logger)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	archive, err := buildArchive(ctx, cfg.Storage)
	switch {
	case errors.Is(err, errNoStorage):
		archive = nil
	case err != nil:
		return cli.Exit(fmt.Sprintf("failed to open storage: %v", err), exitUsage)
	}

	storageBackend := "none"
	if archive != nil {
		storageBackend = cfg.Storage.Backend
		if storageBackend == "" {
			storageBackend = "fs"
		}
	}
	collector := metrics.NewCollector(cfg.Device.ID, exec.Name(), storageBackend)

	adp, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create adapter: %v", err), exitUsage)
	}

	popts := publisherOptions{
		Archive:   archive,
		Adapter:   adp,
		Collector: collector,
		Logger:    logger,
	}
	if archive != nil {
		popts.Sink = lode.NewInstrumentedSink(archive, collector)
	}
	pub := newPublisher(popts)

	dev, err := device.New(device.Options{
		ID:         cfg.Device.ID,
		Layout:     cfg.Regions,
		Selection:  selection,
		Executor:   exec,
		RunTimeout: cfg.Device.RunTimeout.Duration,
		Logger:     logger,
		Metrics:    collector,
		OnRun:      pub.OnRun,
		OnUpload:   pub.OnUpload,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	pub.start(dev.Artifact)

	fields := map[string]any{
		"listen":          s.listen,
		"executor":        exec.Name(),
		"artifact_region": selection.Artifact.String(),
		"scratch_region":  selection.Scratch.String(),
		"storage":         storageBackend,
	}
	if archive != nil {
		fields["storage_location"] = archive.Location()
	}
	logger.Info("device starting", fields)

	ln := transport.NewListener(dev, transport.ServeOptions{Heartbeat: s.heartbeat}, logger)
	serveErr := ln.ListenAndServe(ctx, s.listen)

	// All connections have returned; no hook can fire past this point.
	pub.close()
	closeResources(logger, archive, adp)

	logger.Info("device stopped", map[string]any{"metrics": collector.Snapshot()})

	if serveErr != nil {
		return cli.Exit(serveErr.Error(), exitTransport)
	}
	return nil
}

func closeResources(logger *log.Logger, archive *lode.Archive, adp adapter.Adapter) {
	if archive != nil {
		if err := archive.Close(); err != nil {
			logger.Warn("failed to close archive", map[string]any{"error": err.Error()})
		}
	}
	if adp != nil {
		if err := adp.Close(); err != nil {
			logger.Warn("failed to close adapter", map[string]any{"error": err.Error()})
		}
	}
}
