package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/modelpush/cli/reader"
	"github.com/pithecene-io/modelpush/cli/render"
	"github.com/pithecene-io/modelpush/lode"
)

// defaultListLimit caps `stats list` output.
const defaultListLimit = 20

// StatsCommand returns the stats command with subcommands.
// Stats reads archived run reports and manifests; it never contacts a device.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show archived run statistics (runs, list, inspect, manifest)",
		Subcommands: []*cli.Command{
			statsRunsCommand(),
			statsListCommand(),
			statsInspectCommand(),
			statsManifestCommand(),
		},
	}
}

// archiveFlags returns the flags every stats subcommand accepts.
func archiveFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{Name: "device", Aliases: []string{"d"}, Usage: "Device ID (default: device.id from config)"},
	}
	flags = append(flags, StorageFlags()...)
	flags = append(flags, ReadOnlyFlags()...)
	return append(flags, extra...)
}

// openReader builds a Reader over the configured archive and returns the
// device ID to query.
func openReader(c *cli.Context) (*reader.Reader, *lode.Archive, string, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, "", err
	}
	deviceID := stringOr(c, "device", cfg.Device.ID)
	if deviceID == "" {
		return nil, nil, "", errors.New("--device is required")
	}

	archive, err := buildArchive(c.Context, storageConfig(c, cfg.Storage))
	if err != nil {
		if errors.Is(err, errNoStorage) {
			return nil, nil, "", errors.New("--storage-path is required")
		}
		return nil, nil, "", fmt.Errorf("failed to open storage: %w", err)
	}
	return reader.New(archive), archive, deviceID, nil
}

// withReader runs fn against the configured archive, closing it afterward.
func withReader(c *cli.Context, fn func(ctx context.Context, r *render.Renderer, rd *reader.Reader, deviceID string) error) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	rd, archive, deviceID, err := openReader(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer func() { _ = archive.Close() }()

	return fn(c.Context, r, rd, deviceID)
}

func statsRunsCommand() *cli.Command {
	return &cli.Command{
		Name:   "runs",
		Usage:  "Summarize run outcomes for a device",
		Flags:  archiveFlags(),
		Action: statsRunsAction,
	}
}

func statsRunsAction(c *cli.Context) error {
	return withReader(c, func(ctx context.Context, r *render.Renderer, rd *reader.Reader, deviceID string) error {
		summary, err := rd.Summary(ctx, deviceID)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to read reports: %v", err), exitUsage)
		}
		if c.Bool("tui") {
			return r.RenderTUI("stats_runs", summary)
		}
		return r.Render(summary)
	})
}

func statsListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List recent run reports, latest first",
		Flags: archiveFlags(&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum reports to list (0 for all)",
			Value: defaultListLimit,
		}),
		Action: statsListAction,
	}
}

func statsListAction(c *cli.Context) error {
	// TUI not supported for list
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for stats list", exitUsage)
	}
	return withReader(c, func(ctx context.Context, r *render.Renderer, rd *reader.Reader, deviceID string) error {
		rows, err := rd.Reports(ctx, deviceID, c.Int("limit"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to read reports: %v", err), exitUsage)
		}
		return r.Render(rows)
	})
}

func statsInspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show one run report",
		ArgsUsage: "<run-id>",
		Flags:     archiveFlags(),
		Action:    statsInspectAction,
	}
}

func statsInspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("run-id argument is required", exitUsage)
	}
	runID := c.Args().First()

	return withReader(c, func(ctx context.Context, r *render.Renderer, rd *reader.Reader, deviceID string) error {
		row, err := rd.Report(ctx, deviceID, runID)
		if err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
		if c.Bool("tui") {
			return r.RenderTUI("inspect_run", row)
		}
		return r.Render(row)
	})
}

func statsManifestCommand() *cli.Command {
	return &cli.Command{
		Name:   "manifest",
		Usage:  "Show the latest artifact manifest for a device",
		Flags:  archiveFlags(),
		Action: statsManifestAction,
	}
}

func statsManifestAction(c *cli.Context) error {
	return withReader(c, func(ctx context.Context, r *render.Renderer, rd *reader.Reader, deviceID string) error {
		m, err := rd.LatestManifest(ctx, deviceID)
		if err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
		if c.Bool("tui") {
			return r.RenderTUI("inspect_manifest", m)
		}
		return r.Render(m)
	})
}
