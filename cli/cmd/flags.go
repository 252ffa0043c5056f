// Package cmd provides CLI commands for the modelpush binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/modelpush/cli/config"
	"github.com/pithecene-io/modelpush/lode"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode",
	}

	// ConfigFlag points at a modelpush.yaml.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to modelpush.yaml",
		EnvVars: []string{"MODELPUSH_CONFIG"},
	}

	// LogLevelFlag sets the log level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// StorageFlags returns the archive selection flags.
func StorageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "storage-dataset", Usage: "Lode dataset ID (default: \"modelpush\")"},
		&cli.StringFlag{Name: "storage-backend", Usage: "Storage backend: fs or s3"},
		&cli.StringFlag{Name: "storage-path", Usage: "Storage path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "storage-region", Usage: "AWS region for S3 backend"},
		&cli.StringFlag{Name: "storage-endpoint", Usage: "Custom S3 endpoint (MinIO, R2)"},
		&cli.BoolFlag{Name: "storage-s3-path-style", Usage: "Force S3 path-style addressing"},
	}
}

// loadConfig reads --config, or returns an empty Config when it is unset.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// storageConfig merges storage flags over cfg.
func storageConfig(c *cli.Context, cfg config.StorageConfig) config.StorageConfig {
	cfg.Dataset = stringOr(c, "storage-dataset", cfg.Dataset)
	cfg.Backend = stringOr(c, "storage-backend", cfg.Backend)
	cfg.Path = stringOr(c, "storage-path", cfg.Path)
	cfg.Region = stringOr(c, "storage-region", cfg.Region)
	cfg.Endpoint = stringOr(c, "storage-endpoint", cfg.Endpoint)
	if c.IsSet("storage-s3-path-style") {
		cfg.S3PathStyle = c.Bool("storage-s3-path-style")
	}
	if cfg.Dataset == "" {
		cfg.Dataset = lode.DefaultDataset
	}
	return cfg
}

// stringOr returns the flag value when set, otherwise fallback.
func stringOr(c *cli.Context, name, fallback string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return fallback
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
