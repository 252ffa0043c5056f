// Package main provides the modelpush CLI entrypoint.
//
// Usage:
//
//	modelpush <command> [subcommand] [options]
//
// Exit codes for `push`:
//   - 0: success
//   - 1: usage or configuration error
//   - 2: transport failure (no acknowledgment, connection lost)
//   - 3: run rejected by the device
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/modelpush/cli/cmd"
	"github.com/pithecene-io/modelpush/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "modelpush",
		Usage:          "Chunked model upload over a byte transport",
		Version:        fmt.Sprintf("%s (wire v%d, commit: %s)", types.Version, types.WireVersion, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.DeviceCommand(),
			cmd.PushCommand(),
			cmd.StatsCommand(),
			cmd.VersionCommand(commit),
			cmd.RunnerCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	msg, code := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus returns the message to print and the process exit code for err.
func exitStatus(err error) (string, int) {
	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return msg, code
	}

	return fmt.Sprintf("Error: %v", err), 1
}
