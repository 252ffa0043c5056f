package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/modelpush/executor"
	"github.com/pithecene-io/modelpush/log"
)

// RunnerCommand returns the hidden runner command. It serves the process
// executor protocol on stdin/stdout with the built-in simulator, so
// `executor.type: process` can point back at the modelpush binary.
func RunnerCommand() *cli.Command {
	return &cli.Command{
		Name:   "runner",
		Usage:  "Serve the process executor protocol on stdin/stdout",
		Hidden: true,
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "cycles-per-byte",
				Usage: "Simulated cycles per artifact byte",
				Value: executor.DefaultCyclesPerByte,
			},
			LogLevelFlag,
		},
		Action: runnerAction,
	}
}

func runnerAction(c *cli.Context) error {
	logger := log.NewLogger("runner")
	if lvl := c.String("log-level"); lvl != "" {
		if err := logger.SetLevel(lvl); err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
	}
	defer func() { _ = logger.Sync() }()

	sim := executor.NewSimulator(logger)
	sim.CyclesPerByte = uint32(c.Uint("cycles-per-byte"))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := executor.ServeRunner(ctx, os.Stdin, os.Stdout, sim); err != nil && ctx.Err() == nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	return nil
}
