package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/TxnLab/tokenfarm/internal/lib/misc"
)

func GetDaemonCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "daemon",
		Aliases: []string{"d"},
		Usage:   "Run as a daemon, issuing rewards every epoch and serving metrics",
		Before:  checkInitialized, // make sure the farm is already deployed
		Action:  runAsDaemon,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "epoch",
				Usage: "Override the epoch length (in minutes) from the node config",
			},
			&cli.StringFlag{
				Name:    "metrics",
				Usage:   "Override the metrics listen address from the node config",
				Sources: cli.EnvVars("FARM_METRICS_ADDR"),
			},
		},
	}
}

func runAsDaemon(ctx context.Context, command *cli.Command) error {
	cfg, err := LoadNodeConfig()
	if err != nil {
		return cli.Exit(fmt.Errorf("unable to load node config (run init first): %w", err), 1)
	}
	overrides := daemonOverrides{
		epochMinutes: int(command.Int("epoch")),
		metricsAddr:  command.String("metrics"),
	}
	overrides.apply(cfg)

	// Create channel used by the signal handler to notify the main goroutine when to stop.
	errc := make(chan error, 1)

	// Setup interrupt handler. This optional step configures the process so
	// that SIGINT and SIGTERM signals cause the services to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(ctx)
	daemonErr := make(chan error, 1)
	go func() {
		daemonErr <- newDaemon(cfg, overrides).run(ctx)
	}()

	select {
	case err := <-errc:
		misc.Infof(App.logger, "exiting (%v)", err) // termination signal
	case err := <-daemonErr:
		// a task failed on its own - nothing to wait on
		cancel()
		return err
	}

	// Send cancellation signal to the goroutines.
	cancel()
	misc.Infof(App.logger, "waiting on background tasks..")
	err = <-daemonErr

	misc.Infof(App.logger, "exited")
	return err
}
