package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch connectivity and drain queued checks automatically",
		Long: `Keep fieldcheck running in the background.

The connectivity monitor is started (using the MQTT broker as a reachability
probe when one is configured). Queued checks are drained every time the device
comes back online and, if sync.schedule is set, on that cron schedule.

Example:
  fieldcheck run --config /etc/fieldcheck.yaml
  fieldcheck run --db /tmp/fieldcheck.db --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(rootOpts, cmd)
		},
	}

	return cmd
}

func runDaemon(opts *RootOptions, cmd *cobra.Command) error {
	a, _, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(a)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	slog.Info("fieldcheck running", "connected", a.Monitor.IsConnected())
	fmt.Fprintln(cmd.OutOrStdout(), "fieldcheck running. Queued checks drain when online.")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := a.Run(ctx); err != nil {
		return WrapExitError(ExitCommandError, "run failed", err)
	}

	slog.Info("fieldcheck stopped gracefully")
	return nil
}
