package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldcheck/internal/syncer"
)

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Send every queued check to the remote service",
		Long: `Attempt every queued check once, oldest first.

Accepted checks leave the queue. Failed checks stay queued and are retried by
the next drain. Draining requires connectivity.

Example:
  fieldcheck drain
  fieldcheck drain --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(rootOpts, cmd)
		},
	}

	return cmd
}

func runDrain(opts *RootOptions, cmd *cobra.Command) error {
	a, f, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if !a.Monitor.IsConnected() {
		_ = f.Error(ErrCodeOffline, "cannot drain while offline", nil)
		return NewExitError(ExitFailure, "cannot drain while offline")
	}

	res, err := a.Coordinator.Drain(commandContext(cmd))
	if errors.Is(err, syncer.ErrDrainInProgress) {
		_ = f.Error(ErrCodeBusy, err.Error(), nil)
		return WrapExitError(ExitFailure, "drain failed", err)
	}
	if err != nil {
		return f.Fail(err, nil)
	}

	remaining, err := a.Queue.Count(commandContext(cmd))
	if err != nil {
		return f.Fail(err, nil)
	}

	text := fmt.Sprintf("Drained: %d sent, %d failed, %d pending\n", res.SuccessCount, res.FailedCount, remaining)
	return f.Result(res, text)
}
