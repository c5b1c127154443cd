package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldcheck/internal/queue"
)

// PendingOptions holds flags for the pending command.
type PendingOptions struct {
	*RootOptions
	List bool
}

// pendingOutput is the JSON payload of pending.
type pendingOutput struct {
	Count      int           `json:"count"`
	Unreadable int           `json:"unreadable,omitempty"`
	Entries    []queue.Entry `json:"entries,omitempty"`
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show how many checks are waiting to be sent",
		Long: `Show the number of queued checks, and optionally list them oldest first.

Example:
  fieldcheck pending
  fieldcheck pending --list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.List, "list", "l", false, "list queued checks")

	return cmd
}

func runPending(opts *PendingOptions, cmd *cobra.Command) error {
	a, f, err := openApp(cmd, opts.RootOptions, offlineOption(true)...)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)

	// reading the queue first sets aside entries that no longer decode
	entries, err := a.Queue.DequeueAll(ctx)
	if err != nil {
		return f.Fail(err, nil)
	}
	n, err := a.Queue.Count(ctx)
	if err != nil {
		return f.Fail(err, nil)
	}
	unreadable, err := a.Queue.Unreadable(ctx)
	if err != nil {
		return f.Fail(err, nil)
	}
	out := pendingOutput{Count: n, Unreadable: unreadable}
	if opts.List {
		out.Entries = entries
	}

	return f.Result(out, formatPending(out))
}

func formatPending(out pendingOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d check(s) pending\n", out.Count)
	if out.Unreadable > 0 {
		fmt.Fprintf(&b, "%d unreadable check(s) set aside\n", out.Unreadable)
	}
	for _, e := range out.Entries {
		r := e.Request
		fmt.Fprintf(&b, "  %s  %-10s %-12s %s", e.EntryID, r.AssetID, r.CheckStatus, r.CheckDate)
		if e.AttemptCount > 0 {
			fmt.Fprintf(&b, "  attempts=%d last_error=%q", e.AttemptCount, e.LastError)
		}
		b.WriteString("\n")
	}
	return b.String()
}
