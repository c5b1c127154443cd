package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/checkin"
	"github.com/roach88/fieldcheck/internal/session"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Status  string
	Remark  string
	Date    string
	Offline bool
}

// checkOutput is the JSON payload of a check.
type checkOutput struct {
	Asset   asset.ResolvedAsset `json:"asset"`
	Receipt checkin.Receipt     `json:"receipt"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <payload>",
		Short: "Record a condition check for a scanned asset",
		Long: `Resolve the payload, then submit a condition check for the asset.

When the remote service is reachable the check is sent immediately. A check
the service rejects is reported and not kept. Any other failure, or working
offline, saves the check in the local queue for the next drain.

Valid statuses: available, in_use, under_repair, damaged, lost

Example:
  fieldcheck check AST-1 --status available
  fieldcheck check AST-1 --status damaged --remark "cracked housing" --date 2024-01-15`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Status, "status", "s", "", "check status (required)")
	cmd.Flags().StringVarP(&opts.Remark, "remark", "r", "", "free-text remark")
	cmd.Flags().StringVar(&opts.Date, "date", "", "check date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "queue without contacting the remote service")
	_ = cmd.MarkFlagRequired("status")

	return cmd
}

func runCheck(opts *CheckOptions, payload string, cmd *cobra.Command) error {
	date := asset.DateOf(time.Now())
	if opts.Date != "" {
		d, err := asset.ParseCheckDate(opts.Date)
		if err != nil {
			f := newFormatter(cmd, opts.RootOptions)
			_ = f.Error(ErrCodeInvalidInput, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid --date", err)
		}
		date = d
	}

	a, f, err := openApp(cmd, opts.RootOptions, offlineOption(opts.Offline)...)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	s := a.NewSession()

	snap, err := s.Scan(ctx, payload)
	if err != nil {
		return f.Fail(err, map[string]bool{"connected": a.Monitor.IsConnected()})
	}
	resolved := snap.Resolution.Asset
	f.VerboseLog("Resolved %s from %s", resolved.AssetID, snap.Resolution.Source)

	snap, err = s.Submit(ctx, asset.ParseCheckStatus(opts.Status), opts.Remark, date)
	if err != nil {
		return f.Fail(err, map[string]string{"asset_id": resolved.AssetID})
	}

	return f.Result(checkOutput{Asset: resolved, Receipt: *snap.Receipt}, formatReceipt(resolved, snap))
}

func formatReceipt(a asset.ResolvedAsset, snap session.Snapshot) string {
	r := snap.Receipt
	switch r.Disposition {
	case checkin.DispositionQueued:
		msg := fmt.Sprintf("✓ Check for %s saved for later (entry %s)\n", a.AssetID, r.Entry.EntryID)
		if r.Cause != "" {
			msg += fmt.Sprintf("  reason: %s\n", r.Cause)
		}
		return msg
	default:
		return fmt.Sprintf("✓ Check for %s sent\n", a.AssetID)
	}
}
