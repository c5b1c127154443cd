package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/resolve"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Offline bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <payload>",
		Short: "Resolve a scanned tag to an asset",
		Long: `Resolve a scanned payload to an asset record.

The payload is either a plain identifier or the JSON record some tags embed.
The embedded record, the local cache and the remote service are consulted in
that order; the remote service wins when it is reachable.

Example:
  fieldcheck resolve AST-1
  fieldcheck resolve '{"id":"AST-1","name":"Oscilloscope"}' --offline`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "do not contact the remote service")

	return cmd
}

func runResolve(opts *ResolveOptions, payload string, cmd *cobra.Command) error {
	a, f, err := openApp(cmd, opts.RootOptions, offlineOption(opts.Offline)...)
	if err != nil {
		return err
	}
	defer closeApp(a)

	res, err := a.Resolver.Resolve(commandContext(cmd), payload)
	if err != nil {
		return f.Fail(err, map[string]bool{"connected": a.Monitor.IsConnected()})
	}

	return f.Result(res, formatResolution(res))
}

// formatResolution renders a resolution for text output.
func formatResolution(res resolve.Resolution) string {
	a := res.Asset
	var b strings.Builder

	fmt.Fprintf(&b, "%s", a.AssetID)
	if a.AssetName != "" {
		fmt.Fprintf(&b, "  %s", a.AssetName)
	}
	fmt.Fprintf(&b, "  [%s]\n", res.Source)

	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "  %-10s %s\n", label+":", value)
		}
	}
	row("status", string(a.Status))
	row("serial", a.SerialNumber)
	row("barcode", a.Barcode)
	row("location", location(a))
	if a.Price != nil {
		row("price", fmt.Sprintf("%.2f", *a.Price))
	}
	row("received", a.ReceivedDate)
	row("faculty", a.FacultyName)
	return b.String()
}

func location(a asset.ResolvedAsset) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.DepartmentName, a.BuildingName, a.RoomNumber} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " / ")
}
