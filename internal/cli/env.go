package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldcheck/internal/app"
	"github.com/roach88/fieldcheck/internal/config"
	"github.com/roach88/fieldcheck/internal/logging"
)

// newFormatter builds the formatter for cmd's output streams.
func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openApp loads configuration, installs the logger and builds the app.
// Errors are already reported through the returned formatter.
func openApp(cmd *cobra.Command, opts *RootOptions, extra ...app.Option) (*app.App, *OutputFormatter, error) {
	f := newFormatter(cmd, opts)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return nil, f, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.DatabasePath = opts.Database
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format, opts.Verbose)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return nil, f, WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	slog.SetDefault(logger)

	f.VerboseLog("Using database %s", cfg.DatabasePath)

	appOpts := append(append([]app.Option{}, opts.AppOptions...), extra...)
	a, err := app.New(commandContext(cmd), cfg, logger, appOpts...)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return nil, f, WrapExitError(ExitCommandError, "failed to start", err)
	}
	return a, f, nil
}

// closeApp closes a, logging any error.
func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// commandContext returns the command's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// offlineOption turns the --offline flag into an app option.
func offlineOption(offline bool) []app.Option {
	if offline {
		return []app.Option{app.Offline()}
	}
	return nil
}
