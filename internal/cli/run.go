package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/eventsys/internal/app"
	"github.com/dshills/eventsys/internal/config"
	"github.com/dshills/eventsys/internal/plugin/lua"
)

// NewRunCmd creates the "run" subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>...",
		Short: "Run Lua scripts",
		Long: "Run executes each script in order in one Lua state. With --watch it\n" +
			"keeps running, firing host.changed and re-running a script whenever\n" +
			"it is saved, until interrupted.",
		Args: cobra.MinimumNArgs(1),
		RunE: runRun,
	}

	cmd.Flags().BoolP("watch", "w", false, "Re-run scripts when they change")
	cmd.Flags().String("report", "", "Dispatch failure report format: text | log")
	cmd.Flags().Bool("metrics", false, "Log event metric totals on exit")
	cmd.Flags().Bool("unsafe", false, "Open the io, os and debug libraries")

	return cmd
}

func runRun(cmd *cobra.Command, scripts []string) error {
	cfg, err := runConfig(cmd)
	if err != nil {
		return err
	}

	for _, path := range scripts {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return exitError(exitFileNotFound, "script not found: %s", path)
			}
			return exitError(exitFileNotFound, "%v", err)
		}
	}

	logger := newLogger(cmd, cfg)
	a, err := app.New(cfg, logger, app.WithOutput(cmd.ErrOrStderr()))
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runError(a.Run(ctx, scripts...))
}

// runConfig loads the configuration and applies the run flags to it.
func runConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("watch") {
		cfg.Watch.Enabled, _ = flags.GetBool("watch")
	}
	if flags.Changed("report") {
		cfg.Report.Format, _ = flags.GetString("report")
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled, _ = flags.GetBool("metrics")
	}
	if flags.Changed("unsafe") {
		cfg.Lua.Unsafe, _ = flags.GetBool("unsafe")
	}

	if err := cfg.Validate(); err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}
	return cfg, nil
}

// runError maps a Run failure to an exit code.
func runError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}

	// Failures loading or running a script wrap a *lua.ScriptError or come
	// back as an *app.OperationError naming the script.
	var serr *lua.ScriptError
	var opErr *app.OperationError
	if errors.As(err, &serr) || errors.As(err, &opErr) {
		return exitError(exitScript, "%v", err)
	}
	return exitError(exitRuntime, "%v", err)
}
