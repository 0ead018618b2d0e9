// Package cli implements the eventsys command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/eventsys/internal/app"
	"github.com/dshills/eventsys/internal/config"
)

// Build information, set by main.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCmd creates the eventsys command tree.
func NewRootCmd(build Build) *cobra.Command {
	root := &cobra.Command{
		Use:   "eventsys",
		Short: "Run Lua scripts against a reentrant event system",
		Long: "eventsys runs Lua scripts that connect handlers to events, fire them\n" +
			"and wait on them from coroutines.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file (.toml, .yaml)")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	root.Version = build.Version
	root.SetVersionTemplate(fmt.Sprintf("eventsys version %s\n", build.Version))

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewVersionCmd(build))
	return root
}

// NewVersionCmd creates the "version" subcommand.
func NewVersionCmd(build Build) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "eventsys %s\n", build.Version)
			fmt.Fprintf(out, "Commit: %s\n", build.Commit)
			fmt.Fprintf(out, "Built: %s\n", build.Date)
		},
	}
}

// loadConfig loads the file named by --config, applies the environment and
// then --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		cfg.Log.Level = level
	}
	return cfg, nil
}

// newLogger builds the logger for cfg, writing to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) *app.Logger {
	lc := app.DefaultLoggerConfig()
	lc.Level = app.ParseLogLevel(cfg.Log.Level)
	lc.Output = cmd.ErrOrStderr()
	return app.NewLogger(lc)
}
