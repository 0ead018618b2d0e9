package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the "config" subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}

	cmd.Flags().String("format", "toml", "Output format: toml | yaml")
	return cmd
}

func runConfigCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return exitError(exitConfig, "%v", err)
	}

	format, _ := cmd.Flags().GetString("format")

	var data []byte
	switch format {
	case "toml":
		data, err = cfg.MarshalTOML()
	case "yaml", "yml":
		data, err = yaml.Marshal(cfg.Map())
	default:
		return exitError(exitConfig, "unknown format %q (must be toml or yaml)", format)
	}
	if err != nil {
		return exitError(exitRuntime, "encode config: %v", err)
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}
