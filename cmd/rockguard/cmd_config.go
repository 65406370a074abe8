package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rockguard/internal/config"
)

var configFlags struct {
	out   string
	force bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or generate configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to a file",
	Long: `Writes the configuration loaded from --config (or the built-in defaults) to
--out. The format follows the extension: .json writes JSON, anything else YAML.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	f := configInitCmd.Flags()
	f.StringVarP(&configFlags.out, "out", "o", "rockguard.yaml", "Destination file")
	f.BoolVar(&configFlags.force, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !configFlags.force {
		if _, err := os.Stat(configFlags.out); err == nil {
			return fmt.Errorf("%s exists; pass --force to overwrite", configFlags.out)
		}
	}
	if err := config.Save(configFlags.out, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), configFlags.out)
	return nil
}
