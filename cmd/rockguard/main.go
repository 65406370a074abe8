// rockguard scores environmental sensor readings for rockfall risk.
//
// Usage:
//
//	rockguard train [--dataset=<csv>]
//	rockguard serve
//	rockguard predict --input=<reading.json>
//	rockguard config init [--out=rockguard.yaml]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "rockguard",
	Short: "Rockfall risk scoring from environmental sensor readings",
	Long: "rockguard trains a regression forest on historical sensor readings and\n" +
		"serves per-reading rockfall risk reports over HTTP and Kafka.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootFlags.configPath, "config", "c", "", "Path to YAML or JSON config (default: built-in defaults)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
