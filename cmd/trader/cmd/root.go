package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/config"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "An autonomous equity trading engine for Alpaca",
	Long: `Trader is the execution core of an autonomous equity trading system.

It consumes trade proposals, validates them against technical strategies,
and manages bracket orders at Alpaca with position tracking, cooldowns
and crash-safe state persistence.`,
}

var cfgPath string

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "", "path to config file (YAML or JSON)")
}

// loadConfig returns the file config when -f is given, defaults otherwise.
func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgPath)
}
