package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/strategies"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategies",
	Run: func(cmd *cobra.Command, args []string) {
		r := strategies.NewDefaultRegistry()
		fmt.Println("Available strategies:")
		for _, name := range r.List() {
			fmt.Printf("  %s\n", name)
		}
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
