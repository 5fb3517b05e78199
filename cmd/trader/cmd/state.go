package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/engine"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset the persisted engine state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a summary of the persisted state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := engine.NewStateStore(cfg.Engine.StatePath, nil)
		state, err := store.Load()
		if err != nil {
			return err
		}

		fmt.Printf("State file: %s\n", store.Path())
		fmt.Printf("  Version: %s\n", state.Version)
		if !state.Timestamp.IsZero() {
			fmt.Printf("  Saved: %s\n", state.Timestamp.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Printf("  Queued signals: %d\n", len(state.Queue))
		fmt.Printf("  Open positions: %d\n", len(state.Positions))
		fmt.Printf("  Closed history: %d\n", len(state.ClosedPositions))
		fmt.Printf("  Active cooldowns: %d\n", len(state.Cooldowns))
		for _, pos := range state.Positions {
			fmt.Printf("    %-6s %5d @ %.2f (%s, pnl %.2f)\n",
				pos.Ticker, pos.Quantity, pos.AvgEntryPrice, pos.StrategyName, pos.UnrealizedPnL)
		}
		return nil
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the persisted engine state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := engine.NewStateStore(cfg.Engine.StatePath, nil)
		if err := store.Reset(); err != nil {
			return fmt.Errorf("reset state: %w", err)
		}
		fmt.Printf("Removed %s\n", store.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)
}
