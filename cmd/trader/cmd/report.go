package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/journal"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize journaled trades",
	Long: `Summarize closed trades from the sqlite journal over a recent window.

Example:
  trader report -f config.yaml --days 7`,
	RunE: runReport,
}

var reportDays int

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "window size in days")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Journal.Type != "sqlite" {
		return fmt.Errorf("report requires the sqlite journal, got %q", cfg.Journal.Type)
	}

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -reportDays)

	summary, err := j.Summarize(start, end)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	fmt.Printf("Trades closed in the last %d days:\n", reportDays)
	fmt.Printf("  Trades: %d (%d wins, %d losses)\n", summary.Trades, summary.Wins, summary.Losses)
	fmt.Printf("  Net P&L: $%.2f\n", summary.NetPnL)
	fmt.Printf("  Gross profit: $%.2f, gross loss: $%.2f\n", summary.GrossProfit, summary.GrossLoss)
	if summary.ProfitFactor > 0 {
		fmt.Printf("  Profit factor: %.2f\n", summary.ProfitFactor)
	}

	trades, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return err
	}
	for _, t := range trades {
		fmt.Printf("  %s  %-6s %-5s %5d  %.2f -> %.2f  pnl %.2f  (%s)\n",
			t.ClosedAt.Format("01-02 15:04"),
			t.Ticker, t.Side, t.Quantity, t.EntryPrice, t.ExitPrice, t.RealizedPnL, t.Strategy)
	}
	return nil
}
