package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "goldengine",
	Short: "A simulated gold order-execution and risk-governance engine",
	Long: `Goldengine is a simulated order-execution and risk-governance engine
for gold trading research.

It provides:
  - A paper execution engine with realistic spread, slippage, and commission
  - Durable SQLite account/position state that survives restarts
  - Risk-based position sizing with a daily-loss/drawdown circuit breaker
  - An eight-check pre-trade gateway with full audit diagnostics
  - Continuous market-data polling with heartbeat staleness gating
  - Trade, equity, and decision journaling to SQLite or CSV`,
}

// Execute runs the root command tree.
func Execute() error {
	return rootCmd.Execute()
}
