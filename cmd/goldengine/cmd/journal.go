package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"goldengine/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the audit journal",
	Long: `Query trade, equity, and gateway-decision records from the SQLite journal.

Subcommands:
  trade     - Show one trade by ticket
  day       - List trades closed on a day
  decisions - List gateway decisions on a day

Examples:
  goldengine journal trade 01JXYZ...
  goldengine journal day 2026-03-02
  goldengine journal decisions 2026-03-02`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <ticket>",
	Short: "Show one trade by ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDecisionsCmd = &cobra.Command{
	Use:   "decisions <YYYY-MM-DD>",
	Short: "List gateway decisions on a day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDecisions,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalDecisionsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./journal.db", "path to SQLite journal")
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	rec, err := j.Trade(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Ticket:    %s\n", rec.Ticket)
	fmt.Printf("Symbol:    %s %s x %.2f\n", rec.Symbol, rec.Direction, rec.Size)
	fmt.Printf("Entry:     %.2f @ %s\n", rec.EntryPrice, rec.EntryTime.Format(time.RFC3339))
	fmt.Printf("Exit:      %.2f @ %s (%s)\n", rec.ExitPrice, rec.ExitTime.Format(time.RFC3339), rec.Reason)
	fmt.Printf("P&L:       %+.2f\n", rec.PnL)
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	start, end, err := dayBounds(args[0])
	if err != nil {
		return err
	}

	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	trades, err := j.TradesClosedBetween(start, end)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Printf("No trades closed on %s\n", args[0])
		return nil
	}

	var total float64
	for _, rec := range trades {
		fmt.Printf("%s  %-8s %-5s %6.2f  %8.2f -> %8.2f  %+10.2f  %s\n",
			rec.ExitTime.Format("15:04:05"), rec.Symbol, rec.Direction, rec.Size,
			rec.EntryPrice, rec.ExitPrice, rec.PnL, rec.Reason)
		total += rec.PnL
	}
	fmt.Printf("\n%d trades, net %+.2f\n", len(trades), total)
	return nil
}

func runJournalDecisions(cmd *cobra.Command, args []string) error {
	start, end, err := dayBounds(args[0])
	if err != nil {
		return err
	}

	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	decisions, err := j.DecisionsBetween(start, end)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Printf("No gateway decisions on %s\n", args[0])
		return nil
	}

	for _, d := range decisions {
		line := fmt.Sprintf("%s  %-8s %-16s", d.Time.Format("15:04:05"), d.Symbol, d.Verdict)
		if len(d.Failed) > 0 {
			line += fmt.Sprintf("  failed: %v", d.Failed)
		}
		fmt.Println(line)
	}
	return nil
}

func dayBounds(day string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad date %q, want YYYY-MM-DD", day)
	}
	return start, start.Add(24 * time.Hour), nil
}
