package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/KNICEX/strategy-agent/internal/repo"
	"github.com/KNICEX/strategy-agent/internal/service/journal"
	"github.com/KNICEX/strategy-agent/ioc"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [rule id]",
	Short: "Show closed trades, or the decisions of one strategy",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "max trades to show, 0 means all")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	db := ioc.InitDB()
	journalSvc := journal.NewService(repo.NewStrategyRepo(db), repo.NewDecisionRepo(db), repo.NewTradeRepo(db))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if len(args) == 1 {
		records, err := journalSvc.Decisions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "TIME\tACTION\tSYMBOL\tQTY\tPRICE\tSTATUS\tFILL\tFEE\tREASON")
		for _, r := range records {
			d := r.Decision
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				d.Timestamp.Format("2006-01-02 15:04:05"), d.Action, d.Symbol, d.Quantity, d.Price,
				r.Status, r.FillPrice, r.Fee, d.Reason)
		}
		return nil
	}

	trades, err := journalSvc.History(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "CLOSED\tRULE\tSYMBOL\tQTY\tENTRY\tEXIT\tFEES\tPNL")
	for _, t := range trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ClosedAt.Format("2006-01-02 15:04:05"), t.RuleID, t.Symbol, t.Quantity,
			t.EntryPrice, t.ExitPrice, t.Fees, t.RealizedPnL.StringFixed(2))
	}
	return nil
}
