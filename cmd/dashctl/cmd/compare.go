package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cmpAccountA  string
	cmpAccountB  string
	cmpMagic     string
	cmpFrom      string
	cmpTo        string
	cmpTolerance float64
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Match equivalent trades across two accounts",
	Long: `Pair closed positions of one magic across two accounts by entry-time
proximity and show matched and unmatched trades in chronological order.

Example:
  dashctl compare --account1 1203952 --account2 7301114 --magic 101 \
      --from 2026-02-01 --to 2026-03-01 --tolerance 1`,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&cmpAccountA, "account1", "", "first account (required)")
	compareCmd.Flags().StringVar(&cmpAccountB, "account2", "", "second account (required)")
	compareCmd.Flags().StringVar(&cmpMagic, "magic", "", "magic number (required)")
	compareCmd.Flags().StringVar(&cmpFrom, "from", "", "window start (YYYY-MM-DD, required)")
	compareCmd.Flags().StringVar(&cmpTo, "to", "", "window end (YYYY-MM-DD, required)")
	compareCmd.Flags().Float64Var(&cmpTolerance, "tolerance", 1, "entry-time tolerance in seconds")
	_ = compareCmd.MarkFlagRequired("account1")
	_ = compareCmd.MarkFlagRequired("account2")
	_ = compareCmd.MarkFlagRequired("magic")
	_ = compareCmd.MarkFlagRequired("from")
	_ = compareCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	query, err := windowQuery(cmpAccountA, cmpFrom, cmpTo)
	if err != nil {
		return err
	}
	query.Del("account_id")
	query.Set("account1", cmpAccountA)
	query.Set("account2", cmpAccountB)
	query.Set("magic", cmpMagic)
	query.Set("tolerance_seconds", fmt.Sprintf("%g", cmpTolerance))

	type side struct {
		PositionID int64   `json:"position_id"`
		EntryTime  string  `json:"entry_time"`
		Profit     float64 `json:"profit"`
	}
	var result struct {
		Pairs []struct {
			Kind        string  `json:"kind"`
			A           *side   `json:"account1"`
			B           *side   `json:"account2"`
			TimeDiffSec float64 `json:"time_diff_sec"`
		} `json:"pairs"`
		Summary struct {
			Matched      int     `json:"matched"`
			AccountAOnly int     `json:"account1_only"`
			AccountBOnly int     `json:"account2_only"`
			ProfitA      float64 `json:"profit_account1"`
			ProfitB      float64 `json:"profit_account2"`
		} `json:"summary"`
	}
	if err := getJSON("/api/compare", query, &result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range result.Pairs {
		switch p.Kind {
		case "matched":
			fmt.Fprintf(out, "%-20s  %12d %10.2f  |  %12d %10.2f  (dt %.3fs)\n",
				p.A.EntryTime, p.A.PositionID, p.A.Profit, p.B.PositionID, p.B.Profit, p.TimeDiffSec)
		case "account1_only":
			fmt.Fprintf(out, "%-20s  %12d %10.2f  |  %12s %10s\n",
				p.A.EntryTime, p.A.PositionID, p.A.Profit, "-", "-")
		case "account2_only":
			fmt.Fprintf(out, "%-20s  %12s %10s  |  %12d %10.2f\n",
				p.B.EntryTime, "-", "-", p.B.PositionID, p.B.Profit)
		}
	}
	fmt.Fprintf(out, "\nmatched %d, only-%s %d, only-%s %d, profit %.2f vs %.2f\n",
		result.Summary.Matched,
		cmpAccountA, result.Summary.AccountAOnly,
		cmpAccountB, result.Summary.AccountBOnly,
		result.Summary.ProfitA, result.Summary.ProfitB)
	return nil
}
