package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	aggAccount string
	aggFrom    string
	aggTo      string
	aggMagic   string
	aggGroup   string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Period profit rollups per magic and per group",
	RunE:  runAggregate,
}

func init() {
	aggregateCmd.Flags().StringVar(&aggAccount, "account", "", "account identifier (required)")
	aggregateCmd.Flags().StringVar(&aggFrom, "from", "", "window start (YYYY-MM-DD, required)")
	aggregateCmd.Flags().StringVar(&aggTo, "to", "", "window end (YYYY-MM-DD, required)")
	aggregateCmd.Flags().StringVar(&aggMagic, "magic", "", "restrict to one magic")
	aggregateCmd.Flags().StringVar(&aggGroup, "group", "", "restrict to one group id")
	_ = aggregateCmd.MarkFlagRequired("account")
	_ = aggregateCmd.MarkFlagRequired("from")
	_ = aggregateCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(cmd *cobra.Command, args []string) error {
	query, err := windowQuery(aggAccount, aggFrom, aggTo)
	if err != nil {
		return err
	}
	if aggMagic != "" {
		query.Set("magic", aggMagic)
	}
	if aggGroup != "" {
		query.Set("group_id", aggGroup)
	}

	var agg struct {
		PeriodProfit  float64 `json:"period_profit"`
		PeriodPercent float64 `json:"period_percent"`
		ByMagic       []struct {
			Magic  int64   `json:"magic"`
			Label  string  `json:"label"`
			Profit float64 `json:"profit"`
		} `json:"by_magic"`
		ByGroup []struct {
			GroupID int64   `json:"group_id"`
			Name    string  `json:"name"`
			Profit  float64 `json:"profit"`
		} `json:"by_group"`
	}
	if err := getJSON("/api/aggregates", query, &agg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "period profit: %.2f (%+.2f%%)\n", agg.PeriodProfit, agg.PeriodPercent)
	if len(agg.ByMagic) > 0 {
		fmt.Fprintln(out, "by magic:")
		for _, row := range agg.ByMagic {
			fmt.Fprintf(out, "  %-30s %10.2f\n", row.Label, row.Profit)
		}
	}
	if len(agg.ByGroup) > 0 {
		fmt.Fprintln(out, "by group:")
		for _, row := range agg.ByGroup {
			fmt.Fprintf(out, "  %-30s %10.2f\n", row.Name, row.Profit)
		}
	}
	return nil
}
