package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	syncAccount string
	syncFrom    string
	syncTo      string
	syncOpen    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull deal history (or open positions) from the terminal",
	Long: `Trigger an incremental sync on the server.

Without flags beyond --account the server uses the account's history
start date (or the last 30 days). With --open the live open-position
snapshot is refreshed instead of deal history.

Examples:
  dashctl sync --account 1203952
  dashctl sync --account 1203952 --from 2026-01-01 --to 2026-02-01
  dashctl sync --account 1203952 --open`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncAccount, "account", "", "account identifier (required)")
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "window start (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "window end (YYYY-MM-DD)")
	syncCmd.Flags().BoolVar(&syncOpen, "open", false, "sync open positions instead of history")
	_ = syncCmd.MarkFlagRequired("account")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncOpen {
		var result map[string]any
		if err := postJSON("/api/sync/open", map[string]any{"account_id": syncAccount}, &result); err != nil {
			return err
		}
		return printJSON(result)
	}

	body := map[string]any{"account_id": syncAccount}
	if syncFrom != "" {
		t, err := parseDay(syncFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		body["from"] = t.Format(time.RFC3339)
	}
	if syncTo != "" {
		t, err := parseDay(syncTo)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		body["to"] = t.Format(time.RFC3339)
	}

	var result struct {
		AccountID    string `json:"account_id"`
		NewFills     int    `json:"new_fills"`
		NewPositions int    `json:"new_positions"`
		ByStrategy   []struct {
			Magic int64  `json:"magic"`
			Label string `json:"label"`
			Count int    `json:"count"`
		} `json:"by_strategy"`
	}
	if err := postJSON("/api/sync/history", body, &result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "account %s: %d new fills, %d new positions\n", result.AccountID, result.NewFills, result.NewPositions)
	for _, row := range result.ByStrategy {
		fmt.Fprintf(out, "  %-30s %d\n", row.Label, row.Count)
	}
	return nil
}

func parseDay(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
