package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

// newStatsCmd creates the 'stats' subcommand, which reports aggregated
// crawl counters over a trailing window.
func newStatsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show crawl statistics for the last N days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := appInstance.Store.Statistics(cmd.Context(), days)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"window_days": days, "stats": stats})
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "trailing window in days")

	return cmd
}
