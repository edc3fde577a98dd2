package cmd

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// newSeedsCmd groups the seed management subcommands.
func newSeedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seeds",
		Short: "Manage the stored seed list",
	}
	cmd.AddCommand(newSeedsAddCmd())
	cmd.AddCommand(newSeedsListCmd())
	return cmd
}

func newSeedsAddCmd() *cobra.Command {
	var (
		label    string
		parser   string
		priority int
	)

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a seed URL to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			url := args[0]
			if url == "" {
				return errors.New("url must not be empty")
			}
			return appInstance.Store.AddSeed(cmd.Context(), url, label, parser, priority)
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "human-readable label for the seed")
	cmd.Flags().StringVar(&parser, "parser", "", "parser to force for pages from this seed")
	cmd.Flags().IntVar(&priority, "priority", 0, "scheduling priority (higher first)")

	return cmd
}

func newSeedsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active seeds by priority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			active, err := appInstance.Store.ListActiveSeeds(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(active)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of seeds to list")

	return cmd
}
