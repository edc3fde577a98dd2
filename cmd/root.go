// Package cmd defines and implements the CLI commands for the newsgrab
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/app"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can
// replace it with a mock factory.
var newApp = func(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfgFile)
}

// newRootCmd creates and configures the root command. The application
// is built in PersistentPreRunE and injected into the command context
// so subcommands share one wired instance.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsgrab",
		Short: "A batch web scraper with content deduplication.",
		Long: `newsgrab fetches pages in parallel batches, parses them with
pluggable site parsers, and stores deduplicated records. Duplicate
detection is keyed on normalized URL and content hashes, so re-crawling
the same sources is cheap.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default uses built-in defaults plus NEWSGRAB_* env)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newOrchestrateCmd())
	cmd.AddCommand(newSeedsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT/SIGTERM cancel the command
// context, so long-running commands exit their wait loops promptly and
// report partial results instead of dying mid-poll.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.L().Error("Command execution failed", zap.Error(err))
		os.Exit(1)
	}
}
