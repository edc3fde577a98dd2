package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/scraper"
	"github.com/newsgrab/newsgrab/internal/seeds"
	"github.com/newsgrab/newsgrab/internal/worker"
)

// newCrawlCmd creates the 'crawl' subcommand. It runs a single worker
// pool over the given URLs in-process, without batch orchestration.
func newCrawlCmd() *cobra.Command {
	var (
		seedFile string
		urls     []string
		selector string
		parser   string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a set of URLs with a single worker pool",
		Long: `Fetches, parses, and stores the given URLs directly. With
--selector the URLs are treated as index pages: matching links are
extracted and enqueued for parsing instead of parsing the page itself.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, seedFile, urls, selector, parser)
		},
	}

	cmd.Flags().StringVar(&seedFile, "seeds", "", "path to a seed file (one URL per line, or JSON lines)")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "URL to crawl (repeatable)")
	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector for link discovery on the given URLs")
	cmd.Flags().StringVar(&parser, "parser", "", "force a specific parser for all pages")

	return cmd
}

func runCrawl(cmd *cobra.Command, seedFile string, urls []string, selector, parser string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger

	requests, err := buildRequests(seedFile, urls, selector, parser, logger)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return errors.New("no URLs to crawl; pass --seeds or --url")
	}

	pool := worker.NewPool(appInstance.Router(), worker.Config{
		Concurrency: appInstance.Cfg.Crawler.Concurrency,
		MaxRequests: appInstance.Cfg.Crawler.MaxRequests,
	}, logger)

	logger.Info("starting crawl",
		zap.Int("requests", len(requests)),
		zap.Int("concurrency", appInstance.Cfg.Crawler.Concurrency),
	)
	if err := pool.Run(cmd.Context(), requests); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}

	logger.Info("crawl finished")
	return nil
}

// buildRequests merges seed-file entries and --url flags into crawl
// requests. A seed carrying a label is an index page: its label is the
// link-discovery selector and the request runs in discovery mode. The
// --selector flag overrides per-seed labels for the whole set.
func buildRequests(seedFile string, urls []string, selector, parser string, logger *zap.Logger) ([]scraper.Request, error) {
	var entries []scraper.Seed
	if seedFile != "" {
		loaded, err := seeds.NewLoader(logger).LoadFile(seedFile)
		if err != nil {
			return nil, err
		}
		entries = loaded
	}
	for _, u := range urls {
		entries = append(entries, scraper.Seed{URL: u})
	}

	requests := make([]scraper.Request, 0, len(entries))
	for _, seed := range entries {
		forced := parser
		if forced == "" {
			forced = seed.Parser
		}
		sel := selector
		if sel == "" {
			sel = seed.Label
		}
		mode := scraper.ModeParse
		if sel != "" {
			mode = scraper.ModeDiscovery
		}
		requests = append(requests, scraper.Request{
			URL:          seed.URL,
			Mode:         mode,
			Selector:     sel,
			ForcedParser: forced,
		})
	}
	return requests, nil
}
