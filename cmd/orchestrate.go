package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/seeds"
)

// newOrchestrateCmd creates the 'orchestrate' subcommand. It splits the
// input URLs into batches and drives them through the execution
// substrate with retry and concurrency limits.
func newOrchestrateCmd() *cobra.Command {
	var (
		seedFile string
		urls     []string
		parser   string
		serve    bool
	)

	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Run a full batch orchestration over a URL set",
		Long: `Partitions the input URLs into fixed-size batches, submits each
batch as an execution unit, polls until all units finish, and prints a
run summary. Failed units are retried up to the configured budget.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOrchestrate(cmd, seedFile, urls, parser, serve)
		},
	}

	cmd.Flags().StringVar(&seedFile, "seeds", "", "path to a seed file (one URL per line, or JSON lines)")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "URL to include (repeatable)")
	cmd.Flags().StringVar(&parser, "parser", "", "force a specific parser for all batches")
	cmd.Flags().BoolVar(&serve, "serve", false, "expose the status API while the run is in progress")

	return cmd
}

func runOrchestrate(cmd *cobra.Command, seedFile string, urls []string, parser string, serve bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger

	all, err := collectURLs(seedFile, urls, logger)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return errors.New("no URLs to orchestrate; pass --seeds or --url")
	}

	substrate := appInstance.Substrate()
	orch := appInstance.Orchestrator(substrate)

	var httpSrv *http.Server
	if serve {
		httpSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", appInstance.Cfg.Server.Port),
			Handler:           appInstance.APIServer(orch).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if serr := httpSrv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(serr))
			}
		}()
		logger.Info("status API listening", zap.Int("port", appInstance.Cfg.Server.Port))
	}

	summary, runErr := orch.Run(cmd.Context(), all, parser)
	substrate.Wait()

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("status server shutdown failed", zap.Error(serr))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Warn("write summary failed", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run orchestration: %w", runErr)
	}
	return nil
}

// collectURLs flattens seeds into the batch URL list. Batch units carry
// only URLs and a parser id, so discovery labels cannot ride along;
// labeled seeds are flagged for the crawl command instead of being
// silently flattened.
func collectURLs(seedFile string, urls []string, logger *zap.Logger) ([]string, error) {
	out := make([]string, 0, len(urls))
	if seedFile != "" {
		entries, err := seeds.NewLoader(logger).LoadFile(seedFile)
		if err != nil {
			return nil, err
		}
		for _, seed := range entries {
			if seed.Label != "" {
				logger.Warn("seed label ignored in batch mode; use the crawl command for link discovery",
					zap.String("url", seed.URL),
					zap.String("label", seed.Label),
				)
			}
			out = append(out, seed.URL)
		}
	}
	out = append(out, urls...)
	return out, nil
}
