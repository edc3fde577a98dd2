package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/fingerprint"
	"github.com/newsgrab/newsgrab/internal/registry"
	"github.com/newsgrab/newsgrab/internal/router"
	"github.com/newsgrab/newsgrab/internal/scraper"
	"github.com/newsgrab/newsgrab/internal/storage/memory"
	"github.com/newsgrab/newsgrab/internal/substrate/local"
	"github.com/newsgrab/newsgrab/internal/worker"
)

// staticFetcher serves the same page body for every URL.
type staticFetcher struct{}

func (staticFetcher) Fetch(_ context.Context, url string) (scraper.RenderedPage, error) {
	return scraper.RenderedPage{
		URL:        url,
		FinalURL:   url,
		StatusCode: 200,
		HTML:       []byte("<html><body><p>the story</p></body></html>"),
	}, nil
}

// newsOnlyParser handles URLs with a /news/ path segment and nothing
// else.
type newsOnlyParser struct{}

func (newsOnlyParser) ID() string        { return "news" }
func (newsOnlyParser) Domains() []string { return nil }

func (newsOnlyParser) CanHandle(_ context.Context, url string) (bool, error) {
	return strings.Contains(url, "/news/"), nil
}

func (newsOnlyParser) Parse(_ context.Context, page scraper.RenderedPage) (*scraper.Record, error) {
	return &scraper.Record{URL: page.URL, Title: "story", Content: string(page.HTML)}, nil
}

// Drives the whole pipeline in-process: seeds are partitioned into
// batches, each batch runs a worker pool over the router, and the
// memory store arbitrates duplicates. A repeated URL yields one stored
// record plus one skipped duplicate; a URL no parser handles is dropped
// without failing its unit.
func TestRunCrawlPipelineDeduplicatesAndSkipsUnmatched(t *testing.T) {
	t.Parallel()

	store := memory.NewStore(fakeClock{}, &seqIDs{})
	reg := registry.New(zap.NewNop())
	reg.Register(newsOnlyParser{})
	selector := registry.NewSelector(reg, "", zap.NewNop())

	rt := router.New(staticFetcher{}, nil, nil, selector, store, nil, nil,
		fakeClock{}, router.Config{}, zap.NewNop())

	sub := local.New(func(ctx context.Context, spec scraper.UnitSpec) error {
		requests := make([]scraper.Request, 0, len(spec.URLs))
		for _, u := range spec.URLs {
			requests = append(requests, scraper.Request{
				URL:          u,
				Mode:         scraper.ModeParse,
				ForcedParser: spec.Parser,
			})
		}
		pool := worker.NewPool(rt, worker.Config{Concurrency: 2}, zap.NewNop())
		return pool.Run(ctx, requests)
	}, &seqIDs{}, zap.NewNop())

	o := New(sub, fakeClock{}, &seqIDs{},
		Config{BatchSize: 2, MaxConcurrent: 2, PollInterval: time.Millisecond},
		zap.NewNop())

	seeds := []string{
		"https://a.com/news/1",
		"https://a.com/news/1",
		"https://b.com/about",
	}
	summary, err := o.Run(context.Background(), seeds, "")
	require.NoError(t, err)
	sub.Wait()

	require.Equal(t, Summary{Total: 2, Completed: 2, SuccessRate: 100.0}, summary)

	// One Active record for the repeated URL, nothing for the
	// unmatched one.
	require.Equal(t, 1, store.RecordCount())
	entry, ok := store.Tracking(fingerprint.URLHash("https://a.com/news/1"))
	require.True(t, ok)
	require.Equal(t, 2, entry.ScrapeCount)
	_, ok = store.Tracking(fingerprint.URLHash("https://b.com/about"))
	require.False(t, ok)

	stats, err := store.Statistics(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats["articles_scraped"])
	require.Equal(t, int64(1), stats["duplicates_skipped"])
}
