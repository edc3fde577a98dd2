package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

func writeSeedFile(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))
	return path
}

func TestBuildRequestsLabeledSeedRunsDiscovery(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, `{"url": "https://example.com/index", "label": "a.headline"}
https://example.com/news/1
`)

	requests, err := buildRequests(path, nil, "", "", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, requests, 2)

	require.Equal(t, "https://example.com/index", requests[0].URL)
	require.Equal(t, scraper.ModeDiscovery, requests[0].Mode)
	require.Equal(t, "a.headline", requests[0].Selector)

	require.Equal(t, "https://example.com/news/1", requests[1].URL)
	require.Equal(t, scraper.ModeParse, requests[1].Mode)
	require.Empty(t, requests[1].Selector)
}

func TestBuildRequestsSelectorFlagOverridesLabels(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, `{"url": "https://example.com/index", "label": "a.headline", "parser": "generic-news"}
`)

	requests, err := buildRequests(path, []string{"https://example.com/feed"}, "div.feed a", "microblog", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, requests, 2)
	for _, req := range requests {
		require.Equal(t, scraper.ModeDiscovery, req.Mode)
		require.Equal(t, "div.feed a", req.Selector)
		require.Equal(t, "microblog", req.ForcedParser)
	}
}

func TestBuildRequestsSeedParserCarriesWithoutFlag(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, `{"url": "https://example.com/post/1", "parser": "microblog"}
`)

	requests, err := buildRequests(path, nil, "", "", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, scraper.ModeParse, requests[0].Mode)
	require.Equal(t, "microblog", requests[0].ForcedParser)
}
