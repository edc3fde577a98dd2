package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

func TestAnalyzeTopicsAndSentiment(t *testing.T) {
	t.Parallel()

	rec := &scraper.Record{
		Title:   "Markets rally",
		Content: "The stock market posted record growth as the economy improved.",
	}

	got, err := New().Analyze(context.Background(), rec)
	require.NoError(t, err)
	require.Contains(t, got["topics"], "finance")
	require.Equal(t, "positive", got["sentiment"])
	require.Equal(t, 1, got["reading_time_min"])
	require.Greater(t, got["word_count"].(int), 5)
}

func TestAnalyzeEmptyRecord(t *testing.T) {
	t.Parallel()

	got, err := New().Analyze(context.Background(), &scraper.Record{})
	require.NoError(t, err)
	require.Equal(t, 0, got["word_count"])
	require.Equal(t, 0, got["reading_time_min"])
	require.Equal(t, "neutral", got["sentiment"])
	require.Empty(t, got["topics"])
}
