package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	require.NotPanics(t, func() {
		Init()
		Init()
	})
	require.NotNil(t, pagesFetchedTotal)
	require.NotNil(t, recordsStoredTotal)
}

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", SanitizeSite("https://Example.com/news/1"))
	require.Equal(t, "example.com", SanitizeSite("example.com/path"))
	require.Equal(t, "unknown", SanitizeSite("://not a url"))
}

func TestObserversSafeBeforeInit(t *testing.T) {
	// Observers tolerate being called before Init.
	require.NotPanics(t, func() {
		ObserveFetch("https://example.com", 200, 0.1)
		ObserveStored("generic-news")
		ObserveDuplicate()
		ObserveParseFailure("generic-news")
		ObserveUnit("completed")
		UnitStarted()
		UnitFinished()
	})
}
