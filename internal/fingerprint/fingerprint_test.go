package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURLHashDeterministic(t *testing.T) {
	t.Parallel()

	first := URLHash("https://example.com/news/1")
	second := URLHash("https://example.com/news/1")
	require.Equal(t, first, second)
	require.Len(t, first, DigestLen)
	for _, c := range first {
		require.Contains(t, "0123456789abcdef", string(c))
	}
}

func TestURLHashNormalizes(t *testing.T) {
	t.Parallel()

	base := URLHash("https://example.com/news/1")
	require.Equal(t, base, URLHash("  https://example.com/news/1  "))
	require.Equal(t, base, URLHash("https://example.com/news/1#section-2"))
	require.NotEqual(t, base, URLHash("https://example.com/news/2"))
}

func TestContentHashDistinguishesContent(t *testing.T) {
	t.Parallel()

	corpus := []string{
		"",
		"short",
		"a slightly longer piece of article text",
		"a slightly longer piece of article text.",
	}
	seen := make(map[string]string, len(corpus))
	for _, content := range corpus {
		h := ContentHash(content)
		require.Len(t, h, DigestLen)
		prev, dup := seen[h]
		require.False(t, dup, "collision between %q and %q", prev, content)
		seen[h] = content
	}
}
