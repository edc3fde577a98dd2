package fetch

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

func page(status int, html string) scraper.RenderedPage {
	return scraper.RenderedPage{StatusCode: status, HTML: []byte(html)}
}

func TestNeedsJSEmptyBody(t *testing.T) {
	t.Parallel()

	d := NewHeuristic(0)
	require.True(t, d.NeedsJS(context.Background(), page(200, "")))
}

func TestNeedsJSSPAMarkers(t *testing.T) {
	t.Parallel()

	d := NewHeuristic(0)
	filler := strings.Repeat("<p>content</p>", 300)
	require.True(t, d.NeedsJS(context.Background(), page(200, `<div id="root"></div>`+filler)))
	require.True(t, d.NeedsJS(context.Background(), page(200, `<div data-reactroot></div>`+filler)))
	require.False(t, d.NeedsJS(context.Background(), page(200, `<article>plain news</article>`+filler)))
}

func TestNeedsJSScriptHeavySmallPage(t *testing.T) {
	t.Parallel()

	d := NewHeuristic(2048)
	html := "<html><body><script>window.bootstrap();</script><p>x</p></body></html>"
	require.True(t, d.NeedsJS(context.Background(), page(200, html)))
}

func TestNeedsJSNonOKStatus(t *testing.T) {
	t.Parallel()

	d := NewHeuristic(0)
	require.False(t, d.NeedsJS(context.Background(), page(404, "")))
}

func TestNeedsJSAlreadyHeadless(t *testing.T) {
	t.Parallel()

	d := NewHeuristic(0)
	p := page(200, "")
	p.UsedHeadless = true
	require.False(t, d.NeedsJS(context.Background(), p))
}
