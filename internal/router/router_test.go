package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/registry"
	"github.com/newsgrab/newsgrab/internal/scraper"
)

type fakeClock struct{}

func (fakeClock) Now() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (scraper.RenderedPage, error) {
	if err := f.errs[url]; err != nil {
		return scraper.RenderedPage{}, err
	}
	html, ok := f.pages[url]
	if !ok {
		return scraper.RenderedPage{URL: url, StatusCode: 404}, nil
	}
	return scraper.RenderedPage{URL: url, FinalURL: url, StatusCode: 200, HTML: []byte(html)}, nil
}

type fakeStore struct {
	scraper.ArticleStore

	mu      sync.Mutex
	stored  []string
	outcome scraper.StoreOutcome
	err     error
}

func (s *fakeStore) StoreRecord(_ context.Context, rec *scraper.Record, _ string) (scraper.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return scraper.StoreResult{}, s.err
	}
	s.stored = append(s.stored, rec.URL)
	outcome := s.outcome
	if outcome == "" {
		outcome = scraper.OutcomeStored
	}
	return scraper.StoreResult{Outcome: outcome, RecordID: "rec-1", Version: 1}, nil
}

type fakeBlob struct {
	mu    sync.Mutex
	paths []string
}

func (b *fakeBlob) Put(_ context.Context, path, _ string, _ []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, path)
	return "mem://" + path, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload.(map[string]any))
	return "msg-1", nil
}

type matchAllParser struct {
	id  string
	rec *scraper.Record
	err error
}

func (p *matchAllParser) ID() string        { return p.id }
func (p *matchAllParser) Domains() []string { return nil }

func (p *matchAllParser) CanHandle(context.Context, string) (bool, error) { return true, nil }

func (p *matchAllParser) Parse(_ context.Context, page scraper.RenderedPage) (*scraper.Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.rec != nil {
		return p.rec, nil
	}
	return &scraper.Record{URL: page.URL, Title: "t", Content: "c"}, nil
}

func newSelector(t *testing.T, parsers ...scraper.Parser) *registry.Selector {
	t.Helper()
	reg := registry.New(zap.NewNop())
	for _, p := range parsers {
		reg.Register(p)
	}
	return registry.NewSelector(reg, "", zap.NewNop())
}

func discard(scraper.Request) {}

func TestHandleParseStoresAndPublishes(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/news/1": "<html><body>x</body></html>",
	}}
	store := &fakeStore{}
	blobs := &fakeBlob{}
	pub := &fakePublisher{}

	r := New(fetcher, nil, nil, newSelector(t, &matchAllParser{id: "p"}),
		store, blobs, pub, fakeClock{}, Config{Topic: "articles", BlobPrefix: "raw"}, zap.NewNop())

	err := r.Handle(context.Background(), scraper.Request{URL: "https://example.com/news/1", Mode: scraper.ModeParse}, discard)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/news/1"}, store.stored)
	require.Len(t, blobs.paths, 1)
	require.Contains(t, blobs.paths[0], "raw/2025-06-01/")
	require.Len(t, pub.payloads, 1)
	require.Equal(t, "rec-1", pub.payloads[0]["record_id"])
	require.Equal(t, "mem://"+blobs.paths[0], pub.payloads[0]["blob_uri"])
}

func TestHandleDuplicateSkipsPublish(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/news/1": "<html></html>"}}
	pub := &fakePublisher{}
	r := New(fetcher, nil, nil, newSelector(t, &matchAllParser{id: "p"}),
		&fakeStore{outcome: scraper.OutcomeDuplicate}, nil, pub, fakeClock{}, Config{Topic: "articles"}, zap.NewNop())

	err := r.Handle(context.Background(), scraper.Request{URL: "https://example.com/news/1"}, discard)
	require.NoError(t, err)
	require.Empty(t, pub.payloads)
}

func TestHandleFetchErrorSwallowed(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{errs: map[string]error{"https://example.com/x": errors.New("timeout")}}
	store := &fakeStore{}
	r := New(fetcher, nil, nil, newSelector(t, &matchAllParser{id: "p"}),
		store, nil, nil, fakeClock{}, Config{}, zap.NewNop())

	err := r.Handle(context.Background(), scraper.Request{URL: "https://example.com/x"}, discard)
	require.NoError(t, err)
	require.Empty(t, store.stored)
}

func TestHandleParseErrorSwallowed(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/x": "<html></html>"}}
	store := &fakeStore{}
	r := New(fetcher, nil, nil, newSelector(t, &matchAllParser{id: "p", err: errors.New("bad markup")}),
		store, nil, nil, fakeClock{}, Config{}, zap.NewNop())

	require.NoError(t, r.Handle(context.Background(), scraper.Request{URL: "https://example.com/x"}, discard))
	require.Empty(t, store.stored)
}

func TestHandleNoParserSwallowed(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/x": "<html></html>"}}
	store := &fakeStore{}
	r := New(fetcher, nil, nil, newSelector(t), store, nil, nil, fakeClock{}, Config{}, zap.NewNop())

	require.NoError(t, r.Handle(context.Background(), scraper.Request{URL: "https://example.com/x"}, discard))
	require.Empty(t, store.stored)
}

func TestHandleStorageUnavailablePropagates(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/x": "<html></html>"}}
	store := &fakeStore{err: fmt.Errorf("%w: connection refused", scraper.ErrStorageUnavailable)}
	r := New(fetcher, nil, nil, newSelector(t, &matchAllParser{id: "p"}),
		store, nil, nil, fakeClock{}, Config{}, zap.NewNop())

	err := r.Handle(context.Background(), scraper.Request{URL: "https://example.com/x"}, discard)
	require.ErrorIs(t, err, scraper.ErrStorageUnavailable)
}

func TestHandleDiscoveryEnqueuesLinks(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<div class="headlines">
<a href="/news/1">one</a>
<a href="https://example.com/news/2">two</a>
<a href="/news/1">dup</a>
<a href="mailto:tips@example.com">mail</a>
</div>
<a href="/elsewhere">outside selector</a>
</body></html>`
	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/": html}}
	r := New(fetcher, nil, nil, newSelector(t), &fakeStore{}, nil, nil, fakeClock{}, Config{}, zap.NewNop())

	var got []scraper.Request
	err := r.Handle(context.Background(), scraper.Request{
		URL:          "https://example.com/",
		Mode:         scraper.ModeDiscovery,
		Selector:     ".headlines a",
		ForcedParser: "microblog",
	}, func(req scraper.Request) { got = append(got, req) })
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "https://example.com/news/1", got[0].URL)
	require.Equal(t, "https://example.com/news/2", got[1].URL)
	for _, req := range got {
		require.Equal(t, scraper.ModeParse, req.Mode)
		require.Equal(t, "microblog", req.ForcedParser)
		require.Equal(t, 1, req.Depth)
	}
}

func TestHandleDiscoveryWithoutSelectorNoOps(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/": "<html><a href='/x'>x</a></html>"}}
	r := New(fetcher, nil, nil, newSelector(t), &fakeStore{}, nil, nil, fakeClock{}, Config{}, zap.NewNop())

	var got []scraper.Request
	err := r.Handle(context.Background(), scraper.Request{URL: "https://example.com/", Mode: scraper.ModeDiscovery},
		func(req scraper.Request) { got = append(got, req) })
	require.NoError(t, err)
	require.Empty(t, got)
}

type needsJSDetector struct{}

func (needsJSDetector) NeedsJS(context.Context, scraper.RenderedPage) bool { return true }

type fakeRenderer struct {
	html string
}

func (r *fakeRenderer) Render(_ context.Context, url string) (scraper.RenderedPage, error) {
	return scraper.RenderedPage{URL: url, FinalURL: url, StatusCode: 200, HTML: []byte(r.html)}, nil
}

func TestHandlePromotesToHeadless(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/app": "<html><noscript>enable js</noscript></html>"}}
	parser := &matchAllParser{id: "p"}
	store := &fakeStore{}

	r := New(fetcher, &fakeRenderer{html: "<html><body>rendered</body></html>"}, needsJSDetector{},
		newSelector(t, parser), store, nil, nil, fakeClock{}, Config{}, zap.NewNop())

	require.NoError(t, r.Handle(context.Background(), scraper.Request{URL: "https://example.com/app"}, discard))
	require.Equal(t, []string{"https://example.com/app"}, store.stored)
}
