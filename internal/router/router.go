// Package router executes one crawl request end to end: fetch, optional
// headless promotion, parser selection, persistence and publication.
package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/fingerprint"
	"github.com/newsgrab/newsgrab/internal/metrics"
	"github.com/newsgrab/newsgrab/internal/registry"
	"github.com/newsgrab/newsgrab/internal/scraper"
)

// Config controls Router behavior.
type Config struct {
	Topic       string
	BlobPrefix  string
	ContentType string
}

// Router implements worker.Handler.
type Router struct {
	fetcher   scraper.Fetcher
	renderer  scraper.Renderer
	detector  scraper.Detector
	selector  *registry.Selector
	store     scraper.ArticleStore
	blobs     scraper.BlobStore
	publisher scraper.Publisher
	clock     scraper.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Router. Renderer, detector, blob store and publisher
// are optional; the corresponding pipeline stages are skipped when nil.
func New(
	fetcher scraper.Fetcher,
	renderer scraper.Renderer,
	detector scraper.Detector,
	selector *registry.Selector,
	store scraper.ArticleStore,
	blobs scraper.BlobStore,
	publisher scraper.Publisher,
	clock scraper.Clock,
	cfg Config,
	logger *zap.Logger,
) *Router {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		fetcher:   fetcher,
		renderer:  renderer,
		detector:  detector,
		selector:  selector,
		store:     store,
		blobs:     blobs,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle processes one request. Page-level failures (fetch, parse, no
// matching parser) are logged and swallowed so one bad URL never sinks
// a whole unit. Only an unavailable storage backend propagates, which
// lets the orchestrator retry the batch.
func (r *Router) Handle(ctx context.Context, req scraper.Request, enqueue func(scraper.Request)) error {
	page, err := r.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		r.logger.Error("fetch failed", zap.String("url", req.URL), zap.Error(err))
		return nil
	}
	page = r.maybePromote(ctx, req.URL, page)
	metrics.ObserveFetch(req.URL, page.StatusCode, page.Duration.Seconds())

	if req.Mode == scraper.ModeDiscovery {
		r.discover(req, page, enqueue)
		return nil
	}
	return r.parseAndStore(ctx, req, page)
}

func (r *Router) maybePromote(ctx context.Context, url string, page scraper.RenderedPage) scraper.RenderedPage {
	if r.detector == nil || r.renderer == nil || !r.detector.NeedsJS(ctx, page) {
		return page
	}
	rendered, err := r.renderer.Render(ctx, url)
	if err != nil {
		r.logger.Warn("headless promotion failed", zap.String("url", url), zap.Error(err))
		return page
	}
	rendered.UsedHeadless = true
	r.logger.Info("headless promotion applied", zap.String("url", url))
	return rendered
}

// discover enqueues parse requests for every link the selector matches.
// The forced parser choice propagates to discovered pages.
func (r *Router) discover(req scraper.Request, page scraper.RenderedPage, enqueue func(scraper.Request)) {
	if req.Selector == "" {
		r.logger.Warn("discovery request without selector", zap.String("url", req.URL))
		return
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		r.logger.Error("parse discovery page", zap.String("url", req.URL), zap.Error(err))
		return
	}

	base := page.FinalURL
	if base == "" {
		base = req.URL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		r.logger.Error("parse base url", zap.String("url", base), zap.Error(err))
		return
	}

	seen := make(map[string]struct{})
	found := 0
	doc.Find(req.Selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			href, ok = sel.Find("a[href]").First().Attr("href")
		}
		if !ok || href == "" {
			return
		}
		link, err := baseURL.Parse(href)
		if err != nil || (link.Scheme != "http" && link.Scheme != "https") {
			return
		}
		abs := link.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		found++
		enqueue(scraper.Request{
			URL:          abs,
			Mode:         scraper.ModeParse,
			ForcedParser: req.ForcedParser,
			Depth:        req.Depth + 1,
		})
	})
	r.logger.Info("discovery finished",
		zap.String("url", req.URL),
		zap.String("selector", req.Selector),
		zap.Int("links", found),
	)
}

func (r *Router) parseAndStore(ctx context.Context, req scraper.Request, page scraper.RenderedPage) error {
	blobURI := r.snapshot(ctx, req.URL, page)

	parser := r.selector.Select(ctx, req.URL, req.ForcedParser)
	if parser == nil {
		r.logger.Debug("no parser for url", zap.String("url", req.URL))
		return nil
	}

	rec, err := parser.Parse(ctx, page)
	if err != nil {
		metrics.ObserveParseFailure(parser.ID())
		r.logger.Error("parse failed",
			zap.String("url", req.URL),
			zap.String("parser", parser.ID()),
			zap.Error(err),
		)
		return nil
	}
	if rec == nil {
		r.logger.Debug("page yielded no record", zap.String("url", req.URL))
		return nil
	}

	res, err := r.store.StoreRecord(ctx, rec, parser.ID())
	if err != nil {
		if errors.Is(err, scraper.ErrStorageUnavailable) {
			return err
		}
		r.logger.Error("store record failed", zap.String("url", req.URL), zap.Error(err))
		return nil
	}

	if res.Outcome == scraper.OutcomeDuplicate {
		metrics.ObserveDuplicate()
		r.logger.Debug("duplicate url skipped", zap.String("url", req.URL))
		return nil
	}

	metrics.ObserveStored(parser.ID())
	r.publish(ctx, req.URL, parser.ID(), res, blobURI)
	return nil
}

// snapshot stores the raw page body and returns its URI, or "" when no
// blob store is configured or the write fails. Snapshots are best
// effort.
func (r *Router) snapshot(ctx context.Context, pageURL string, page scraper.RenderedPage) string {
	if r.blobs == nil || len(page.HTML) == 0 {
		return ""
	}
	path := r.buildBlobPath(pageURL)
	uri, err := r.blobs.Put(ctx, path, r.cfg.ContentType, page.HTML)
	if err != nil {
		r.logger.Warn("snapshot write failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	return uri
}

func (r *Router) buildBlobPath(pageURL string) string {
	hash := fingerprint.URLHash(pageURL)
	day := r.clock.Now().Format("2006-01-02")
	prefix := strings.Trim(r.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", day, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, day, hash)
}

func (r *Router) publish(ctx context.Context, pageURL, parserID string, res scraper.StoreResult, blobURI string) {
	if r.publisher == nil || r.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"record_id": res.RecordID,
		"url":       pageURL,
		"url_hash":  fingerprint.URLHash(pageURL),
		"parser":    parserID,
		"blob_uri":  blobURI,
		"timestamp": r.clock.Now().Format(time.RFC3339),
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.Topic, payload); err != nil {
		r.logger.Warn("publish stored record failed", zap.String("url", pageURL), zap.Error(err))
		return
	}
	r.logger.Info("record published",
		zap.String("record_id", res.RecordID),
		zap.String("url", pageURL),
		zap.String("parser", parserID),
	)
}
