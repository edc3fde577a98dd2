package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

// RendererConfig controls the headless renderer.
type RendererConfig struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// ChromeRenderer implements scraper.Renderer using chromedp and
// headless Chrome. A semaphore bounds concurrent browser tabs.
type ChromeRenderer struct {
	cfg         RendererConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromeRenderer creates a renderer backed by chromedp.
func NewChromeRenderer(cfg RendererConfig) (*ChromeRenderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeRenderer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (r *ChromeRenderer) Close() {
	r.allocCancel()
}

// Render navigates with a headless browser and returns the fully
// rendered DOM.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (scraper.RenderedPage, error) {
	if err := r.acquire(ctx); err != nil {
		return scraper.RenderedPage{}, err
	}
	defer r.release()

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.cfg.NavigationTimeout)
	defer cancel()

	var (
		html     string
		finalURL string
	)
	start := time.Now()
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return scraper.RenderedPage{}, fmt.Errorf("chromedp run: %w", err)
	}
	if finalURL == "" {
		finalURL = url
	}

	return scraper.RenderedPage{
		URL:          url,
		FinalURL:     finalURL,
		StatusCode:   http.StatusOK,
		HTML:         []byte(html),
		FetchedAt:    start,
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (r *ChromeRenderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *ChromeRenderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}
