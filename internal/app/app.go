// Package app builds and owns the application's dependencies.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/api"
	"github.com/newsgrab/newsgrab/internal/blob"
	"github.com/newsgrab/newsgrab/internal/clock/system"
	"github.com/newsgrab/newsgrab/internal/config"
	"github.com/newsgrab/newsgrab/internal/enrich"
	"github.com/newsgrab/newsgrab/internal/fetch"
	"github.com/newsgrab/newsgrab/internal/id/uuid"
	"github.com/newsgrab/newsgrab/internal/logging"
	"github.com/newsgrab/newsgrab/internal/metrics"
	"github.com/newsgrab/newsgrab/internal/orchestrator"
	"github.com/newsgrab/newsgrab/internal/parsers"
	memorypublisher "github.com/newsgrab/newsgrab/internal/publisher/memory"
	gcppublisher "github.com/newsgrab/newsgrab/internal/publisher/pubsub"
	"github.com/newsgrab/newsgrab/internal/registry"
	"github.com/newsgrab/newsgrab/internal/router"
	"github.com/newsgrab/newsgrab/internal/scraper"
	memorystore "github.com/newsgrab/newsgrab/internal/storage/memory"
	pgstore "github.com/newsgrab/newsgrab/internal/storage/postgres"
	localsubstrate "github.com/newsgrab/newsgrab/internal/substrate/local"
	"github.com/newsgrab/newsgrab/internal/worker"
)

// App contains the application's dependencies.
type App struct {
	Cfg      config.Config
	Logger   *zap.Logger
	Clock    scraper.Clock
	IDGen    scraper.IDGenerator
	Store    scraper.ArticleStore
	Blobs    scraper.BlobStore
	Pub      scraper.Publisher
	Registry *registry.Registry
	Selector *registry.Selector
	Fetcher  scraper.Fetcher
	Renderer scraper.Renderer
	Detector scraper.Detector

	chromeRenderer *fetch.ChromeRenderer
	pubsubClient   *gcppublisher.Publisher
}

// New builds the App from configuration.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{
		Cfg:    cfg,
		Logger: logger,
		Clock:  system.New(),
		IDGen:  uuid.NewUUIDGenerator(),
	}

	if err := a.buildStore(ctx); err != nil {
		return nil, err
	}
	if err := a.buildBlobs(ctx); err != nil {
		return nil, err
	}
	if err := a.buildPublisher(ctx); err != nil {
		return nil, err
	}
	a.buildParsers()
	if err := a.buildFetchers(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) buildStore(ctx context.Context) error {
	if a.Cfg.DB.DSN == "" {
		a.Logger.Info("using in-memory article store")
		a.Store = memorystore.NewStore(a.Clock, a.IDGen)
		return nil
	}
	store, err := pgstore.NewStore(ctx, pgstore.Config{
		DSN:      a.Cfg.DB.DSN,
		MaxConns: int32(a.Cfg.DB.MaxOpenConns),
		MinConns: int32(a.Cfg.DB.MinConns),
	}, a.Clock, a.IDGen)
	if err != nil {
		return fmt.Errorf("init postgres store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.Store = store
	return nil
}

func (a *App) buildBlobs(ctx context.Context) error {
	switch a.Cfg.Storage.Backend {
	case "memory":
		a.Blobs = blob.NewMemoryStore()
	case "local":
		store, err := blob.NewLocalStore(a.Cfg.Storage.LocalDir)
		if err != nil {
			return fmt.Errorf("init local blob store: %w", err)
		}
		a.Blobs = store
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		store, err := blob.NewGCSStore(client, a.Cfg.Storage.GCSBucket)
		if err != nil {
			return fmt.Errorf("init gcs blob store: %w", err)
		}
		a.Blobs = store
	}
	return nil
}

func (a *App) buildPublisher(ctx context.Context) error {
	if a.Cfg.PubSub.ProjectID == "" || a.Cfg.PubSub.TopicName == "" {
		a.Logger.Info("using in-memory publisher")
		a.Pub = memorypublisher.New()
		return nil
	}
	pub, err := gcppublisher.New(ctx, a.Cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.pubsubClient = pub
	a.Pub = pub
	return nil
}

// buildParsers assembles the fixed parser registration table. Order
// matters: specific parsers come before the generic fallback.
func (a *App) buildParsers() {
	enricher := enrich.New()
	a.Registry = registry.New(a.Logger)
	a.Registry.Register(parsers.WithEnrichment(parsers.NewMicroblog(a.Logger), enricher, a.Logger))
	a.Registry.Register(parsers.WithEnrichment(parsers.NewGenericNews(a.Logger), enricher, a.Logger))
	a.Selector = registry.NewSelector(a.Registry, a.Cfg.Crawler.DefaultParser, a.Logger)
}

func (a *App) buildFetchers() error {
	a.Fetcher = fetch.NewColly(fetch.Config{
		UserAgent:     a.Cfg.Crawler.UserAgent,
		RespectRobots: a.Cfg.Crawler.RespectRobots,
		Timeout:       a.Cfg.FetchTimeout(),
	})
	if !a.Cfg.Headless.Enabled {
		return nil
	}
	renderer, err := fetch.NewChromeRenderer(fetch.RendererConfig{
		MaxParallel:       a.Cfg.Headless.MaxParallel,
		UserAgent:         a.Cfg.Crawler.UserAgent,
		NavigationTimeout: a.Cfg.NavTimeout(),
	})
	if err != nil {
		return fmt.Errorf("init headless renderer: %w", err)
	}
	a.chromeRenderer = renderer
	a.Renderer = renderer
	a.Detector = fetch.NewHeuristic(a.Cfg.Headless.PromotionThresh)
	return nil
}

// Router builds the crawl request handler.
func (a *App) Router() *router.Router {
	return router.New(
		a.Fetcher,
		a.Renderer,
		a.Detector,
		a.Selector,
		a.Store,
		a.Blobs,
		a.Pub,
		a.Clock,
		router.Config{
			Topic:       a.Cfg.PubSub.TopicName,
			BlobPrefix:  a.Cfg.Storage.Prefix,
			ContentType: a.Cfg.Storage.ContentType,
		},
		a.Logger,
	)
}

// Substrate builds the local execution substrate: each unit runs a
// bounded worker pool over its URLs.
func (a *App) Substrate() *localsubstrate.Substrate {
	handler := a.Router()
	return localsubstrate.New(func(ctx context.Context, spec scraper.UnitSpec) error {
		requests := make([]scraper.Request, 0, len(spec.URLs))
		for _, url := range spec.URLs {
			requests = append(requests, scraper.Request{
				URL:          url,
				Mode:         scraper.ModeParse,
				ForcedParser: spec.Parser,
			})
		}
		concurrency := spec.Concurrency
		if concurrency <= 0 {
			concurrency = a.Cfg.Crawler.Concurrency
		}
		pool := worker.NewPool(handler, worker.Config{
			Concurrency: concurrency,
			MaxRequests: a.Cfg.Crawler.MaxRequests,
		}, a.Logger)
		return pool.Run(ctx, requests)
	}, a.IDGen, a.Logger)
}

// Orchestrator builds the batch orchestrator on the given substrate.
func (a *App) Orchestrator(substrate scraper.Substrate) *orchestrator.Orchestrator {
	return orchestrator.New(substrate, a.Clock, a.IDGen, orchestrator.Config{
		BatchSize:       a.Cfg.Orchestrator.BatchSize,
		MaxConcurrent:   a.Cfg.Orchestrator.MaxConcurrentJobs,
		PollInterval:    a.Cfg.PollInterval(),
		JobTimeout:      a.Cfg.JobTimeout(),
		MaxRetries:      a.Cfg.Orchestrator.MaxRetries,
		UnitConcurrency: a.Cfg.Crawler.Concurrency,
	}, a.Logger)
}

// APIServer builds the HTTP status server.
func (a *App) APIServer(units api.UnitLister) *api.Server {
	return api.NewServer(a.Store, units, a.Logger)
}

// Close releases all held resources.
func (a *App) Close() {
	if a.chromeRenderer != nil {
		a.chromeRenderer.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.Logger.Warn("close pubsub publisher", zap.Error(err))
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
	_ = a.Logger.Sync()
}
