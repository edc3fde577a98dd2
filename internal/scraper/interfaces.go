package scraper

import (
	"context"
	"time"
)

// Parser decides applicability and extracts a Record from a rendered
// page. A nil record with a nil error means the page yielded nothing.
type Parser interface {
	ID() string
	Domains() []string
	CanHandle(ctx context.Context, url string) (bool, error)
	Parse(ctx context.Context, page RenderedPage) (*Record, error)
}

// ContentEnricher analyzes a parsed record and returns an opaque
// enrichment map attached to the record before storage.
type ContentEnricher interface {
	Analyze(ctx context.Context, rec *Record) (Enrichment, error)
}

// ArticleStore persists parsed records with deduplication, manages seed
// rows, and aggregates crawl statistics.
type ArticleStore interface {
	// StoreRecord deduplicates by url hash and persists the record.
	// Duplicate detection is reported through StoreResult, never as an
	// error. An unreachable backend wraps ErrStorageUnavailable.
	StoreRecord(ctx context.Context, rec *Record, parserName string) (StoreResult, error)
	AddSeed(ctx context.Context, url, label, parser string, priority int) error
	ListActiveSeeds(ctx context.Context, limit int) ([]ManagedSeed, error)
	Statistics(ctx context.Context, windowDays int) (map[string]int64, error)
	History(ctx context.Context, urlHash string, limit int) ([]HistoryEntry, error)
	Close()
}

// Substrate runs execution units (batch jobs) outside the orchestrator.
type Substrate interface {
	Submit(ctx context.Context, spec UnitSpec) (string, error)
	Status(ctx context.Context, handle string) (UnitState, error)
}

// Fetcher fetches a URL and returns the page body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (RenderedPage, error)
}

// Renderer produces a fully rendered page using a headless browser.
type Renderer interface {
	Render(ctx context.Context, url string) (RenderedPage, error)
}

// Detector decides whether a fetched page needs headless rendering.
type Detector interface {
	NeedsJS(ctx context.Context, page RenderedPage) bool
}

// BlobStore writes raw page snapshots and returns a URI.
type BlobStore interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes stored-record events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record and job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
