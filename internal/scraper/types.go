// Package scraper defines core types shared across subsystems.
package scraper

import "time"

// Seed is one crawl target produced by the seed loader or the managed
// seed table. Immutable once produced.
type Seed struct {
	URL      string `json:"url"`
	Label    string `json:"label,omitempty"`
	Parser   string `json:"parser,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// BatchStatus represents the lifecycle state of a batch.
type BatchStatus string

// Batch status values tracked by the orchestrator.
const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// Batch is a fixed-size, order-preserving partition of the seed URL
// list. Batch assignment is purely positional.
type Batch struct {
	ID     int         `json:"batch_id"`
	URLs   []string    `json:"urls"`
	Parser string      `json:"parser"`
	Status BatchStatus `json:"status"`
}

// UnitStatus is the orchestrator-side state of an execution unit.
type UnitStatus string

// Unit status values.
const (
	UnitStatusPending   UnitStatus = "pending"
	UnitStatusRunning   UnitStatus = "running"
	UnitStatusCompleted UnitStatus = "completed"
	UnitStatusFailed    UnitStatus = "failed"
)

// ExecutionUnit is one scheduled run of a batch on the execution
// substrate. Owned exclusively by the orchestrator control loop.
type ExecutionUnit struct {
	JobID       string     `json:"job_id"`
	BatchID     int        `json:"batch_id"`
	URLs        []string   `json:"urls"`
	Parser      string     `json:"parser"`
	Status      UnitStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RetryCount  int        `json:"retry_count"`
	Handle      string     `json:"external_handle,omitempty"`
}

// UnitSpec is what the orchestrator hands to the execution substrate.
// The retry budget is informational; the retry decision lives in the
// orchestrator.
type UnitSpec struct {
	BatchID     int
	URLs        []string
	Parser      string
	Concurrency int
	Timeout     time.Duration
	MaxRetries  int
}

// UnitState is the substrate-reported state of a submitted unit.
type UnitState string

// Unit states reported by a Substrate.
const (
	UnitStateRunning   UnitState = "running"
	UnitStateCompleted UnitState = "completed"
	UnitStateFailed    UnitState = "failed"
	UnitStateNotFound  UnitState = "not_found"
)

// RecordStatus marks the persistence outcome stored with a record row.
type RecordStatus string

// Record status values.
const (
	RecordStatusActive    RecordStatus = "active"
	RecordStatusDuplicate RecordStatus = "duplicate"
	RecordStatusError     RecordStatus = "error"
)

// Record is the structured output of parsing one page. The storage
// layer assigns URLHash, ContentHash, Version and Status.
type Record struct {
	ID           string         `json:"id,omitempty"`
	URL          string         `json:"url"`
	URLHash      string         `json:"url_hash,omitempty"`
	ContentHash  string         `json:"content_hash,omitempty"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Author       string         `json:"author,omitempty"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	ScrapedAt    time.Time      `json:"scraped_at"`
	SourceDomain string         `json:"source_domain"`
	ParserUsed   string         `json:"parser_used"`
	Enrichment   map[string]any `json:"enrichment,omitempty"`
	Version      int            `json:"version"`
	Status       RecordStatus   `json:"status"`
}

// TrackingStatus is the lifecycle state of a tracked URL.
type TrackingStatus string

// Tracking status values.
const (
	TrackingStatusPending   TrackingStatus = "pending"
	TrackingStatusProcessed TrackingStatus = "processed"
	TrackingStatusFailed    TrackingStatus = "failed"
	TrackingStatusDuplicate TrackingStatus = "duplicate"
)

// URLTrackingEntry is the single source of truth for "have we processed
// this URL". At most one entry exists per url hash; counters only grow.
type URLTrackingEntry struct {
	URLHash      string         `json:"url_hash"`
	OriginalURL  string         `json:"original_url"`
	FirstSeen    time.Time      `json:"first_seen"`
	LastSeen     time.Time      `json:"last_seen"`
	ScrapeCount  int            `json:"scrape_count"`
	LastRecordID string         `json:"last_record_id,omitempty"`
	Status       TrackingStatus `json:"status"`
}

// StoreOutcome distinguishes the two ordinary results of storing a
// record. Duplicate is a normal outcome, not a failure.
type StoreOutcome string

// Store outcomes.
const (
	OutcomeStored    StoreOutcome = "stored"
	OutcomeDuplicate StoreOutcome = "duplicate"
)

// StoreResult is returned by ArticleStore.StoreRecord.
type StoreResult struct {
	Outcome  StoreOutcome
	RecordID string
	Version  int
}

// HistoryEntry is one row of the append-only content version history,
// ordered by scrape time descending.
type HistoryEntry struct {
	URLHash     string    `json:"url_hash"`
	ScrapedAt   time.Time `json:"scraped_at"`
	RecordID    string    `json:"record_id"`
	ContentHash string    `json:"content_hash"`
	ChangeType  string    `json:"change_type"`
}

// ManagedSeed is a seed row persisted by the storage layer.
type ManagedSeed struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Label        string    `json:"label,omitempty"`
	Parser       string    `json:"parser,omitempty"`
	Priority     int       `json:"priority"`
	AddedAt      time.Time `json:"added_at"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	Status       string    `json:"status"`
}

// RenderedPage is the fetched (and possibly headless-rendered) page
// handed to parsers.
type RenderedPage struct {
	URL          string
	FinalURL     string
	StatusCode   int
	HTML         []byte
	FetchedAt    time.Time
	Duration     time.Duration
	UsedHeadless bool
}

// Enrichment is the opaque result of content analysis attached to a
// record before persistence.
type Enrichment map[string]any

// RequestMode selects how the router treats a URL.
type RequestMode string

// Request modes.
const (
	// ModeDiscovery fetches the page and enqueues links matching the
	// selector instead of parsing the page itself.
	ModeDiscovery RequestMode = "discovery"
	// ModeParse fetches, parses and stores the page.
	ModeParse RequestMode = "parse"
)

// Request is one unit of crawl work flowing through the worker pool.
type Request struct {
	URL          string
	Mode         RequestMode
	Selector     string
	ForcedParser string
	Depth        int
}
