// Package memory provides an in-memory ArticleStore for development
// and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/newsgrab/newsgrab/internal/fingerprint"
	"github.com/newsgrab/newsgrab/internal/scraper"
)

type statBucket struct {
	day    string
	hour   int
	metric string
}

// Store implements scraper.ArticleStore with a single mutex. The
// mutex makes the duplicate-check-and-claim atomic per call, which
// satisfies the per-url-hash linearizability requirement trivially.
type Store struct {
	mu      sync.Mutex
	clock   scraper.Clock
	idGen   scraper.IDGenerator
	records map[string]scraper.Record
	tracker map[string]*scraper.URLTrackingEntry
	history map[string][]scraper.HistoryEntry
	seeds   []scraper.ManagedSeed
	stats   map[statBucket]int64
}

// NewStore constructs a Store.
func NewStore(clock scraper.Clock, idGen scraper.IDGenerator) *Store {
	return &Store{
		clock:   clock,
		idGen:   idGen,
		records: make(map[string]scraper.Record),
		tracker: make(map[string]*scraper.URLTrackingEntry),
		history: make(map[string][]scraper.HistoryEntry),
		stats:   make(map[statBucket]int64),
	}
}

// StoreRecord implements scraper.ArticleStore.
func (s *Store) StoreRecord(_ context.Context, rec *scraper.Record, parserName string) (scraper.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	urlHash := fingerprint.URLHash(rec.URL)
	contentHash := fingerprint.ContentHash(rec.Content)

	if entry, ok := s.tracker[urlHash]; ok &&
		(entry.Status == scraper.TrackingStatusProcessed || entry.Status == scraper.TrackingStatusDuplicate) {
		entry.LastSeen = now
		entry.ScrapeCount++
		entry.Status = scraper.TrackingStatusDuplicate
		s.bump(now, "duplicates_skipped")
		return scraper.StoreResult{Outcome: scraper.OutcomeDuplicate}, nil
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return scraper.StoreResult{}, err
	}

	stored := *rec
	stored.ID = id
	stored.URLHash = urlHash
	stored.ContentHash = contentHash
	stored.ParserUsed = parserName
	stored.ScrapedAt = now
	stored.Version = 1
	stored.Status = scraper.RecordStatusActive
	s.records[id] = stored

	s.tracker[urlHash] = &scraper.URLTrackingEntry{
		URLHash:      urlHash,
		OriginalURL:  rec.URL,
		FirstSeen:    now,
		LastSeen:     now,
		ScrapeCount:  1,
		LastRecordID: id,
		Status:       scraper.TrackingStatusProcessed,
	}
	s.history[urlHash] = append([]scraper.HistoryEntry{{
		URLHash:     urlHash,
		ScrapedAt:   now,
		RecordID:    id,
		ContentHash: contentHash,
		ChangeType:  "new",
	}}, s.history[urlHash]...)
	s.bump(now, "articles_scraped")

	return scraper.StoreResult{Outcome: scraper.OutcomeStored, RecordID: id, Version: 1}, nil
}

// AddSeed implements scraper.ArticleStore.
func (s *Store) AddSeed(_ context.Context, url, label, parser string, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.idGen.NewID()
	if err != nil {
		return err
	}
	s.seeds = append(s.seeds, scraper.ManagedSeed{
		ID:       id,
		URL:      url,
		Label:    label,
		Parser:   parser,
		Priority: priority,
		AddedAt:  s.clock.Now(),
		Status:   "active",
	})
	return nil
}

// ListActiveSeeds implements scraper.ArticleStore, ordered by priority
// descending.
func (s *Store) ListActiveSeeds(_ context.Context, limit int) ([]scraper.ManagedSeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]scraper.ManagedSeed, 0, len(s.seeds))
	for _, seed := range s.seeds {
		if seed.Status == "active" {
			out = append(out, seed)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Statistics implements scraper.ArticleStore, summing time-bucketed
// counters over the window.
func (s *Store) Statistics(_ context.Context, windowDays int) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().AddDate(0, 0, -windowDays).Format("2006-01-02")
	out := make(map[string]int64)
	for bucket, count := range s.stats {
		if bucket.day >= cutoff {
			out[bucket.metric] += count
		}
	}
	return out, nil
}

// History implements scraper.ArticleStore, newest first.
func (s *Store) History(_ context.Context, urlHash string, limit int) ([]scraper.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history[urlHash]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]scraper.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Record returns a stored record by id (test helper).
func (s *Store) Record(id string) (scraper.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Tracking returns the tracking entry for a url hash (test helper).
func (s *Store) Tracking(urlHash string) (scraper.URLTrackingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tracker[urlHash]
	if !ok {
		return scraper.URLTrackingEntry{}, false
	}
	return *entry, true
}

// RecordCount reports how many content rows exist (test helper).
func (s *Store) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close implements scraper.ArticleStore.
func (s *Store) Close() {}

func (s *Store) bump(now time.Time, metric string) {
	s.stats[statBucket{
		day:    now.Format("2006-01-02"),
		hour:   now.Hour(),
		metric: metric,
	}]++
}
