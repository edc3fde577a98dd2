// Package postgres provides the Postgres-backed ArticleStore.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsgrab/newsgrab/internal/fingerprint"
	"github.com/newsgrab/newsgrab/internal/scraper"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements scraper.ArticleStore on Postgres. Deduplication
// relies on the url_tracker primary key: the claim insert either wins
// the row or reports zero rows affected, which makes concurrent stores
// of the same url race-free without advisory locks.
type Store struct {
	pool  dbPool
	clock scraper.Clock
	idGen scraper.IDGenerator
}

// NewStore connects a pool and returns a Store.
func NewStore(ctx context.Context, cfg Config, clock scraper.Clock, idGen scraper.IDGenerator) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %v", scraper.ErrStorageUnavailable, err)
	}
	return &Store{pool: pool, clock: clock, idGen: idGen}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily
// for testing).
func NewStoreWithPool(pool dbPool, clock scraper.Clock, idGen scraper.IDGenerator) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool, clock: clock, idGen: idGen}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS url_tracker (
			url_hash       TEXT PRIMARY KEY,
			original_url   TEXT NOT NULL,
			first_seen     TIMESTAMPTZ NOT NULL,
			last_seen      TIMESTAMPTZ NOT NULL,
			scrape_count   INTEGER NOT NULL DEFAULT 1,
			last_record_id TEXT,
			status         TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id            TEXT PRIMARY KEY,
			url           TEXT NOT NULL,
			url_hash      TEXT NOT NULL,
			content_hash  TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			content       TEXT NOT NULL DEFAULT '',
			author        TEXT NOT NULL DEFAULT '',
			published_at  TIMESTAMPTZ,
			scraped_at    TIMESTAMPTZ NOT NULL,
			source_domain TEXT NOT NULL DEFAULT '',
			parser_used   TEXT NOT NULL DEFAULT '',
			enrichment    JSONB,
			version       INTEGER NOT NULL DEFAULT 1,
			status        TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS content_history (
			url_hash     TEXT NOT NULL,
			scraped_at   TIMESTAMPTZ NOT NULL,
			record_id    TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			change_type  TEXT NOT NULL,
			PRIMARY KEY (url_hash, scraped_at, record_id)
		)`,
		`CREATE TABLE IF NOT EXISTS seeds (
			id            TEXT PRIMARY KEY,
			url           TEXT NOT NULL,
			label         TEXT NOT NULL DEFAULT '',
			parser        TEXT NOT NULL DEFAULT '',
			priority      INTEGER NOT NULL DEFAULT 0,
			added_at      TIMESTAMPTZ NOT NULL,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			status        TEXT NOT NULL DEFAULT 'active'
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_stats (
			day    DATE NOT NULL,
			hour   INTEGER NOT NULL,
			metric TEXT NOT NULL,
			count  BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (day, hour, metric)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %v", scraper.ErrStorageUnavailable, err)
		}
	}
	return nil
}

// StoreRecord implements scraper.ArticleStore. The whole operation runs
// in one transaction so a crash never leaves a claimed url without its
// article row.
func (s *Store) StoreRecord(ctx context.Context, rec *scraper.Record, parserName string) (scraper.StoreResult, error) {
	now := s.clock.Now()
	urlHash := fingerprint.URLHash(rec.URL)
	contentHash := fingerprint.ContentHash(rec.Content)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return scraper.StoreResult{}, fmt.Errorf("%w: begin store tx: %v", scraper.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	claim, err := tx.Exec(ctx, `
		INSERT INTO url_tracker (url_hash, original_url, first_seen, last_seen, scrape_count, status)
		VALUES ($1, $2, $3, $3, 1, $4)
		ON CONFLICT (url_hash) DO NOTHING`,
		urlHash, rec.URL, now, scraper.TrackingStatusPending)
	if err != nil {
		return scraper.StoreResult{}, fmt.Errorf("%w: claim url: %v", scraper.ErrStorageUnavailable, err)
	}

	if claim.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE url_tracker
			SET last_seen = $1, scrape_count = scrape_count + 1, status = $2
			WHERE url_hash = $3`,
			now, scraper.TrackingStatusDuplicate, urlHash); err != nil {
			return scraper.StoreResult{}, fmt.Errorf("%w: mark duplicate: %v", scraper.ErrStorageUnavailable, err)
		}
		if err := s.bumpStat(ctx, tx, now, "duplicates_skipped"); err != nil {
			return scraper.StoreResult{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return scraper.StoreResult{}, fmt.Errorf("%w: commit duplicate: %v", scraper.ErrStorageUnavailable, err)
		}
		return scraper.StoreResult{Outcome: scraper.OutcomeDuplicate}, nil
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return scraper.StoreResult{}, fmt.Errorf("generate record id: %w", err)
	}

	var enrichment []byte
	if rec.Enrichment != nil {
		enrichment, err = json.Marshal(rec.Enrichment)
		if err != nil {
			return scraper.StoreResult{}, fmt.Errorf("marshal enrichment: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO articles (
			id, url, url_hash, content_hash, title, content, author,
			published_at, scraped_at, source_domain, parser_used,
			enrichment, version, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,1,$13)`,
		id, rec.URL, urlHash, contentHash, rec.Title, rec.Content, rec.Author,
		rec.PublishedAt, now, rec.SourceDomain, parserName,
		enrichment, scraper.RecordStatusActive); err != nil {
		return scraper.StoreResult{}, fmt.Errorf("%w: insert article: %v", scraper.ErrStorageUnavailable, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO content_history (url_hash, scraped_at, record_id, content_hash, change_type)
		VALUES ($1, $2, $3, $4, 'new')`,
		urlHash, now, id, contentHash); err != nil {
		return scraper.StoreResult{}, fmt.Errorf("%w: insert history: %v", scraper.ErrStorageUnavailable, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE url_tracker SET last_record_id = $1, status = $2 WHERE url_hash = $3`,
		id, scraper.TrackingStatusProcessed, urlHash); err != nil {
		return scraper.StoreResult{}, fmt.Errorf("%w: finish claim: %v", scraper.ErrStorageUnavailable, err)
	}

	if err := s.bumpStat(ctx, tx, now, "articles_scraped"); err != nil {
		return scraper.StoreResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return scraper.StoreResult{}, fmt.Errorf("%w: commit store: %v", scraper.ErrStorageUnavailable, err)
	}

	return scraper.StoreResult{Outcome: scraper.OutcomeStored, RecordID: id, Version: 1}, nil
}

// AddSeed implements scraper.ArticleStore.
func (s *Store) AddSeed(ctx context.Context, url, label, parser string, priority int) error {
	id, err := s.idGen.NewID()
	if err != nil {
		return fmt.Errorf("generate seed id: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO seeds (id, url, label, parser, priority, added_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'active')`,
		id, url, label, parser, priority, s.clock.Now()); err != nil {
		return fmt.Errorf("%w: insert seed: %v", scraper.ErrStorageUnavailable, err)
	}
	return nil
}

// ListActiveSeeds implements scraper.ArticleStore.
func (s *Store) ListActiveSeeds(ctx context.Context, limit int) ([]scraper.ManagedSeed, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, url, label, parser, priority, added_at, success_count, failure_count, status
		FROM seeds
		WHERE status = 'active'
		ORDER BY priority DESC, added_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list seeds: %v", scraper.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var seeds []scraper.ManagedSeed
	for rows.Next() {
		var seed scraper.ManagedSeed
		if err := rows.Scan(&seed.ID, &seed.URL, &seed.Label, &seed.Parser, &seed.Priority,
			&seed.AddedAt, &seed.SuccessCount, &seed.FailureCount, &seed.Status); err != nil {
			return nil, fmt.Errorf("scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate seeds: %v", scraper.ErrStorageUnavailable, err)
	}
	return seeds, nil
}

// Statistics implements scraper.ArticleStore.
func (s *Store) Statistics(ctx context.Context, windowDays int) (map[string]int64, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -windowDays)
	rows, err := s.pool.Query(ctx, `
		SELECT metric, SUM(count)
		FROM crawl_stats
		WHERE day >= $1
		GROUP BY metric`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: query stats: %v", scraper.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var metric string
		var count int64
		if err := rows.Scan(&metric, &count); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		out[metric] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate stats: %v", scraper.ErrStorageUnavailable, err)
	}
	return out, nil
}

// History implements scraper.ArticleStore.
func (s *Store) History(ctx context.Context, urlHash string, limit int) ([]scraper.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT url_hash, scraped_at, record_id, content_hash, change_type
		FROM content_history
		WHERE url_hash = $1
		ORDER BY scraped_at DESC
		LIMIT $2`, urlHash, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query history: %v", scraper.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var entries []scraper.HistoryEntry
	for rows.Next() {
		var entry scraper.HistoryEntry
		if err := rows.Scan(&entry.URLHash, &entry.ScrapedAt, &entry.RecordID,
			&entry.ContentHash, &entry.ChangeType); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate history: %v", scraper.ErrStorageUnavailable, err)
	}
	return entries, nil
}

func (s *Store) bumpStat(ctx context.Context, tx pgx.Tx, now time.Time, metric string) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO crawl_stats (day, hour, metric, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (day, hour, metric) DO UPDATE SET count = crawl_stats.count + 1`,
		now.Format("2006-01-02"), now.Hour(), metric); err != nil {
		return fmt.Errorf("%w: bump %s: %v", scraper.ErrStorageUnavailable, metric, err)
	}
	return nil
}
