// Package orchestrator partitions seed URLs into batches and drives
// their execution units through the substrate until every batch reaches
// a terminal state.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/metrics"
	"github.com/newsgrab/newsgrab/internal/scraper"
)

// Config controls orchestration behavior.
type Config struct {
	BatchSize       int
	MaxConcurrent   int
	PollInterval    time.Duration
	JobTimeout      time.Duration
	MaxRetries      int
	UnitConcurrency int
}

// Summary is the terminal accounting of one orchestration run. Lost
// units (substrate forgot the handle) count toward Total but neither
// Completed nor Failed.
type Summary struct {
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	Lost        int     `json:"lost"`
	SuccessRate float64 `json:"success_rate"`
}

// Orchestrator runs batches on a substrate.
type Orchestrator struct {
	substrate scraper.Substrate
	clock     scraper.Clock
	idGen     scraper.IDGenerator
	cfg       Config
	logger    *zap.Logger

	mu    sync.Mutex
	units map[string]*scraper.ExecutionUnit
}

// New constructs an Orchestrator.
func New(substrate scraper.Substrate, clock scraper.Clock, idGen scraper.IDGenerator, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		substrate: substrate,
		clock:     clock,
		idGen:     idGen,
		cfg:       cfg,
		logger:    logger,
		units:     make(map[string]*scraper.ExecutionUnit),
	}
}

// Partition splits urls into fixed-size batches, preserving order.
// Assignment is purely positional; the final batch may be short.
func Partition(urls []string, batchSize int, parser string) []scraper.Batch {
	if batchSize <= 0 {
		batchSize = 1
	}
	var batches []scraper.Batch
	for start := 0; start < len(urls); start += batchSize {
		end := start + batchSize
		if end > len(urls) {
			end = len(urls)
		}
		batches = append(batches, scraper.Batch{
			ID:     len(batches),
			URLs:   urls[start:end],
			Parser: parser,
			Status: scraper.BatchStatusPending,
		})
	}
	return batches
}

// Units returns a snapshot of every execution unit seen so far.
func (o *Orchestrator) Units() []scraper.ExecutionUnit {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]scraper.ExecutionUnit, 0, len(o.units))
	for _, unit := range o.units {
		out = append(out, *unit)
	}
	return out
}

// Run partitions urls and drives every batch to a terminal state. A
// failed unit is replaced by a fresh unit with a new job id and the
// retry count carried over, until the retry budget is exhausted, so
// each batch is submitted at most MaxRetries+1 times. A submit error
// aborts the run with a partial summary; a poll error is tolerated and
// retried on the next tick.
func (o *Orchestrator) Run(ctx context.Context, urls []string, parser string) (Summary, error) {
	batches := Partition(urls, o.cfg.BatchSize, parser)
	summary := Summary{Total: len(batches)}
	if len(batches) == 0 {
		return summary, nil
	}
	o.logger.Info("orchestration starting",
		zap.Int("urls", len(urls)),
		zap.Int("batches", len(batches)),
		zap.Int("max_concurrent", o.cfg.MaxConcurrent),
	)

	pending := make([]*scraper.ExecutionUnit, 0, len(batches))
	for _, batch := range batches {
		id, err := o.idGen.NewID()
		if err != nil {
			return summary, fmt.Errorf("generate job id: %w", err)
		}
		unit := &scraper.ExecutionUnit{
			JobID:     id,
			BatchID:   batch.ID,
			URLs:      batch.URLs,
			Parser:    batch.Parser,
			Status:    scraper.UnitStatusPending,
			CreatedAt: o.clock.Now(),
		}
		pending = append(pending, unit)
		o.mu.Lock()
		o.units[id] = unit
		o.mu.Unlock()
	}

	running := make(map[string]*scraper.ExecutionUnit)
	for len(pending) > 0 || len(running) > 0 {
		for len(pending) > 0 && len(running) < o.cfg.MaxConcurrent {
			unit := pending[0]
			pending = pending[1:]
			if err := o.submit(ctx, unit); err != nil {
				summary.SuccessRate = successRate(summary)
				return summary, err
			}
			running[unit.Handle] = unit
		}

		select {
		case <-ctx.Done():
			// In-flight units stay owned by the substrate; its own
			// timeout governs their cleanup.
			for _, unit := range running {
				o.logger.Warn("orchestration interrupted with unit in flight",
					zap.String("job_id", unit.JobID),
					zap.Int("batch_id", unit.BatchID),
					zap.String("handle", unit.Handle),
				)
			}
			summary.SuccessRate = successRate(summary)
			return summary, ctx.Err()
		case <-time.After(o.cfg.PollInterval):
		}

		for handle, unit := range running {
			state, err := o.substrate.Status(ctx, handle)
			if err != nil {
				o.logger.Warn("unit status poll failed",
					zap.String("job_id", unit.JobID), zap.Error(err))
				continue
			}
			switch state {
			case scraper.UnitStateRunning:
			case scraper.UnitStateCompleted:
				delete(running, handle)
				o.finish(unit, scraper.UnitStatusCompleted)
				summary.Completed++
			case scraper.UnitStateFailed:
				delete(running, handle)
				metrics.UnitFinished()
				now := o.clock.Now()
				o.mu.Lock()
				unit.Status = scraper.UnitStatusFailed
				unit.CompletedAt = &now
				o.mu.Unlock()
				if unit.RetryCount >= o.cfg.MaxRetries {
					metrics.ObserveUnit("failed")
					summary.Failed++
					o.logger.Error("unit failed permanently",
						zap.String("job_id", unit.JobID),
						zap.Int("batch_id", unit.BatchID),
						zap.Int("retry_count", unit.RetryCount),
					)
					continue
				}
				replacement, err := o.respawn(unit)
				if err != nil {
					summary.SuccessRate = successRate(summary)
					return summary, err
				}
				o.logger.Warn("unit failed, retrying",
					zap.String("job_id", unit.JobID),
					zap.String("retry_job_id", replacement.JobID),
					zap.Int("batch_id", unit.BatchID),
					zap.Int("retry", replacement.RetryCount),
				)
				pending = append(pending, replacement)
			case scraper.UnitStateNotFound:
				// The substrate forgot the unit. Nothing to retry
				// against, so the batch is dropped from the accounting:
				// neither a success nor a failure.
				delete(running, handle)
				metrics.UnitFinished()
				o.mark(unit, scraper.UnitStatusFailed, "lost")
				summary.Lost++
				o.logger.Warn("unit lost by substrate",
					zap.String("job_id", unit.JobID),
					zap.Int("batch_id", unit.BatchID),
				)
			}
		}
	}

	summary.SuccessRate = successRate(summary)
	o.logger.Info("orchestration finished",
		zap.Int("total", summary.Total),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("lost", summary.Lost),
		zap.Float64("success_rate", summary.SuccessRate),
	)
	return summary, nil
}

func (o *Orchestrator) submit(ctx context.Context, unit *scraper.ExecutionUnit) error {
	handle, err := o.substrate.Submit(ctx, scraper.UnitSpec{
		BatchID:     unit.BatchID,
		URLs:        unit.URLs,
		Parser:      unit.Parser,
		Concurrency: o.cfg.UnitConcurrency,
		Timeout:     o.cfg.JobTimeout,
		MaxRetries:  o.cfg.MaxRetries,
	})
	if err != nil {
		o.logger.Error("unit submission failed",
			zap.String("job_id", unit.JobID),
			zap.Int("batch_id", unit.BatchID),
			zap.Error(err),
		)
		return fmt.Errorf("submit batch %d: %w", unit.BatchID, err)
	}
	now := o.clock.Now()
	o.mu.Lock()
	unit.Handle = handle
	unit.Status = scraper.UnitStatusRunning
	unit.StartedAt = &now
	o.mu.Unlock()
	metrics.UnitStarted()
	o.logger.Info("unit submitted",
		zap.String("job_id", unit.JobID),
		zap.Int("batch_id", unit.BatchID),
		zap.String("handle", handle),
		zap.Int("urls", len(unit.URLs)),
	)
	return nil
}

// respawn builds the replacement unit for a failed one: same batch
// contents, new job id, retry count carried over.
func (o *Orchestrator) respawn(failed *scraper.ExecutionUnit) (*scraper.ExecutionUnit, error) {
	id, err := o.idGen.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate retry job id: %w", err)
	}
	unit := &scraper.ExecutionUnit{
		JobID:      id,
		BatchID:    failed.BatchID,
		URLs:       failed.URLs,
		Parser:     failed.Parser,
		Status:     scraper.UnitStatusPending,
		CreatedAt:  o.clock.Now(),
		RetryCount: failed.RetryCount + 1,
	}
	o.mu.Lock()
	o.units[id] = unit
	o.mu.Unlock()
	return unit, nil
}

func (o *Orchestrator) finish(unit *scraper.ExecutionUnit, status scraper.UnitStatus) {
	metrics.UnitFinished()
	o.mark(unit, status, string(status))
}

func (o *Orchestrator) mark(unit *scraper.ExecutionUnit, status scraper.UnitStatus, metric string) {
	now := o.clock.Now()
	o.mu.Lock()
	unit.Status = status
	unit.CompletedAt = &now
	o.mu.Unlock()
	metrics.ObserveUnit(metric)
}

func successRate(s Summary) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}
