// Package local runs execution units in-process, one goroutine per
// unit. It stands in for a remote batch backend during development and
// single-node deployments.
package local

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

// RunFunc executes the work of one unit. The context carries the unit
// deadline.
type RunFunc func(ctx context.Context, spec scraper.UnitSpec) error

// Substrate implements scraper.Substrate with in-process goroutines.
type Substrate struct {
	run    RunFunc
	idGen  scraper.IDGenerator
	logger *zap.Logger

	mu     sync.Mutex
	states map[string]scraper.UnitState
	wg     sync.WaitGroup
}

// New constructs a Substrate.
func New(run RunFunc, idGen scraper.IDGenerator, logger *zap.Logger) *Substrate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Substrate{
		run:    run,
		idGen:  idGen,
		logger: logger,
		states: make(map[string]scraper.UnitState),
	}
}

// Submit starts the unit and returns its handle immediately. The unit
// deadline is owned here: the spec timeout bounds the whole run.
func (s *Substrate) Submit(ctx context.Context, spec scraper.UnitSpec) (string, error) {
	handle, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate unit handle: %w", err)
	}

	s.mu.Lock()
	s.states[handle] = scraper.UnitStateRunning
	s.mu.Unlock()

	var unitCtx context.Context
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		unitCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	} else {
		unitCtx, cancel = context.WithCancel(ctx)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		err := s.run(unitCtx, spec)

		state := scraper.UnitStateCompleted
		if err != nil {
			state = scraper.UnitStateFailed
			s.logger.Error("unit run failed",
				zap.String("handle", handle),
				zap.Int("batch_id", spec.BatchID),
				zap.Error(err),
			)
		}
		s.mu.Lock()
		s.states[handle] = state
		s.mu.Unlock()
	}()

	return handle, nil
}

// Status reports the state of a previously submitted unit. An unknown
// handle is reported as not found, never as an error.
func (s *Substrate) Status(_ context.Context, handle string) (scraper.UnitState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[handle]
	if !ok {
		return scraper.UnitStateNotFound, nil
	}
	return state, nil
}

// Wait blocks until every submitted unit has finished. Useful for
// shutdown and tests.
func (s *Substrate) Wait() {
	s.wg.Wait()
}
