// Package worker implements the bounded crawl worker pool.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

// Handler processes one request. It may enqueue follow-up requests
// (link discovery) through the provided enqueue function. A returned
// error aborts the whole pool run; per-page failures that should not
// abort the run are handled inside the Handler.
type Handler interface {
	Handle(ctx context.Context, req scraper.Request, enqueue func(scraper.Request)) error
}

// Config controls Pool behavior.
type Config struct {
	Concurrency int
	MaxRequests int
}

// Pool drains a dynamic request queue with a fixed number of workers.
// Unlike a channel-fed pool, the queue is unbounded so handlers can
// always enqueue without deadlocking against full workers.
type Pool struct {
	handler Handler
	cfg     Config
	logger  *zap.Logger
}

// NewPool constructs a Pool.
func NewPool(handler Handler, cfg Config, logger *zap.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pool{handler: handler, cfg: cfg, logger: logger}
}

// Run processes the initial requests plus everything handlers enqueue,
// and blocks until the queue drains or the context finishes. The first
// handler error stops intake and is returned after in-flight work
// settles.
func (p *Pool) Run(ctx context.Context, initial []scraper.Request) error {
	var (
		mu       sync.Mutex
		queue    []scraper.Request
		active   int
		accepted int
		closed   bool
		firstErr error
	)
	cond := sync.NewCond(&mu)

	enqueue := func(req scraper.Request) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		if p.cfg.MaxRequests > 0 && accepted >= p.cfg.MaxRequests {
			p.logger.Debug("request cap reached, dropping", zap.String("url", req.URL))
			return
		}
		accepted++
		queue = append(queue, req)
		cond.Signal()
	}

	for _, req := range initial {
		enqueue(req)
	}

	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		closed = true
		cond.Broadcast()
		mu.Unlock()
	})
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				for len(queue) == 0 && !closed {
					if active == 0 {
						closed = true
						cond.Broadcast()
						break
					}
					cond.Wait()
				}
				if closed || len(queue) == 0 {
					mu.Unlock()
					return
				}
				req := queue[0]
				queue = queue[1:]
				active++
				mu.Unlock()

				err := p.handler.Handle(ctx, req, enqueue)

				mu.Lock()
				active--
				if err != nil && firstErr == nil {
					firstErr = err
					closed = true
				}
				if len(queue) == 0 && active == 0 {
					closed = true
				}
				cond.Broadcast()
				mu.Unlock()
				if err != nil {
					p.logger.Error("request handling aborted run",
						zap.String("url", req.URL), zap.Error(err))
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
