// Package registry holds the set of available parsers and selects the
// best match for a URL.
//
// Parsers are assembled into a fixed registration list at process start
// (see cmd wiring); there is no runtime discovery. Registration order
// is the selection tie-break, so operators must register more specific
// parsers before generic ones.
package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

// Registry stores parsers by unique id, preserving registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	parsers map[string]scraper.Parser
	logger  *zap.Logger
}

// New constructs an empty Registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		parsers: make(map[string]scraper.Parser),
		logger:  logger,
	}
}

// Register adds a parser by id. An id collision overwrites the previous
// parser (last write wins) and keeps its original position in the
// selection order.
func (r *Registry) Register(p scraper.Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parsers[p.ID()]; exists {
		r.logger.Warn("Overwriting registered parser", zap.String("parser", p.ID()))
	} else {
		r.order = append(r.order, p.ID())
	}
	r.parsers[p.ID()] = p
	r.logger.Info("Registered parser", zap.String("parser", p.ID()))
}

// Get returns the parser with the given id, or nil.
func (r *Registry) Get(id string) scraper.Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parsers[id]
}

// All returns registered parsers in registration order.
func (r *Registry) All() []scraper.Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]scraper.Parser, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.parsers[id])
	}
	return out
}

// ByDomain returns every parser listing the given domain. A parser may
// list zero or more domains; the result is non-exclusive.
func (r *Registry) ByDomain(domain string) []scraper.Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []scraper.Parser
	for _, id := range r.order {
		p := r.parsers[id]
		for _, d := range p.Domains() {
			if strings.EqualFold(d, domain) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// articlePathRe matches /YYYY/MM/-shaped path segments common in news
// and blog permalinks.
var articlePathRe = regexp.MustCompile(`/(19|20)\d{2}/\d{1,2}(/|$)`)

var articleHints = []string{"news", "article", "story", "post", "blog"}

// LooksLikeArticle applies the lexical fallback heuristic to a URL.
// The original implementation additionally issued a live HEAD probe and
// treated any network error as a match; that fails open and is
// intentionally not reproduced here.
func LooksLikeArticle(url string) bool {
	lower := strings.ToLower(url)
	for _, hint := range articleHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return articlePathRe.MatchString(lower)
}

// Selector picks a parser for a URL.
type Selector struct {
	registry  *Registry
	defaultID string
	logger    *zap.Logger
}

// NewSelector constructs a Selector. defaultID names the parser used by
// the lexical fallback; it may be empty to disable the fallback.
func NewSelector(registry *Registry, defaultID string, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		registry:  registry,
		defaultID: defaultID,
		logger:    logger,
	}
}

// Select resolves the parser for url.
//
// A forced id always wins over auto-selection, even when it resolves to
// nothing — the explicit choice is the caller's responsibility.
// Otherwise the first registered parser whose CanHandle reports true is
// returned; a parser that errors or panics is treated as a non-match so
// a broken parser never blocks the others. If nothing matched, the
// lexical article heuristic may fall back to the default parser.
// Returns nil when no parser applies.
func (s *Selector) Select(ctx context.Context, url, forcedID string) scraper.Parser {
	if forcedID != "" {
		p := s.registry.Get(forcedID)
		if p == nil {
			s.logger.Warn("Forced parser not found", zap.String("parser", forcedID))
		}
		return p
	}

	for _, p := range s.registry.All() {
		ok, err := s.safeCanHandle(ctx, p, url)
		if err != nil {
			s.logger.Warn("Parser CanHandle failed",
				zap.String("parser", p.ID()),
				zap.String("url", url),
				zap.Error(err),
			)
			continue
		}
		if ok {
			s.logger.Debug("Selected parser",
				zap.String("parser", p.ID()),
				zap.String("url", url),
			)
			return p
		}
	}

	if s.defaultID != "" && LooksLikeArticle(url) {
		if p := s.registry.Get(s.defaultID); p != nil {
			s.logger.Debug("Falling back to default parser",
				zap.String("parser", s.defaultID),
				zap.String("url", url),
			)
			return p
		}
	}

	s.logger.Debug("No suitable parser", zap.String("url", url))
	return nil
}

func (s *Selector) safeCanHandle(ctx context.Context, p scraper.Parser, url string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("panic in CanHandle: %v", r)
		}
	}()
	return p.CanHandle(ctx, url)
}
