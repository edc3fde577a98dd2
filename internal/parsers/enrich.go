package parsers

import (
	"context"

	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

// enrichedParser decorates a base parser with a content enricher. The
// capability interface replaces the subclass-based "enhanced parser" of
// older designs: composition over inheritance.
type enrichedParser struct {
	scraper.Parser
	enricher scraper.ContentEnricher
	logger   *zap.Logger
}

// WithEnrichment wraps p so every parsed record is run through the
// enricher before being returned. Enrichment failure is logged and the
// record is returned unenriched; analysis is best-effort by contract.
func WithEnrichment(p scraper.Parser, enricher scraper.ContentEnricher, logger *zap.Logger) scraper.Parser {
	if enricher == nil {
		return p
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &enrichedParser{Parser: p, enricher: enricher, logger: logger}
}

func (e *enrichedParser) Parse(ctx context.Context, page scraper.RenderedPage) (*scraper.Record, error) {
	rec, err := e.Parser.Parse(ctx, page)
	if err != nil || rec == nil {
		return rec, err
	}
	enrichment, err := e.enricher.Analyze(ctx, rec)
	if err != nil {
		e.logger.Warn("Content enrichment failed",
			zap.String("parser", e.Parser.ID()),
			zap.String("url", rec.URL),
			zap.Error(err),
		)
		return rec, nil
	}
	rec.Enrichment = enrichment
	return rec, nil
}
