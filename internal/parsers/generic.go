// Package parsers contains the concrete parser capabilities wired into
// the registry at startup.
package parsers

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/registry"
	"github.com/newsgrab/newsgrab/internal/scraper"
)

// GenericNewsID is the registry id of the generic news parser, also
// used as the lexical-fallback default.
const GenericNewsID = "generic-news"

// GenericNews extracts articles from arbitrary news-like pages using
// metadata tags and readability-based content extraction.
type GenericNews struct {
	logger *zap.Logger
}

// NewGenericNews constructs the parser.
func NewGenericNews(logger *zap.Logger) *GenericNews {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenericNews{logger: logger}
}

// ID implements scraper.Parser.
func (p *GenericNews) ID() string { return GenericNewsID }

// Domains implements scraper.Parser; the generic parser is not scoped
// to any domain.
func (p *GenericNews) Domains() []string { return nil }

// CanHandle matches URLs that lexically look like article permalinks.
func (p *GenericNews) CanHandle(_ context.Context, pageURL string) (bool, error) {
	return registry.LooksLikeArticle(pageURL), nil
}

// Parse extracts title, author, publication date and main content.
// Returns nil when the page yields neither a title nor content.
func (p *GenericNews) Parse(_ context.Context, page scraper.RenderedPage) (*scraper.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, err
	}

	rec := &scraper.Record{
		URL:          page.URL,
		Title:        extractTitle(doc),
		Author:       extractAuthor(doc),
		PublishedAt:  extractPublished(doc),
		SourceDomain: hostOf(page.URL),
	}
	rec.Content = p.extractContent(page)
	if rec.Content == "" {
		rec.Content = paragraphText(doc)
	}

	if rec.Title == "" && rec.Content == "" {
		return nil, nil
	}
	return rec, nil
}

func (p *GenericNews) extractContent(page scraper.RenderedPage) string {
	parsed, err := url.Parse(page.URL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(page.HTML), parsed)
	if err != nil {
		p.logger.Debug("Readability extraction failed",
			zap.String("url", page.URL),
			zap.Error(err),
		)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func extractTitle(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(doc.Find("h1").First().Text()); v != "" {
		return v
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extractAuthor(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[name="author"]`,
		`meta[property="article:author"]`,
	} {
		if v, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(doc.Find(`[rel="author"]`).First().Text())
}

func extractPublished(doc *goquery.Document) *time.Time {
	for _, sel := range []string{
		`meta[property="article:published_time"]`,
		`meta[name="pubdate"]`,
		`meta[name="date"]`,
	} {
		if v, ok := doc.Find(sel).Attr("content"); ok {
			if ts, err := dateparse.ParseAny(strings.TrimSpace(v)); err == nil {
				utc := ts.UTC()
				return &utc
			}
		}
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if ts, err := dateparse.ParseAny(strings.TrimSpace(v)); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}

func paragraphText(doc *goquery.Document) string {
	var parts []string
	doc.Find("article p, main p, p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(dedupeStrings(parts), "\n\n")
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Host
}
