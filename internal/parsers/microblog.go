package parsers

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

// MicroblogID is the registry id of the microblog post parser.
const MicroblogID = "microblog"

var microblogDomains = []string{"weibo.com", "m.weibo.cn"}

// Microblog extracts short-form posts from microblog detail pages.
// Unlike the generic parser it is scoped to known hosts and relies on
// site selectors rather than readability heuristics.
type Microblog struct {
	logger *zap.Logger
}

// NewMicroblog constructs the parser.
func NewMicroblog(logger *zap.Logger) *Microblog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Microblog{logger: logger}
}

// ID implements scraper.Parser.
func (p *Microblog) ID() string { return MicroblogID }

// Domains implements scraper.Parser.
func (p *Microblog) Domains() []string { return microblogDomains }

// CanHandle matches post URLs on the parser's domains.
func (p *Microblog) CanHandle(_ context.Context, pageURL string) (bool, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false, err
	}
	host := strings.ToLower(parsed.Host)
	for _, d := range microblogDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true, nil
		}
	}
	return false, nil
}

// Parse extracts the post text and author via site selectors.
func (p *Microblog) Parse(_ context.Context, page scraper.RenderedPage) (*scraper.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, err
	}

	content := firstText(doc, ".weibo-text", ".post-content", `[class*="detail_wbtext"]`)
	if content == "" {
		p.logger.Debug("No post content found", zap.String("url", page.URL))
		return nil, nil
	}

	rec := &scraper.Record{
		URL:          page.URL,
		Title:        truncate(content, 80),
		Content:      content,
		Author:       firstText(doc, ".author-name", ".username", `[class*="head_name"]`),
		SourceDomain: hostOf(page.URL),
	}
	return rec, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
