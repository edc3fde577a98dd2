// Package enrich provides a heuristic ContentEnricher. Model-backed
// analyzers live outside this process and plug in behind the same
// interface.
package enrich

import (
	"context"
	"strings"
	"unicode"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

var topicKeywords = map[string][]string{
	"finance":    {"market", "stocks", "inflation", "economy", "bank"},
	"politics":   {"election", "government", "senate", "policy", "minister"},
	"technology": {"software", "startup", "silicon", "chip", "internet"},
	"sports":     {"match", "league", "tournament", "championship", "goal"},
}

var positiveWords = []string{"growth", "success", "win", "record", "improve"}
var negativeWords = []string{"crisis", "loss", "decline", "fraud", "collapse"}

const wordsPerMinute = 200

// KeywordEnricher scores records with cheap lexical signals: word
// count, estimated reading time, matched topics and a naive sentiment.
type KeywordEnricher struct{}

// New constructs a KeywordEnricher.
func New() *KeywordEnricher {
	return &KeywordEnricher{}
}

// Analyze implements scraper.ContentEnricher.
func (e *KeywordEnricher) Analyze(_ context.Context, rec *scraper.Record) (scraper.Enrichment, error) {
	text := strings.ToLower(rec.Title + " " + rec.Content)
	words := countWords(text)

	var topics []string
	for topic, keywords := range topicKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				topics = append(topics, topic)
				break
			}
		}
	}

	readingTime := words / wordsPerMinute
	if words > 0 && readingTime == 0 {
		readingTime = 1
	}

	return scraper.Enrichment{
		"word_count":       words,
		"reading_time_min": readingTime,
		"topics":           topics,
		"sentiment":        sentiment(text),
	}, nil
}

func countWords(text string) int {
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
}

func sentiment(text string) string {
	score := 0
	for _, w := range positiveWords {
		score += strings.Count(text, w)
	}
	for _, w := range negativeWords {
		score -= strings.Count(text, w)
	}
	switch {
	case score > 0:
		return "positive"
	case score < 0:
		return "negative"
	default:
		return "neutral"
	}
}
