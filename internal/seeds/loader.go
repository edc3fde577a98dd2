// Package seeds parses seed files into typed crawl targets.
//
// A seed file is UTF-8 text with one seed per line. Blank lines and
// lines starting with '#' are ignored. Every other line is either a
// bare http(s) URL or a JSON-like object with at least a "url" key.
// Loosely quoted objects ({url: 'https://...'}) are repaired before
// strict decoding. Output order equals input order; duplicates are not
// filtered here — deduplication belongs to the storage layer.
package seeds

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/scraper"
)

var unquotedKeyRe = regexp.MustCompile(`([{,]\s*)(\w+)\s*:`)

// Loader reads seed descriptors from files or readers.
type Loader struct {
	logger *zap.Logger
}

// NewLoader constructs a Loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadFile reads seeds from the file at path.
func (l *Loader) LoadFile(path string) ([]scraper.Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return l.Load(f)
}

// Load parses seeds from r. Malformed lines are logged and skipped;
// processing continues so one bad line never aborts the load.
func (l *Loader) Load(r io.Reader) ([]scraper.Seed, error) {
	var out []scraper.Seed
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seed, err := ParseLine(line, lineNum)
		if err != nil {
			l.logger.Warn("Skipping malformed seed line",
				zap.Int("line", lineNum),
				zap.Error(err),
			)
			continue
		}
		out = append(out, seed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	l.logger.Info("Loaded seeds", zap.Int("count", len(out)))
	return out, nil
}

// ParseLine interprets a single non-blank, non-comment seed line.
func ParseLine(line string, lineNum int) (scraper.Seed, error) {
	line = strings.TrimSpace(line)

	if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
		if seed, ok := decodeSeedObject(line); ok {
			return seed, nil
		}
		if seed, ok := decodeSeedObject(repairJSON(line)); ok {
			return seed, nil
		}
		return scraper.Seed{}, &scraper.MalformedSeedError{Line: lineNum, Text: line}
	}

	if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
		return scraper.Seed{URL: line}, nil
	}

	return scraper.Seed{}, &scraper.MalformedSeedError{Line: lineNum, Text: line}
}

func decodeSeedObject(line string) (scraper.Seed, bool) {
	var seed scraper.Seed
	if err := json.Unmarshal([]byte(line), &seed); err != nil {
		return scraper.Seed{}, false
	}
	if seed.URL == "" {
		return scraper.Seed{}, false
	}
	return seed, true
}

// repairJSON normalizes loosely quoted key/value text to strict JSON:
// unquoted keys gain double quotes and single-quoted strings become
// double-quoted.
func repairJSON(line string) string {
	fixed := unquotedKeyRe.ReplaceAllString(line, `$1"$2":`)
	return strings.ReplaceAll(fixed, "'", `"`)
}
