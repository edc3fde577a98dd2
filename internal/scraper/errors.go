package scraper

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable signals that the backing store could not be
// reached. Callers must treat the crawl attempt as failed and retryable
// without dropping the in-flight record.
var ErrStorageUnavailable = errors.New("storage unavailable")

// MalformedSeedError reports a seed line that is neither a bare
// http(s) URL nor a JSON-like object with a url key.
type MalformedSeedError struct {
	Line int
	Text string
}

func (e *MalformedSeedError) Error() string {
	return fmt.Sprintf("malformed seed at line %d: %q", e.Line, e.Text)
}
