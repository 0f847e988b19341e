// Package templates retrieves remote binary document templates.
package templates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxTemplateSize bounds a fetched template at 20 MiB.
const maxTemplateSize = 20 << 20

// Fetcher downloads template bytes over HTTP.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher constructs a Fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch retrieves the template behind url. A non-success status is an
// error; the orchestrator wraps it into its fetch failure kind.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("templates: fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxTemplateSize))
}
