package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves an asset from the upstream origin.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (*Entry, error)
}

// HTTPFetcher fetches assets from a base URL. Only a 200 response counts as
// a successful fetch.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher builds the fetcher.
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{baseURL: baseURL, client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, path string) (*Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Entry{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}
