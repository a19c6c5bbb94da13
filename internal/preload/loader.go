package preload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPLoader warms a remote cache by fetching each image and discarding the body.
type HTTPLoader struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPLoader returns a loader with a per-image timeout.
func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	return &HTTPLoader{Client: http.DefaultClient, Timeout: timeout}
}

// Load fetches url. Any status outside 2xx is an error.
func (l *HTTPLoader) Load(ctx context.Context, url string) error {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
