// Package fetchers implements the per-protocol strategies that look up what a
// station is currently playing. Fetchers never fail loudly: any error degrades
// to a nil result, which means "no signal from this source".
package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/selector"
)

// UserAgent is sent on every fetcher request.
var UserAgent = "nowplaying/1.0"

// maxBodySize caps JSON documents. Busy Icecast servers list hundreds of
// mounts in a single status document.
const maxBodySize = 1 << 20

// Fetcher resolves the now-playing value for one source of a plan.
type Fetcher interface {
	Fetch(ctx context.Context, station metadata.Station, src selector.Source) *metadata.Result
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// base carries what every HTTP backed fetcher needs.
type base struct {
	client *http.Client
	logger *slog.Logger
}

func newBase(client *http.Client, logger *slog.Logger, name string) base {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return base{client: client, logger: logger.With("fetcher", name)}
}

// get issues a GET request and returns the response for a 2xx status. The
// caller closes the body.
func (b base) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Cache-Control", "no-store")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	return resp, nil
}

// getJSON fetches url within timeout and decodes the body into a generic
// document.
func (b base) getJSON(ctx context.Context, url string, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := b.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var doc any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return doc, nil
}

// newResult normalizes text and returns a result for it, or nil when nothing
// displayable is left.
func newResult(source, text string) *metadata.Result {
	text = metadata.Normalize(text)
	if text == "" || metadata.IsGenericOrInvalid(text) {
		return nil
	}
	return &metadata.Result{
		Source:     source,
		NowPlaying: text,
		Timestamp:  time.Now(),
	}
}

// number reads the first numeric value found under keys.
func number(doc map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := doc[k].(type) {
		case float64:
			if v != 0 {
				return int(v)
			}
		case json.Number:
			if n, err := v.Int64(); err == nil && n != 0 {
				return int(n)
			}
		}
	}
	return 0
}
