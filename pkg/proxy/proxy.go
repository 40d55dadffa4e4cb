// Package proxy is the client for the remote now-playing proxy, a hosted
// service that runs the same lookups as the local fetchers from a server
// without browser restrictions. The proxy sleeps when idle, so its first
// response after a while is slow; the client reports that as Loading rather
// than as a failure.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zachfi/nowplaying/pkg/metadata"
)

// Kind classifies the outcome of a proxy request.
type Kind string

const (
	// Result carries a resolved value.
	Result Kind = "result"
	// UseLocal means the stream must be resolved by the local fetchers.
	UseLocal Kind = "use-local"
	// Loading means the proxy is starting up.
	Loading Kind = "loading"
	// None means the proxy found nothing.
	None Kind = "none"
	// UseFallback is None as reported by FetchNowPlayingWithFallback.
	UseFallback Kind = "use-fallback"
)

// StartingSource is the Result.Source of the cold start placeholder.
const StartingSource = "Server Starting"

const maxBodySize = 64 * 1024

var tracer = otel.Tracer("proxy")

// sourceNames maps the proxy's source identifiers to display labels.
var sourceNames = map[string]string{
	"nts":            "NTS Radio API",
	"airtimepro":     "Airtime Pro API",
	"cashmere":       "Cashmere Radio API",
	"icecast-status": "Icecast Server",
	"icy":            "ICY Stream",
	"icy-headers":    "ICY Headers",
	"generic-api":    "Station API",
	"radioking":      "Radio King API",
	"callshop-radio": "Callshop Radio JSON",
	"radio-browser":  "Radio-Browser API",
	"station-info":   "Station Info",
	"proxy-starting": StartingSource,
	"unknown":        "Metadata Server",
}

// SourceName translates a proxy source identifier.
func SourceName(s string) string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "Metadata Server"
}

// Request identifies the stream to resolve.
type Request struct {
	StreamURL string
	StationID string
	Homepage  string
	Country   string
}

// RequestFor builds a request for station.
func RequestFor(station metadata.Station) Request {
	return Request{
		StreamURL: station.URL,
		StationID: station.ID,
		Homepage:  station.Homepage,
		Country:   station.CountryCode,
	}
}

// Outcome is the classified answer of the proxy.
type Outcome struct {
	Kind   Kind
	Result *metadata.Result
	Reason string
}

type response struct {
	OK       bool   `json:"ok"`
	Source   string `json:"source"`
	Display  string `json:"display"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Raw      string `json:"raw"`
	CacheTTL int    `json:"cacheTtl"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

// Client talks to the remote proxy.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger.With("component", "proxy"),
	}
}

// Enabled reports whether a proxy base URL is configured.
func (c *Client) Enabled() bool {
	return c.cfg.BaseURL != ""
}

// ShouldUseProxy reports whether streamURL is resolved through the proxy.
// HLS streams carry their metadata in-band and are always handled locally.
func (c *Client) ShouldUseProxy(streamURL string) bool {
	return c.Enabled() && streamURL != "" && !strings.Contains(streamURL, ".m3u8")
}

// FetchNowPlaying asks the proxy for the current value of req.StreamURL. The
// only error returned is the cancellation of ctx; every other failure is an
// outcome.
func (c *Client) FetchNowPlaying(ctx context.Context, req Request) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "proxy.FetchNowPlaying")
	defer span.End()

	out, err := c.fetch(ctx, req)
	span.SetAttributes(attribute.String("outcome", string(out.Kind)))
	if err == nil {
		metricProxyRequests.WithLabelValues(string(out.Kind)).Inc()
	}
	return out, err
}

// FetchNowPlayingWithFallback is FetchNowPlaying with None reported as
// UseFallback, telling the caller to try the local fetchers.
func (c *Client) FetchNowPlayingWithFallback(ctx context.Context, req Request) (Outcome, error) {
	out, err := c.FetchNowPlaying(ctx, req)
	if err != nil {
		return out, err
	}
	if out.Kind == None {
		out.Kind = UseFallback
		if out.Reason == "" {
			out.Reason = "proxy-unavailable"
		}
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, req Request) (Outcome, error) {
	if req.StreamURL == "" {
		return Outcome{Kind: None, Reason: "missing-url"}, nil
	}
	if strings.Contains(req.StreamURL, ".m3u8") {
		return Outcome{Kind: UseLocal, Reason: "hls-client"}, nil
	}
	if !c.Enabled() {
		return Outcome{Kind: UseLocal, Reason: "proxy-disabled"}, nil
	}

	endpoint := c.cfg.BaseURL + "/v1/metadata?" + query(req).Encode()

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		last := attempt == c.cfg.MaxRetries

		resp, err := c.attempt(ctx, endpoint)
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}

		var statusErr *statusError
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded), errors.As(err, &statusErr) && statusErr.coldStart():
			if attempt == 0 {
				c.logger.Debug("proxy is starting", "err", err)
				return Outcome{Kind: Loading, Result: metadata.NewLoading(StartingSource), Reason: "proxy-starting"}, nil
			}
			c.logger.Debug("proxy request failed", "attempt", attempt+1, "err", err)
			return Outcome{Kind: None, Reason: "proxy-unavailable"}, nil
		default:
			c.logger.Debug("proxy request failed", "attempt", attempt+1, "err", err)
			if last {
				return Outcome{Kind: None, Reason: "proxy-unavailable"}, nil
			}
			if err := sleep(ctx, c.cfg.ErrorBackoff*time.Duration(attempt+1)); err != nil {
				return Outcome{}, err
			}
			continue
		}

		if resp.OK {
			return Outcome{Kind: Result, Result: resp.result()}, nil
		}

		switch resp.Reason {
		case "hls-client":
			return Outcome{Kind: UseLocal, Reason: resp.Reason}, nil
		case "invalid-url", "no-metadata", "blocked":
			return Outcome{Kind: None, Reason: resp.Reason}, nil
		case "timeout", "upstream-error", "server-error":
			if last {
				return Outcome{Kind: None, Reason: resp.Reason}, nil
			}
			c.logger.Debug("proxy reported retryable error", "reason", resp.Reason, "message", resp.Message)
			if err := sleep(ctx, c.cfg.RetryBackoff*time.Duration(attempt+1)); err != nil {
				return Outcome{}, err
			}
		default:
			c.logger.Debug("proxy reported error", "reason", resp.Reason, "message", resp.Message)
			return Outcome{Kind: None, Reason: resp.Reason}, nil
		}
	}

	return Outcome{Kind: None, Reason: "proxy-unavailable"}, nil
}

func (c *Client) attempt(ctx context.Context, endpoint string) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode}
	}

	var r response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&r); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &r, nil
}

// Health reports whether the proxy answers its health check.
func (c *Client) Health(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return false
	}
	return body.Status == "ok"
}

func (r *response) result() *metadata.Result {
	ttl := r.CacheTTL
	if ttl <= 0 {
		ttl = 15
	}
	return &metadata.Result{
		Source:     SourceName(r.Source),
		NowPlaying: r.Display,
		Artist:     r.Artist,
		Title:      r.Title,
		Raw:        r.Raw,
		CacheTTL:   ttl,
		FromProxy:  true,
		Timestamp:  time.Now(),
	}
}

func query(req Request) url.Values {
	q := url.Values{}
	q.Set("url", req.StreamURL)
	if req.StationID != "" {
		q.Set("stationId", req.StationID)
	}
	if req.Homepage != "" {
		q.Set("homepage", req.Homepage)
	}
	if req.Country != "" {
		q.Set("country", req.Country)
	}
	return q
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("proxy returned status %d", e.code)
}

// coldStart reports whether the status is what the proxy's host returns while
// the service boots.
func (e *statusError) coldStart() bool {
	switch e.code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
