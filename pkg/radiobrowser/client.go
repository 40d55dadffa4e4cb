// Package radiobrowser is a small client for the public Radio-Browser station
// catalog (https://www.radio-browser.info).
package radiobrowser

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zachfi/zkit/pkg/util"
	"golang.org/x/time/rate"

	"github.com/zachfi/nowplaying/pkg/metadata"
)

const (
	defaultBaseURL    = "https://de1.api.radio-browser.info"
	defaultUserAgent  = "nowplaying/1.0"
	defaultTimeout    = 10 * time.Second
	defaultRateLimit  = 500 * time.Millisecond
	defaultBurstLimit = 4
	defaultLimit      = 50
)

// ErrNotFound is returned when a UUID lookup matches no station.
var ErrNotFound = errors.New("station not found")

type Config struct {
	BaseURL    string        `yaml:"base-url,omitempty"`
	UserAgent  string        `yaml:"user-agent,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	RateLimit  time.Duration `yaml:"rate-limit,omitempty"`
	BurstLimit int           `yaml:"burst-limit,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.BaseURL, util.PrefixConfig(prefix, "base-url"), defaultBaseURL, "Radio-Browser API server.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), defaultUserAgent, "User-Agent sent to Radio-Browser.")
	f.DurationVar(&cfg.Timeout, util.PrefixConfig(prefix, "timeout"), defaultTimeout, "Timeout for a single catalog request.")
	f.DurationVar(&cfg.RateLimit, util.PrefixConfig(prefix, "rate-limit"), defaultRateLimit, "Minimum interval between catalog requests.")
	f.IntVar(&cfg.BurstLimit, util.PrefixConfig(prefix, "burst-limit"), defaultBurstLimit, "Number of catalog requests allowed in a burst.")
}

// DefaultConfig returns the settings used when no flags are registered.
func DefaultConfig() Config {
	return Config{
		BaseURL:    defaultBaseURL,
		UserAgent:  defaultUserAgent,
		Timeout:    defaultTimeout,
		RateLimit:  defaultRateLimit,
		BurstLimit: defaultBurstLimit,
	}
}

// Station is a catalog entry. Only the fields the service uses are decoded.
type Station struct {
	StationUUID       string `json:"stationuuid"`
	Name              string `json:"name"`
	URL               string `json:"url"`
	URLResolved       string `json:"url_resolved"`
	Homepage          string `json:"homepage"`
	Favicon           string `json:"favicon"`
	CountryCode       string `json:"countrycode"`
	Tags              string `json:"tags"`
	Codec             string `json:"codec"`
	Bitrate           int    `json:"bitrate"`
	HLS               int    `json:"hls"`
	LastCheckOK       int    `json:"lastcheckok"`
	LastCheckTimeISO  string `json:"lastchecktime_iso8601"`
	LastChangeTimeISO string `json:"lastchangetime_iso8601"`
	ClickCount        int    `json:"clickcount"`
}

// LastCheck parses LastCheckTimeISO. The zero time is returned when the field
// is missing or malformed.
func (s Station) LastCheck() time.Time {
	t, err := time.Parse(time.RFC3339, s.LastCheckTimeISO)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Station converts the catalog entry to the shared station type. The resolved
// URL is preferred since it skips playlist indirection.
func (s Station) Station() metadata.Station {
	u := s.URLResolved
	if u == "" {
		u = s.URL
	}
	return metadata.Station{
		ID:          s.StationUUID,
		Name:        strings.TrimSpace(s.Name),
		URL:         u,
		Homepage:    s.Homepage,
		Favicon:     s.Favicon,
		CountryCode: s.CountryCode,
	}
}

// Client talks to one Radio-Browser server.
type Client struct {
	httpClient  *http.Client
	config      Config
	rateLimiter *rate.Limiter
}

// New creates a client. Zero config values fall back to DefaultConfig.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = def.BurstLimit
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		config:      cfg,
		rateLimiter: rate.NewLimiter(rate.Every(cfg.RateLimit), cfg.BurstLimit),
	}
}

// Search finds stations whose name contains name, most popular first.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]Station, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("hidebroken", "true")
	q.Set("order", "clickcount")
	q.Set("reverse", "true")

	var stations []Station
	if err := c.get(ctx, "/json/stations/search?"+q.Encode(), &stations); err != nil {
		return nil, fmt.Errorf("failed to search stations: %w", err)
	}
	return stations, nil
}

// ByUUID looks up a single station.
func (c *Client) ByUUID(ctx context.Context, uuid string) (*Station, error) {
	var stations []Station
	if err := c.get(ctx, "/json/stations/byuuid/"+url.PathEscape(uuid), &stations); err != nil {
		return nil, fmt.Errorf("failed to look up station %s: %w", uuid, err)
	}
	if len(stations) == 0 {
		return nil, ErrNotFound
	}
	return &stations[0], nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
