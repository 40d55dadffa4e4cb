package proxy

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultHealthTimeout = 3 * time.Second
	defaultMaxRetries    = 1
	defaultRetryBackoff  = 1 * time.Second
	defaultErrorBackoff  = 2 * time.Second
	defaultUserAgent     = "nowplaying/1.0"
)

// Config for the remote metadata proxy. An empty BaseURL disables the proxy
// and every request is answered with UseLocal.
type Config struct {
	BaseURL       string        `yaml:"base-url,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`        // per attempt; generous because the proxy cold starts
	HealthTimeout time.Duration `yaml:"health-timeout,omitempty"` // for /health only
	MaxRetries    int           `yaml:"max-retries,omitempty"`
	RetryBackoff  time.Duration `yaml:"retry-backoff,omitempty"` // after a retryable proxy reason, multiplied by attempt+1
	ErrorBackoff  time.Duration `yaml:"error-backoff,omitempty"` // after a transport error or bad status, multiplied by attempt+1
	UserAgent     string        `yaml:"user-agent,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.BaseURL, util.PrefixConfig(prefix, "base-url"), "", "Base URL of the remote metadata proxy. Empty disables the proxy.")
	f.DurationVar(&cfg.Timeout, util.PrefixConfig(prefix, "timeout"), defaultTimeout, "Timeout for a single proxy attempt.")
	f.DurationVar(&cfg.HealthTimeout, util.PrefixConfig(prefix, "health-timeout"), defaultHealthTimeout, "Timeout for the proxy health check.")
	f.IntVar(&cfg.MaxRetries, util.PrefixConfig(prefix, "max-retries"), defaultMaxRetries, "Retries after the first proxy attempt.")
	f.DurationVar(&cfg.RetryBackoff, util.PrefixConfig(prefix, "retry-backoff"), defaultRetryBackoff, "Backoff unit after a retryable proxy error.")
	f.DurationVar(&cfg.ErrorBackoff, util.PrefixConfig(prefix, "error-backoff"), defaultErrorBackoff, "Backoff unit after a transport error or bad status.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), defaultUserAgent, "User-Agent sent to the proxy.")
}

func (cfg *Config) applyDefaults() {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = defaultHealthTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaultErrorBackoff
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
}
