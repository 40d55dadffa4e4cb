package nowplaying

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultPollInterval = 20 * time.Second
	defaultInitialDelay = 2 * time.Second
	defaultMaxRetries   = 2
	defaultRetryBackoff = 1 * time.Second
)

type Config struct {
	PollInterval        time.Duration `yaml:"poll-interval,omitempty"`
	InitialDelay        time.Duration `yaml:"initial-delay,omitempty"` // lets the audio engine settle before the first lookup
	MaxRetries          int           `yaml:"max-retries,omitempty"`
	RetryBackoff        time.Duration `yaml:"retry-backoff,omitempty"` // multiplied by the retry number
	StationNameFallback bool          `yaml:"station-name-fallback,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.PollInterval, util.PrefixConfig(prefix, "poll-interval"), defaultPollInterval, "How often the now playing value is refreshed.")
	f.DurationVar(&cfg.InitialDelay, util.PrefixConfig(prefix, "initial-delay"), defaultInitialDelay, "Delay between starting a station and the first lookup.")
	f.IntVar(&cfg.MaxRetries, util.PrefixConfig(prefix, "max-retries"), defaultMaxRetries, "Retries of a failed lookup before waiting for the next refresh.")
	f.DurationVar(&cfg.RetryBackoff, util.PrefixConfig(prefix, "retry-backoff"), defaultRetryBackoff, "Backoff unit between retries. The n-th retry waits n times this value.")
	f.BoolVar(&cfg.StationNameFallback, util.PrefixConfig(prefix, "station-name-fallback"), false, "Show the station name when nothing is playing.")
}
