package hub

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/zachfi/zkit/pkg/util"
)

var defaultAllowedOrigins = flagext.StringSliceCSV{"chrome-extension://", "moz-extension://"}

type Config struct {
	PingInterval time.Duration `yaml:"ping-interval,omitempty"`
	WriteTimeout time.Duration `yaml:"write-timeout,omitempty"`
	SendBuffer   int           `yaml:"send-buffer,omitempty"`
	InboxBuffer  int           `yaml:"inbox-buffer,omitempty"`

	// AllowedOrigins are Origin prefixes accepted from browsers. Requests
	// without an Origin header come from non-browser clients and are let in.
	AllowedOrigins flagext.StringSliceCSV `yaml:"allowed-origins,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.PingInterval, util.PrefixConfig(prefix, "ping-interval"), 30*time.Second, "Interval between websocket pings.")
	f.DurationVar(&cfg.WriteTimeout, util.PrefixConfig(prefix, "write-timeout"), 10*time.Second, "Deadline for a single websocket write.")
	f.IntVar(&cfg.SendBuffer, util.PrefixConfig(prefix, "send-buffer"), 32, "Messages queued per client before further broadcasts to it are dropped.")
	f.IntVar(&cfg.InboxBuffer, util.PrefixConfig(prefix, "inbox-buffer"), 64, "Inbound messages queued for the radio service.")

	cfg.AllowedOrigins = append(flagext.StringSliceCSV(nil), defaultAllowedOrigins...)
	f.Var(&cfg.AllowedOrigins, util.PrefixConfig(prefix, "allowed-origins"), "Comma separated Origin prefixes allowed to open the websocket.")
}

func (cfg *Config) applyDefaults() {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.InboxBuffer <= 0 {
		cfg.InboxBuffer = 64
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = append(flagext.StringSliceCSV(nil), defaultAllowedOrigins...)
	}
}
