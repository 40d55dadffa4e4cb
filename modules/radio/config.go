package radio

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"
)

type Config struct {
	// StatePath is the YAML file holding the current station and the
	// favorite lists. Empty keeps the state in memory.
	StatePath string `yaml:"state-path,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.StatePath, util.PrefixConfig(prefix, "state-path"), "nowplaying-state.yaml", "File holding the current station and favorites.")
}
