package dbsync

import (
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/vitalink-io/vitalink/util/common"
)

// Node roles. Both nodes run the same binary and each schedules its own
// cycles against the other; the role only names which end of the pair
// this process is.
const (
	RoleLocal = "local"
	RoleCloud = "cloud"
)

// Sync token strategies.
const (
	AuthModeStatic = "static"
	AuthModeSigned = "signed"
)

// Config is the sync block of the environment. The dashboard runs without
// it, but no sync job is scheduled when it does not validate.
type Config struct {
	Role     string `env:"VITALINK_SYNC_ROLE" envDefault:"local"`
	PeerURL  string `env:"VITALINK_SYNC_PEER_URL"`
	Token    string `env:"VITALINK_SYNC_TOKEN"`
	AuthMode string `env:"VITALINK_SYNC_AUTH_MODE" envDefault:"static"`
	Interval int    `env:"VITALINK_SYNC_INTERVAL" envDefault:"60"`
	Timeout  int    `env:"VITALINK_SYNC_TIMEOUT" envDefault:"15"`
}

// LoadConfig parses the sync environment and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the parts every node needs. A mismatched token between
// nodes is not detectable here; it shows up as 401s at cycle time.
func (c Config) Validate() error {
	if c.Role != RoleLocal && c.Role != RoleCloud {
		return common.NewErrorf("sync role must be %q or %q, got %q", RoleLocal, RoleCloud, c.Role)
	}
	if c.Token == "" {
		return common.NewError("sync token is not set")
	}
	if c.AuthMode != AuthModeStatic && c.AuthMode != AuthModeSigned {
		return common.NewErrorf("sync auth mode must be %q or %q, got %q", AuthModeStatic, AuthModeSigned, c.AuthMode)
	}
	if c.Interval <= 0 {
		return common.NewErrorf("sync interval must be positive, got %d", c.Interval)
	}
	if c.Timeout <= 0 {
		return common.NewErrorf("sync timeout must be positive, got %d", c.Timeout)
	}
	if c.PeerURL == "" {
		return common.NewError("sync peer URL is not set")
	}
	u, err := url.ParseRequestURI(c.PeerURL)
	if err != nil {
		return common.NewErrorf("sync peer URL invalid: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return common.NewErrorf("sync peer URL must be http or https, got %q", u.Scheme)
	}
	return nil
}

func (c Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
