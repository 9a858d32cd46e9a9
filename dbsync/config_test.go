package dbsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Role:     RoleLocal,
		PeerURL:  "http://cloud.example.org:8000",
		Token:    "shared-secret",
		AuthMode: AuthModeStatic,
		Interval: 60,
		Timeout:  15,
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("VITALINK_SYNC_ROLE", "local")
	t.Setenv("VITALINK_SYNC_PEER_URL", "http://cloud.example.org:8000")
	t.Setenv("VITALINK_SYNC_TOKEN", "shared-secret")
	t.Setenv("VITALINK_SYNC_INTERVAL", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, RoleLocal, cfg.Role)
	assert.Equal(t, "http://cloud.example.org:8000", cfg.PeerURL)
	assert.Equal(t, 30, cfg.Interval)
	assert.Equal(t, AuthModeStatic, cfg.AuthMode)
	assert.Equal(t, 30*time.Second, cfg.IntervalDuration())
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
}

func TestLoadConfigMissingToken(t *testing.T) {
	t.Setenv("VITALINK_SYNC_ROLE", "local")
	t.Setenv("VITALINK_SYNC_PEER_URL", "http://cloud.example.org:8000")
	t.Setenv("VITALINK_SYNC_TOKEN", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown role", func(c *Config) { c.Role = "edge" }},
		{"empty token", func(c *Config) { c.Token = "" }},
		{"unknown auth mode", func(c *Config) { c.AuthMode = "mutual-tls" }},
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"negative interval", func(c *Config) { c.Interval = -5 }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"missing peer URL", func(c *Config) { c.PeerURL = "" }},
		{"relative peer URL", func(c *Config) { c.PeerURL = "cloud.example.org/sync" }},
		{"unsupported scheme", func(c *Config) { c.PeerURL = "ftp://cloud.example.org" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// Both roles run the periodic cycle, so the cloud node needs a peer URL
// exactly like the local one.
func TestValidateCloudRequiresPeer(t *testing.T) {
	cfg := validConfig()
	cfg.Role = RoleCloud
	assert.NoError(t, cfg.Validate())

	cfg.PeerURL = ""
	assert.Error(t, cfg.Validate())
}
