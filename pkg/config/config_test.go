package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.PollInterval.Std())
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout.Std())
	assert.Equal(t, 3, cfg.FailureThreshold)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
poll_interval: 10s
provider_timeout: 2s
failure_threshold: 5
interface_prefixes: [eth, en]
log_level: debug
api:
  host: 0.0.0.0
  port: 8080
discovery:
  enabled: true
  browse_interval: 1m
static_agents:
  - id: rack-2
    endpoint: 10.0.0.2:7962
min_agent_version: 0.4.0
`)

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.PollInterval.Std())
	assert.Equal(t, 2*time.Second, cfg.ProviderTimeout.Std())
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, []string{"eth", "en"}, cfg.InterfacePrefixes)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0", cfg.API.Host)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, time.Minute, cfg.Discovery.BrowseInterval.Std())
	require.Len(t, cfg.StaticAgents, 1)
	assert.Equal(t, "rack-2", cfg.StaticAgents[0].ID)
	assert.Equal(t, "0.4.0", cfg.MinAgentVersion)
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	assert.Error(t, err)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "poll_interval: [what\n")
	_, err := Load(path, true)
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"negative provider timeout", func(c *Config) { c.ProviderTimeout = Duration(-time.Second) }},
		{"negative failure threshold", func(c *Config) { c.FailureThreshold = -1 }},
		{"zero reconcile interval", func(c *Config) { c.ReconcileInterval = 0 }},
		{"port zero", func(c *Config) { c.API.Port = 0 }},
		{"port too big", func(c *Config) { c.API.Port = 70000 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad min version", func(c *Config) { c.MinAgentVersion = "not-a-version" }},
		{"static agent without endpoint", func(c *Config) {
			c.StaticAgents = []StaticAgent{{ID: "rack-2"}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	path := writeConfig(t, "poll_interval: quickly\n")
	_, err := Load(path, true)
	assert.ErrorContains(t, err, "invalid duration")
}
