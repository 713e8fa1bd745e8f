// Package config loads the daemon's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemon looks for its configuration unless
// told otherwise.
const DefaultPath = "/etc/lldpwatchd/config.yaml"

// Duration parses YAML scalars like "30s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// StaticAgent is a remote agent configured by hand rather than
// discovered.
type StaticAgent struct {
	ID       string `yaml:"id"`
	Endpoint string `yaml:"endpoint"`
}

type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DiscoveryConfig struct {
	Enabled        bool     `yaml:"enabled"`
	BrowseInterval Duration `yaml:"browse_interval"`
}

type Config struct {
	PollInterval     Duration `yaml:"poll_interval"`
	ProviderTimeout  Duration `yaml:"provider_timeout"`
	FailureThreshold int      `yaml:"failure_threshold"`

	InterfacePrefixes []string `yaml:"interface_prefixes"`
	ReconcileInterval Duration `yaml:"reconcile_interval"`

	API       APIConfig       `yaml:"api"`
	Discovery DiscoveryConfig `yaml:"discovery"`

	DisableLocalAgent bool          `yaml:"disable_local_agent"`
	LLDPCtlPath       string        `yaml:"lldpctl_path"`
	StaticAgents      []StaticAgent `yaml:"static_agents"`
	MinAgentVersion   string        `yaml:"min_agent_version"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PollInterval:      Duration(30 * time.Second),
		ProviderTimeout:   Duration(5 * time.Second),
		FailureThreshold:  3,
		ReconcileInterval: Duration(30 * time.Second),
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7962,
		},
		Discovery: DiscoveryConfig{
			BrowseInterval: Duration(30 * time.Second),
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults and validates the result. When
// path is the default location and the file does not exist, the
// defaults are returned; an explicitly named missing file is an error.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

var logLevels = map[string]struct{}{
	"trace": {}, "debug": {}, "info": {}, "warn": {}, "error": {},
}

func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("provider_timeout must be positive")
	}
	if c.FailureThreshold < 0 {
		return errors.New("failure_threshold must not be negative")
	}
	if c.ReconcileInterval <= 0 {
		return errors.New("reconcile_interval must be positive")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.MinAgentVersion != "" {
		if _, err := semver.NewVersion(c.MinAgentVersion); err != nil {
			return fmt.Errorf("invalid min_agent_version %q: %w", c.MinAgentVersion, err)
		}
	}
	for _, agent := range c.StaticAgents {
		if agent.ID == "" || agent.Endpoint == "" {
			return fmt.Errorf("static agent needs both id and endpoint, got id=%q endpoint=%q",
				agent.ID, agent.Endpoint)
		}
	}
	return nil
}
