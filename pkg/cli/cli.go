package cli

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lldpwatch/lldpwatchd/pkg/config"
	"github.com/lldpwatch/lldpwatchd/pkg/version"
)

// Options holds the command line flags. Flags the user actually set
// override the configuration file; the rest are ignored.
type Options struct {
	ConfigPath string

	host            string
	port            int
	pollInterval    time.Duration
	providerTimeout time.Duration
	logLevel        string
	discovery       bool

	set map[string]bool
}

// ParseFlags parses command line arguments.
func ParseFlags() *Options {
	return parse(flag.CommandLine, os.Args[1:], os.Exit)
}

func parse(fs *flag.FlagSet, args []string, exit func(int)) *Options {
	opts := &Options{set: make(map[string]bool)}

	fs.StringVar(&opts.ConfigPath, "config", config.DefaultPath, "Path to the configuration file")
	fs.StringVar(&opts.host, "host", "127.0.0.1", "Host to bind the API to")
	fs.IntVar(&opts.port, "port", 7962, "Port to serve the API on")
	fs.DurationVar(&opts.pollInterval, "poll-interval", 30*time.Second, "Time between neighbor polls")
	fs.DurationVar(&opts.providerTimeout, "provider-timeout", 5*time.Second, "Timeout for one snapshot fetch")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&opts.discovery, "discovery", false, "Enable mDNS discovery of remote agents")
	showVersion := fs.Bool("version", false, "Show version information")

	fs.Parse(args)

	if *showVersion {
		fmt.Printf("lldpwatchd version %s (commit: %s, built at: %s)\n",
			version.Version,
			version.CommitHash,
			version.BuildTime)
		exit(0)
	}

	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})

	return opts
}

// ConfigExplicit reports whether the user named a config file.
func (o *Options) ConfigExplicit() bool {
	return o.set["config"]
}

// Apply overlays the flags the user set onto cfg.
func (o *Options) Apply(cfg *config.Config) {
	if o.set["host"] {
		cfg.API.Host = o.host
	}
	if o.set["port"] {
		cfg.API.Port = o.port
	}
	if o.set["poll-interval"] {
		cfg.PollInterval = config.Duration(o.pollInterval)
	}
	if o.set["provider-timeout"] {
		cfg.ProviderTimeout = config.Duration(o.providerTimeout)
	}
	if o.set["log-level"] {
		cfg.LogLevel = o.logLevel
	}
	if o.set["discovery"] {
		cfg.Discovery.Enabled = o.discovery
	}
}
