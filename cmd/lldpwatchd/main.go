package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/lldpwatch/lldpwatchd/internal/agentdisc"
	"github.com/lldpwatch/lldpwatchd/internal/api"
	"github.com/lldpwatch/lldpwatchd/internal/fleet"
	"github.com/lldpwatch/lldpwatchd/internal/netmon"
	"github.com/lldpwatch/lldpwatchd/internal/runtime"
	"github.com/lldpwatch/lldpwatchd/internal/watcher"
	"github.com/lldpwatch/lldpwatchd/pkg/cli"
	"github.com/lldpwatch/lldpwatchd/pkg/config"
)

func main() {
	// Parse command line flags, then overlay them on the config file.
	opts := cli.ParseFlags()

	cfg, err := config.Load(opts.ConfigPath, opts.ConfigExplicit())
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	opts.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	// Configure logging
	setLogLevel(cfg.LogLevel)
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FullTimestamp:   true,
	})

	log.Infof("Config: API=%s:%d", cfg.API.Host, cfg.API.Port)
	log.Infof("Config: PollInterval=%s", cfg.PollInterval.Std())
	log.Infof("Config: ProviderTimeout=%s", cfg.ProviderTimeout.Std())
	log.Infof("Config: LogLevel=%s", cfg.LogLevel)
	log.Infof("Config: Discovery=%v", cfg.Discovery.Enabled)

	agentID, err := os.Hostname()
	if err != nil {
		log.WithError(err).Fatal("Failed to determine hostname")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	netmonSvc := netmon.NewService(cfg.ReconcileInterval.Std(), cfg.InterfacePrefixes)

	staticAgents := make([]agentdisc.Agent, 0, len(cfg.StaticAgents))
	for _, a := range cfg.StaticAgents {
		staticAgents = append(staticAgents, agentdisc.Agent{ID: a.ID, Endpoint: a.Endpoint})
	}
	discSvc := agentdisc.NewService(agentdisc.Config{
		Browse:         cfg.Discovery.Enabled,
		BrowseInterval: cfg.Discovery.BrowseInterval.Std(),
		LocalAgent:     !cfg.DisableLocalAgent,
		Static:         staticAgents,
	})

	events := watcher.NewBroadcaster()
	notifications := watcher.NewNotifications()

	fleetMgr := fleet.NewManager(fleet.Config{
		Watcher: watcher.Config{
			PollInterval:     cfg.PollInterval.Std(),
			ProviderTimeout:  cfg.ProviderTimeout.Std(),
			FailureThreshold: cfg.FailureThreshold,
		},
		MinAgentVersion: cfg.MinAgentVersion,
		LLDPCtlPath:     cfg.LLDPCtlPath,
	})
	fleetMgr.SetEventSink(events)
	fleetMgr.SetNotifications(notifications)

	apiSvc := api.NewService(cfg.API.Host, cfg.API.Port, agentID)

	// Wire subscriptions BEFORE starting producers to avoid missing anything.
	// Fleet subscribes to discovery and to link transitions.
	agentCh, agentUnsub := discSvc.Subscribe()
	fleetMgr.AttachAgents(agentCh, agentUnsub)

	linkCh, linkUnsub := netmonSvc.Subscribe()
	fleetMgr.AttachNetmon(linkCh, linkUnsub)

	// API reads the fleet and streams the broadcaster.
	apiSvc.AttachFleet(fleetMgr)
	apiSvc.AttachEvents(events)

	// Start in dependency order: netmon → agentdisc → fleet → api
	super := runtime.NewSupervisor()
	super.Add("netmon", netmonSvc.Start, netmonSvc.Close)
	super.Add("agentdisc", discSvc.Start, discSvc.Close)
	super.Add("fleet", fleetMgr.Start, fleetMgr.Close)
	super.Add("api", apiSvc.Start, apiSvc.Close)

	if err := super.Start(ctx); err != nil {
		log.WithError(err).Error("Supervisor start failed")
		os.Exit(1)
	}
	err = super.Wait(ctx)

	events.Close()
	notifications.Close()

	if err != nil {
		log.WithError(err).Error("Supervisor wait failed")
		os.Exit(1)
	}
}

func setLogLevel(level string) {
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
