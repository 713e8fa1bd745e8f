package agentdisc

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/dmdmdm-nz/zeroconf"
	log "github.com/sirupsen/logrus"

	"github.com/lldpwatch/lldpwatchd/internal/provider"
)

// ServiceType is the mDNS service remote snapshot agents announce.
const ServiceType = "_lldp-agent._tcp"

const mdnsDomain = "local."

// browseAgents runs one mDNS browse window and probes every responder
// for its identity. Responders that do not answer the handshake are
// skipped; a dead announcement is not an agent.
func browseAgents(ctx context.Context, window, probeTimeout time.Duration) ([]Agent, error) {
	browseCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	errCh := make(chan error, 1)

	go func() {
		errCh <- zeroconf.Browse(browseCtx, ServiceType, mdnsDomain, entries)
	}()

	var agents []Agent
	seen := make(map[string]struct{})

	for entry := range entries {
		endpoint := entryEndpoint(entry)
		if endpoint == "" {
			log.WithField("instance", entry.Instance).Trace("Skipping mDNS entry without an address")
			continue
		}

		probeCtx, probeCancel := context.WithTimeout(ctx, probeTimeout)
		info, err := provider.ProbeAgent(probeCtx, endpoint)
		probeCancel()
		if err != nil {
			log.WithField("endpoint", endpoint).WithError(err).Debug("Agent handshake failed, skipping")
			continue
		}

		if _, dup := seen[info.ID]; dup {
			continue
		}
		seen[info.ID] = struct{}{}

		agents = append(agents, Agent{
			ID:       info.ID,
			Endpoint: endpoint,
			Version:  info.Version,
			Source:   SourceMDNS,
		})
	}

	if err := <-errCh; err != nil {
		return agents, err
	}
	return agents, nil
}

// entryEndpoint turns an mDNS entry into a dialable host:port,
// preferring IPv4 so link-local zone handling stays out of the URL.
func entryEndpoint(entry *zeroconf.ServiceEntry) string {
	port := strconv.Itoa(entry.Port)
	if len(entry.AddrIPv4) > 0 {
		return net.JoinHostPort(entry.AddrIPv4[0].String(), port)
	}
	if len(entry.AddrIPv6) > 0 {
		return net.JoinHostPort(entry.AddrIPv6[0].String(), port)
	}
	return ""
}
