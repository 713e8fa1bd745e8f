package agentdisc

type EventType string

const (
	AgentAdded   EventType = "AGENT_ADDED"
	AgentRemoved EventType = "AGENT_REMOVED"
)

// Source records how an agent entered the table. Local and static
// agents never expire; mDNS agents are dropped when they stop
// answering.
type Source string

const (
	SourceLocal  Source = "local"
	SourceStatic Source = "static"
	SourceMDNS   Source = "mdns"
)

// Agent is one snapshot source the fleet can watch.
type Agent struct {
	ID       string
	Endpoint string // host:port; empty for the local lldpctl agent
	Version  string
	Source   Source
}

type AgentEvent struct {
	Type  EventType
	Agent Agent
}
