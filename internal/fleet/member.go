package fleet

import (
	"github.com/lldpwatch/lldpwatchd/internal/agentdisc"
	"github.com/lldpwatch/lldpwatchd/internal/watcher"
)

// member pairs one agent with the watcher polling it.
type member struct {
	agent agentdisc.Agent
	w     *watcher.Watcher
}

// MemberInfo is the API-facing view of one fleet member.
type MemberInfo struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Endpoint string         `json:"endpoint,omitempty"`
	Version  string         `json:"version,omitempty"`
	Health   watcher.Health `json:"health"`
}

func (m *member) info() MemberInfo {
	return MemberInfo{
		ID:       m.agent.ID,
		Source:   string(m.agent.Source),
		Endpoint: m.agent.Endpoint,
		Version:  m.agent.Version,
		Health:   m.w.Health(),
	}
}
