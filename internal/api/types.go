package api

import "github.com/lldpwatch/lldpwatchd/internal/fleet"

// StatusResponse is the payload of GET /status.
type StatusResponse struct {
	Version       string             `json:"version"`
	AgentID       string             `json:"agent_id"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Agents        []fleet.MemberInfo `json:"agents"`
}
