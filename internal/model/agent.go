package model

// AgentStatus values
const (
	AgentStatusActive    = "active"
	AgentStatusSuspended = "suspended"
)

// Agent is a sales representative that can hold lead assignments
type Agent struct {
	ID             int64  `json:"id" db:"id"`
	Name           string `json:"agentName" db:"agent_name"`
	Status         string `json:"status" db:"status"`
	RoutingEnabled bool   `json:"routingEnabled" db:"routing_enabled"`
}

// Active reports whether the agent may work leads
func (a *Agent) Active() bool {
	return a.Status == AgentStatusActive
}
