package model

import "time"

// Lead event types
const (
	EventLeadCaptured      = "lead.captured"
	EventLeadUpdated       = "lead.updated"
	EventLeadRerouted      = "lead.rerouted"
	EventLeadAccepted      = "lead.accepted"
	EventLeadRejected      = "lead.rejected"
	EventLeadExpired       = "lead.expired"
	EventLeadStatusChanged = "lead.status_changed"
)

// LeadEvent describes one committed lead lifecycle change
type LeadEvent struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	LeadID     string     `json:"lead_id"`
	AgentID    *int64     `json:"agent_id,omitempty"`
	Status     LeadStatus `json:"status,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
