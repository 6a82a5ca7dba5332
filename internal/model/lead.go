package model

import (
	"time"
)

// LeadStatus is the working state of a lead
type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "new"
	LeadStatusInProgress LeadStatus = "in_progress"
	LeadStatusSiteVisit  LeadStatus = "site_visit"
	LeadStatusClosed     LeadStatus = "closed"
)

// Valid reports whether s is one of the four known statuses
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusInProgress, LeadStatusSiteVisit, LeadStatusClosed:
		return true
	}
	return false
}

// Lead sources
const (
	LeadSourceChat = "AI Chat"
	LeadSourceForm = "Web Form"
)

// Lead represents a captured prospective buyer
type Lead struct {
	ID               string     `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	Phone            string     `json:"phone" db:"phone"`
	Budget           string     `json:"budget" db:"budget"`
	PropertyInterest string     `json:"propertyInterest" db:"property_interest"`
	LeadScore        string     `json:"leadScore" db:"lead_score"`
	AISummary        string     `json:"aiSummary" db:"ai_summary"`
	Context          string     `json:"context,omitempty" db:"context"`
	Source           string     `json:"source" db:"source"`
	ThreadID         *string    `json:"threadId,omitempty" db:"thread_id"`
	AssignedAgentID  *int64     `json:"assignedAgentId" db:"assigned_agent_id"`
	AssignedAt       *time.Time `json:"assignedAt" db:"assigned_at"`
	Status           LeadStatus `json:"status" db:"status"`
	Version          int64      `json:"-" db:"version"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// BoundTo reports whether the lead is currently assigned to agentID
func (l *Lead) BoundTo(agentID int64) bool {
	return l.AssignedAgentID != nil && *l.AssignedAgentID == agentID
}

// ClearBinding removes the agent assignment
func (l *Lead) ClearBinding() {
	l.AssignedAgentID = nil
	l.AssignedAt = nil
}

// BindingExpired reports whether a new lead's claim window has elapsed at now.
// Leads past new, or without a binding timestamp, never expire.
func (l *Lead) BindingExpired(now time.Time, window time.Duration) bool {
	if l.Status != LeadStatusNew || l.AssignedAgentID == nil || l.AssignedAt == nil {
		return false
	}
	return now.Sub(*l.AssignedAt) > window
}

// AgentLead is a lead as shown to its assigned agent
type AgentLead struct {
	Lead
	ExpiresAt *time.Time `json:"expiresAt"`
}

// LeadCandidate is a provisional contact tuple extracted from a conversation
type LeadCandidate struct {
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Budget    string `json:"budget,omitempty"`
	Interest  string `json:"interest,omitempty"`
	LeadScore string `json:"lead_score,omitempty"`
	LeadID    string `json:"lead_id,omitempty"`
}

// Qualifies reports whether the candidate carries both a name and a phone
func (c *LeadCandidate) Qualifies() bool {
	return c != nil && c.Name != "" && c.Phone != ""
}

// PublicLeadRequest is the body of the public lead form
type PublicLeadRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone" binding:"required"`
	Context string `json:"context"`
}

// StatusUpdateRequest is the body of an agent status change
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// RerouteRequest is the body of an admin reroute
type RerouteRequest struct {
	AgentID int64 `json:"agentId" binding:"required"`
}

// ExpiredBinding identifies a binding cleared by the expiry sweep
type ExpiredBinding struct {
	LeadID  string `db:"id"`
	AgentID int64  `db:"assigned_agent_id"`
}
