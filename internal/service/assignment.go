package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"propertyleads/internal/model"
)

// ExpirySource supplies the current claim window
type ExpirySource interface {
	LeadExpiry(ctx context.Context) (time.Duration, error)
}

// AssignmentService manages the binding between leads and agents.
//
// Every mutation loads the lead, checks its preconditions and writes back with a
// version check, so a concurrent writer (another accept, a reroute or the expiry
// sweep) turns the losing call into ErrConflict instead of a lost update.
type AssignmentService struct {
	leads  LeadStore
	agents AgentDirectory
	expiry ExpirySource
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewAssignmentService creates an assignment service
func NewAssignmentService(leads LeadStore, agents AgentDirectory, expiry ExpirySource, events EventPublisher, logger *slog.Logger) *AssignmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentService{
		leads:  leads,
		agents: agents,
		expiry: expiry,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// AuthorizeAgent resolves the calling agent; it must exist and be active
func (s *AssignmentService) AuthorizeAgent(ctx context.Context, agentID int64) (*model.Agent, error) {
	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, ErrAgentNotFound
	}
	if !agent.Active() {
		return nil, ErrAgentSuspended
	}
	return agent, nil
}

// GetLead returns a lead as stored
func (s *AssignmentService) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, ErrLeadNotFound
	}
	return lead, nil
}

// Reroute binds the lead to agentID as of now. Admin override: the lead's status
// and current binding do not matter.
func (s *AssignmentService) Reroute(ctx context.Context, leadID string, agentID int64) (*model.Lead, error) {
	if leadID == "" || agentID <= 0 {
		return nil, fmt.Errorf("%w: lead id and agent id are required", ErrInvalidInput)
	}
	if _, err := s.GetLead(ctx, leadID); err != nil {
		return nil, err
	}

	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, ErrAgentNotFound
	}
	if !agent.Active() {
		return nil, ErrAgentSuspended
	}

	now := s.now()
	lead, err := s.leads.RerouteLead(ctx, leadID, agentID, now)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, ErrLeadNotFound
	}

	s.logger.Info("lead rerouted", "lead_id", leadID, "agent_id", agentID)
	emit(ctx, s.events, s.logger, model.EventLeadRerouted, leadID, &agentID, lead.Status, now)
	return lead, nil
}

// Accept claims a lead bound to agentID and moves it to in_progress.
//
// A new lead whose binding is older than the claim window is unbound first and
// the call then fails with ErrLeadExpired.
func (s *AssignmentService) Accept(ctx context.Context, agentID int64, leadID string) (*model.Lead, error) {
	lead, err := s.ownedLead(ctx, agentID, leadID)
	if err != nil {
		return nil, err
	}
	window, err := s.expiry.LeadExpiry(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if lead.BindingExpired(now, window) {
		lead.ClearBinding()
		if err := s.commit(ctx, lead); err != nil {
			if errors.Is(err, ErrConflict) && s.releasedConcurrently(ctx, leadID) {
				// a sweep cleared the binding first and emitted the event
				return nil, ErrLeadExpired
			}
			return nil, err
		}
		s.logger.Info("expired lead unbound on accept", "lead_id", leadID, "agent_id", agentID, "window", window)
		emit(ctx, s.events, s.logger, model.EventLeadExpired, leadID, &agentID, lead.Status, now)
		return nil, ErrLeadExpired
	}

	lead.Status = model.LeadStatusInProgress
	if err := s.commit(ctx, lead); err != nil {
		return nil, err
	}

	s.logger.Info("lead accepted", "lead_id", leadID, "agent_id", agentID)
	emit(ctx, s.events, s.logger, model.EventLeadAccepted, leadID, &agentID, lead.Status, now)
	return lead, nil
}

// Reject hands a lead back to the routing pool: the binding is cleared and the
// status returns to new. No expiry check applies.
func (s *AssignmentService) Reject(ctx context.Context, agentID int64, leadID string) (*model.Lead, error) {
	lead, err := s.ownedLead(ctx, agentID, leadID)
	if err != nil {
		return nil, err
	}

	lead.ClearBinding()
	lead.Status = model.LeadStatusNew
	if err := s.commit(ctx, lead); err != nil {
		return nil, err
	}

	s.logger.Info("lead rejected", "lead_id", leadID, "agent_id", agentID)
	emit(ctx, s.events, s.logger, model.EventLeadRejected, leadID, &agentID, lead.Status, s.now())
	return lead, nil
}

// UpdateStatus sets the status of a lead bound to agentID; the binding is kept
func (s *AssignmentService) UpdateStatus(ctx context.Context, agentID int64, leadID, status string) (*model.Lead, error) {
	target := model.LeadStatus(status)
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	lead, err := s.ownedLead(ctx, agentID, leadID)
	if err != nil {
		return nil, err
	}

	lead.Status = target
	if err := s.commit(ctx, lead); err != nil {
		return nil, err
	}

	s.logger.Info("lead status changed", "lead_id", leadID, "agent_id", agentID, "status", target)
	emit(ctx, s.events, s.logger, model.EventLeadStatusChanged, leadID, &agentID, target, s.now())
	return lead, nil
}

// Sweep unbinds every new lead whose claim window has elapsed and returns how
// many were released. Running it again with nothing expired is a no-op.
func (s *AssignmentService) Sweep(ctx context.Context) (int, error) {
	window, err := s.expiry.LeadExpiry(ctx)
	if err != nil {
		return 0, err
	}
	return s.sweep(ctx, window)
}

func (s *AssignmentService) sweep(ctx context.Context, window time.Duration) (int, error) {
	now := s.now()
	cleared, err := s.leads.ClearExpiredBindings(ctx, now.Add(-window))
	if err != nil {
		return 0, err
	}
	if len(cleared) == 0 {
		return 0, nil
	}

	s.logger.Info("expired lead bindings cleared", "count", len(cleared), "window", window)
	for _, b := range cleared {
		agentID := b.AgentID
		emit(ctx, s.events, s.logger, model.EventLeadExpired, b.LeadID, &agentID, model.LeadStatusNew, now)
	}
	return len(cleared), nil
}

// ListForAgent sweeps expired bindings, then returns the agent's leads newest
// first. status, when set, filters by lead status.
func (s *AssignmentService) ListForAgent(ctx context.Context, agentID int64, status string) ([]model.AgentLead, error) {
	if status != "" && !model.LeadStatus(status).Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	window, err := s.expiry.LeadExpiry(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.sweep(ctx, window); err != nil {
		return nil, err
	}

	leads, err := s.leads.ListAgentLeads(ctx, agentID, status)
	if err != nil {
		return nil, err
	}

	out := make([]model.AgentLead, 0, len(leads))
	for _, l := range leads {
		item := model.AgentLead{Lead: l}
		if l.Status == model.LeadStatusNew && l.AssignedAt != nil {
			expires := l.AssignedAt.Add(window)
			item.ExpiresAt = &expires
		}
		out = append(out, item)
	}
	return out, nil
}

// RunSweeper sweeps on every tick until ctx is done
func (s *AssignmentService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("lead expiry sweep failed", "error", err)
			}
		}
	}
}

// ownedLead loads a lead and checks that it is bound to agentID. A lead bound to
// someone else is reported as missing.
func (s *AssignmentService) ownedLead(ctx context.Context, agentID int64, leadID string) (*model.Lead, error) {
	if leadID == "" {
		return nil, fmt.Errorf("%w: lead id is required", ErrInvalidInput)
	}
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil || !lead.BoundTo(agentID) {
		return nil, ErrLeadNotFound
	}
	return lead, nil
}

// releasedConcurrently reports whether the lead is now unbound and still new,
// the state an expiry sweep leaves behind
func (s *AssignmentService) releasedConcurrently(ctx context.Context, leadID string) bool {
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil || lead == nil {
		return false
	}
	return lead.AssignedAgentID == nil && lead.Status == model.LeadStatusNew
}

func (s *AssignmentService) commit(ctx context.Context, lead *model.Lead) error {
	ok, err := s.leads.UpdateLeadIfVersion(ctx, lead)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}
