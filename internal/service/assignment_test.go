package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"propertyleads/internal/model"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type assignmentFixture struct {
	store    *memStore
	pub      *recordingPublisher
	settings *SettingsService
	svc      *AssignmentService
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()
	store := newMemStore()
	store.agents[7] = &model.Agent{ID: 7, Name: "Usman", Status: model.AgentStatusActive, RoutingEnabled: true}
	store.agents[8] = &model.Agent{ID: 8, Name: "Ayesha", Status: model.AgentStatusActive, RoutingEnabled: true}
	store.agents[9] = &model.Agent{ID: 9, Name: "Kamran", Status: model.AgentStatusSuspended}

	pub := &recordingPublisher{}
	settings := NewSettingsService(store, "", nil)
	svc := NewAssignmentService(store, store, settings, pub, nil)
	svc.now = func() time.Time { return testNow }

	return &assignmentFixture{store: store, pub: pub, settings: settings, svc: svc}
}

// addLead stores a lead bound to agentID assignedAgo before testNow; agentID 0 leaves it unbound
func (f *assignmentFixture) addLead(id string, status model.LeadStatus, agentID int64, assignedAgo time.Duration) {
	lead := &model.Lead{ID: id, Name: "Ali", Phone: "03001234567", Status: status, Version: 1, CreatedAt: testNow.Add(-time.Hour)}
	if agentID != 0 {
		at := testNow.Add(-assignedAgo)
		lead.AssignedAgentID = &agentID
		lead.AssignedAt = &at
	}
	f.store.leads[id] = lead
}

func TestAssignment_Accept(t *testing.T) {
	tests := []struct {
		name        string
		status      model.LeadStatus
		boundTo     int64
		assignedAgo time.Duration
		caller      int64
		wantErr     error
		wantStatus  model.LeadStatus
		wantBound   bool
		wantEvent   string
	}{
		{
			name:        "fresh binding is accepted",
			status:      model.LeadStatusNew,
			boundTo:     7,
			assignedAgo: 2 * time.Minute,
			caller:      7,
			wantStatus:  model.LeadStatusInProgress,
			wantBound:   true,
			wantEvent:   model.EventLeadAccepted,
		},
		{
			name:        "expired binding is cleared and the call fails",
			status:      model.LeadStatusNew,
			boundTo:     7,
			assignedAgo: 6 * time.Minute,
			caller:      7,
			wantErr:     ErrLeadExpired,
			wantStatus:  model.LeadStatusNew,
			wantBound:   false,
			wantEvent:   model.EventLeadExpired,
		},
		{
			name:        "worked lead never expires",
			status:      model.LeadStatusSiteVisit,
			boundTo:     7,
			assignedAgo: 48 * time.Hour,
			caller:      7,
			wantStatus:  model.LeadStatusInProgress,
			wantBound:   true,
			wantEvent:   model.EventLeadAccepted,
		},
		{
			name:        "lead bound to another agent",
			status:      model.LeadStatusNew,
			boundTo:     8,
			assignedAgo: time.Minute,
			caller:      7,
			wantErr:     ErrLeadNotFound,
			wantStatus:  model.LeadStatusNew,
			wantBound:   true,
		},
		{
			name:       "unbound lead",
			status:     model.LeadStatusNew,
			caller:     7,
			wantErr:    ErrLeadNotFound,
			wantStatus: model.LeadStatusNew,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAssignmentFixture(t)
			f.addLead("L1", tt.status, tt.boundTo, tt.assignedAgo)
			before := *f.store.leads["L1"]

			_, err := f.svc.Accept(context.Background(), tt.caller, "L1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Accept() error = %v, want %v", err, tt.wantErr)
			}

			stored := f.store.leads["L1"]
			if stored.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", stored.Status, tt.wantStatus)
			}
			if bound := stored.AssignedAgentID != nil; bound != tt.wantBound {
				t.Errorf("bound = %v, want %v", bound, tt.wantBound)
			}
			if tt.wantBound && before.AssignedAt != nil && !stored.AssignedAt.Equal(*before.AssignedAt) {
				t.Errorf("binding timestamp changed from %v to %v", before.AssignedAt, stored.AssignedAt)
			}
			if !tt.wantBound && stored.AssignedAt != nil {
				t.Errorf("assigned_at = %v, want nil", stored.AssignedAt)
			}

			events := f.pub.types()
			if tt.wantEvent == "" {
				if len(events) != 0 {
					t.Errorf("events = %v, want none", events)
				}
			} else if len(events) != 1 || events[0] != tt.wantEvent {
				t.Errorf("events = %v, want [%s]", events, tt.wantEvent)
			}
		})
	}
}

func TestAssignment_AcceptMissingLead(t *testing.T) {
	f := newAssignmentFixture(t)
	if _, err := f.svc.Accept(context.Background(), 7, "nope"); !errors.Is(err, ErrLeadNotFound) {
		t.Errorf("Accept() error = %v, want ErrLeadNotFound", err)
	}
}

func TestAssignment_AcceptUsesCurrentExpirySetting(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	f.addLead("L1", model.LeadStatusNew, 7, 10*time.Minute)

	if _, err := f.settings.SetLeadExpiry(ctx, 15); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Accept(ctx, 7, "L1"); err != nil {
		t.Fatalf("Accept() with a 15 minute window error = %v", err)
	}
}

// racingStore lets another writer commit between the load and the conditional write
type racingStore struct {
	*memStore
	beforeWrite func()
}

func (r *racingStore) UpdateLeadIfVersion(ctx context.Context, lead *model.Lead) (bool, error) {
	if r.beforeWrite != nil {
		r.beforeWrite()
		r.beforeWrite = nil
	}
	return r.memStore.UpdateLeadIfVersion(ctx, lead)
}

func TestAssignment_ConcurrentWriterWins(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		racer  func(s *memStore)
		action func(svc *AssignmentService) error
	}{
		{
			name: "second accept loses",
			racer: func(s *memStore) {
				l := s.leads["L1"]
				l.Status = model.LeadStatusInProgress
				l.Version++
			},
			action: func(svc *AssignmentService) error {
				_, err := svc.Accept(ctx, 7, "L1")
				return err
			},
		},
		{
			name: "sweep between check and write",
			racer: func(s *memStore) {
				_, _ = s.ClearExpiredBindings(ctx, testNow.Add(time.Hour))
			},
			action: func(svc *AssignmentService) error {
				_, err := svc.Accept(ctx, 7, "L1")
				return err
			},
		},
		{
			name: "reroute before reject",
			racer: func(s *memStore) {
				_, _ = s.RerouteLead(ctx, "L1", 8, testNow)
			},
			action: func(svc *AssignmentService) error {
				_, err := svc.Reject(ctx, 7, "L1")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAssignmentFixture(t)
			f.addLead("L1", model.LeadStatusNew, 7, time.Minute)
			rs := &racingStore{memStore: f.store}
			rs.beforeWrite = func() { tt.racer(f.store) }

			svc := NewAssignmentService(rs, rs, f.settings, f.pub, nil)
			svc.now = func() time.Time { return testNow }

			if err := tt.action(svc); !errors.Is(err, ErrConflict) {
				t.Fatalf("error = %v, want ErrConflict", err)
			}
			if events := f.pub.types(); len(events) != 0 {
				t.Errorf("losing writer published %v", events)
			}
		})
	}
}

func TestAssignment_ExpiredAcceptRacingWriters(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		racer     func(s *memStore)
		wantErr   error
		wantBound int64
	}{
		{
			name: "sweep clears the binding first",
			racer: func(s *memStore) {
				_, _ = s.ClearExpiredBindings(ctx, testNow)
			},
			wantErr: ErrLeadExpired,
		},
		{
			name: "admin reroutes first",
			racer: func(s *memStore) {
				_, _ = s.RerouteLead(ctx, "L1", 8, testNow)
			},
			wantErr:   ErrConflict,
			wantBound: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAssignmentFixture(t)
			// past the default five minute window
			f.addLead("L1", model.LeadStatusNew, 7, 6*time.Minute)
			rs := &racingStore{memStore: f.store}
			rs.beforeWrite = func() { tt.racer(f.store) }

			svc := NewAssignmentService(rs, rs, f.settings, f.pub, nil)
			svc.now = func() time.Time { return testNow }

			if _, err := svc.Accept(ctx, 7, "L1"); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Accept() error = %v, want %v", err, tt.wantErr)
			}

			lead := f.store.leads["L1"]
			switch {
			case tt.wantBound == 0 && lead.AssignedAgentID != nil:
				t.Errorf("lead still bound to %d", *lead.AssignedAgentID)
			case tt.wantBound != 0 && !lead.BoundTo(tt.wantBound):
				t.Errorf("lead binding = %v, want %d", lead.AssignedAgentID, tt.wantBound)
			}
			if lead.Status != model.LeadStatusNew {
				t.Errorf("status = %s, want new", lead.Status)
			}
			// the racing writer owns the event; the losing accept publishes nothing
			if events := f.pub.types(); len(events) != 0 {
				t.Errorf("events = %v", events)
			}
		})
	}
}

func TestAssignment_Reject(t *testing.T) {
	for _, status := range []model.LeadStatus{model.LeadStatusNew, model.LeadStatusInProgress, model.LeadStatusSiteVisit, model.LeadStatusClosed} {
		t.Run(string(status), func(t *testing.T) {
			f := newAssignmentFixture(t)
			// well past the claim window: reject has no expiry check
			f.addLead("L1", status, 7, time.Hour)

			lead, err := f.svc.Reject(context.Background(), 7, "L1")
			if err != nil {
				t.Fatalf("Reject() error = %v", err)
			}
			if lead.Status != model.LeadStatusNew || lead.AssignedAgentID != nil || lead.AssignedAt != nil {
				t.Errorf("unexpected lead after reject: %+v", lead)
			}
			stored := f.store.leads["L1"]
			if stored.Status != model.LeadStatusNew || stored.AssignedAgentID != nil {
				t.Errorf("stored lead not reset: %+v", stored)
			}
		})
	}

	f := newAssignmentFixture(t)
	f.addLead("L2", model.LeadStatusInProgress, 8, time.Minute)
	if _, err := f.svc.Reject(context.Background(), 7, "L2"); !errors.Is(err, ErrLeadNotFound) {
		t.Errorf("Reject() of another agent's lead error = %v, want ErrLeadNotFound", err)
	}
	if f.store.leads["L2"].AssignedAgentID == nil {
		t.Error("failed reject must not touch the binding")
	}
}

func TestAssignment_UpdateStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		caller  int64
		wantErr error
	}{
		{"site visit", "site_visit", 7, nil},
		{"closed", "closed", 7, nil},
		{"back to new", "new", 7, nil},
		{"unknown status", "won", 7, ErrInvalidStatus},
		{"empty status", "", 7, ErrInvalidStatus},
		{"not owner", "closed", 8, ErrLeadNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAssignmentFixture(t)
			f.addLead("L1", model.LeadStatusInProgress, 7, time.Hour)
			before := *f.store.leads["L1"]

			_, err := f.svc.UpdateStatus(context.Background(), tt.caller, "L1", tt.status)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateStatus() error = %v, want %v", err, tt.wantErr)
			}

			stored := f.store.leads["L1"]
			if tt.wantErr != nil {
				if stored.Status != before.Status || stored.Version != before.Version {
					t.Errorf("rejected update mutated the lead: %+v", stored)
				}
				return
			}
			if string(stored.Status) != tt.status {
				t.Errorf("status = %q, want %q", stored.Status, tt.status)
			}
			if !stored.BoundTo(7) || !stored.AssignedAt.Equal(*before.AssignedAt) {
				t.Errorf("binding must be untouched, got %+v", stored)
			}
		})
	}
}

func TestAssignment_SweepIsIdempotent(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	f.addLead("expired", model.LeadStatusNew, 7, 6*time.Minute)
	f.addLead("fresh", model.LeadStatusNew, 7, 4*time.Minute)
	f.addLead("worked", model.LeadStatusInProgress, 7, time.Hour)
	f.addLead("free", model.LeadStatusNew, 0, 0)

	n, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Errorf("first Sweep() = %d, want 1", n)
	}
	if l := f.store.leads["expired"]; l.AssignedAgentID != nil || l.AssignedAt != nil || l.Status != model.LeadStatusNew {
		t.Errorf("expired lead not released: %+v", l)
	}
	if !f.store.leads["fresh"].BoundTo(7) || !f.store.leads["worked"].BoundTo(7) {
		t.Error("sweep released a lead it should have kept")
	}

	n, err = f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second Sweep() = %d, want 0", n)
	}
	if events := f.pub.types(); len(events) != 1 || events[0] != model.EventLeadExpired {
		t.Errorf("events = %v", events)
	}
}

func TestAssignment_ListingSweepsExpiredLeads(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	if _, err := f.settings.SetLeadExpiry(ctx, 1); err != nil {
		t.Fatal(err)
	}
	f.addLead("L1", model.LeadStatusNew, 7, 2*time.Minute)

	leads, err := f.svc.ListForAgent(ctx, 7, "")
	if err != nil {
		t.Fatalf("ListForAgent() error = %v", err)
	}
	if len(leads) != 0 {
		t.Errorf("expired lead still listed: %+v", leads)
	}

	lead, err := f.svc.GetLead(ctx, "L1")
	if err != nil {
		t.Fatalf("GetLead() error = %v", err)
	}
	if lead.AssignedAgentID != nil || lead.AssignedAt != nil {
		t.Errorf("binding not cleared: agent=%v at=%v", lead.AssignedAgentID, lead.AssignedAt)
	}
}

func TestAssignment_ListForAgent(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	f.addLead("new", model.LeadStatusNew, 7, 2*time.Minute)
	f.addLead("worked", model.LeadStatusSiteVisit, 7, time.Hour)
	f.addLead("other", model.LeadStatusNew, 8, time.Minute)

	leads, err := f.svc.ListForAgent(ctx, 7, "")
	if err != nil {
		t.Fatalf("ListForAgent() error = %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("got %d leads, want 2", len(leads))
	}
	for _, l := range leads {
		switch l.ID {
		case "new":
			want := testNow.Add(-2 * time.Minute).Add(5 * time.Minute)
			if l.ExpiresAt == nil || !l.ExpiresAt.Equal(want) {
				t.Errorf("expiresAt = %v, want %v", l.ExpiresAt, want)
			}
		case "worked":
			if l.ExpiresAt != nil {
				t.Errorf("worked lead should not expire, got %v", l.ExpiresAt)
			}
		default:
			t.Errorf("unexpected lead %s", l.ID)
		}
	}

	filtered, err := f.svc.ListForAgent(ctx, 7, "site_visit")
	if err != nil || len(filtered) != 1 || filtered[0].ID != "worked" {
		t.Errorf("status filter = %+v, %v", filtered, err)
	}

	if _, err := f.svc.ListForAgent(ctx, 7, "bogus"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bogus filter error = %v, want ErrInvalidStatus", err)
	}
}

func TestAssignment_Reroute(t *testing.T) {
	tests := []struct {
		name    string
		leadID  string
		agentID int64
		wantErr error
	}{
		{"to active agent", "L1", 8, nil},
		{"missing lead", "nope", 8, ErrLeadNotFound},
		{"missing agent", "L1", 42, ErrAgentNotFound},
		{"suspended agent", "L1", 9, ErrAgentSuspended},
		{"zero agent", "L1", 0, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAssignmentFixture(t)
			f.addLead("L1", model.LeadStatusSiteVisit, 7, time.Hour)

			lead, err := f.svc.Reroute(context.Background(), tt.leadID, tt.agentID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Reroute() error = %v, want %v", err, tt.wantErr)
			}
			stored := f.store.leads["L1"]
			if tt.wantErr != nil {
				if !stored.BoundTo(7) {
					t.Error("failed reroute changed the binding")
				}
				return
			}
			if !lead.BoundTo(8) || !lead.AssignedAt.Equal(testNow) {
				t.Errorf("binding = %v at %v, want 8 at %v", lead.AssignedAgentID, lead.AssignedAt, testNow)
			}
			if stored.Status != model.LeadStatusSiteVisit {
				t.Errorf("reroute changed status to %q", stored.Status)
			}
			if events := f.pub.types(); len(events) != 1 || events[0] != model.EventLeadRerouted {
				t.Errorf("events = %v", events)
			}
		})
	}
}

func TestAssignment_AuthorizeAgent(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AuthorizeAgent(ctx, 7); err != nil {
		t.Errorf("active agent error = %v", err)
	}
	if _, err := f.svc.AuthorizeAgent(ctx, 9); !errors.Is(err, ErrAgentSuspended) {
		t.Errorf("suspended agent error = %v", err)
	}
	if _, err := f.svc.AuthorizeAgent(ctx, 404); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("missing agent error = %v", err)
	}
}
