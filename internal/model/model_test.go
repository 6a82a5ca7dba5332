package model

import (
	"testing"
	"time"
)

func TestFilterCriteria_Merge(t *testing.T) {
	base := FilterCriteria{Area: "DHA", Type: "plot", BudgetMaxLac: FloatPtr(100)}

	got := base.Merge(FilterCriteria{Type: " flat ", BudgetMaxLac: FloatPtr(50)})
	if got.Area != "DHA" || got.Type != "flat" || *got.BudgetMaxLac != 50 {
		t.Errorf("Merge() = %+v", got)
	}
	if *base.BudgetMaxLac != 100 {
		t.Error("Merge() mutated the receiver")
	}

	if got := base.Merge(FilterCriteria{}); got.String() != base.String() {
		t.Errorf("Merge(empty) = %v, want %v", got, base)
	}
}

func TestFilterCriteria_MaxPrice(t *testing.T) {
	f := FilterCriteria{BudgetMaxLac: FloatPtr(50)}
	if got := *f.MaxPrice(); got != 5000000 {
		t.Errorf("MaxPrice() = %v, want 5000000", got)
	}
	if (FilterCriteria{}).MaxPrice() != nil {
		t.Error("MaxPrice() should be nil without a budget")
	}
}

func TestFilterCriteria_String(t *testing.T) {
	tests := []struct {
		in   FilterCriteria
		want string
	}{
		{FilterCriteria{}, "no filter"},
		{FilterCriteria{Area: "DHA"}, "area~DHA"},
		{FilterCriteria{Type: "flat", BudgetMaxLac: FloatPtr(250)}, "type~flat, budget<=250 lac"},
		{FilterCriteria{Area: "Gulberg", BudgetMaxLac: FloatPtr(1.5)}, "area~Gulberg, budget<=1.5 lac"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestLead_BindingExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	agent := int64(7)
	at := func(d time.Duration) *time.Time {
		v := now.Add(-d)
		return &v
	}

	tests := []struct {
		name string
		lead Lead
		want bool
	}{
		{"fresh binding", Lead{Status: LeadStatusNew, AssignedAgentID: &agent, AssignedAt: at(2 * time.Minute)}, false},
		{"exactly at window", Lead{Status: LeadStatusNew, AssignedAgentID: &agent, AssignedAt: at(5 * time.Minute)}, false},
		{"stale binding", Lead{Status: LeadStatusNew, AssignedAgentID: &agent, AssignedAt: at(6 * time.Minute)}, true},
		{"stale but in progress", Lead{Status: LeadStatusInProgress, AssignedAgentID: &agent, AssignedAt: at(time.Hour)}, false},
		{"unbound", Lead{Status: LeadStatusNew}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lead.BindingExpired(now, 5*time.Minute); got != tt.want {
				t.Errorf("BindingExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLeadStatus_Valid(t *testing.T) {
	for _, s := range []string{"new", "in_progress", "site_visit", "closed"} {
		if !LeadStatus(s).Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "contacted", "NEW"} {
		if LeadStatus(s).Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestNormalizeRole(t *testing.T) {
	if NormalizeRole("model") != RoleAssistant || NormalizeRole("Assistant") != RoleAssistant {
		t.Error("model/assistant should map to assistant")
	}
	if NormalizeRole("user") != RoleUser || NormalizeRole("") != RoleUser {
		t.Error("user and unknown roles should map to user")
	}
}

func TestAssistantSettings_Prompt(t *testing.T) {
	s := AssistantSettings{SystemInstructions: "persona", ConversationInstructions: "flow"}
	if got := s.Prompt(); got != "persona\n\nflow" {
		t.Errorf("Prompt() = %q", got)
	}
	s.ConversationInstructions = ""
	if got := s.Prompt(); got != "persona" {
		t.Errorf("Prompt() = %q", got)
	}
}
