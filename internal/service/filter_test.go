package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"propertyleads/internal/model"
)

func seedCatalog(s *memStore) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.properties = []model.Property{
		{ID: 1, Title: "DHA Phase 5 flat", Location: "DHA Phase 5", Type: "Flat", Price: 4500000, CreatedAt: base.Add(1 * time.Hour)},
		{ID: 2, Title: "DHA house", Location: "DHA Phase 6", Type: "House", Price: 45000000, CreatedAt: base.Add(2 * time.Hour)},
		{ID: 3, Title: "Bahria plot", Location: "Bahria Town", Type: "Plot", Price: 3000000, CreatedAt: base.Add(3 * time.Hour)},
		{ID: 4, Title: "Gulberg house", Location: "Gulberg", Type: "House", Price: 90000000, CreatedAt: base.Add(4 * time.Hour)},
	}
}

func userTurns(texts ...string) []model.Turn {
	turns := make([]model.Turn, len(texts))
	for i, txt := range texts {
		turns[i] = model.Turn{Role: model.RoleUser, Content: txt}
	}
	return turns
}

func TestFilterResolver_Resolve(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	ctx := context.Background()

	tests := []struct {
		name     string
		defaults model.FilterCriteria
		explicit model.FilterCriteria
		turns    []model.Turn
		want     string
	}{
		{
			name:     "explicit criteria win over heuristics",
			explicit: model.FilterCriteria{Area: "Gulberg"},
			turns:    userTurns("flat in DHA under 50 lac"),
			want:     "area~Gulberg",
		},
		{
			name:  "heuristic area type and budget",
			turns: userTurns("I want a flat in dha phase 5", "budget 50 lac"),
			want:  "area~DHA Phase 5, type~flat, budget<=50 lac",
		},
		{
			name:  "crore beats lac",
			turns: userTurns("house around 2 crore, not 50 lac"),
			want:  "type~house, budget<=200 lac",
		},
		{
			name:  "apartment maps to flat",
			turns: userTurns("koi apartment hai?"),
			want:  "type~flat",
		},
		{
			name:     "show all short-circuits even with other signals",
			defaults: model.FilterCriteria{Area: "Gulberg"},
			turns:    userTurns("plot in Bahria Town", "show all properties please"),
			want:     "no filter",
		},
		{
			name:     "default applies when nothing matched",
			defaults: model.FilterCriteria{Type: "house"},
			turns:    userTurns("hello"),
			want:     "type~house",
		},
		{
			name:  "nothing at all",
			turns: userTurns("hello"),
			want:  "no filter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewFilterResolver(store, tt.defaults, 20, nil)
			got := r.Resolve(ctx, tt.explicit, tt.turns)
			if got.String() != tt.want {
				t.Errorf("Resolve() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestFilterResolver_Search(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		filter   model.FilterCriteria
		wantIDs  []int64
		wantDesc string
	}{
		{
			name:     "exact match",
			filter:   model.FilterCriteria{Area: "DHA", Type: "flat", BudgetMaxLac: model.FloatPtr(50)},
			wantIDs:  []int64{1},
			wantDesc: "exact: area~DHA, type~flat, budget<=50 lac",
		},
		{
			name:     "type dropped when area and budget still match",
			filter:   model.FilterCriteria{Area: "DHA", Type: "plot", BudgetMaxLac: model.FloatPtr(50)},
			wantIDs:  []int64{1},
			wantDesc: "dropped type: area~DHA, budget<=50 lac",
		},
		{
			name:     "area only",
			filter:   model.FilterCriteria{Area: "Gulberg", Type: "flat", BudgetMaxLac: model.FloatPtr(10)},
			wantIDs:  []int64{4},
			wantDesc: "area only: area~Gulberg",
		},
		{
			name:     "budget only",
			filter:   model.FilterCriteria{Area: "Johar", BudgetMaxLac: model.FloatPtr(40)},
			wantIDs:  []int64{3},
			wantDesc: "budget only: budget<=40 lac",
		},
		{
			name:     "all listings newest first",
			filter:   model.FilterCriteria{Area: "Johar", Type: "shop"},
			wantIDs:  []int64{4, 3, 2, 1},
			wantDesc: "all listings: no filter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			seedCatalog(store)
			r := NewFilterResolver(store, model.FilterCriteria{}, 20, nil)

			got, err := r.Search(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if got.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", got.Description, tt.wantDesc)
			}
			if len(got.Listings) != len(tt.wantIDs) {
				t.Fatalf("got %d listings, want %d", len(got.Listings), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got.Listings[i].ID != id {
					t.Errorf("listing[%d] = %d, want %d", i, got.Listings[i].ID, id)
				}
			}
		})
	}
}

func TestFilterResolver_SearchSkipsRepeatedSteps(t *testing.T) {
	store := newMemStore()
	r := NewFilterResolver(store, model.FilterCriteria{}, 20, nil)

	got, err := r.Search(context.Background(), model.FilterCriteria{Area: "DHA"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got.Listings) != 0 {
		t.Errorf("expected no listings from an empty catalog, got %d", len(got.Listings))
	}
	// area only repeats exact
	if len(store.queries) != 2 {
		t.Errorf("expected 2 catalog queries, got %d: %v", len(store.queries), store.queries)
	}
	if !strings.HasPrefix(got.Description, "all listings") {
		t.Errorf("Description = %q", got.Description)
	}
}

func TestFilterResolver_SearchPropagatesCatalogErrors(t *testing.T) {
	store := newMemStore()
	store.failQuery = true
	r := NewFilterResolver(store, model.FilterCriteria{}, 20, nil)

	if _, err := r.Search(context.Background(), model.FilterCriteria{}); err == nil {
		t.Fatal("expected an error")
	}
}
