package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Budget units. Catalog prices are stored in rupees.
const (
	RupeesPerLakh = 100000
	LakhPerCrore  = 100
)

// FilterCriteria is the transient (area, type, budget) triple used to query the catalog.
// A zero value means no constraint.
type FilterCriteria struct {
	Area         string   `json:"area,omitempty"`
	Type         string   `json:"type,omitempty"`
	BudgetMaxLac *float64 `json:"budget_max_lac,omitempty"`
}

// IsEmpty reports whether no predicate is set
func (f FilterCriteria) IsEmpty() bool {
	return strings.TrimSpace(f.Area) == "" && strings.TrimSpace(f.Type) == "" && f.BudgetMaxLac == nil
}

// MaxPrice converts the lakh budget to rupees
func (f FilterCriteria) MaxPrice() *float64 {
	if f.BudgetMaxLac == nil {
		return nil
	}
	v := *f.BudgetMaxLac * RupeesPerLakh
	return &v
}

// Merge overlays the non-empty fields of other on top of f
func (f FilterCriteria) Merge(other FilterCriteria) FilterCriteria {
	out := f
	if strings.TrimSpace(other.Area) != "" {
		out.Area = strings.TrimSpace(other.Area)
	}
	if strings.TrimSpace(other.Type) != "" {
		out.Type = strings.TrimSpace(other.Type)
	}
	if other.BudgetMaxLac != nil {
		v := *other.BudgetMaxLac
		out.BudgetMaxLac = &v
	}
	return out
}

// String renders the criteria for logs and the filter description
func (f FilterCriteria) String() string {
	var parts []string
	if f.Area != "" {
		parts = append(parts, "area~"+f.Area)
	}
	if f.Type != "" {
		parts = append(parts, "type~"+f.Type)
	}
	if f.BudgetMaxLac != nil {
		parts = append(parts, fmt.Sprintf("budget<=%s lac", strconv.FormatFloat(*f.BudgetMaxLac, 'f', -1, 64)))
	}
	if len(parts) == 0 {
		return "no filter"
	}
	return strings.Join(parts, ", ")
}

// FloatPtr returns a pointer to v
func FloatPtr(v float64) *float64 {
	return &v
}
