package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"propertyleads/internal/model"
	"propertyleads/internal/utils"
)

// FilterResolver reconciles structured and heuristic criteria into one catalog
// filter and runs the relaxation search
type FilterResolver struct {
	catalog  Catalog
	defaults model.FilterCriteria
	pageSize int
	logger   *slog.Logger
}

// NewFilterResolver creates a resolver. defaults applies only when nothing else
// matched and the user did not ask for everything.
func NewFilterResolver(catalog Catalog, defaults model.FilterCriteria, pageSize int, logger *slog.Logger) *FilterResolver {
	if pageSize <= 0 {
		pageSize = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FilterResolver{
		catalog:  catalog,
		defaults: defaults,
		pageSize: pageSize,
		logger:   logger,
	}
}

// SearchResult is the outcome of a relaxation search
type SearchResult struct {
	Listings    []model.Property
	Applied     model.FilterCriteria
	Description string
}

// Resolve picks the filter for this turn. explicit carries the interpreter's
// marker/JSON criteria; turns is the conversation including the new user message.
func (r *FilterResolver) Resolve(ctx context.Context, explicit model.FilterCriteria, turns []model.Turn) model.FilterCriteria {
	if !explicit.IsEmpty() {
		return model.FilterCriteria{}.Merge(explicit)
	}

	if WantsEverything(turns) {
		return model.FilterCriteria{}
	}

	if f := r.heuristic(ctx, turns); !f.IsEmpty() {
		return f
	}

	return model.FilterCriteria{}.Merge(r.defaults)
}

// WantsEverything reports whether the latest user message asks for the unfiltered inventory
func WantsEverything(turns []model.Turn) bool {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == model.RoleUser {
			return utils.WantsEverything(turns[i].Content)
		}
	}
	return false
}

// heuristic extracts area, type and budget from the whole conversation text
func (r *FilterResolver) heuristic(ctx context.Context, turns []model.Turn) model.FilterCriteria {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, t.Content)
	}
	text := strings.Join(parts, " ")

	var f model.FilterCriteria

	areas, err := r.catalog.DistinctAreas(ctx)
	if err != nil {
		r.logger.Warn("area vocabulary unavailable, skipping area match", "error", err)
	} else {
		f.Area = utils.MatchArea(text, areas)
	}

	f.Type = utils.MatchPropertyType(text)

	if lac, ok := utils.ParseBudgetLac(text); ok {
		f.BudgetMaxLac = model.FloatPtr(lac)
	}

	return f
}

type relaxationStep struct {
	label    string
	criteria model.FilterCriteria
}

// relaxationSteps lists the predicate sets to try in order, without repeats
func relaxationSteps(f model.FilterCriteria) []relaxationStep {
	candidates := []relaxationStep{{"exact", f}}
	if f.Type != "" {
		candidates = append(candidates, relaxationStep{"dropped type", model.FilterCriteria{Area: f.Area, BudgetMaxLac: f.BudgetMaxLac}})
	}
	if f.Area != "" {
		candidates = append(candidates, relaxationStep{"area only", model.FilterCriteria{Area: f.Area}})
	}
	if f.BudgetMaxLac != nil {
		candidates = append(candidates, relaxationStep{"budget only", model.FilterCriteria{BudgetMaxLac: f.BudgetMaxLac}})
	}
	candidates = append(candidates, relaxationStep{"all listings", model.FilterCriteria{}})

	seen := make(map[string]bool, len(candidates))
	steps := candidates[:0]
	for _, s := range candidates {
		key := s.criteria.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		steps = append(steps, s)
	}
	return steps
}

// Search queries the catalog with f, progressively dropping predicates until a
// step returns at least one row
func (r *FilterResolver) Search(ctx context.Context, f model.FilterCriteria) (*SearchResult, error) {
	steps := relaxationSteps(f)

	var last relaxationStep
	for _, step := range steps {
		last = step
		rows, err := r.catalog.QueryProperties(ctx, step.criteria, r.pageSize)
		if err != nil {
			return nil, fmt.Errorf("catalog query (%s) failed: %w", step.label, err)
		}
		if len(rows) > 0 {
			desc := describeStep(step)
			r.logger.Debug("relaxation search", "filter", desc, "rows", len(rows))
			return &SearchResult{Listings: rows, Applied: step.criteria, Description: desc}, nil
		}
	}

	return &SearchResult{Listings: []model.Property{}, Applied: last.criteria, Description: describeStep(last)}, nil
}

func describeStep(s relaxationStep) string {
	return s.label + ": " + s.criteria.String()
}
