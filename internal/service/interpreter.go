package service

import (
	"fmt"
	"strconv"
	"strings"

	"propertyleads/internal/model"
	"propertyleads/internal/utils"
)

// Interpretation is the structured reading of one raw model reply
type Interpretation struct {
	// Message is the user-facing text, always free of internal markers
	Message string
	// Lead is set only when a qualifying candidate was found in the reply
	Lead *model.LeadCandidate
	// Criteria merges JSON-embedded criteria with marker criteria, marker winning per field
	Criteria model.FilterCriteria
}

// Interpreter turns free-form assistant output into a display message, a lead
// candidate and filter criteria. It never fails: unreadable structure is ignored.
type Interpreter struct{}

// NewInterpreter creates a response interpreter
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// replyEnvelope is the JSON shape the assistant is asked to produce
type replyEnvelope struct {
	Message  string
	Lead     map[string]interface{}
	Criteria map[string]interface{}
	found    bool
}

// Interpret reads raw assistant output
func (p *Interpreter) Interpret(raw string) Interpretation {
	var out Interpretation

	env := parseEnvelope(raw)

	message := env.Message
	if message == "" {
		message = raw
	}
	out.Message = utils.StripMarkers(message)

	jsonLead := candidateFromMap(env.Lead)
	markerMap, _ := utils.ExtractMarkerJSON(raw, utils.MarkerLead)
	markerLead := candidateFromMap(markerMap)

	switch {
	case jsonLead.Qualifies():
		out.Lead = jsonLead
	case markerLead.Qualifies():
		out.Lead = markerLead
	}

	criteria := criteriaFromMap(env.Criteria)
	if markerCriteria, ok := utils.ExtractMarkerJSON(raw, utils.MarkerFilter); ok {
		criteria = criteria.Merge(criteriaFromMap(markerCriteria))
	}
	out.Criteria = criteria

	return out
}

// CleanMessage returns only the display text of a stored assistant turn, so the
// model never re-reads its own structured output or markers
func (p *Interpreter) CleanMessage(content string) string {
	env := parseEnvelope(content)
	if env.Message != "" {
		content = env.Message
	}
	return utils.StripMarkers(content)
}

// parseEnvelope looks for a JSON object carrying at least one recognized key
func parseEnvelope(raw string) replyEnvelope {
	var env replyEnvelope
	if strings.TrimSpace(raw) == "" {
		return env
	}

	var data map[string]interface{}
	if err := utils.ParseAIJSON(raw, &data); err != nil {
		return env
	}

	for _, key := range []string{"question", "message"} {
		if v, ok := data[key]; ok {
			env.found = true
			if env.Message == "" {
				env.Message = strings.TrimSpace(scalarString(v))
			}
		}
	}
	if v, ok := data["lead_collected"].(map[string]interface{}); ok {
		env.found = true
		env.Lead = v
	}
	if v, ok := data["filter_criteria"].(map[string]interface{}); ok {
		env.found = true
		env.Criteria = v
	}
	if !env.found {
		return replyEnvelope{}
	}
	return env
}

// candidateFromMap reads a lead candidate; nil when the map carries nothing useful
func candidateFromMap(m map[string]interface{}) *model.LeadCandidate {
	if len(m) == 0 {
		return nil
	}
	c := &model.LeadCandidate{
		Name:      firstString(m, "name"),
		Phone:     firstString(m, "phone", "mobile", "contact"),
		Budget:    firstString(m, "budget"),
		Interest:  firstString(m, "interest", "property_interest"),
		LeadScore: firstString(m, "lead_score", "score"),
	}
	if *c == (model.LeadCandidate{}) {
		return nil
	}
	return c
}

// criteriaFromMap reads filter criteria; unknown or malformed values contribute nothing
func criteriaFromMap(m map[string]interface{}) model.FilterCriteria {
	var f model.FilterCriteria
	if len(m) == 0 {
		return f
	}
	f.Area = firstString(m, "area", "location")
	f.Type = firstString(m, "type", "property_type")
	if v, ok := m["budget_max_lac"]; ok {
		if lac, ok := numberValue(v); ok && lac > 0 {
			f.BudgetMaxLac = model.FloatPtr(lac)
		}
	}
	return f
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s := strings.TrimSpace(scalarString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// scalarString renders strings and numbers; objects and arrays are ignored
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

func numberValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
