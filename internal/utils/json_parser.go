package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSONRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe  = regexp.MustCompile(`([{,]\s*)(\w+)(\s*:)`)
	controlCharsRe = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]{2,}`)
)

// ParseAIJSON extracts and parses a JSON object from model output that may be:
// - pure JSON
// - JSON wrapped in a markdown fence (```json ... ```)
// - JSON with surrounding text
// - JSON with trailing commas or unquoted keys
func ParseAIJSON(input string, target interface{}) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return fmt.Errorf("empty input")
	}

	if err := json.Unmarshal([]byte(input), target); err == nil {
		return nil
	}

	if extracted := extractFromMarkdown(input); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), target); err == nil {
			return nil
		}
		if err := json.Unmarshal([]byte(cleanAndFixJSON(extracted)), target); err == nil {
			return nil
		}
	}

	if extracted := extractJSONFromText(input); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), target); err == nil {
			return nil
		}
	}

	if cleaned := cleanAndFixJSON(input); cleaned != "" {
		if err := json.Unmarshal([]byte(cleaned), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse JSON from input: %s", truncateString(input, 100))
}

// extractFromMarkdown returns the body of the first fenced block when it looks like an object
func extractFromMarkdown(input string) string {
	if matches := fencedJSONRe.FindStringSubmatch(input); len(matches) > 1 {
		content := strings.TrimSpace(matches[1])
		if strings.HasPrefix(content, "{") {
			return content
		}
	}
	return ""
}

// extractJSONFromText finds the first balanced JSON object in surrounding text
func extractJSONFromText(input string) string {
	if start := strings.Index(input, "{"); start >= 0 {
		return extractBalancedBraces(input[start:], '{', '}')
	}
	return ""
}

// extractBalancedBraces extracts content with balanced braces
func extractBalancedBraces(input string, open, close rune) string {
	if len(input) == 0 {
		return ""
	}

	depth := 0
	inString := false
	escape := false
	start := 0

	for i, ch := range input {
		if escape {
			escape = false
			continue
		}
		if ch == '\\' {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if ch == open {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == close {
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}

	return ""
}

// cleanAndFixJSON attempts to fix common JSON formatting issues
func cleanAndFixJSON(input string) string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "\ufeff")
	s = trailingComma.ReplaceAllString(s, "$1")
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	s = controlCharsRe.ReplaceAllString(s, "")
	return s
}

// truncateString truncates a string to maxLen bytes
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Marker is an inline tag the model appends to its reply, followed by a JSON object
type Marker string

const (
	MarkerLead   Marker = "LEAD_COLLECTED"
	MarkerFilter Marker = "FILTER_CRITERIA"
)

type markerRegexps struct {
	payload  *regexp.Regexp
	full     *regexp.Regexp
	dangling *regexp.Regexp
	bare     *regexp.Regexp
}

var markerPatterns = map[Marker]markerRegexps{
	MarkerLead:   compileMarker(MarkerLead),
	MarkerFilter: compileMarker(MarkerFilter),
}

func compileMarker(m Marker) markerRegexps {
	name := regexp.QuoteMeta(string(m))
	return markerRegexps{
		payload:  regexp.MustCompile(`(?i)` + name + `\s*:\s*(\{[^}]*\})`),
		full:     regexp.MustCompile(`(?i)[ \t]*` + name + `\s*:\s*\{[^}]*\}[ \t]*`),
		dangling: regexp.MustCompile(`(?i)[ \t]*` + name + `\s*:\s*\{[^}]*$`),
		bare:     regexp.MustCompile(`(?i)[ \t]*` + name + `\s*:?`),
	}
}

// ExtractMarkerJSON decodes the object following the first occurrence of marker.
// The payload ends at the first closing brace. Returns false when the marker is
// absent or its payload is not a JSON object.
func ExtractMarkerJSON(text string, marker Marker) (map[string]interface{}, bool) {
	p, ok := markerPatterns[marker]
	if !ok {
		return nil, false
	}
	m := p.payload.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil, false
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(m[1]), &out); err != nil {
		return nil, false
	}
	return out, true
}

// StripMarkers removes every marker and its payload, including a payload left
// unterminated at the end of the text, and any bare marker word.
func StripMarkers(text string) string {
	for _, m := range []Marker{MarkerLead, MarkerFilter} {
		p := markerPatterns[m]
		text = p.full.ReplaceAllString(text, " ")
		text = p.dangling.ReplaceAllString(text, "")
		text = p.bare.ReplaceAllString(text, " ")
	}
	text = multiSpaceRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
