package utils

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// typeFamily maps a canonical property type to the words that signal it
type typeFamily struct {
	canonical string
	pattern   *regexp.Regexp
}

// Checked in order; the first family found in the text wins.
var propertyTypeFamilies = []typeFamily{
	{"plot", regexp.MustCompile(`\bplots?\b`)},
	{"house", regexp.MustCompile(`\b(houses?|homes?)\b`)},
	{"flat", regexp.MustCompile(`\b(flats?|apartments?)\b`)},
}

var (
	croreRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:crores?|cr)\b`)
	millionRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:millions?|mn)\b`)
	lakhRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:lacs?|lakhs?|lk)\b`)
)

// showAllPhrases signal that the user wants the unfiltered inventory
var showAllPhrases = []string{
	"show all",
	"all properties",
	"show everything",
	"all listings",
	"sab dikhao",
	"sari properties",
	"no filter",
}

// MatchPropertyType returns the canonical type whose keywords appear in text
func MatchPropertyType(text string) string {
	lower := strings.ToLower(text)
	for _, f := range propertyTypeFamilies {
		if f.pattern.MatchString(lower) {
			return f.canonical
		}
	}
	return ""
}

// MatchArea returns the first catalog area mentioned in text, case-insensitively.
// Longer names are tried first so "DHA Phase 5" wins over "DHA".
func MatchArea(text string, areas []string) string {
	lower := strings.ToLower(text)

	candidates := make([]string, 0, len(areas))
	for _, a := range areas {
		if a = strings.TrimSpace(a); a != "" {
			candidates = append(candidates, a)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) > len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})

	for _, a := range candidates {
		if strings.Contains(lower, strings.ToLower(a)) {
			return a
		}
	}
	return ""
}

// ParseBudgetLac extracts a budget in lakh from phrases like "2 crore",
// "15 million" or "50 lac". Crore wins over million, million over lakh.
func ParseBudgetLac(text string) (float64, bool) {
	lower := strings.ToLower(text)
	if m := croreRe.FindStringSubmatch(lower); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v * 100, true
		}
	}
	if m := millionRe.FindStringSubmatch(lower); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v * 10, true
		}
	}
	if m := lakhRe.FindStringSubmatch(lower); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// WantsEverything reports whether text asks for the unfiltered inventory
func WantsEverything(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range showAllPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// TruncateRunes cuts s to at most n runes
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
