package conditions

import (
	"strconv"
	"strings"
)

type predicate func(actual, expected string) bool

type operatorSpec struct {
	valueRequired bool
	numeric       bool
	pattern       bool
	description   string
	fn            predicate
}

var operatorOrder = []Operator{
	OpEquals, OpNotEquals,
	OpContains, OpNotContains,
	OpStartsWith, OpEndsWith,
	OpRegexMatch,
	OpInList, OpNotInList,
	OpGreaterThan, OpLessThan,
	OpIsEmpty, OpIsNotEmpty,
}

// regex_match has no static predicate; the evaluator supplies one backed by its pattern cache.
var operatorSpecs = map[Operator]operatorSpec{
	OpEquals:      {valueRequired: true, description: "Case-insensitive equality", fn: equalsFold},
	OpNotEquals:   {valueRequired: true, description: "Negated equals", fn: not(equalsFold)},
	OpContains:    {valueRequired: true, description: "Case-insensitive substring", fn: containsFold},
	OpNotContains: {valueRequired: true, description: "Negated contains", fn: not(containsFold)},
	OpStartsWith:  {valueRequired: true, description: "Case-insensitive prefix", fn: hasPrefixFold},
	OpEndsWith:    {valueRequired: true, description: "Case-insensitive suffix", fn: hasSuffixFold},
	OpRegexMatch:  {valueRequired: true, pattern: true, description: "Value is a regular expression matched against the field"},
	OpInList:      {valueRequired: true, description: "Field is one of the comma-separated values", fn: inList},
	OpNotInList:   {valueRequired: true, description: "Field is none of the comma-separated values", fn: not(inList)},
	OpGreaterThan: {valueRequired: true, numeric: true, description: "Numeric greater than", fn: compareNumbers(func(a, b float64) bool { return a > b })},
	OpLessThan:    {valueRequired: true, numeric: true, description: "Numeric less than", fn: compareNumbers(func(a, b float64) bool { return a < b })},
	OpIsEmpty:     {description: "Field resolves to an empty value", fn: func(actual, _ string) bool { return actual == "" }},
	OpIsNotEmpty:  {description: "Field resolves to a non-empty value", fn: func(actual, _ string) bool { return actual != "" }},
}

func not(p predicate) predicate {
	return func(actual, expected string) bool {
		return !p(actual, expected)
	}
}

func equalsFold(actual, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(actual), strings.TrimSpace(expected))
}

func containsFold(actual, expected string) bool {
	return strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
}

func hasPrefixFold(actual, expected string) bool {
	return strings.HasPrefix(strings.ToLower(actual), strings.ToLower(expected))
}

func hasSuffixFold(actual, expected string) bool {
	return strings.HasSuffix(strings.ToLower(actual), strings.ToLower(expected))
}

func inList(actual, expected string) bool {
	needle := strings.TrimSpace(actual)
	for _, item := range SplitList(expected) {
		if strings.EqualFold(item, needle) {
			return true
		}
	}
	return false
}

// SplitList splits a comma-separated rule value, trimming items and dropping empty ones.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

func compareNumbers(cmp func(a, b float64) bool) predicate {
	return func(actual, expected string) bool {
		a, ok := parseNumber(actual)
		if !ok {
			return false
		}
		b, ok := parseNumber(expected)
		if !ok {
			return false
		}
		return cmp(a, b)
	}
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
