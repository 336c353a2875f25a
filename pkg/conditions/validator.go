package conditions

import (
	"fmt"
	"regexp"
	"strings"
)

type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every problem found in a condition tree.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "invalid conditions: " + strings.Join(msgs, "; ")
}

// IsFatal keeps malformed trees out of retry loops.
func (v ValidationErrors) IsFatal() bool {
	return true
}

// Fields maps each error path to its message, the shape the authoring form consumes.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, e := range v {
		if _, exists := out[e.Path]; !exists {
			out[e.Path] = e.Message
		}
	}
	return out
}

// Validate checks a condition tree before it is stored or evaluated. The returned
// error is nil or ValidationErrors. prefix names the tree in error paths, e.g. "conditions".
func Validate(groups []Group, prefix string) error {
	if prefix == "" {
		prefix = "conditions"
	}

	var errs ValidationErrors
	for i, g := range groups {
		groupPath := fmt.Sprintf("%s[%d]", prefix, i)

		switch g.normalizedOperator() {
		case GroupAnd, GroupOr:
		case "":
			errs = append(errs, FieldError{Path: groupPath + ".operator", Message: "operator is required"})
		default:
			errs = append(errs, FieldError{Path: groupPath + ".operator", Message: fmt.Sprintf("operator must be AND or OR, got %q", g.Operator)})
		}

		if len(g.Rules) == 0 {
			errs = append(errs, FieldError{Path: groupPath + ".rules", Message: "group must contain at least one rule"})
			continue
		}

		for j, r := range g.Rules {
			errs = append(errs, validateRule(r, fmt.Sprintf("%s.rules[%d]", groupPath, j))...)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateRule(r Rule, path string) ValidationErrors {
	var errs ValidationErrors

	if r.normalizedField() == "" {
		errs = append(errs, FieldError{Path: path + ".field", Message: "field is required"})
	}

	op := r.normalizedOperator()
	if op == "" {
		errs = append(errs, FieldError{Path: path + ".operator", Message: "operator is required"})
		return errs
	}

	spec, ok := operatorSpecs[op]
	if !ok {
		errs = append(errs, FieldError{Path: path + ".operator", Message: fmt.Sprintf("unknown operator %q", r.Operator)})
		return errs
	}

	if !spec.valueRequired {
		return errs
	}

	value := r.value()
	if strings.TrimSpace(value) == "" {
		errs = append(errs, FieldError{Path: path + ".value", Message: fmt.Sprintf("value is required for operator %s", op)})
		return errs
	}

	switch {
	case spec.pattern:
		if _, err := regexp.Compile(value); err != nil {
			errs = append(errs, FieldError{Path: path + ".value", Message: fmt.Sprintf("invalid regular expression: %v", err)})
		}
	case spec.numeric:
		if _, ok := parseNumber(value); !ok {
			errs = append(errs, FieldError{Path: path + ".value", Message: fmt.Sprintf("value must be numeric for operator %s", op)})
		}
	case op == OpInList || op == OpNotInList:
		if len(SplitList(value)) == 0 {
			errs = append(errs, FieldError{Path: path + ".value", Message: "list must contain at least one item"})
		}
	}

	return errs
}
