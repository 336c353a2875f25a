package conditions

import "strings"

type Field string

const (
	FieldInviteeName      Field = "invitee_name"
	FieldInviteeEmail     Field = "invitee_email"
	FieldInviteeDomain    Field = "invitee_domain"
	FieldEventTypeName    Field = "event_type_name"
	FieldDuration         Field = "duration"
	FieldAttendeeCount    Field = "attendee_count"
	FieldStartTime        Field = "start_time"
	FieldOrganizerCompany Field = "organizer_company"
	FieldIsBusinessHours  Field = "is_business_hours"
)

type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpRegexMatch  Operator = "regex_match"
	OpInList      Operator = "in_list"
	OpNotInList   Operator = "not_in_list"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"
)

type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// Rule compares one resolved booking field against Value.
type Rule struct {
	Field    Field    `json:"field" bson:"field"`
	Operator Operator `json:"operator" bson:"operator"`
	Value    *string  `json:"value,omitempty" bson:"value,omitempty"`
}

// Group combines its rules with Operator. A list of groups is AND-ed.
type Group struct {
	Operator GroupOperator `json:"operator" bson:"operator"`
	Rules    []Rule        `json:"rules" bson:"rules"`
}

func (r Rule) value() string {
	if r.Value == nil {
		return ""
	}
	return *r.Value
}

func (r Rule) normalizedOperator() Operator {
	return Operator(strings.ToLower(strings.TrimSpace(string(r.Operator))))
}

func (r Rule) normalizedField() Field {
	return Field(strings.ToLower(strings.TrimSpace(string(r.Field))))
}

func (g Group) normalizedOperator() GroupOperator {
	return GroupOperator(strings.ToUpper(strings.TrimSpace(string(g.Operator))))
}

// Normalize returns a copy with canonical casing for operators and field names.
func Normalize(groups []Group) []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = Group{Operator: g.normalizedOperator(), Rules: make([]Rule, len(g.Rules))}
		for j, r := range g.Rules {
			out[i].Rules[j] = Rule{Field: r.normalizedField(), Operator: r.normalizedOperator(), Value: r.Value}
		}
	}
	return out
}

// StringValue is a convenience for building rules in code.
func StringValue(v string) *string {
	return &v
}

type FieldInfo struct {
	Name        Field  `json:"name"`
	Description string `json:"description"`
}

type OperatorInfo struct {
	Name          Operator `json:"name"`
	ValueRequired bool     `json:"value_required"`
	Numeric       bool     `json:"numeric"`
	Description   string   `json:"description"`
}

var fieldCatalog = []FieldInfo{
	{FieldInviteeName, "Invitee full name"},
	{FieldInviteeEmail, "Invitee email address"},
	{FieldInviteeDomain, "Domain part of the invitee email, lower-cased"},
	{FieldEventTypeName, "Event type name"},
	{FieldDuration, "Event duration in minutes"},
	{FieldAttendeeCount, "Number of attendees including the invitee"},
	{FieldStartTime, "Start time, RFC 3339 in UTC"},
	{FieldOrganizerCompany, "Organizer company"},
	{FieldIsBusinessHours, "\"true\" when the start falls Mon-Fri 09:00-17:00 in the booking time zone"},
}

func Fields() []FieldInfo {
	out := make([]FieldInfo, len(fieldCatalog))
	copy(out, fieldCatalog)
	return out
}

func Operators() []OperatorInfo {
	out := make([]OperatorInfo, 0, len(operatorOrder))
	for _, op := range operatorOrder {
		spec := operatorSpecs[op]
		out = append(out, OperatorInfo{
			Name:          op,
			ValueRequired: spec.valueRequired,
			Numeric:       spec.numeric,
			Description:   spec.description,
		})
	}
	return out
}

func IsKnownField(f Field) bool {
	for _, info := range fieldCatalog {
		if info.Name == f {
			return true
		}
	}
	return false
}

func IsKnownOperator(op Operator) bool {
	_, ok := operatorSpecs[op]
	return ok
}
