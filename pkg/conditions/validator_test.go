package conditions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	tests := []struct {
		name   string
		groups []Group
	}{
		{name: "empty list", groups: nil},
		{
			name: "value-less operators",
			groups: []Group{{Operator: GroupOr, Rules: []Rule{
				{Field: FieldOrganizerCompany, Operator: OpIsEmpty},
				{Field: FieldInviteeName, Operator: OpIsNotEmpty},
			}}},
		},
		{
			name: "lower-case group operator is accepted",
			groups: []Group{{Operator: "and", Rules: []Rule{
				{Field: FieldInviteeDomain, Operator: OpInList, Value: StringValue("a.com, b.com")},
			}}},
		},
		{
			name: "unknown field is accepted",
			groups: []Group{{Operator: GroupAnd, Rules: []Rule{
				{Field: "custom_answer", Operator: OpEquals, Value: StringValue("yes")},
			}}},
		},
		{
			name: "regex and numeric values",
			groups: []Group{{Operator: GroupAnd, Rules: []Rule{
				{Field: FieldInviteeEmail, Operator: OpRegexMatch, Value: StringValue(`^[^@]+@(acme|globex)\.com$`)},
				{Field: FieldDuration, Operator: OpGreaterThan, Value: StringValue("29.5")},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.groups, ""))
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		groups    []Group
		wantPaths []string
	}{
		{
			name:      "missing group operator",
			groups:    []Group{{Rules: []Rule{{Field: FieldInviteeName, Operator: OpIsEmpty}}}},
			wantPaths: []string{"conditions[0].operator"},
		},
		{
			name:      "bad group operator",
			groups:    []Group{{Operator: "XOR", Rules: []Rule{{Field: FieldInviteeName, Operator: OpIsEmpty}}}},
			wantPaths: []string{"conditions[0].operator"},
		},
		{
			name:      "empty rules",
			groups:    []Group{{Operator: GroupAnd}},
			wantPaths: []string{"conditions[0].rules"},
		},
		{
			name:      "missing field and operator",
			groups:    []Group{{Operator: GroupAnd, Rules: []Rule{{}}}},
			wantPaths: []string{"conditions[0].rules[0].field", "conditions[0].rules[0].operator"},
		},
		{
			name:      "unknown operator",
			groups:    []Group{{Operator: GroupAnd, Rules: []Rule{{Field: FieldInviteeName, Operator: "sounds_like", Value: StringValue("x")}}}},
			wantPaths: []string{"conditions[0].rules[0].operator"},
		},
		{
			name:      "missing value",
			groups:    []Group{{Operator: GroupAnd, Rules: []Rule{{Field: FieldInviteeName, Operator: OpEquals}}}},
			wantPaths: []string{"conditions[0].rules[0].value"},
		},
		{
			name:      "blank value",
			groups:    []Group{{Operator: GroupAnd, Rules: []Rule{{Field: FieldInviteeName, Operator: OpContains, Value: StringValue("  ")}}}},
			wantPaths: []string{"conditions[0].rules[0].value"},
		},
		{
			name:      "bad regex",
			groups:    []Group{{Operator: GroupAnd, Rules: []Rule{{Field: FieldInviteeEmail, Operator: OpRegexMatch, Value: StringValue("([a-z")}}}},
			wantPaths: []string{"conditions[0].rules[0].value"},
		},
		{
			name:      "non-numeric comparison",
			groups:    []Group{{Operator: GroupAnd, Rules: []Rule{{Field: FieldDuration, Operator: OpLessThan, Value: StringValue("half an hour")}}}},
			wantPaths: []string{"conditions[0].rules[0].value"},
		},
		{
			name:      "list of separators only",
			groups:    []Group{{Operator: GroupAnd, Rules: []Rule{{Field: FieldInviteeDomain, Operator: OpInList, Value: StringValue(" , ,")}}}},
			wantPaths: []string{"conditions[0].rules[0].value"},
		},
		{
			name: "errors from several groups are all reported",
			groups: []Group{
				{Operator: GroupAnd, Rules: []Rule{{Field: FieldInviteeName, Operator: OpEquals}}},
				{Operator: GroupOr},
			},
			wantPaths: []string{"conditions[0].rules[0].value", "conditions[1].rules"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.groups, "")
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))

			paths := make([]string, 0, len(verrs))
			for _, e := range verrs {
				paths = append(paths, e.Path)
			}
			assert.ElementsMatch(t, tt.wantPaths, paths)
			assert.Len(t, verrs.Fields(), len(tt.wantPaths))
		})
	}
}

func TestValidate_Prefix(t *testing.T) {
	err := Validate([]Group{{Operator: GroupAnd}}, "actions[2].conditions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "actions[2].conditions[0].rules")
}

func TestCatalog(t *testing.T) {
	ops := Operators()
	assert.Len(t, ops, len(operatorSpecs))

	required := map[Operator]bool{}
	for _, op := range ops {
		required[op.Name] = op.ValueRequired
	}
	assert.False(t, required[OpIsEmpty])
	assert.False(t, required[OpIsNotEmpty])
	assert.True(t, required[OpRegexMatch])
	assert.True(t, required[OpInList])

	assert.True(t, IsKnownField(FieldIsBusinessHours))
	assert.False(t, IsKnownField("nope"))
	assert.True(t, IsKnownOperator(OpNotInList))
	assert.False(t, IsKnownOperator("nope"))
}
