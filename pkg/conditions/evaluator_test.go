package conditions

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator()
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestEvaluateRule_Operators(t *testing.T) {
	e := newTestEvaluator(t)
	r := MapResolver{
		FieldInviteeName:   "Grace Hopper",
		FieldInviteeDomain: "navy.mil",
		FieldDuration:      "45",
	}

	tests := []struct {
		name  string
		field Field
		op    Operator
		value *string
		want  bool
	}{
		{"equals ignores case", FieldInviteeName, OpEquals, StringValue("grace hopper"), true},
		{"equals mismatch", FieldInviteeName, OpEquals, StringValue("Grace"), false},
		{"not_equals", FieldInviteeName, OpNotEquals, StringValue("Ada"), true},
		{"contains", FieldInviteeName, OpContains, StringValue("HOP"), true},
		{"not_contains", FieldInviteeName, OpNotContains, StringValue("hop"), false},
		{"starts_with", FieldInviteeName, OpStartsWith, StringValue("gra"), true},
		{"ends_with", FieldInviteeName, OpEndsWith, StringValue("per"), true},
		{"regex_match", FieldInviteeDomain, OpRegexMatch, StringValue(`^[a-z]+\.mil$`), true},
		{"regex_match is case sensitive", FieldInviteeDomain, OpRegexMatch, StringValue(`^NAVY`), false},
		{"regex_match with invalid pattern", FieldInviteeDomain, OpRegexMatch, StringValue("(["), false},
		{"in_list", FieldInviteeDomain, OpInList, StringValue("army.mil, NAVY.mil"), true},
		{"in_list requires whole item", FieldInviteeDomain, OpInList, StringValue("navy"), false},
		{"not_in_list", FieldInviteeDomain, OpNotInList, StringValue("army.mil,af.mil"), true},
		{"not_in_list member", FieldInviteeDomain, OpNotInList, StringValue("navy.mil"), false},
		{"greater_than", FieldDuration, OpGreaterThan, StringValue("30"), true},
		{"greater_than equal bound", FieldDuration, OpGreaterThan, StringValue("45"), false},
		{"less_than", FieldDuration, OpLessThan, StringValue("60.5"), true},
		{"less_than non-numeric value", FieldDuration, OpLessThan, StringValue("soon"), false},
		{"greater_than on empty field", FieldOrganizerCompany, OpGreaterThan, StringValue("0"), false},
		{"is_empty on missing field", FieldOrganizerCompany, OpIsEmpty, nil, true},
		{"is_empty on present field", FieldInviteeName, OpIsEmpty, nil, false},
		{"is_not_empty", FieldInviteeName, OpIsNotEmpty, nil, true},
		{"unknown field resolves empty", Field("shoe_size"), OpIsEmpty, nil, true},
		{"unknown operator is false", FieldInviteeName, Operator("sounds_like"), StringValue("grace"), false},
		{"operator names are case-insensitive", FieldInviteeName, Operator("EQUALS"), StringValue("grace hopper"), true},
		{"missing value compares against empty", FieldInviteeName, OpEquals, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := Rule{Field: tt.field, Operator: tt.op, Value: tt.value}
			assert.Equal(t, tt.want, e.EvaluateRule(rule, r))
		})
	}
}

func TestEvaluateGroup(t *testing.T) {
	e := newTestEvaluator(t)
	r := MapResolver{FieldInviteeName: "Ada"}

	yes := Rule{Field: FieldInviteeName, Operator: OpIsNotEmpty}
	no := Rule{Field: FieldInviteeName, Operator: OpIsEmpty}

	tests := []struct {
		name  string
		group Group
		want  bool
	}{
		{"AND all true", Group{Operator: GroupAnd, Rules: []Rule{yes, yes}}, true},
		{"AND one false", Group{Operator: GroupAnd, Rules: []Rule{yes, no}}, false},
		{"OR one true", Group{Operator: GroupOr, Rules: []Rule{no, yes}}, true},
		{"OR all false", Group{Operator: GroupOr, Rules: []Rule{no, no}}, false},
		{"lower-case operator", Group{Operator: "or", Rules: []Rule{no, yes}}, true},
		{"empty rules", Group{Operator: GroupAnd}, false},
		{"unknown group operator", Group{Operator: "XOR", Rules: []Rule{yes}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.EvaluateGroup(tt.group, r))
		})
	}

	assert.False(t, e.EvaluateGroup(Group{Operator: GroupAnd, Rules: []Rule{yes}}, nil))
}

func TestEvaluate_Booking(t *testing.T) {
	e := newTestEvaluator(t)
	b := testBooking()

	vipDomain := Group{Operator: GroupOr, Rules: []Rule{
		{Field: FieldInviteeDomain, Operator: OpInList, Value: StringValue("navy.mil, army.mil")},
		{Field: FieldOrganizerCompany, Operator: OpEquals, Value: StringValue("Globex")},
	}}
	longCall := Group{Operator: GroupAnd, Rules: []Rule{
		{Field: FieldDuration, Operator: OpGreaterThan, Value: StringValue("30")},
		{Field: FieldIsBusinessHours, Operator: OpEquals, Value: StringValue("true")},
	}}
	shortCall := Group{Operator: GroupAnd, Rules: []Rule{
		{Field: FieldDuration, Operator: OpLessThan, Value: StringValue("30")},
	}}

	assert.True(t, e.Evaluate(nil, b), "empty list is true")
	assert.True(t, e.Evaluate([]Group{}, b), "empty list is true")
	assert.True(t, e.Evaluate([]Group{vipDomain, longCall}, b))
	assert.False(t, e.Evaluate([]Group{vipDomain, shortCall}, b))
	assert.False(t, e.Evaluate([]Group{shortCall, vipDomain}, b))

	assert.True(t, e.Evaluate(nil, nil))
	assert.False(t, e.Evaluate([]Group{{Operator: GroupAnd, Rules: []Rule{{Field: FieldInviteeName, Operator: OpIsEmpty}}}}, nil))
}

func TestEvaluate_IsEmptyMatchesResolvedValue(t *testing.T) {
	e := newTestEvaluator(t)
	b := testBooking()

	for _, info := range Fields() {
		rule := Rule{Field: info.Name, Operator: OpIsEmpty}
		want := ResolveField(b, info.Name) == ""
		assert.Equal(t, want, e.EvaluateRule(rule, NewBookingResolver(b)), info.Name)
	}
}

func TestExplain(t *testing.T) {
	e := newTestEvaluator(t)
	b := testBooking()

	groups := []Group{
		{Operator: GroupOr, Rules: []Rule{
			{Field: FieldInviteeDomain, Operator: OpEquals, Value: StringValue("acme.com")},
			{Field: FieldEventTypeName, Operator: OpContains, Value: StringValue("discovery")},
		}},
		{Operator: GroupAnd, Rules: []Rule{
			{Field: FieldAttendeeCount, Operator: OpGreaterThan, Value: StringValue("5")},
		}},
	}

	out := e.Explain(groups, NewBookingResolver(b))
	assert.Equal(t, e.Evaluate(groups, b), out.Result)
	assert.False(t, out.Result)
	require.Len(t, out.Groups, 2)

	assert.True(t, out.Groups[0].Result)
	require.Len(t, out.Groups[0].Rules, 2)
	assert.Equal(t, "navy.mil", out.Groups[0].Rules[0].Actual)
	assert.False(t, out.Groups[0].Rules[0].Result)
	assert.True(t, out.Groups[0].Rules[1].Result)

	assert.False(t, out.Groups[1].Result)
	assert.Equal(t, "2", out.Groups[1].Rules[0].Actual)
}

func TestEvaluator_ConcurrentRegex(t *testing.T) {
	e := newTestEvaluator(t)
	r := MapResolver{FieldInviteeEmail: "ops@acme.com"}
	rule := Rule{Field: FieldInviteeEmail, Operator: OpRegexMatch, Value: StringValue(`@acme\.com$`)}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.True(t, e.EvaluateRule(rule, r))
			}
		}()
	}
	wg.Wait()
}

func TestNormalize(t *testing.T) {
	in := []Group{{Operator: "or", Rules: []Rule{{Field: " Invitee_Email ", Operator: "Ends_With", Value: StringValue("@x.io")}}}}
	out := Normalize(in)

	require.Len(t, out, 1)
	assert.Equal(t, GroupOr, out[0].Operator)
	assert.Equal(t, FieldInviteeEmail, out[0].Rules[0].Field)
	assert.Equal(t, OpEndsWith, out[0].Rules[0].Operator)
	assert.Equal(t, "or", string(in[0].Operator), "input is not mutated")
}
