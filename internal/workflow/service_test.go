package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookflow/internal/config"
	"bookflow/internal/logger"
	"bookflow/pkg/conditions"
	"bookflow/pkg/models"
)

type stubRepository struct {
	workflows []Workflow
	err       error
}

func (r *stubRepository) GetActiveWorkflows(ctx context.Context) ([]Workflow, error) {
	return r.workflows, r.err
}

type memoryGuard struct {
	mu       sync.Mutex
	claimed  map[string]bool
	released []string
	err      error
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{claimed: make(map[string]bool)}
}

func (g *memoryGuard) Claim(ctx context.Context, fields map[string]string) (string, bool, error) {
	if g.err != nil {
		return "", false, g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	key := fields["booking_id"] + ":" + fields["workflow_id"] + ":" + fields["action_id"]
	if g.claimed[key] {
		return key, false, nil
	}
	g.claimed[key] = true
	return key, true, nil
}

func (g *memoryGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claimed, key)
	g.released = append(g.released, key)
	return nil
}

type stubDirectory struct {
	organizers map[string]*models.Organizer
	err        error
	calls      int
}

func (d *stubDirectory) Lookup(ctx context.Context, id string) (*models.Organizer, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.organizers[id], nil
}

func bookingEvent(trigger Trigger) models.BookingEvent {
	start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	return models.BookingEvent{
		Trigger: string(trigger),
		Booking: models.Booking{
			ID:        "bk-1",
			UID:       "uid-1",
			EventType: models.EventType{Name: "Discovery Call", DurationMinutes: 30},
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
			Invitee:   models.Person{Name: "Ada Lovelace", Email: "ada@analytical.io"},
			Organizer: models.Organizer{ID: "org-1", Name: "Host", Email: "host@acme.com"},
		},
		OccurredAt: start.Add(-24 * time.Hour),
	}
}

func envelopeFor(t *testing.T, event models.BookingEvent) models.MessageEnvelope {
	t.Helper()
	payload, err := event.ToPayload()
	require.NoError(t, err)
	return models.MessageEnvelope{ID: "msg-1", Payload: payload}
}

func newTestService(t *testing.T, workflows []Workflow, cfg config.WorkflowConfig, opts ...ServiceOption) *Service {
	t.Helper()
	svc, err := NewService(&stubRepository{workflows: workflows}, cfg, logger.NopLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	require.NoError(t, svc.ReloadWorkflows(context.Background(), true))
	return svc
}

func domainIs(domain string) []conditions.Group {
	return []conditions.Group{{
		Operator: conditions.GroupAnd,
		Rules: []conditions.Rule{{
			Field:    conditions.FieldInviteeDomain,
			Operator: conditions.OpEquals,
			Value:    conditions.StringValue(domain),
		}},
	}}
}

func TestServiceProcess(t *testing.T) {
	wf := Workflow{
		ID:      "wf-1",
		Name:    "Confirmations",
		Trigger: TriggerBookingCreated,
		Active:  true,
		Actions: []Action{
			{
				ID:         "a-2",
				StepNumber: 2,
				Type:       ActionEmailHost,
				Subject:    "New booking with {{booking.invitee.name}}",
				Body:       "{{uppercase booking.event_type.name}}",
			},
			{
				ID:         "a-1",
				StepNumber: 1,
				Type:       ActionEmailAttendee,
				Subject:    "See you soon",
				Body:       "Hi {{booking.invitee.name}}",
				Conditions: domainIs("analytical.io"),
			},
			{
				ID:         "a-3",
				StepNumber: 3,
				Type:       ActionEmailAttendee,
				Body:       "VIP",
				Conditions: domainIs("vip.example"),
			},
		},
	}

	svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{})
	result, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
	require.NoError(t, err)

	require.Len(t, result.Decisions, 3)
	assert.Equal(t, "a-1", result.Decisions[0].ActionID)
	assert.Equal(t, OutcomeDispatched, result.Decisions[0].Outcome)
	assert.Equal(t, OutcomeDispatched, result.Decisions[1].Outcome)
	assert.Equal(t, OutcomeConditionsNotMet, result.Decisions[2].Outcome)
	for _, d := range result.Decisions {
		assert.Equal(t, "msg-1", d.MessageID)
		assert.Equal(t, "bk-1", d.BookingID)
		assert.NotEmpty(t, d.ID)
	}

	require.Len(t, result.Dispatches, 2)
	attendee := result.Dispatches[0]
	assert.Equal(t, "ada@analytical.io", attendee.Recipient)
	assert.Equal(t, "Hi Ada Lovelace", attendee.Body)
	assert.Equal(t, "wf-1", attendee.WorkflowID)

	host := result.Dispatches[1]
	assert.Equal(t, "host@acme.com", host.Recipient)
	assert.Equal(t, "New booking with Ada Lovelace", host.Subject)
	assert.Equal(t, "DISCOVERY CALL", host.Body)
}

func TestServiceProcessIgnoresOtherTriggers(t *testing.T) {
	wf := Workflow{
		ID:      "wf-cancel",
		Trigger: TriggerBookingCancelled,
		Active:  true,
		Actions: []Action{{ID: "a-1", StepNumber: 1, Type: ActionEmailHost, Body: "cancelled"}},
	}
	svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{})

	result, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
	require.NoError(t, err)
	assert.Empty(t, result.Decisions)
	assert.Empty(t, result.Dispatches)
}

func TestServiceProcessInactiveWorkflowsAreSkipped(t *testing.T) {
	wf := Workflow{
		ID:      "wf-off",
		Trigger: TriggerBookingCreated,
		Active:  false,
		Actions: []Action{{ID: "a-1", StepNumber: 1, Type: ActionEmailHost, Body: "x"}},
	}
	svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{})

	result, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
	require.NoError(t, err)
	assert.Empty(t, result.Decisions)
}

func TestServiceProcessOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		outcome Outcome
	}{
		{
			name:    "expression true",
			action:  Action{Type: ActionEmailHost, Body: "x", Expression: `fields.duration == "30"`},
			outcome: OutcomeDispatched,
		},
		{
			name:    "expression false",
			action:  Action{Type: ActionEmailHost, Body: "x", Expression: `trigger == "booking_cancelled"`},
			outcome: OutcomeExpressionFalse,
		},
		{
			name:    "render error",
			action:  Action{Type: ActionEmailHost, Body: "{{#if booking.id}}unterminated"},
			outcome: OutcomeRenderError,
		},
		{
			name:    "no phone for sms",
			action:  Action{Type: ActionSMSAttendee, Body: "Reminder"},
			outcome: OutcomeNoRecipient,
		},
		{
			name:    "webhook without url",
			action:  Action{Type: ActionWebhook, Body: "{}"},
			outcome: OutcomeNoRecipient,
		},
		{
			name:    "explicit recipient",
			action:  Action{Type: ActionWebhook, Recipient: "https://hooks.example.com/{{booking.id}}", Body: "{}"},
			outcome: OutcomeDispatched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.action.ID = "a-1"
			tt.action.StepNumber = 1
			wf := Workflow{ID: "wf-1", Trigger: TriggerBookingCreated, Active: true, Actions: []Action{tt.action}}
			svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{})

			result, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
			require.NoError(t, err)
			require.Len(t, result.Decisions, 1)
			assert.Equal(t, tt.outcome, result.Decisions[0].Outcome)
			if tt.outcome == OutcomeDispatched {
				assert.Len(t, result.Dispatches, 1)
			} else {
				assert.Empty(t, result.Dispatches)
			}
		})
	}
}

func TestServiceGateExpressionFallback(t *testing.T) {
	action := Action{ID: "a-1", StepNumber: 1, Type: ActionEmailHost, Body: "x", Expression: `booking.missing == "x"`}
	wf := Workflow{ID: "wf-1", Trigger: TriggerBookingCreated, Active: true, Actions: []Action{action}}

	t.Run("error", func(t *testing.T) {
		svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{Fallback: config.FallbackConfig{OnError: "error"}})
		_, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
		assert.Error(t, err)
	})

	t.Run("deny", func(t *testing.T) {
		svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{Fallback: config.FallbackConfig{OnError: "deny"}})
		result, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
		require.NoError(t, err)
		assert.Equal(t, OutcomeExpressionFalse, result.Decisions[0].Outcome)
		assert.Contains(t, result.Decisions[0].Reason, "expression error")
	})

	t.Run("allow", func(t *testing.T) {
		svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{Fallback: config.FallbackConfig{OnError: "allow"}})
		result, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
		require.NoError(t, err)
		assert.Equal(t, OutcomeDispatched, result.Decisions[0].Outcome)
	})
}

func TestServiceDispatchGuard(t *testing.T) {
	wf := Workflow{
		ID:      "wf-1",
		Trigger: TriggerBookingCreated,
		Active:  true,
		Actions: []Action{{ID: "a-1", StepNumber: 1, Type: ActionEmailHost, Body: "x"}},
	}

	t.Run("second delivery is a duplicate", func(t *testing.T) {
		guard := newMemoryGuard()
		svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{}, WithDispatchGuard(guard))
		msg := envelopeFor(t, bookingEvent(TriggerBookingCreated))

		first, err := svc.Process(context.Background(), msg)
		require.NoError(t, err)
		require.Len(t, first.Dispatches, 1)
		assert.Equal(t, "bk-1:wf-1:a-1", first.Dispatches[0].IdempotencyKey)

		second, err := svc.Process(context.Background(), msg)
		require.NoError(t, err)
		assert.Empty(t, second.Dispatches)
		assert.Equal(t, OutcomeDuplicate, second.Decisions[0].Outcome)
	})

	t.Run("released claims can be dispatched again", func(t *testing.T) {
		guard := newMemoryGuard()
		svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{}, WithDispatchGuard(guard))
		msg := envelopeFor(t, bookingEvent(TriggerBookingCreated))

		first, err := svc.Process(context.Background(), msg)
		require.NoError(t, err)
		svc.ReleaseDispatches(context.Background(), first.Dispatches)

		again, err := svc.Process(context.Background(), msg)
		require.NoError(t, err)
		assert.Len(t, again.Dispatches, 1)
	})

	t.Run("guard errors fail the event", func(t *testing.T) {
		guard := newMemoryGuard()
		guard.err = errors.New("redis down")
		svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{}, WithDispatchGuard(guard))

		_, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
		assert.Error(t, err)
	})
}

func TestServiceDirectoryCompletesOrganizer(t *testing.T) {
	wf := Workflow{
		ID:      "wf-1",
		Trigger: TriggerBookingCreated,
		Active:  true,
		Actions: []Action{{
			ID:         "a-1",
			StepNumber: 1,
			Type:       ActionEmailHost,
			Body:       "{{booking.organizer.company}}",
			Conditions: []conditions.Group{{
				Operator: conditions.GroupAnd,
				Rules: []conditions.Rule{{
					Field:    conditions.FieldOrganizerCompany,
					Operator: conditions.OpEquals,
					Value:    conditions.StringValue("acme corp"),
				}},
			}},
		}},
	}

	t.Run("lookup fills company", func(t *testing.T) {
		dir := &stubDirectory{organizers: map[string]*models.Organizer{
			"org-1": {ID: "org-1", Company: "Acme Corp"},
		}}
		svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{}, WithDirectory(dir, time.Second))

		result, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
		require.NoError(t, err)
		require.Len(t, result.Dispatches, 1)
		assert.Equal(t, "Acme Corp", result.Dispatches[0].Body)
		assert.Equal(t, 1, dir.calls)
	})

	t.Run("lookup failure evaluates with event data", func(t *testing.T) {
		dir := &stubDirectory{err: errors.New("mongo unavailable")}
		svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{}, WithDirectory(dir, time.Second))

		result, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
		require.NoError(t, err)
		assert.Equal(t, OutcomeConditionsNotMet, result.Decisions[0].Outcome)
	})

	t.Run("company on the event skips lookup", func(t *testing.T) {
		dir := &stubDirectory{}
		svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{}, WithDirectory(dir, time.Second))
		event := bookingEvent(TriggerBookingCreated)
		event.Booking.Organizer.Company = "ACME CORP"

		result, err := svc.Process(context.Background(), envelopeFor(t, event))
		require.NoError(t, err)
		assert.Equal(t, OutcomeDispatched, result.Decisions[0].Outcome)
		assert.Zero(t, dir.calls)
	})
}

func TestServiceProcessInvalidPayload(t *testing.T) {
	svc := newTestService(t, nil, config.WorkflowConfig{})

	_, err := svc.Process(context.Background(), models.MessageEnvelope{ID: "m", Payload: map[string]interface{}{"foo": "bar"}})
	assert.Error(t, err)

	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestServiceReloadWorkflowsError(t *testing.T) {
	svc, err := NewService(&stubRepository{err: errors.New("db down")}, config.WorkflowConfig{}, logger.NopLogger())
	require.NoError(t, err)
	defer svc.Close()

	assert.Error(t, svc.ReloadWorkflows(context.Background(), true))
}

func TestServiceEvaluate(t *testing.T) {
	svc := newTestService(t, nil, config.WorkflowConfig{})
	booking := bookingEvent(TriggerBookingCreated).Booking

	exp := svc.Evaluate(domainIs("analytical.io"), &booking)
	assert.True(t, exp.Result)

	exp = svc.Evaluate(domainIs("other.io"), &booking)
	assert.False(t, exp.Result)
	require.Len(t, exp.Groups, 1)
}

// cancellingGuard cancels the processing context once the first claim succeeds and, like a
// Redis client, refuses to release with a cancelled context.
type cancellingGuard struct {
	*memoryGuard
	cancel context.CancelFunc
}

func (g *cancellingGuard) Claim(ctx context.Context, fields map[string]string) (string, bool, error) {
	key, claimed, err := g.memoryGuard.Claim(ctx, fields)
	g.cancel()
	return key, claimed, err
}

func (g *cancellingGuard) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.memoryGuard.Release(ctx, key)
}

func TestServiceProcessCancelledReleasesClaims(t *testing.T) {
	workflows := []Workflow{
		{ID: "wf-1", Trigger: TriggerBookingCreated, Active: true, Actions: []Action{{ID: "s1", StepNumber: 1, Type: ActionEmailHost, Body: "x"}}},
		{ID: "wf-2", Trigger: TriggerBookingCreated, Active: true, Actions: []Action{{ID: "s1", StepNumber: 1, Type: ActionEmailHost, Body: "y"}}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	guard := &cancellingGuard{memoryGuard: newMemoryGuard(), cancel: cancel}
	svc := newTestService(t, workflows, config.WorkflowConfig{}, WithDispatchGuard(guard))

	_, err := svc.Process(ctx, envelopeFor(t, bookingEvent(TriggerBookingCreated)))
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []string{"bk-1:wf-1:s1"}, guard.released)
	assert.Empty(t, guard.claimed)

	retry, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
	require.NoError(t, err)
	assert.Len(t, retry.Dispatches, 2)
}

func TestServiceReleaseDispatchesWithCancelledContext(t *testing.T) {
	guard := &cancellingGuard{memoryGuard: newMemoryGuard(), cancel: func() {}}
	svc := newTestService(t, nil, config.WorkflowConfig{}, WithDispatchGuard(guard))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.ReleaseDispatches(ctx, []Dispatch{{IdempotencyKey: "k-1"}, {}})

	assert.Equal(t, []string{"k-1"}, guard.released)
}

func TestServiceProcessStampsOneDecisionTime(t *testing.T) {
	wf := Workflow{
		ID:      "wf-1",
		Trigger: TriggerBookingCreated,
		Active:  true,
		Actions: []Action{
			{ID: "a-1", StepNumber: 1, Type: ActionEmailHost, Body: "one"},
			{ID: "a-2", StepNumber: 2, Type: ActionEmailAttendee, Body: "two"},
			{ID: "a-3", StepNumber: 3, Type: ActionSMSAttendee, Body: "three"},
		},
	}
	var mu sync.Mutex
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Millisecond)
		return clock
	}
	svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{}, WithClock(tick))

	result, err := svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
	require.NoError(t, err)
	require.Len(t, result.Decisions, 3)
	for _, d := range result.Decisions[1:] {
		assert.Equal(t, result.Decisions[0].DecidedAt, d.DecidedAt)
	}
}

func TestServiceRenderEscaping(t *testing.T) {
	event := bookingEvent(TriggerBookingCreated)
	event.Booking.Invitee = models.Person{Name: "Liam O'Brien", Email: "o'brien@acme.com", Phone: "+33 6 12 34 56 78"}

	tests := []struct {
		name          string
		action        Action
		wantRecipient string
		wantSubject   string
		wantBody      string
	}{
		{
			name:          "email body is escaped",
			action:        Action{Type: ActionEmailAttendee, Subject: "Hi {{booking.invitee.name}}", Body: "<p>{{booking.invitee.name}}</p>"},
			wantRecipient: "o'brien@acme.com",
			wantSubject:   "Hi Liam O'Brien",
			wantBody:      "<p>Liam O&apos;Brien</p>",
		},
		{
			name:          "sms body is verbatim",
			action:        Action{Type: ActionSMSAttendee, Body: "{{booking.invitee.name}} & co, see you <soon>"},
			wantRecipient: "+33 6 12 34 56 78",
			wantBody:      "Liam O'Brien & co, see you <soon>",
		},
		{
			name:          "webhook recipient and body are verbatim",
			action:        Action{Type: ActionWebhook, Recipient: "https://hooks.example.com/b?id={{booking.id}}&n={{uppercase booking.invitee.name}}", Body: `{"name":"{{booking.invitee.name}}"}`},
			wantRecipient: "https://hooks.example.com/b?id=bk-1&n=LIAM O'BRIEN",
			wantBody:      `{"name":"Liam O'Brien"}`,
		},
		{
			name:          "explicit email recipient is verbatim",
			action:        Action{Type: ActionEmailHost, Recipient: "{{booking.invitee.email}}", Body: "x"},
			wantRecipient: "o'brien@acme.com",
			wantBody:      "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.action.ID = "a-1"
			tt.action.StepNumber = 1
			wf := Workflow{ID: "wf-1", Trigger: TriggerBookingCreated, Active: true, Actions: []Action{tt.action}}
			svc := newTestService(t, []Workflow{wf}, config.WorkflowConfig{})

			result, err := svc.Process(context.Background(), envelopeFor(t, event))
			require.NoError(t, err)
			require.Len(t, result.Dispatches, 1)
			d := result.Dispatches[0]
			assert.Equal(t, tt.wantRecipient, d.Recipient)
			assert.Equal(t, tt.wantSubject, d.Subject)
			assert.Equal(t, tt.wantBody, d.Body)
		})
	}
}

func TestServiceReloadPrunesTemplates(t *testing.T) {
	repo := &stubRepository{workflows: []Workflow{{
		ID: "wf-1", Trigger: TriggerBookingCreated, Active: true,
		Actions: []Action{{ID: "a-1", StepNumber: 1, Type: ActionEmailHost, Subject: "v1 {{booking.id}}", Body: "body v1"}},
	}}}
	svc, err := NewService(repo, config.WorkflowConfig{}, logger.NopLogger())
	require.NoError(t, err)
	defer svc.Close()
	require.NoError(t, svc.ReloadWorkflows(context.Background(), true))

	_, err = svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
	require.NoError(t, err)
	assert.Equal(t, 2, svc.templates.Size())

	repo.workflows[0].Actions[0].Subject = "v2 {{booking.id}}"
	require.NoError(t, svc.ReloadWorkflows(context.Background(), true))
	assert.Equal(t, 1, svc.templates.Size())

	_, err = svc.Process(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
	require.NoError(t, err)
	assert.Equal(t, 2, svc.templates.Size())
}
