package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bookflow/internal/config"
	"bookflow/internal/constants"
	"bookflow/internal/dispatch"
	"bookflow/internal/logger"
	"bookflow/internal/workflow"
	"bookflow/pkg/conditions"
	"bookflow/pkg/models"
)

const (
	containerStartupTimeout = 60
	timestampDelay          = 10 * time.Millisecond
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestWorkflowConfig() config.WorkflowConfig {
	return config.WorkflowConfig{
		Fallback: config.FallbackConfig{
			OnError: constants.FallbackDeny,
		},
		Reload: config.ReloadConfig{
			IntervalSeconds: 60,
		},
	}
}

func createTestDispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		Enabled:       true,
		HashAlgorithm: constants.HashAlgorithmSHA256,
		TTLSeconds:    300,
		OnRedisError:  constants.FallbackDeny,
		KeyFields:     []string{"booking_id", "workflow_id", "action_id", "trigger"},
	}
}

func newTestGuard(t *testing.T, repo dispatch.Repository, cfg config.DispatchConfig) *dispatch.Guard {
	t.Helper()
	guard, err := dispatch.NewGuard(repo, cfg, createTestLogger())
	require.NoError(t, err)
	return guard
}

func domainRule(domain string) []conditions.Group {
	return []conditions.Group{{
		Operator: conditions.GroupAnd,
		Rules: []conditions.Rule{{
			Field:    conditions.FieldInviteeDomain,
			Operator: conditions.OpEquals,
			Value:    conditions.StringValue(domain),
		}},
	}}
}

func createTestWorkflow(name string, trigger workflow.Trigger, active bool) *workflow.Workflow {
	return &workflow.Workflow{
		Name:    name,
		Trigger: trigger,
		Active:  active,
		Actions: []workflow.Action{
			{
				ID:         "step-1",
				StepNumber: 1,
				Type:       workflow.ActionEmailAttendee,
				Subject:    "See you soon, {{booking.invitee.name}}",
				Body:       "Your {{booking.event_type.name}} is confirmed.",
			},
			{
				ID:         "step-2",
				StepNumber: 2,
				Type:       workflow.ActionEmailHost,
				Subject:    "New booking",
				Body:       "{{booking.invitee.name}} booked {{booking.event_type.name}}.",
				Conditions: domainRule("acme.io"),
			},
		},
	}
}

func createTestBookingEvent(bookingID, inviteeEmail string, trigger workflow.Trigger) models.BookingEvent {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return models.BookingEvent{
		Trigger: string(trigger),
		Booking: models.Booking{
			ID:        bookingID,
			EventType: models.EventType{Name: "Discovery Call", DurationMinutes: 30},
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
			Invitee:   models.Person{Name: "Ana", Email: inviteeEmail},
			Organizer: models.Organizer{ID: "org-1", Email: "host@bookflow.dev"},
		},
		OccurredAt: start.Add(-time.Hour),
	}
}

func createTestMessage(t *testing.T, id string, event models.BookingEvent) models.MessageEnvelope {
	t.Helper()
	env, err := models.NewMessageEnvelopeBuilder().
		WithID(id).
		WithSource("integration").
		WithBookingEvent(event).
		Build()
	require.NoError(t, err)
	return *env
}
