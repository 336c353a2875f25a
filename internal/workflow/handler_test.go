package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookflow/internal/config"
	"bookflow/internal/logger"
	"bookflow/pkg/models"
)

type capturingProducer struct {
	topic     string
	published []models.MessageEnvelope
	err       error
}

func (p *capturingProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.topic = topic
	p.published = append(p.published, msg)
	return nil
}

func (p *capturingProducer) Close() error { return nil }

type capturingRecorder struct {
	decisions []Decision
	err       error
}

func (r *capturingRecorder) Record(ctx context.Context, decisions []Decision) error {
	r.decisions = append(r.decisions, decisions...)
	return r.err
}

func handlerWorkflow() Workflow {
	return Workflow{
		ID:      "wf-1",
		Name:    "Host alerts",
		Trigger: TriggerBookingCreated,
		Active:  true,
		Actions: []Action{
			{ID: "a-1", StepNumber: 1, Type: ActionEmailHost, Subject: "New booking", Body: "{{booking.invitee.name}}"},
			{ID: "a-2", StepNumber: 2, Type: ActionSMSAttendee, Body: "no phone"},
		},
	}
}

func TestMessageHandlerPublishesDispatches(t *testing.T) {
	guard := newMemoryGuard()
	svc := newTestService(t, []Workflow{handlerWorkflow()}, config.WorkflowConfig{}, WithDispatchGuard(guard))
	producer := &capturingProducer{}
	recorder := &capturingRecorder{}
	h := NewMessageHandler(svc, producer, recorder, "workflow_dispatches", logger.NopLogger())

	msg := envelopeFor(t, bookingEvent(TriggerBookingCreated))
	msg.Metadata.TraceID = "trace-9"
	require.NoError(t, h.Handle(context.Background(), msg))

	assert.Equal(t, "workflow_dispatches", producer.topic)
	require.Len(t, producer.published, 1)
	out := producer.published[0]
	assert.Equal(t, "trace-9", out.Metadata.TraceID)
	require.NotNil(t, out.Metadata.Workflow)
	assert.Equal(t, "wf-1", out.Metadata.Workflow.WorkflowID)
	assert.Equal(t, "a-1", out.Metadata.Workflow.ActionID)
	require.NotNil(t, out.Metadata.Idempotency)
	assert.Equal(t, "bk-1:wf-1:a-1", out.Metadata.Idempotency.Key)
	assert.Equal(t, "host@acme.com", out.Payload["recipient"])
	assert.Equal(t, "Ada Lovelace", out.Payload["body"])

	src, ok := out.Metadata.Attribute("source_message_id")
	assert.True(t, ok)
	assert.Equal(t, "msg-1", src)

	require.Len(t, recorder.decisions, 2)
	assert.Equal(t, OutcomeDispatched, recorder.decisions[0].Outcome)
	assert.Equal(t, OutcomeNoRecipient, recorder.decisions[1].Outcome)
}

func TestMessageHandlerReleasesClaimsOnPublishFailure(t *testing.T) {
	guard := newMemoryGuard()
	svc := newTestService(t, []Workflow{handlerWorkflow()}, config.WorkflowConfig{}, WithDispatchGuard(guard))
	producer := &capturingProducer{err: errors.New("broker unavailable")}
	recorder := &capturingRecorder{}
	h := NewMessageHandler(svc, producer, recorder, "workflow_dispatches", logger.NopLogger())

	err := h.Handle(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated)))
	require.Error(t, err)

	assert.Equal(t, []string{"bk-1:wf-1:a-1"}, guard.released)
	assert.Empty(t, guard.claimed)
	assert.Empty(t, recorder.decisions)
}

func TestMessageHandlerRecorderFailureIsNotFatal(t *testing.T) {
	svc := newTestService(t, []Workflow{handlerWorkflow()}, config.WorkflowConfig{})
	recorder := &capturingRecorder{err: errors.New("mongo down")}
	h := NewMessageHandler(svc, &capturingProducer{}, recorder, "out", logger.NopLogger())

	assert.NoError(t, h.Handle(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated))))
}

func TestMessageHandlerWithoutRecorder(t *testing.T) {
	svc := newTestService(t, []Workflow{handlerWorkflow()}, config.WorkflowConfig{})
	producer := &capturingProducer{}
	h := NewMessageHandler(svc, producer, nil, "out", logger.NopLogger())

	require.NoError(t, h.Handle(context.Background(), envelopeFor(t, bookingEvent(TriggerBookingCreated))))
	assert.Len(t, producer.published, 1)
}
