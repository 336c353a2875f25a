package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookflow/internal/broker"
	"bookflow/internal/config"
	"bookflow/internal/dispatch"
	"bookflow/internal/management"
	"bookflow/internal/workflow"
	"bookflow/pkg/models"
)

const (
	pipelineInputTopic  = "booking-events"
	pipelineOutputTopic = "workflow-dispatches"
)

func readDispatches(t *testing.T, reader *kafka.Reader, n int, timeout time.Duration) []workflow.Dispatch {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var out []workflow.Dispatch
	for len(out) < n {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			break
		}

		var env models.MessageEnvelope
		require.NoError(t, json.Unmarshal(m.Value, &env))

		raw, err := json.Marshal(env.Payload)
		require.NoError(t, err)
		var d workflow.Dispatch
		require.NoError(t, json.Unmarshal(raw, &d))
		out = append(out, d)
	}
	return out
}

func TestPipeline_BookingEventToDispatches(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, InfraOptions{Postgres: true, Redis: true, Kafka: true})
	infra.CreateTopics(t, pipelineInputTopic, pipelineOutputTopic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := createTestLogger()

	wf := createTestWorkflow("Confirmations", workflow.TriggerBookingCreated, true)
	require.NoError(t, management.NewRepository(infra.PostgresDB).CreateWorkflow(ctx, wf))

	guard := newTestGuard(t, dispatch.NewRepository(infra.RedisClient), createTestDispatchConfig())
	svc, err := workflow.NewService(workflow.NewRepository(infra.PostgresDB), createTestWorkflowConfig(), log,
		workflow.WithDispatchGuard(guard))
	require.NoError(t, err)
	defer svc.Close()
	require.NoError(t, svc.ReloadWorkflows(ctx, true))

	kafkaCfg := config.KafkaConfig{
		Brokers:     infra.KafkaBrokers,
		GroupID:     "workflow-service-it",
		InputTopic:  pipelineInputTopic,
		OutputTopic: pipelineOutputTopic,
	}
	producer := broker.NewKafkaProducer(kafkaCfg, log)
	defer producer.Close()

	consumer := broker.NewKafkaConsumer(kafkaCfg, config.RetryConfig{
		MaxAttempts:     2,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
		Multiplier:      2,
	}, log)
	defer consumer.Close()

	handler := workflow.NewMessageHandler(svc, producer, nil, pipelineOutputTopic, log)
	go func() {
		_ = consumer.Consume(ctx, pipelineInputTopic, handler.Handle)
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: infra.KafkaBrokers,
		GroupID: "dispatch-reader-it",
		Topic:   pipelineOutputTopic,
	})
	defer reader.Close()

	event := createTestBookingEvent("bk-1", "ana@acme.io", workflow.TriggerBookingCreated)
	require.NoError(t, producer.Publish(ctx, pipelineInputTopic, createTestMessage(t, "msg-1", event)))

	dispatches := readDispatches(t, reader, 2, 90*time.Second)
	require.Len(t, dispatches, 2)

	byAction := map[string]workflow.Dispatch{}
	for _, d := range dispatches {
		byAction[d.ActionID] = d
	}
	assert.Equal(t, "ana@acme.io", byAction["step-1"].Recipient)
	assert.Equal(t, "See you soon, Ana", byAction["step-1"].Subject)
	assert.Equal(t, "host@bookflow.dev", byAction["step-2"].Recipient)
	assert.NotEmpty(t, byAction["step-2"].IdempotencyKey)

	// Redelivery of the same booking is claimed already.
	require.NoError(t, producer.Publish(ctx, pipelineInputTopic, createTestMessage(t, "msg-2", event)))
	assert.Empty(t, readDispatches(t, reader, 1, 10*time.Second))

	// Other invitee domains skip the host step.
	other := createTestBookingEvent("bk-2", "bo@example.com", workflow.TriggerBookingCreated)
	require.NoError(t, producer.Publish(ctx, pipelineInputTopic, createTestMessage(t, "msg-3", other)))

	dispatches = readDispatches(t, reader, 1, 60*time.Second)
	require.Len(t, dispatches, 1)
	assert.Equal(t, "step-1", dispatches[0].ActionID)
	assert.Equal(t, "bo@example.com", dispatches[0].Recipient)
}
