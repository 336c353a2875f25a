package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookflow/internal/broker"
	"bookflow/internal/config_handler"
	"bookflow/internal/logger"
	"bookflow/pkg/metrics"
	"bookflow/pkg/models"
)

// DecisionRecorder persists the per-action decisions of one booking event.
type DecisionRecorder interface {
	Record(ctx context.Context, decisions []Decision) error
}

type ConfigHandler = config_handler.Handler

func NewConfigHandler(service *Service, log logger.Logger) *ConfigHandler {
	return config_handler.NewHandlerWithReloader(
		models.EventTypeWorkflowUpdated,
		models.ServiceTypeWorkflow,
		service,
		log,
	)
}

// MessageHandler turns booking events into dispatch messages on the output topic.
type MessageHandler struct {
	service     *Service
	producer    broker.Producer
	recorder    DecisionRecorder
	outputTopic string
	logger      logger.Logger
}

func NewMessageHandler(service *Service, producer broker.Producer, recorder DecisionRecorder, outputTopic string, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		service:     service,
		producer:    producer,
		recorder:    recorder,
		outputTopic: outputTopic,
		logger:      log,
	}
}

func (h *MessageHandler) Handle(ctx context.Context, msg models.MessageEnvelope) error {
	result, err := h.service.Process(ctx, msg)
	if err != nil {
		return err
	}

	for i, d := range result.Dispatches {
		out, err := dispatchEnvelope(msg, d)
		if err != nil {
			h.service.ReleaseDispatches(ctx, result.Dispatches[i:])
			return err
		}
		if err := h.producer.Publish(ctx, h.outputTopic, out); err != nil {
			h.logger.ErrorwCtx(ctx, "Failed to publish dispatch",
				"workflow_id", d.WorkflowID,
				"action_id", d.ActionID,
				"error", err,
			)
			h.service.ReleaseDispatches(ctx, result.Dispatches[i:])
			return fmt.Errorf("failed to publish dispatch: %w", err)
		}
	}

	h.record(ctx, result.Decisions)
	return nil
}

func (h *MessageHandler) record(ctx context.Context, decisions []Decision) {
	if h.recorder == nil || len(decisions) == 0 {
		return
	}
	if err := h.recorder.Record(ctx, decisions); err != nil {
		metrics.DecisionLogWritesTotal.WithLabelValues("error").Inc()
		h.logger.WarnwCtx(ctx, "Failed to record workflow decisions", "count", len(decisions), "error", err)
		return
	}
	metrics.DecisionLogWritesTotal.WithLabelValues("success").Inc()
}

func dispatchEnvelope(source models.MessageEnvelope, d Dispatch) (models.MessageEnvelope, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return models.MessageEnvelope{}, fmt.Errorf("failed to marshal dispatch: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return models.MessageEnvelope{}, fmt.Errorf("failed to unmarshal dispatch: %w", err)
	}

	env, err := models.NewMessageEnvelopeBuilder().
		WithID(uuid.NewString()).
		WithSource("workflow-service").
		WithPayload(payload).
		WithTraceID(source.Metadata.TraceID).
		WithWorkflow(models.WorkflowInfo{
			WorkflowID:  d.WorkflowID,
			ActionID:    d.ActionID,
			StepNumber:  d.StepNumber,
			EvaluatedAt: time.Now().UTC(),
		}).
		Build()
	if err != nil {
		return models.MessageEnvelope{}, fmt.Errorf("failed to build dispatch envelope: %w", err)
	}

	if d.IdempotencyKey != "" {
		env.Metadata.Idempotency = &models.IdempotencyInfo{Key: d.IdempotencyKey, ClaimedAt: env.Timestamp}
	}
	env.Metadata.SetAttribute("source_message_id", source.ID)
	env.Metadata.SetAttribute(models.AttributeEventType, string(d.Type))
	return *env, nil
}
