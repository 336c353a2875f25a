package management

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookflow/internal/broker"
	"bookflow/pkg/models"
)

// ConfigEventProducer announces workflow and dispatch config changes to workflow-service.
type ConfigEventProducer struct {
	producer broker.Producer
	topic    string
}

func NewConfigEventProducer(producer broker.Producer, topic string) *ConfigEventProducer {
	return &ConfigEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *ConfigEventProducer) PublishWorkflowEvent(ctx context.Context, action, workflowID, changedBy string) error {
	event := models.ConfigUpdateEvent{
		EventType:   models.EventTypeWorkflowUpdated,
		ServiceType: models.ServiceTypeWorkflow,
		WorkflowID:  workflowID,
		Action:      action,
		Timestamp:   time.Now().UTC(),
		ChangedBy:   changedBy,
	}
	return p.publishEvent(ctx, event)
}

func (p *ConfigEventProducer) PublishDispatchConfigEvent(ctx context.Context, settings DispatchConfig, changedBy string) error {
	event := models.ConfigUpdateEvent{
		EventType:   models.EventTypeDispatchConfigUpdated,
		ServiceType: models.ServiceTypeDispatch,
		Action:      models.ActionUpdate,
		Timestamp:   time.Now().UTC(),
		ChangedBy:   changedBy,
		Dispatch:    &settings,
	}
	return p.publishEvent(ctx, event)
}

func (p *ConfigEventProducer) publishEvent(ctx context.Context, event models.ConfigUpdateEvent) error {
	if p == nil || p.producer == nil || p.topic == "" {
		return nil
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal config event: %w", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(eventJSON, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal event data: %w", err)
	}

	envelope := models.MessageEnvelope{
		ID:        uuid.New().String(),
		Source:    "management-service",
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	envelope.Metadata.SetAttribute(models.AttributeEventType, event.EventType)
	envelope.Metadata.SetAttribute(models.AttributeServiceType, event.ServiceType)

	return p.producer.Publish(ctx, p.topic, envelope)
}
