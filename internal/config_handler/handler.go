package config_handler

import (
	"context"
	"encoding/json"
	"fmt"

	"bookflow/internal/logger"
	"bookflow/pkg/models"
)

type ConfigReloader interface {
	ReloadWorkflows(ctx context.Context, skipJitter ...bool) error
}

type ConfigUpdater interface {
	UpdateSettings(settings models.DispatchSettings) error
}

// Handler reacts to config-update envelopes addressed to one event/service type pair.
// Events for other pairs are ignored.
type Handler struct {
	expectedEventType   string
	expectedServiceType string
	reloader            ConfigReloader
	updater             ConfigUpdater
	logger              logger.Logger
}

func NewHandler(expectedEventType, expectedServiceType string, log logger.Logger) *Handler {
	return &Handler{
		expectedEventType:   expectedEventType,
		expectedServiceType: expectedServiceType,
		logger:              log,
	}
}

func NewHandlerWithReloader(expectedEventType, expectedServiceType string, reloader ConfigReloader, log logger.Logger) *Handler {
	return NewHandler(expectedEventType, expectedServiceType, log).WithReloader(reloader)
}

func NewHandlerWithUpdater(expectedEventType, expectedServiceType string, updater ConfigUpdater, log logger.Logger) *Handler {
	return NewHandler(expectedEventType, expectedServiceType, log).WithUpdater(updater)
}

func (h *Handler) WithReloader(reloader ConfigReloader) *Handler {
	h.reloader = reloader
	return h
}

func (h *Handler) WithUpdater(updater ConfigUpdater) *Handler {
	h.updater = updater
	return h
}

func (h *Handler) HandleConfigUpdateEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	eventType := h.lookup(envelope, models.AttributeEventType)
	serviceType := h.lookup(envelope, models.AttributeServiceType)
	if eventType == "" || serviceType == "" {
		h.logger.WarnwCtx(ctx, "Config event missing routing attributes", "id", envelope.ID)
		return nil
	}

	if eventType != h.expectedEventType || serviceType != h.expectedServiceType {
		return nil
	}

	var event models.ConfigUpdateEvent
	eventJSON, err := json.Marshal(envelope.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal config event payload: %w", err)
	}
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to unmarshal config event", "error", err, "id", envelope.ID)
		return err
	}

	h.logger.InfowCtx(ctx, "Received config update event",
		"event_type", event.EventType,
		"action", event.Action,
		"workflow_id", event.WorkflowID,
		"changed_by", event.ChangedBy,
	)

	if h.reloader != nil {
		if err := h.reloader.ReloadWorkflows(ctx, true); err != nil {
			h.logger.ErrorwCtx(ctx, "Failed to reload workflows after config update", "error", err)
			return err
		}
	}

	if h.updater != nil && event.Dispatch != nil {
		if err := h.updater.UpdateSettings(*event.Dispatch); err != nil {
			h.logger.ErrorwCtx(ctx, "Failed to apply dispatch settings", "error", err)
			return err
		}
		h.logger.InfowCtx(ctx, "Dispatch settings updated",
			"key_fields", event.Dispatch.KeyFields,
			"ttl_seconds", event.Dispatch.TTLSeconds,
		)
	}

	return nil
}

// lookup prefers the envelope attribute and falls back to the payload field of the same name.
func (h *Handler) lookup(envelope models.MessageEnvelope, key string) string {
	if v, ok := envelope.Metadata.Attribute(key); ok && v != "" {
		return v
	}
	if v, ok := envelope.Payload[key].(string); ok {
		return v
	}
	return ""
}
