package models

import "time"

type ConfigUpdateEvent struct {
	EventType   string                 `json:"event_type"`   // "workflow_updated", "dispatch_config_updated"
	ServiceType string                 `json:"service_type"` // "workflow", "dispatch"
	WorkflowID  string                 `json:"workflow_id,omitempty"`
	Action      string                 `json:"action"` // "create", "update", "delete", "toggle", "reload"
	Timestamp   time.Time              `json:"timestamp"`
	ChangedBy   string                 `json:"changed_by,omitempty"`
	Dispatch    *DispatchSettings      `json:"dispatch,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// DispatchSettings is the runtime-tunable part of dispatch idempotency.
type DispatchSettings struct {
	KeyFields     []string `json:"key_fields"`
	TTLSeconds    int      `json:"ttl_seconds"`
	HashAlgorithm string   `json:"hash_algorithm,omitempty"`
	OnRedisError  string   `json:"on_redis_error,omitempty"`
}

// DispatchKeyFields lists the dispatch values an idempotency key can be built from.
var DispatchKeyFields = []string{"booking_id", "booking_uid", "workflow_id", "action_id", "action_type", "trigger", "start_time", "recipient"}

func IsDispatchKeyField(name string) bool {
	for _, f := range DispatchKeyFields {
		if f == name {
			return true
		}
	}
	return false
}

const (
	EventTypeWorkflowUpdated       = "workflow_updated"
	EventTypeDispatchConfigUpdated = "dispatch_config_updated"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
	ActionReload = "reload"
)

const (
	ServiceTypeWorkflow = "workflow"
	ServiceTypeDispatch = "dispatch"
)

const (
	AttributeEventType   = "event_type"
	AttributeServiceType = "service_type"
)
