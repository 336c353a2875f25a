package models

import "time"

type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`  // Business data
	Metadata  Metadata               `json:"metadata"` // Pipeline metadata (trace_id, dispatch info)
}

type Metadata struct {
	TraceID     string                 `json:"trace_id,omitempty"`
	Workflow    *WorkflowInfo          `json:"workflow,omitempty"`
	Idempotency *IdempotencyInfo       `json:"idempotency,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}

type WorkflowInfo struct {
	WorkflowID  string    `json:"workflow_id"`
	ActionID    string    `json:"action_id"`
	StepNumber  int       `json:"step_number"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

type IdempotencyInfo struct {
	Key       string    `json:"key"`
	ClaimedAt time.Time `json:"claimed_at"`
}

func (m *Metadata) SetAttribute(key string, value interface{}) {
	if m.Attributes == nil {
		m.Attributes = make(map[string]interface{})
	}
	m.Attributes[key] = value
}

func (m Metadata) Attribute(key string) (string, bool) {
	if m.Attributes == nil {
		return "", false
	}
	v, ok := m.Attributes[key].(string)
	return v, ok
}
