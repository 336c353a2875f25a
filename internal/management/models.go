package management

import (
	"time"

	"bookflow/internal/workflow"
	"bookflow/pkg/conditions"
	"bookflow/pkg/models"
)

type CreateWorkflowRequest struct {
	Name         string            `json:"name" binding:"required"`
	Trigger      workflow.Trigger  `json:"trigger" binding:"required"`
	Active       *bool             `json:"active"`
	Actions      []workflow.Action `json:"actions"`
	ChangeReason string            `json:"change_reason,omitempty"`
}

// UpdateWorkflowRequest replaces only the fields that are present.
type UpdateWorkflowRequest struct {
	Name         *string            `json:"name"`
	Trigger      *workflow.Trigger  `json:"trigger"`
	Active       *bool              `json:"active"`
	Actions      *[]workflow.Action `json:"actions"`
	ChangeReason string             `json:"change_reason,omitempty"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type ListWorkflowsQuery struct {
	Trigger string
	Active  *bool
	Search  string
	Limit   int
	Offset  int
}

type WorkflowList struct {
	Items  []workflow.Workflow `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type WorkflowVersion struct {
	ID           string    `json:"id"`
	WorkflowID   string    `json:"workflow_id"`
	WorkflowData string    `json:"workflow_data"`
	Version      int       `json:"version"`
	ChangedBy    string    `json:"changed_by,omitempty"`
	ChangeReason string    `json:"change_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuditLog struct {
	ID           string                 `json:"id"`
	WorkflowID   *string                `json:"workflow_id,omitempty"`
	EntityType   string                 `json:"entity_type"`
	Action       string                 `json:"action"`
	OldValue     map[string]interface{} `json:"old_value,omitempty"`
	NewValue     map[string]interface{} `json:"new_value,omitempty"`
	ChangedBy    string                 `json:"changed_by"`
	ChangeReason string                 `json:"change_reason,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

type AuditQuery struct {
	WorkflowID string
	EntityType string
	Action     string
	Limit      int
}

type ValidateConditionsRequest struct {
	Conditions []conditions.Group `json:"conditions"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

type EvaluateConditionsRequest struct {
	Conditions []conditions.Group `json:"conditions"`
	Booking    *models.Booking    `json:"booking"`
}

type ConditionCatalog struct {
	Fields    []conditions.FieldInfo    `json:"fields"`
	Operators []conditions.OperatorInfo `json:"operators"`
}

type DispatchConfig = models.DispatchSettings

type UpdateDispatchConfigRequest struct {
	KeyFields     *[]string `json:"key_fields,omitempty"`
	TTLSeconds    *int      `json:"ttl_seconds,omitempty"`
	HashAlgorithm *string   `json:"hash_algorithm,omitempty"`
	OnRedisError  *string   `json:"on_redis_error,omitempty"`
}
