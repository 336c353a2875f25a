package management

import (
	"context"

	"bookflow/internal/decisionlog"
	"bookflow/internal/workflow"
	"bookflow/pkg/conditions"
)

type Service interface {
	CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*workflow.Workflow, error)
	ListWorkflows(ctx context.Context, q ListWorkflowsQuery) (*WorkflowList, error)
	GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, req UpdateWorkflowRequest) (*workflow.Workflow, error)
	SetWorkflowActive(ctx context.Context, id string, active bool) (*workflow.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	GetWorkflowVersions(ctx context.Context, workflowID string) ([]WorkflowVersion, error)
	GetAuditLogs(ctx context.Context, q AuditQuery) ([]AuditLog, error)

	ListWorkflowDecisions(ctx context.Context, workflowID string, q decisionlog.Query) ([]workflow.Decision, error)
	ListBookingDecisions(ctx context.Context, bookingID string, q decisionlog.Query) ([]workflow.Decision, error)

	ValidateConditions(ctx context.Context, groups []conditions.Group) ValidationResult
	EvaluateConditions(ctx context.Context, req EvaluateConditionsRequest) (*conditions.Explanation, error)
	ConditionCatalog() ConditionCatalog

	GetDispatchConfig(ctx context.Context) (*DispatchConfig, error)
	UpdateDispatchConfig(ctx context.Context, req UpdateDispatchConfigRequest) (*DispatchConfig, error)
}
