package management

import (
	"context"
	"encoding/json"

	"bookflow/internal/constants"
	"bookflow/internal/logger"
	"bookflow/internal/workflow"
)

const (
	EntityWorkflow       = "workflow"
	EntityDispatchConfig = "dispatch_config"
)

const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
	AuditActionToggle = "toggle"
)

// AuditTrail writes workflow versions and audit entries. Failures are logged and never
// fail the change that triggered them.
type AuditTrail struct {
	repo   VersioningRepository
	logger logger.Logger
}

func NewAuditTrail(repo VersioningRepository, log logger.Logger) *AuditTrail {
	return &AuditTrail{repo: repo, logger: log}
}

func (a *AuditTrail) RecordWorkflowChange(ctx context.Context, action string, before, after *workflow.Workflow, reason string) {
	if a == nil || a.repo == nil {
		return
	}

	var workflowID string
	switch {
	case after != nil:
		workflowID = after.ID
	case before != nil:
		workflowID = before.ID
	}

	if after != nil {
		a.recordVersion(ctx, after, reason)
	}

	entry := &AuditLog{
		WorkflowID:   &workflowID,
		EntityType:   EntityWorkflow,
		Action:       action,
		OldValue:     toMap(before),
		NewValue:     toMap(after),
		ChangedBy:    getChangedBy(ctx),
		ChangeReason: reason,
		IPAddress:    getClientIP(ctx),
	}
	if err := a.repo.CreateAuditLog(ctx, entry); err != nil {
		a.logger.WarnwCtx(ctx, "Failed to write audit log", "workflow_id", workflowID, "action", action, "error", err)
	}
}

func (a *AuditTrail) RecordDispatchConfigChange(ctx context.Context, before, after DispatchConfig) {
	if a == nil || a.repo == nil {
		return
	}

	entry := &AuditLog{
		EntityType: EntityDispatchConfig,
		Action:     AuditActionUpdate,
		OldValue:   toMap(before),
		NewValue:   toMap(after),
		ChangedBy:  getChangedBy(ctx),
		IPAddress:  getClientIP(ctx),
	}
	if err := a.repo.CreateAuditLog(ctx, entry); err != nil {
		a.logger.WarnwCtx(ctx, "Failed to write audit log", "entity_type", EntityDispatchConfig, "error", err)
	}
}

func (a *AuditTrail) recordVersion(ctx context.Context, wf *workflow.Workflow, reason string) {
	data, err := workflowToJSON(wf)
	if err != nil {
		a.logger.WarnwCtx(ctx, "Failed to encode workflow version", "workflow_id", wf.ID, "error", err)
		return
	}

	next, err := a.repo.GetNextVersion(ctx, wf.ID)
	if err != nil {
		a.logger.WarnwCtx(ctx, "Failed to get next workflow version", "workflow_id", wf.ID, "error", err)
		return
	}

	version := &WorkflowVersion{
		WorkflowID:   wf.ID,
		WorkflowData: data,
		Version:      next,
		ChangedBy:    getChangedBy(ctx),
		ChangeReason: reason,
	}
	if err := a.repo.CreateVersion(ctx, version); err != nil {
		a.logger.WarnwCtx(ctx, "Failed to write workflow version", "workflow_id", wf.ID, "error", err)
	}
}

func toMap(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	if wf, ok := v.(*workflow.Workflow); ok && wf == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func getChangedBy(ctx context.Context) string {
	if id, ok := ctx.Value(constants.ContextKeyUserID).(string); ok && id != "" {
		return id
	}
	return "system"
}

func getClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(constants.ContextKeyClientIP).(string)
	return ip
}
