package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookflow/internal/config"
	"bookflow/internal/constants"
	"bookflow/internal/decisionlog"
	"bookflow/internal/dispatch"
	"bookflow/internal/management"
	"bookflow/internal/workflow"
	pkgerrors "bookflow/pkg/errors"
)

func newManagementService(t *testing.T, infra *TestInfra, opts ...management.ServiceOption) management.Service {
	t.Helper()

	base := []management.ServiceOption{
		management.WithVersioning(management.NewVersioningRepository(infra.PostgresDB)),
		management.WithDispatchConfig(config.DispatchConfig{}),
	}
	if infra.MongoDB != nil {
		base = append(base, management.WithDecisions(decisionlog.NewStore(infra.MongoDB, "management-service")))
	}

	svc, err := management.NewService(management.NewRepository(infra.PostgresDB), createTestLogger(), append(base, opts...)...)
	require.NoError(t, err)
	return svc
}

func asUser(userID string) context.Context {
	ctx := context.WithValue(context.Background(), constants.ContextKeyUserID, userID)
	return context.WithValue(ctx, constants.ContextKeyClientIP, "203.0.113.7")
}

func createRequest(name string) management.CreateWorkflowRequest {
	wf := createTestWorkflow(name, workflow.TriggerBookingCreated, true)
	return management.CreateWorkflowRequest{
		Name:         name,
		Trigger:      wf.Trigger,
		Actions:      wf.Actions,
		ChangeReason: "initial setup",
	}
}

func TestManagementService_WorkflowLifecycle(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, postgresOnly())
	svc := newManagementService(t, infra)
	ctx := asUser("alice")

	created, err := svc.CreateWorkflow(ctx, createRequest("Confirmations"))
	require.NoError(t, err)
	assert.True(t, created.Active)
	require.Len(t, created.Actions, 2)
	assert.Equal(t, 1, created.Actions[0].StepNumber)

	name := "Confirmations (VIP)"
	updated, err := svc.UpdateWorkflow(ctx, created.ID, management.UpdateWorkflowRequest{Name: &name, ChangeReason: "rename"})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	toggled, err := svc.SetWorkflowActive(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	fetched, err := svc.GetWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, name, fetched.Name)
	assert.False(t, fetched.Active)

	versions, err := svc.GetWorkflowVersions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 3, versions[0].Version)
	assert.Equal(t, 1, versions[2].Version)
	assert.Equal(t, "initial setup", versions[2].ChangeReason)
	assert.Equal(t, "alice", versions[0].ChangedBy)

	var snapshot workflow.Workflow
	require.NoError(t, json.Unmarshal([]byte(versions[1].WorkflowData), &snapshot))
	assert.Equal(t, name, snapshot.Name)
	assert.True(t, snapshot.Active)

	require.NoError(t, svc.DeleteWorkflow(ctx, created.ID))

	_, err = svc.GetWorkflow(ctx, created.ID)
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))

	logs, err := svc.GetAuditLogs(ctx, management.AuditQuery{WorkflowID: created.ID})
	require.NoError(t, err)
	require.Len(t, logs, 4)

	actions := make([]string, len(logs))
	for i, l := range logs {
		actions[i] = l.Action
		assert.Equal(t, "alice", l.ChangedBy)
		assert.Equal(t, "203.0.113.7", l.IPAddress)
	}
	assert.ElementsMatch(t, []string{
		management.AuditActionCreate,
		management.AuditActionUpdate,
		management.AuditActionToggle,
		management.AuditActionDelete,
	}, actions)
}

func TestManagementService_DuplicateName(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, postgresOnly())
	svc := newManagementService(t, infra)
	ctx := context.Background()

	_, err := svc.CreateWorkflow(ctx, createRequest("Reminders"))
	require.NoError(t, err)

	_, err = svc.CreateWorkflow(ctx, createRequest("reminders"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrConflict))
}

func TestManagementService_ListWorkflows(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, postgresOnly())
	svc := newManagementService(t, infra)
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		_, err := svc.CreateWorkflow(ctx, createRequest(name))
		require.NoError(t, err)
		time.Sleep(timestampDelay)
	}

	page, err := svc.ListWorkflows(ctx, management.ListWorkflowsQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "three", page.Items[0].Name)

	_, err = svc.ListWorkflows(ctx, management.ListWorkflowsQuery{Trigger: "booking_exploded"})
	assert.True(t, errors.Is(err, pkgerrors.ErrValidation))
}

func TestManagementService_DispatchConfigAudit(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, postgresOnly())
	svc := newManagementService(t, infra)
	ctx := asUser("ops")

	ttl := 600
	algo := "SHA256"
	updated, err := svc.UpdateDispatchConfig(ctx, management.UpdateDispatchConfigRequest{
		TTLSeconds:    &ttl,
		HashAlgorithm: &algo,
	})
	require.NoError(t, err)
	assert.Equal(t, 600, updated.TTLSeconds)
	assert.Equal(t, constants.HashAlgorithmSHA256, updated.HashAlgorithm)

	logs, err := svc.GetAuditLogs(ctx, management.AuditQuery{EntityType: management.EntityDispatchConfig})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].WorkflowID)
	assert.Equal(t, "ops", logs[0].ChangedBy)
	assert.EqualValues(t, 600, logs[0].NewValue["ttl_seconds"])
}

func TestManagementService_Decisions(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, InfraOptions{Postgres: true, Mongo: true})
	svc := newManagementService(t, infra)
	ctx := context.Background()

	store := decisionlog.NewStore(infra.MongoDB, "workflow-service")
	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Record(ctx, []workflow.Decision{
		{ID: "d-1", WorkflowID: "wf-1", BookingID: "bk-1", ActionID: "step-1", Outcome: workflow.OutcomeDispatched, DecidedAt: now.Add(-time.Minute)},
		{ID: "d-2", WorkflowID: "wf-1", BookingID: "bk-2", ActionID: "step-1", Outcome: workflow.OutcomeConditionsNotMet, DecidedAt: now},
		{ID: "d-3", WorkflowID: "wf-2", BookingID: "bk-1", ActionID: "step-1", Outcome: workflow.OutcomeDuplicate, DecidedAt: now},
	}))

	byWorkflow, err := svc.ListWorkflowDecisions(ctx, "wf-1", decisionlog.Query{})
	require.NoError(t, err)
	require.Len(t, byWorkflow, 2)
	assert.Equal(t, "d-2", byWorkflow[0].ID)

	byBooking, err := svc.ListBookingDecisions(ctx, "bk-1", decisionlog.Query{Outcome: string(workflow.OutcomeDuplicate)})
	require.NoError(t, err)
	require.Len(t, byBooking, 1)
	assert.Equal(t, "wf-2", byBooking[0].WorkflowID)
}

func TestManagementService_DispatchConfigPersisted(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, postgresOnly())
	store := dispatch.NewSettingsStore(infra.PostgresDB)

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, saved)

	svc := newManagementService(t, infra, management.WithSettingsStore(store))
	ttl := 120
	fields := []string{"booking_uid", "action_type", "recipient"}
	_, err = svc.UpdateDispatchConfig(asUser("ops"), management.UpdateDispatchConfigRequest{TTLSeconds: &ttl, KeyFields: &fields})
	require.NoError(t, err)

	saved, err = store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, fields, saved.KeyFields)
	assert.Equal(t, 120, saved.TTLSeconds)

	replica := newManagementService(t, infra, management.WithSettingsStore(store))
	cfg, err := replica.GetDispatchConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fields, cfg.KeyFields)
	assert.Equal(t, 120, cfg.TTLSeconds)
}
