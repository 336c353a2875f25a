package management

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bookflow/internal/config"
	"bookflow/internal/constants"
	"bookflow/internal/decisionlog"
	"bookflow/internal/dispatch"
	"bookflow/internal/logger"
	"bookflow/internal/workflow"
	"bookflow/pkg/conditions"
	pkgerrors "bookflow/pkg/errors"
	"bookflow/pkg/models"
)

type service struct {
	repo                Repository
	validator           *Validator
	evaluator           *conditions.Evaluator
	audit               *AuditTrail
	versioningRepo      VersioningRepository
	decisions           decisionlog.Reader
	configEventProducer *ConfigEventProducer
	dispatchConfig      DispatchConfig
	dispatchConfigMu    sync.RWMutex
	dispatchStore       dispatch.SettingsStore
	logger              logger.Logger
}

type ServiceOption func(*service)

func WithVersioning(versioningRepo VersioningRepository) ServiceOption {
	return func(s *service) {
		s.versioningRepo = versioningRepo
	}
}

func WithDecisions(reader decisionlog.Reader) ServiceOption {
	return func(s *service) {
		s.decisions = reader
	}
}

func WithConfigEvents(configEventProducer *ConfigEventProducer) ServiceOption {
	return func(s *service) {
		s.configEventProducer = configEventProducer
	}
}

func WithDispatchConfig(cfg config.DispatchConfig) ServiceOption {
	return func(s *service) {
		keyFields := cfg.KeyFields
		if len(keyFields) == 0 {
			keyFields = dispatch.DefaultKeyFields
		}
		s.dispatchConfig = DispatchConfig{
			KeyFields:     append([]string(nil), keyFields...),
			TTLSeconds:    cfg.TTLSeconds,
			HashAlgorithm: cfg.HashAlgorithm,
			OnRedisError:  cfg.OnRedisError,
		}
	}
}

// WithSettingsStore persists dispatch config updates. Without it they last until restart.
func WithSettingsStore(store dispatch.SettingsStore) ServiceOption {
	return func(s *service) {
		s.dispatchStore = store
	}
}

func NewService(repo Repository, log logger.Logger, opts ...ServiceOption) (Service, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	evaluator, err := conditions.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	s := &service{
		repo:      repo,
		validator: validator,
		evaluator: evaluator,
		dispatchConfig: DispatchConfig{
			KeyFields:     append([]string(nil), dispatch.DefaultKeyFields...),
			TTLSeconds:    constants.DefaultDispatchTTLSeconds,
			HashAlgorithm: constants.HashAlgorithmMD5,
			OnRedisError:  constants.FallbackDeny,
		},
		logger: log,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.versioningRepo != nil {
		s.audit = NewAuditTrail(s.versioningRepo, log)
	}
	s.fillDispatchDefaults()

	return s, nil
}

func (s *service) fillDispatchDefaults() {
	if s.dispatchConfig.TTLSeconds <= 0 {
		s.dispatchConfig.TTLSeconds = constants.DefaultDispatchTTLSeconds
	}
	if s.dispatchConfig.HashAlgorithm == "" {
		s.dispatchConfig.HashAlgorithm = constants.HashAlgorithmMD5
	}
	if s.dispatchConfig.OnRedisError == "" {
		s.dispatchConfig.OnRedisError = constants.FallbackDeny
	}
}

func (s *service) CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*workflow.Workflow, error) {
	wf := &workflow.Workflow{
		Name:    strings.TrimSpace(req.Name),
		Trigger: req.Trigger,
		Active:  getActiveValue(req.Active),
		Actions: req.Actions,
	}
	prepareActions(wf)

	if err := s.validator.ValidateWorkflow(wf); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	if err := s.repo.CreateWorkflow(ctx, wf); err != nil {
		return nil, wrapRepositoryError(err)
	}

	s.audit.RecordWorkflowChange(ctx, AuditActionCreate, nil, wf, req.ChangeReason)
	s.publishWorkflowEvent(ctx, models.ActionCreate, wf.ID)

	return wf, nil
}

func (s *service) ListWorkflows(ctx context.Context, q ListWorkflowsQuery) (*WorkflowList, error) {
	if q.Limit <= 0 {
		q.Limit = constants.DefaultLimit
	}
	if q.Limit > constants.MaxLimit {
		q.Limit = constants.MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Trigger != "" && !workflow.IsValidTrigger(workflow.Trigger(q.Trigger)) {
		return nil, pkgerrors.Validation(fmt.Sprintf("unknown trigger %q", q.Trigger)).
			WithDetail("fields", map[string]string{"trigger": "unknown trigger"})
	}

	items, total, err := s.repo.ListWorkflows(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return &WorkflowList{Items: items, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

func (s *service) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	wf, err := s.repo.GetWorkflow(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if wf == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return wf, nil
}

func (s *service) UpdateWorkflow(ctx context.Context, id string, req UpdateWorkflowRequest) (*workflow.Workflow, error) {
	current, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	before := copyWorkflow(current)
	updated := copyWorkflow(current)
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Trigger != nil {
		updated.Trigger = *req.Trigger
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if req.Actions != nil {
		updated.Actions = *req.Actions
	}
	prepareActions(updated)

	if err := s.validator.ValidateWorkflow(updated); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	if err := s.repo.UpdateWorkflow(ctx, updated); err != nil {
		return nil, wrapRepositoryError(err)
	}

	s.audit.RecordWorkflowChange(ctx, AuditActionUpdate, before, updated, req.ChangeReason)
	s.publishWorkflowEvent(ctx, models.ActionUpdate, updated.ID)

	return updated, nil
}

func (s *service) SetWorkflowActive(ctx context.Context, id string, active bool) (*workflow.Workflow, error) {
	current, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Active == active {
		return current, nil
	}

	before := copyWorkflow(current)
	updated := copyWorkflow(current)
	updated.Active = active

	if err := s.repo.UpdateWorkflow(ctx, updated); err != nil {
		return nil, wrapRepositoryError(err)
	}

	s.audit.RecordWorkflowChange(ctx, AuditActionToggle, before, updated, "")
	s.publishWorkflowEvent(ctx, models.ActionToggle, updated.ID)

	return updated, nil
}

func (s *service) DeleteWorkflow(ctx context.Context, id string) error {
	current, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteWorkflow(ctx, id); err != nil {
		return wrapRepositoryError(err)
	}

	s.audit.RecordWorkflowChange(ctx, AuditActionDelete, current, nil, "")
	s.publishWorkflowEvent(ctx, models.ActionDelete, id)
	return nil
}

func (s *service) GetWorkflowVersions(ctx context.Context, workflowID string) ([]WorkflowVersion, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "versioning not enabled")
	}
	versions, err := s.versioningRepo.GetVersions(ctx, workflowID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return versions, nil
}

func (s *service) GetAuditLogs(ctx context.Context, q AuditQuery) ([]AuditLog, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "audit logging not enabled")
	}
	if q.Limit <= 0 || q.Limit > constants.MaxLimit {
		q.Limit = constants.DefaultLimit
	}
	logs, err := s.versioningRepo.GetAuditLogs(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) ListWorkflowDecisions(ctx context.Context, workflowID string, q decisionlog.Query) ([]workflow.Decision, error) {
	if s.decisions == nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithDetail("message", "decision log not configured")
	}
	decisions, err := s.decisions.ListByWorkflow(ctx, workflowID, q)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return decisions, nil
}

func (s *service) ListBookingDecisions(ctx context.Context, bookingID string, q decisionlog.Query) ([]workflow.Decision, error) {
	if s.decisions == nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithDetail("message", "decision log not configured")
	}
	decisions, err := s.decisions.ListByBooking(ctx, bookingID, q)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return decisions, nil
}

func (s *service) ValidateConditions(ctx context.Context, groups []conditions.Group) ValidationResult {
	err := conditions.Validate(groups, "conditions")
	if err == nil {
		return ValidationResult{Valid: true}
	}
	if fe, ok := err.(pkgerrors.FieldErrors); ok {
		return ValidationResult{Valid: false, Errors: fe.Fields()}
	}
	return ValidationResult{Valid: false, Errors: map[string]string{"conditions": err.Error()}}
}

func (s *service) EvaluateConditions(ctx context.Context, req EvaluateConditionsRequest) (*conditions.Explanation, error) {
	if err := conditions.Validate(req.Conditions, "conditions"); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}
	if req.Booking == nil {
		return nil, pkgerrors.Validation("booking is required").
			WithDetail("fields", map[string]string{"booking": "booking is required"})
	}

	explanation := s.evaluator.Explain(req.Conditions, conditions.NewBookingResolver(req.Booking))
	return &explanation, nil
}

func (s *service) ConditionCatalog() ConditionCatalog {
	return ConditionCatalog{
		Fields:    conditions.Fields(),
		Operators: conditions.Operators(),
	}
}

func (s *service) GetDispatchConfig(ctx context.Context) (*DispatchConfig, error) {
	s.dispatchConfigMu.RLock()
	defer s.dispatchConfigMu.RUnlock()

	cfg, err := s.currentDispatchConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *service) UpdateDispatchConfig(ctx context.Context, req UpdateDispatchConfigRequest) (*DispatchConfig, error) {
	if err := ValidateDispatchConfig(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	s.dispatchConfigMu.Lock()
	before, err := s.currentDispatchConfig(ctx)
	if err != nil {
		s.dispatchConfigMu.Unlock()
		return nil, err
	}
	after := copyDispatchConfig(before)
	if req.KeyFields != nil {
		after.KeyFields = append([]string(nil), (*req.KeyFields)...)
	}
	if req.TTLSeconds != nil {
		after.TTLSeconds = *req.TTLSeconds
	}
	if req.HashAlgorithm != nil {
		after.HashAlgorithm = strings.ToLower(*req.HashAlgorithm)
	}
	if req.OnRedisError != nil {
		after.OnRedisError = strings.ToLower(*req.OnRedisError)
	}
	if s.dispatchStore != nil {
		if err := s.dispatchStore.Save(ctx, after, getChangedBy(ctx)); err != nil {
			s.dispatchConfigMu.Unlock()
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
	}
	s.dispatchConfig = after
	s.dispatchConfigMu.Unlock()

	s.audit.RecordDispatchConfigChange(ctx, before, after)
	if err := s.configEventProducer.PublishDispatchConfigEvent(ctx, after, getChangedBy(ctx)); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish dispatch config event", "error", err)
	}

	result := copyDispatchConfig(after)
	return &result, nil
}

// currentDispatchConfig prefers the saved settings; the configured ones apply until the first update.
func (s *service) currentDispatchConfig(ctx context.Context) (DispatchConfig, error) {
	if s.dispatchStore != nil {
		saved, err := s.dispatchStore.Load(ctx)
		if err != nil {
			return DispatchConfig{}, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
		if saved != nil {
			return copyDispatchConfig(*saved), nil
		}
	}
	return copyDispatchConfig(s.dispatchConfig), nil
}

func (s *service) publishWorkflowEvent(ctx context.Context, action, workflowID string) {
	if err := s.configEventProducer.PublishWorkflowEvent(ctx, action, workflowID, getChangedBy(ctx)); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish workflow event",
			"workflow_id", workflowID,
			"action", action,
			"error", err,
		)
	}
}

// prepareActions assigns ids to new actions and orders them by step.
func prepareActions(wf *workflow.Workflow) {
	if wf.Actions == nil {
		wf.Actions = []workflow.Action{}
	}
	for i := range wf.Actions {
		if wf.Actions[i].ID == "" {
			wf.Actions[i].ID = fmt.Sprintf("step-%d", wf.Actions[i].StepNumber)
		}
		wf.Actions[i].Conditions = conditions.Normalize(wf.Actions[i].Conditions)
	}
	wf.SortActions()
}

func wrapRepositoryError(err error) error {
	if pkgerrors.IsNotFound(err) || pkgerrors.IsConflict(err) {
		return err
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

func copyWorkflow(wf *workflow.Workflow) *workflow.Workflow {
	out := *wf
	out.Actions = append([]workflow.Action(nil), wf.Actions...)
	return &out
}

func copyDispatchConfig(cfg DispatchConfig) DispatchConfig {
	out := cfg
	out.KeyFields = append([]string(nil), cfg.KeyFields...)
	return out
}

func getActiveValue(active *bool) bool {
	if active == nil {
		return true
	}
	return *active
}
