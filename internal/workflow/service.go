package workflow

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookflow/internal/config"
	"bookflow/internal/constants"
	"bookflow/internal/logger"
	"bookflow/pkg/cel"
	"bookflow/pkg/conditions"
	"bookflow/pkg/logging"
	"bookflow/pkg/metrics"
	"bookflow/pkg/models"
	"bookflow/pkg/template"
	"bookflow/pkg/tracing"
)

// DispatchGuard claims a dispatch once per idempotency key.
type DispatchGuard interface {
	Claim(ctx context.Context, fields map[string]string) (key string, claimed bool, err error)
	Release(ctx context.Context, key string) error
}

// OrganizerDirectory completes organizer details missing from booking events.
type OrganizerDirectory interface {
	Lookup(ctx context.Context, organizerID string) (*models.Organizer, error)
}

type errorHandlingStatus int

const (
	errorHandlingDeny errorHandlingStatus = iota
	errorHandlingSkip
	errorHandlingFail
)

type ServiceOption func(*Service)

func WithDispatchGuard(g DispatchGuard) ServiceOption {
	return func(s *Service) {
		s.guard = g
	}
}

func WithDirectory(d OrganizerDirectory, timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.directory = d
		s.directoryTimeout = timeout
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

type Service struct {
	repo             Repository
	byTrigger        map[Trigger][]Workflow
	workflowsMu      sync.RWMutex
	cfg              config.WorkflowConfig
	conditions       *conditions.Evaluator
	gates            *cel.Evaluator
	templates        *template.Engine
	guard            DispatchGuard
	directory        OrganizerDirectory
	directoryTimeout time.Duration
	now              func() time.Time
	logger           logger.Logger
}

func NewService(repo Repository, cfg config.WorkflowConfig, log logger.Logger, opts ...ServiceOption) (*Service, error) {
	condEval, err := conditions.NewEvaluatorWithOptions(conditions.Options{MaxPatterns: cfg.MaxRegexPatterns})
	if err != nil {
		return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	gates, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	s := &Service{
		repo:       repo,
		byTrigger:  make(map[Trigger][]Workflow),
		cfg:        cfg,
		conditions: condEval,
		gates:      gates,
		templates:  template.NewEngine(),
		now:        time.Now,
		logger:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Close() {
	s.conditions.Close()
}

// Process evaluates every active workflow bound to the event's trigger. A payload that is
// not a booking event yields a fatal error.
func (s *Service) Process(ctx context.Context, msg models.MessageEnvelope) (*Result, error) {
	ctx, span := tracing.GetTracer("workflow-service").Start(ctx, "workflow.process")
	defer span.End()

	start := s.now()
	event, err := models.BookingEventFromPayload(msg.Payload)
	if err != nil {
		metrics.WorkflowEventsTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, err
	}
	ctx = logging.WithBookingID(ctx, event.Booking.ID)

	s.completeOrganizer(ctx, event)

	result := &Result{}
	decidedAt := s.now()
	for _, wf := range s.workflowsFor(Trigger(event.Trigger)) {
		err := ctx.Err()
		if err == nil {
			err = s.processWorkflow(ctx, msg.ID, wf, event, decidedAt, result)
		}
		if err != nil {
			s.releaseClaims(ctx, result.Dispatches)
			metrics.WorkflowEventsTotal.WithLabelValues(event.Trigger, "error").Inc()
			metrics.ObserveWorkflowDuration(s.now().Sub(start), "error")
			return nil, err
		}
	}

	metrics.WorkflowEventsTotal.WithLabelValues(event.Trigger, "processed").Inc()
	metrics.ObserveWorkflowDuration(s.now().Sub(start), "processed")
	s.logger.DebugwCtx(ctx, "Booking event processed",
		"trigger", event.Trigger,
		"dispatches", len(result.Dispatches),
		"decisions", len(result.Decisions),
	)
	return result, nil
}

// processWorkflow stamps every decision with decidedAt so one evaluation sorts by step.
func (s *Service) processWorkflow(ctx context.Context, messageID string, wf Workflow, event *models.BookingEvent, decidedAt time.Time, result *Result) error {
	ctx = logging.WithWorkflowID(ctx, wf.ID)
	data := templateData(wf, event)

	for _, action := range wf.Actions {
		decision := Decision{
			ID:           uuid.NewString(),
			MessageID:    messageID,
			WorkflowID:   wf.ID,
			WorkflowName: wf.Name,
			ActionID:     action.ID,
			ActionType:   action.Type,
			StepNumber:   action.StepNumber,
			BookingID:    event.Booking.ID,
			Trigger:      Trigger(event.Trigger),
			DecidedAt:    decidedAt,
		}

		dispatch, err := s.decide(ctx, wf, action, event, data, &decision)
		if err != nil {
			return err
		}

		if dispatch != nil {
			result.Dispatches = append(result.Dispatches, *dispatch)
		}
		result.Decisions = append(result.Decisions, decision)
		metrics.IncWorkflowDecision(string(action.Type), string(decision.Outcome))
	}
	return nil
}

func (s *Service) decide(ctx context.Context, wf Workflow, action Action, event *models.BookingEvent, data map[string]interface{}, decision *Decision) (*Dispatch, error) {
	evalStart := time.Now()
	passed := s.conditions.Evaluate(action.Conditions, &event.Booking)
	metrics.ObserveConditionEvaluation(time.Since(evalStart), passed)
	if !passed {
		decision.Outcome = OutcomeConditionsNotMet
		return nil, nil
	}

	if action.Expression != "" {
		ok, err := s.gates.EvaluateGate(ctx, action.Expression, event)
		if err != nil {
			switch s.handleEvaluationError(ctx, action, err) {
			case errorHandlingFail:
				return nil, fmt.Errorf("gate expression of action %s: %w", action.ID, err)
			case errorHandlingDeny:
				decision.Outcome = OutcomeExpressionFalse
				decision.Reason = "expression error: " + err.Error()
				return nil, nil
			}
		} else if !ok {
			decision.Outcome = OutcomeExpressionFalse
			return nil, nil
		}
	}

	dispatch, err := s.render(wf, action, event, data)
	if err != nil {
		metrics.TemplateRenderErrorsTotal.WithLabelValues(string(action.Type)).Inc()
		s.logger.WarnwCtx(ctx, "Failed to render action", "action_id", action.ID, "error", err)
		decision.Outcome = OutcomeRenderError
		decision.Reason = err.Error()
		return nil, nil
	}

	if dispatch.Recipient == "" {
		decision.Outcome = OutcomeNoRecipient
		return nil, nil
	}

	if s.guard != nil {
		key, claimed, err := s.guard.Claim(ctx, claimFields(action, event, dispatch))
		if err != nil {
			return nil, err
		}
		decision.IdempotencyKey = key
		dispatch.IdempotencyKey = key
		if !claimed {
			decision.Outcome = OutcomeDuplicate
			return nil, nil
		}
	}

	decision.Outcome = OutcomeDispatched
	return dispatch, nil
}

func (s *Service) handleEvaluationError(ctx context.Context, action Action, err error) errorHandlingStatus {
	s.logger.ErrorwCtx(ctx, "Gate expression evaluation error",
		"action_id", action.ID,
		"error", err,
	)

	switch strings.ToLower(s.cfg.Fallback.OnError) {
	case constants.FallbackAllow:
		metrics.FallbackUsageTotal.WithLabelValues("workflow", "allow_on_error", "evaluation_error").Inc()
		s.logger.WarnwCtx(ctx, "Evaluation error, running action (fallback: allow)", "action_id", action.ID)
		return errorHandlingSkip
	case constants.FallbackDeny:
		metrics.FallbackUsageTotal.WithLabelValues("workflow", "deny_on_error", "evaluation_error").Inc()
		s.logger.WarnwCtx(ctx, "Evaluation error, skipping action (fallback: deny)", "action_id", action.ID)
		return errorHandlingDeny
	default:
		return errorHandlingFail
	}
}

func (s *Service) render(wf Workflow, action Action, event *models.BookingEvent, data map[string]interface{}) (*Dispatch, error) {
	subject, err := s.templates.RenderText(action.Subject, data)
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}
	body, err := s.templates.RenderMode(bodyMode(action.Type), action.Body, data)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	recipient, err := s.templates.RenderText(action.Recipient, data)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	if recipient == "" {
		recipient = defaultRecipient(action.Type, &event.Booking)
	}

	return &Dispatch{
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		ActionID:     action.ID,
		StepNumber:   action.StepNumber,
		Type:         action.Type,
		Recipient:    strings.TrimSpace(recipient),
		Subject:      subject,
		Body:         body,
		BookingID:    event.Booking.ID,
		Trigger:      Trigger(event.Trigger),
	}, nil
}

// bodyMode escapes email bodies only; SMS and webhook payloads are sent as written.
func bodyMode(t ActionType) template.Mode {
	switch t {
	case ActionEmailHost, ActionEmailAttendee:
		return template.HTML
	}
	return template.Text
}

func defaultRecipient(t ActionType, b *models.Booking) string {
	switch t {
	case ActionEmailHost:
		return b.Organizer.Email
	case ActionEmailAttendee:
		return b.Invitee.Email
	case ActionSMSAttendee:
		return b.Invitee.Phone
	}
	return ""
}

// claimFields carries every value named in models.DispatchKeyFields.
func claimFields(action Action, event *models.BookingEvent, d *Dispatch) map[string]string {
	start := ""
	if !event.Booking.StartTime.IsZero() {
		start = event.Booking.StartTime.UTC().Format(time.RFC3339)
	}
	return map[string]string{
		"booking_id":  event.Booking.ID,
		"booking_uid": event.Booking.UID,
		"workflow_id": d.WorkflowID,
		"action_id":   action.ID,
		"action_type": string(action.Type),
		"trigger":     event.Trigger,
		"start_time":  start,
		"recipient":   d.Recipient,
	}
}

// releaseClaims frees claims even when ctx is already cancelled, so a redelivery can
// dispatch what this attempt never published.
func (s *Service) releaseClaims(ctx context.Context, dispatches []Dispatch) {
	if s.guard == nil || len(dispatches) == 0 {
		return
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ClaimReleaseTimeout)
	defer cancel()

	for _, d := range dispatches {
		if d.IdempotencyKey == "" {
			continue
		}
		if err := s.guard.Release(releaseCtx, d.IdempotencyKey); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to release dispatch claim", "key", d.IdempotencyKey, "error", err)
		}
	}
}

// ReleaseDispatches frees the idempotency claims of dispatches that could not be published.
func (s *Service) ReleaseDispatches(ctx context.Context, dispatches []Dispatch) {
	s.releaseClaims(ctx, dispatches)
}

func (s *Service) completeOrganizer(ctx context.Context, event *models.BookingEvent) {
	org := &event.Booking.Organizer
	if s.directory == nil || org.ID == "" || org.Company != "" {
		return
	}

	lookupCtx := ctx
	if s.directoryTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, s.directoryTimeout)
		defer cancel()
	}

	found, err := s.directory.Lookup(lookupCtx, org.ID)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Organizer lookup failed, evaluating with event data",
			"organizer_id", org.ID,
			"error", err,
		)
		return
	}
	if found == nil {
		return
	}
	org.Company = found.Company
	if org.Name == "" {
		org.Name = found.Name
	}
	if org.Email == "" {
		org.Email = found.Email
	}
}

func templateData(wf Workflow, event *models.BookingEvent) map[string]interface{} {
	data := map[string]interface{}{
		"trigger":  event.Trigger,
		"workflow": map[string]interface{}{"id": wf.ID, "name": wf.Name},
	}
	if vars, err := cel.Activation(event); err == nil {
		data["booking"] = vars["booking"]
		data["fields"] = vars["fields"]
	}
	return data
}

// Evaluate runs a condition tree against a booking and explains the outcome.
func (s *Service) Evaluate(groups []conditions.Group, b *models.Booking) conditions.Explanation {
	return s.conditions.Explain(groups, conditions.NewBookingResolver(b))
}

func (s *Service) workflowsFor(trigger Trigger) []Workflow {
	s.workflowsMu.RLock()
	defer s.workflowsMu.RUnlock()

	workflows := make([]Workflow, len(s.byTrigger[trigger]))
	copy(workflows, s.byTrigger[trigger])
	return workflows
}

func (s *Service) ReloadWorkflows(ctx context.Context, skipJitter ...bool) error {
	shouldSkipJitter := len(skipJitter) > 0 && skipJitter[0]

	if err := s.applyJitter(ctx, shouldSkipJitter); err != nil {
		return err
	}

	s.logger.DebugwCtx(ctx, "Loading workflows from database")
	workflows, err := s.repo.GetActiveWorkflows(ctx)
	if err != nil {
		return err
	}

	s.updateWorkflows(ctx, workflows)
	return nil
}

func (s *Service) applyJitter(ctx context.Context, skipJitter bool) error {
	if skipJitter || s.cfg.Reload.JitterMaxMilliseconds <= 0 {
		return nil
	}

	jitter := time.Duration(rand.Intn(s.cfg.Reload.JitterMaxMilliseconds)) * time.Millisecond
	s.logger.DebugwCtx(ctx, "Reload scheduled with jitter", "jitter_ms", jitter.Milliseconds())

	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) updateWorkflows(ctx context.Context, workflows []Workflow) {
	byTrigger := make(map[Trigger][]Workflow)
	expressions := make(map[string]struct{})
	sources := make(map[string]struct{})
	active := 0
	for _, wf := range workflows {
		if !wf.Active {
			continue
		}
		active++
		wf.SortActions()
		byTrigger[wf.Trigger] = append(byTrigger[wf.Trigger], wf)
		for _, a := range wf.Actions {
			if a.Expression != "" {
				expressions[a.Expression] = struct{}{}
			}
			for _, src := range []string{a.Subject, a.Body, a.Recipient} {
				if src != "" {
					sources[src] = struct{}{}
				}
			}
		}
	}

	s.workflowsMu.Lock()
	s.byTrigger = byTrigger
	s.workflowsMu.Unlock()

	s.gates.Forget(expressions)
	s.templates.Retain(sources)

	metrics.SetActiveWorkflows(active)
	s.logger.InfowCtx(ctx, "Successfully reloaded workflows", "workflows_count", active)
}

func (s *Service) StartReloader(ctx context.Context) error {
	interval := s.cfg.Reload.IntervalSeconds
	if interval <= 0 {
		interval = constants.DefaultReloadIntervalSeconds
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.ReloadWorkflows(ctx); err != nil {
				s.logger.ErrorwCtx(ctx, "Failed to reload workflows", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
