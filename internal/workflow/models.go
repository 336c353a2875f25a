package workflow

import (
	"sort"
	"time"

	"bookflow/pkg/conditions"
)

type Trigger string

const (
	TriggerBookingCreated     Trigger = "booking_created"
	TriggerBookingCancelled   Trigger = "booking_cancelled"
	TriggerBookingRescheduled Trigger = "booking_rescheduled"
	TriggerBeforeEvent        Trigger = "before_event"
	TriggerAfterEvent         Trigger = "after_event"
)

var triggers = []Trigger{
	TriggerBookingCreated,
	TriggerBookingCancelled,
	TriggerBookingRescheduled,
	TriggerBeforeEvent,
	TriggerAfterEvent,
}

func Triggers() []Trigger {
	out := make([]Trigger, len(triggers))
	copy(out, triggers)
	return out
}

func IsValidTrigger(t Trigger) bool {
	for _, known := range triggers {
		if t == known {
			return true
		}
	}
	return false
}

type ActionType string

const (
	ActionEmailHost     ActionType = "email_host"
	ActionEmailAttendee ActionType = "email_attendee"
	ActionSMSAttendee   ActionType = "sms_attendee"
	ActionWebhook       ActionType = "webhook"
)

func IsValidActionType(t ActionType) bool {
	switch t {
	case ActionEmailHost, ActionEmailAttendee, ActionSMSAttendee, ActionWebhook:
		return true
	}
	return false
}

// Action is one step of a workflow. Subject, Body and Recipient are Handlebars templates.
type Action struct {
	ID         string             `json:"id"`
	StepNumber int                `json:"step_number"`
	Type       ActionType         `json:"type"`
	Recipient  string             `json:"recipient,omitempty"`
	Subject    string             `json:"subject,omitempty"`
	Body       string             `json:"body"`
	Conditions []conditions.Group `json:"conditions,omitempty"`
	Expression string             `json:"expression,omitempty"` // optional CEL gate, evaluated after Conditions
}

type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Trigger   Trigger   `json:"trigger"`
	Active    bool      `json:"active"`
	Actions   []Action  `json:"actions"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SortActions orders actions by step number.
func (w *Workflow) SortActions() {
	sort.SliceStable(w.Actions, func(i, j int) bool {
		return w.Actions[i].StepNumber < w.Actions[j].StepNumber
	})
}

type Outcome string

const (
	OutcomeDispatched       Outcome = "dispatched"
	OutcomeConditionsNotMet Outcome = "conditions_not_met"
	OutcomeExpressionFalse  Outcome = "expression_false"
	OutcomeRenderError      Outcome = "render_error"
	OutcomeNoRecipient      Outcome = "no_recipient"
	OutcomeDuplicate        Outcome = "duplicate"
)

// Decision records what happened to one action for one booking event.
type Decision struct {
	ID             string     `json:"id" bson:"_id"`
	MessageID      string     `json:"message_id" bson:"message_id"`
	WorkflowID     string     `json:"workflow_id" bson:"workflow_id"`
	WorkflowName   string     `json:"workflow_name" bson:"workflow_name"`
	ActionID       string     `json:"action_id" bson:"action_id"`
	ActionType     ActionType `json:"action_type" bson:"action_type"`
	StepNumber     int        `json:"step_number" bson:"step_number"`
	BookingID      string     `json:"booking_id" bson:"booking_id"`
	Trigger        Trigger    `json:"trigger" bson:"trigger"`
	Outcome        Outcome    `json:"outcome" bson:"outcome"`
	Reason         string     `json:"reason,omitempty" bson:"reason,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	DecidedAt      time.Time  `json:"decided_at" bson:"decided_at"`
}

// Dispatch is a rendered action ready for the downstream sender.
type Dispatch struct {
	WorkflowID     string     `json:"workflow_id"`
	WorkflowName   string     `json:"workflow_name"`
	ActionID       string     `json:"action_id"`
	StepNumber     int        `json:"step_number"`
	Type           ActionType `json:"type"`
	Recipient      string     `json:"recipient"`
	Subject        string     `json:"subject,omitempty"`
	Body           string     `json:"body"`
	BookingID      string     `json:"booking_id"`
	Trigger        Trigger    `json:"trigger"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

type Result struct {
	Dispatches []Dispatch
	Decisions  []Decision
}
