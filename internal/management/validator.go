package management

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"bookflow/internal/constants"
	"bookflow/internal/workflow"
	"bookflow/pkg/cel"
	"bookflow/pkg/conditions"
	"bookflow/pkg/models"
	"bookflow/pkg/template"
)

const maxNameLength = 255

// Validator checks workflow definitions before they are stored. Every problem is
// reported under the path of the offending form field.
type Validator struct {
	gates     *cel.Evaluator
	templates *template.Engine
}

func NewValidator() (*Validator, error) {
	gates, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}
	return &Validator{
		gates:     gates,
		templates: template.NewEngine(),
	}, nil
}

func (v *Validator) ValidateWorkflow(wf *workflow.Workflow) error {
	var errs conditions.ValidationErrors

	name := strings.TrimSpace(wf.Name)
	switch {
	case name == "":
		errs = append(errs, conditions.FieldError{Path: "name", Message: "name is required"})
	case len(name) > maxNameLength:
		errs = append(errs, conditions.FieldError{Path: "name", Message: fmt.Sprintf("name must be at most %d characters", maxNameLength)})
	}

	if !workflow.IsValidTrigger(wf.Trigger) {
		errs = append(errs, conditions.FieldError{Path: "trigger", Message: fmt.Sprintf("unknown trigger %q", wf.Trigger)})
	}

	steps := make(map[int]int, len(wf.Actions))
	for i, action := range wf.Actions {
		path := fmt.Sprintf("actions[%d]", i)
		if first, dup := steps[action.StepNumber]; dup {
			errs = append(errs, conditions.FieldError{
				Path:    path + ".step_number",
				Message: fmt.Sprintf("step_number %d is already used by actions[%d]", action.StepNumber, first),
			})
		} else {
			steps[action.StepNumber] = i
		}
		errs = append(errs, v.validateAction(action, path)...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *Validator) validateAction(action workflow.Action, path string) conditions.ValidationErrors {
	var errs conditions.ValidationErrors

	if action.StepNumber < 0 {
		errs = append(errs, conditions.FieldError{Path: path + ".step_number", Message: "step_number must not be negative"})
	}

	if !workflow.IsValidActionType(action.Type) {
		errs = append(errs, conditions.FieldError{Path: path + ".type", Message: fmt.Sprintf("unknown action type %q", action.Type)})
	}

	if action.Type == workflow.ActionWebhook {
		if msg := webhookRecipientError(action.Recipient); msg != "" {
			errs = append(errs, conditions.FieldError{Path: path + ".recipient", Message: msg})
		}
	}

	if strings.TrimSpace(action.Body) == "" && action.Type != workflow.ActionWebhook {
		errs = append(errs, conditions.FieldError{Path: path + ".body", Message: "body is required"})
	}

	templates := []struct{ field, src string }{
		{"recipient", action.Recipient},
		{"subject", action.Subject},
		{"body", action.Body},
	}
	for _, t := range templates {
		if t.src == "" {
			continue
		}
		if err := v.templates.Validate(t.src); err != nil {
			errs = append(errs, conditions.FieldError{Path: path + "." + t.field, Message: fmt.Sprintf("invalid template: %v", err)})
		}
	}

	if err := conditions.Validate(action.Conditions, path+".conditions"); err != nil {
		var cerrs conditions.ValidationErrors
		if errors.As(err, &cerrs) {
			errs = append(errs, cerrs...)
		} else {
			errs = append(errs, conditions.FieldError{Path: path + ".conditions", Message: err.Error()})
		}
	}

	if strings.TrimSpace(action.Expression) != "" {
		if err := v.gates.ValidateGateExpression(action.Expression); err != nil {
			errs = append(errs, conditions.FieldError{Path: path + ".expression", Message: fmt.Sprintf("invalid CEL expression: %v", err)})
		}
	}

	return errs
}

// webhookRecipientError accepts templated recipients as-is and otherwise requires an absolute http(s) URL.
func webhookRecipientError(recipient string) string {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "recipient URL is required for webhook actions"
	}
	if strings.Contains(recipient, "{{") {
		return ""
	}
	u, err := url.Parse(recipient)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "recipient must be an absolute http or https URL"
	}
	return ""
}

var validHashAlgorithms = map[string]bool{
	constants.HashAlgorithmMD5:    true,
	constants.HashAlgorithmSHA256: true,
}

var validOnRedisError = map[string]bool{
	constants.FallbackAllow: true,
	constants.FallbackDeny:  true,
}

func ValidateDispatchConfig(req UpdateDispatchConfigRequest) error {
	var errs conditions.ValidationErrors

	if req.HashAlgorithm != nil && !validHashAlgorithms[strings.ToLower(*req.HashAlgorithm)] {
		errs = append(errs, conditions.FieldError{Path: "hash_algorithm", Message: fmt.Sprintf("invalid hash_algorithm %q, allowed: md5, sha256", *req.HashAlgorithm)})
	}
	if req.OnRedisError != nil && !validOnRedisError[strings.ToLower(*req.OnRedisError)] {
		errs = append(errs, conditions.FieldError{Path: "on_redis_error", Message: fmt.Sprintf("invalid on_redis_error %q, allowed: allow, deny", *req.OnRedisError)})
	}
	if req.TTLSeconds != nil && *req.TTLSeconds <= 0 {
		errs = append(errs, conditions.FieldError{Path: "ttl_seconds", Message: "ttl_seconds must be positive"})
	}
	if req.KeyFields != nil {
		if len(*req.KeyFields) == 0 {
			errs = append(errs, conditions.FieldError{Path: "key_fields", Message: "key_fields cannot be empty"})
		}
		for i, f := range *req.KeyFields {
			if !models.IsDispatchKeyField(f) {
				errs = append(errs, conditions.FieldError{
					Path:    fmt.Sprintf("key_fields[%d]", i),
					Message: fmt.Sprintf("unknown key field %q, allowed: %s", f, strings.Join(models.DispatchKeyFields, ", ")),
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
