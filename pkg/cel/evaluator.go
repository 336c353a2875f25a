package cel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"bookflow/pkg/conditions"
	"bookflow/pkg/models"
)

const costLimit = 1000000

// Evaluator compiles and runs boolean gate expressions over a booking event.
//
// Expressions see four variables:
//
//	booking   map of the booking as carried on the wire
//	fields    map of every condition field resolved for the booking (all strings)
//	trigger   the lifecycle trigger of the event
//	occurred  event time as a timestamp
type Evaluator struct {
	env      *cel.Env
	programs map[string]cel.Program
	mu       sync.RWMutex
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("booking", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("fields", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("trigger", cel.StringType),
		cel.Variable("occurred", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

// ValidateGateExpression checks that expression compiles and yields a bool.
func (e *Evaluator) ValidateGateExpression(expression string) error {
	_, err := e.compile(expression)
	return err
}

func (e *Evaluator) compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("gate expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return program, nil
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()
	return program, nil
}

// Forget drops cached programs that are not in keep. Called after workflow reloads.
func (e *Evaluator) Forget(keep map[string]struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for expr := range e.programs {
		if _, ok := keep[expr]; !ok {
			delete(e.programs, expr)
		}
	}
}

func (e *Evaluator) EvaluateGate(ctx context.Context, expression string, event *models.BookingEvent) (bool, error) {
	if event == nil {
		return false, fmt.Errorf("booking event is nil")
	}

	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	vars, err := Activation(event)
	if err != nil {
		return false, err
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// Activation builds the variable bindings for event.
func Activation(event *models.BookingEvent) (map[string]interface{}, error) {
	data, err := json.Marshal(event.Booking)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking: %w", err)
	}
	var booking map[string]interface{}
	if err := json.Unmarshal(data, &booking); err != nil {
		return nil, fmt.Errorf("failed to unmarshal booking: %w", err)
	}

	fields := make(map[string]string, len(conditions.Fields()))
	for _, f := range conditions.Fields() {
		fields[string(f.Name)] = conditions.ResolveField(&event.Booking, f.Name)
	}

	return map[string]interface{}{
		"booking":  booking,
		"fields":   fields,
		"trigger":  event.Trigger,
		"occurred": event.OccurredAt,
	}, nil
}
