package conditions

import (
	"fmt"
	"regexp"

	"github.com/dgraph-io/ristretto"

	"bookflow/pkg/models"
)

type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

// Evaluator decides whether a record satisfies a condition tree. It is safe for
// concurrent use and never fails: anything it cannot interpret evaluates to false.
type Evaluator struct {
	patterns   *ristretto.Cache
	predicates map[Operator]predicate
}

type Options struct {
	// MaxPatterns bounds the number of compiled regular expressions kept.
	MaxPatterns int64
}

func DefaultOptions() Options {
	return Options{MaxPatterns: 1000}
}

func NewEvaluator() (*Evaluator, error) {
	return NewEvaluatorWithOptions(DefaultOptions())
}

func NewEvaluatorWithOptions(opts Options) (*Evaluator, error) {
	if opts.MaxPatterns <= 0 {
		opts.MaxPatterns = DefaultOptions().MaxPatterns
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.MaxPatterns * 10,
		MaxCost:     opts.MaxPatterns,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}

	e := &Evaluator{
		patterns:   cache,
		predicates: make(map[Operator]predicate, len(operatorSpecs)),
	}
	for op, spec := range operatorSpecs {
		e.predicates[op] = spec.fn
	}
	e.predicates[OpRegexMatch] = e.regexMatch

	return e, nil
}

func (e *Evaluator) Close() {
	e.patterns.Close()
}

// Evaluate reports whether the booking satisfies every group. An empty list is true.
func (e *Evaluator) Evaluate(groups []Group, b *models.Booking) bool {
	if b == nil && len(groups) > 0 {
		return false
	}
	return e.EvaluateWith(groups, NewBookingResolver(b))
}

func (e *Evaluator) EvaluateWith(groups []Group, r Resolver) bool {
	for _, g := range groups {
		if !e.EvaluateGroup(g, r) {
			return false
		}
	}
	return true
}

func (e *Evaluator) EvaluateGroup(g Group, r Resolver) bool {
	if r == nil || len(g.Rules) == 0 {
		return false
	}

	switch g.normalizedOperator() {
	case GroupAnd:
		for _, rule := range g.Rules {
			if !e.EvaluateRule(rule, r) {
				return false
			}
		}
		return true
	case GroupOr:
		for _, rule := range g.Rules {
			if e.EvaluateRule(rule, r) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (e *Evaluator) EvaluateRule(rule Rule, r Resolver) bool {
	if r == nil {
		return false
	}
	fn, ok := e.predicates[rule.normalizedOperator()]
	if !ok {
		return false
	}
	return fn(r.Resolve(rule.normalizedField()), rule.value())
}

type RuleResult struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	Value    *string  `json:"value,omitempty"`
	Actual   string   `json:"actual"`
	Result   bool     `json:"result"`
}

type GroupResult struct {
	Operator GroupOperator `json:"operator"`
	Result   bool          `json:"result"`
	Rules    []RuleResult  `json:"rules"`
}

type Explanation struct {
	Result bool          `json:"result"`
	Groups []GroupResult `json:"groups"`
}

// Explain evaluates every rule without short-circuiting so callers can show why a
// tree passed or failed. The overall result always equals Evaluate.
func (e *Evaluator) Explain(groups []Group, r Resolver) Explanation {
	out := Explanation{Result: true, Groups: make([]GroupResult, 0, len(groups))}
	for _, g := range groups {
		gr := GroupResult{
			Operator: g.normalizedOperator(),
			Rules:    make([]RuleResult, 0, len(g.Rules)),
		}
		for _, rule := range g.Rules {
			actual := ""
			if r != nil {
				actual = r.Resolve(rule.normalizedField())
			}
			gr.Rules = append(gr.Rules, RuleResult{
				Field:    rule.Field,
				Operator: rule.Operator,
				Value:    rule.Value,
				Actual:   actual,
				Result:   e.EvaluateRule(rule, r),
			})
		}
		gr.Result = e.EvaluateGroup(g, r)
		if !gr.Result {
			out.Result = false
		}
		out.Groups = append(out.Groups, gr)
	}
	return out
}

func (e *Evaluator) regexMatch(actual, pattern string) bool {
	re, err := e.compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(actual)
}

func (e *Evaluator) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := e.patterns.Get(pattern); ok {
		if cp, ok := cached.(compiledPattern); ok {
			return cp.re, cp.err
		}
	}

	re, err := regexp.Compile(pattern)
	e.patterns.Set(pattern, compiledPattern{re: re, err: err}, 1)
	return re, err
}
