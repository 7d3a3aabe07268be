// Package policy decides which traces are left out of exports, using a Rego
// module evaluated by OPA.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"

	"github.com/crimson-sun/plantrace/internal/model"
)

// Query is the rule a policy module must define.
const Query = "data.plantrace.export.exclude"

// DefaultPolicy drops the high-frequency housekeeping tasks that bury the
// interesting intervals in a timeline.
const DefaultPolicy = `
package plantrace.export

default exclude = false

noisy := {"SOLVE_MAPF", "CHECK_SELF_CONTROL_REQS", "CHECK_ROBOT_BATTERIES", "INCREMENT_THROUGHPUT"}

exclude {
	noisy[input.type]
}
`

// Policy is a prepared exclusion query.
type Policy struct {
	query rego.PreparedEvalQuery
}

// New prepares a policy from Rego source. Empty source means DefaultPolicy.
func New(ctx context.Context, module string) (*Policy, error) {
	if module == "" {
		module = DefaultPolicy
	}
	r := rego.New(
		rego.Query(Query),
		rego.Module("export.rego", module),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: prepare: %w", err)
	}
	return &Policy{query: query}, nil
}

// Load prepares the policy stored at path, or DefaultPolicy when path is empty.
func Load(ctx context.Context, path string) (*Policy, error) {
	if path == "" {
		return New(ctx, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	return New(ctx, string(b))
}

// Exclude reports whether tr should be left out of exports.
func (p *Policy) Exclude(ctx context.Context, tr model.Trace) (bool, error) {
	results, err := p.query.Eval(ctx, rego.EvalInput(input(tr)))
	if err != nil {
		return false, fmt.Errorf("policy: evaluate %s: %w", tr.Task, err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	v, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy: %s is %T, want bool", Query, results[0].Expressions[0].Value)
	}
	return v, nil
}

// Filter returns the traces the policy keeps, in order.
func (p *Policy) Filter(ctx context.Context, traces []model.Trace) ([]model.Trace, error) {
	out := make([]model.Trace, 0, len(traces))
	for _, tr := range traces {
		skip, err := p.Exclude(ctx, tr)
		if err != nil {
			return nil, err
		}
		if !skip {
			out = append(out, tr)
		}
	}
	return out, nil
}

func input(tr model.Trace) map[string]any {
	return map[string]any{
		"task":   tr.Task,
		"type":   tr.Type,
		"name":   tr.Name,
		"optype": string(tr.Optype),
		"parent": tr.Parent,
		"origin": tr.Origin,
		"agent":  tr.Agent,
		"status": tr.Status,
		"scope":  tr.Scope,
		"args":   tr.Args.Map(),
		"millis": tr.Duration().Milliseconds(),
	}
}
