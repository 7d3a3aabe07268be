package plantrace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/crimson-sun/plantrace/internal/connector"
	"github.com/crimson-sun/plantrace/internal/engine"
	"github.com/crimson-sun/plantrace/internal/engine/classifier"
	"github.com/crimson-sun/plantrace/internal/engine/policy"
	"github.com/crimson-sun/plantrace/internal/model"
	"github.com/crimson-sun/plantrace/internal/output/chrome"
)

// Tracer turns planner logs into traces.
type Tracer struct {
	engine   *engine.Engine
	exporter *chrome.Exporter
	policy   *policy.Policy
}

// New creates a Tracer. Preparing the exclusion policy compiles Rego, so create
// once and reuse.
func New(opts ...Option) (*Tracer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	format, err := classifier.FormatByName(o.format)
	if err != nil {
		return nil, fmt.Errorf("plantrace: %w", err)
	}
	phase, err := chrome.ParsePhase(o.phase)
	if err != nil {
		return nil, fmt.Errorf("plantrace: %w", err)
	}
	t := &Tracer{
		engine:   engine.New(format),
		exporter: chrome.New(chrome.Config{Phase: phase, ShortNames: o.shortNames}),
	}
	if o.exclude {
		t.policy, err = policy.New(context.Background(), o.policy)
		if err != nil {
			return nil, fmt.Errorf("plantrace: %w", err)
		}
	}
	return t, nil
}

// Run is the outcome of parsing one log.
type Run struct {
	tracer *Tracer
	result *engine.Result
	traces []model.Trace
}

// Parse reads a whole NDJSON log from r and reduces it.
func (t *Tracer) Parse(ctx context.Context, r io.Reader) (*Run, error) {
	batch, err := connector.Decode(ctx, r, 0)
	if err != nil {
		return nil, fmt.Errorf("plantrace: read: %w", err)
	}
	res, err := t.engine.Process(ctx, batch.Records)
	if err != nil {
		return nil, fmt.Errorf("plantrace: %w", err)
	}
	res.Stats.Malformed = batch.Malformed

	traces := res.Traces()
	if t.policy != nil {
		traces, err = t.policy.Filter(ctx, traces)
		if err != nil {
			return nil, fmt.Errorf("plantrace: %w", err)
		}
	}
	return &Run{tracer: t, result: res, traces: traces}, nil
}

// Traces returns the exported traces in closing order.
func (r *Run) Traces() []Trace {
	out := make([]Trace, len(r.traces))
	for i, tr := range r.traces {
		out[i] = traceFromModel(tr)
	}
	return out
}

// Session returns the session the log announced, if any.
func (r *Run) Session() Session {
	s := r.result.Reduced.Session
	return Session{Site: s.Site, Type: s.Type, Start: s.Start, Finish: s.Finish}
}

// Unparsed returns how many records matched no message shape.
func (r *Run) Unparsed() int {
	return r.result.Stats.Unparsed
}

// Chrome renders the traces as a Chrome trace-event document.
func (r *Run) Chrome() ([]byte, error) {
	return json.Marshal(r.tracer.exporter.Export(r.traces, nil))
}

// Plan renders the tasks still open at the end of the log as an indented tree.
func (r *Run) Plan() (string, error) {
	tree, err := r.result.Plan()
	if err != nil {
		return "", fmt.Errorf("plantrace: %w", err)
	}
	return tree.String(), nil
}
