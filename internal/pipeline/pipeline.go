// Package pipeline wires a connector, the engine, the export policy, outputs and
// the store into one run over a planner log.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/plantrace/internal/connector"
	"github.com/crimson-sun/plantrace/internal/engine"
	"github.com/crimson-sun/plantrace/internal/engine/filter"
	"github.com/crimson-sun/plantrace/internal/engine/policy"
	"github.com/crimson-sun/plantrace/internal/idgen"
	"github.com/crimson-sun/plantrace/internal/model"
	"github.com/crimson-sun/plantrace/internal/output"
	"github.com/crimson-sun/plantrace/internal/output/chrome"
	"github.com/crimson-sun/plantrace/internal/store"
)

// Export names and shapes the documents of one run.
type Export struct {
	Name       string // base artifact name, "trace" when empty
	Phase      chrome.Phase
	ShortNames bool        // also write <name>-short
	FilterTask string      // also write <name>-filtered for this task's family
	FilterMode filter.Mode // family extent for FilterTask
	Version    string      // otherData.version
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPolicy excludes the traces the policy matches from every artifact.
func WithPolicy(p *policy.Policy) Option {
	return func(pl *Pipeline) { pl.policy = p }
}

// WithStore persists the session and its traces after export.
func WithStore(s *store.Store) Option {
	return func(pl *Pipeline) { pl.store = s }
}

// WithExport sets the artifact configuration.
func WithExport(e Export) Option {
	return func(pl *Pipeline) { pl.export = e }
}

// Pipeline connects a connector, engine, and output into one processing run.
type Pipeline struct {
	connector connector.Connector
	engine    *engine.Engine
	output    output.Output
	policy    *policy.Policy
	store     *store.Store
	export    Export
}

// New creates a Pipeline from the given components.
func New(conn connector.Connector, eng *engine.Engine, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		connector: conn,
		engine:    eng,
		output:    out,
	}
	for _, o := range opts {
		o(p)
	}
	if p.export.Name == "" {
		p.export.Name = "trace"
	}
	return p
}

// Report describes a finished run.
type Report struct {
	RunID     string
	Result    *engine.Result
	Traces    []model.Trace // exported traces, exclusions applied
	Artifacts []string
	Saved     *store.Saved
}

// Run reads the whole log, reduces it and writes every artifact.
func (p *Pipeline) Run(ctx context.Context, cfg connector.Config) (*Report, error) {
	runID := idgen.Run()

	batch, err := connector.Read(ctx, p.connector, cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline read: %w", err)
	}

	res, err := p.engine.Process(ctx, batch.Records)
	if err != nil {
		return nil, fmt.Errorf("pipeline process: %w", err)
	}
	res.Stats.Malformed = batch.Malformed

	traces, err := p.exclude(ctx, res.Traces())
	if err != nil {
		return nil, err
	}
	rep := &Report{RunID: runID, Result: res, Traces: traces}

	other := p.OtherData(cfg.Input, runID)
	for _, a := range p.artifacts(ctx, res, traces, other) {
		if err := p.output.Write(ctx, a); err != nil {
			return rep, fmt.Errorf("pipeline output %s: %w", a.Name, err)
		}
		rep.Artifacts = append(rep.Artifacts, a.Name)
	}

	if p.store != nil {
		saved, err := p.store.Save(ctx, res.Reduced.Session, runID, res.Traces())
		if err != nil {
			return rep, fmt.Errorf("pipeline store: %w", err)
		}
		rep.Saved = &saved
	}

	slog.Info("run complete",
		"run", runID,
		"source", cfg.Input,
		"records", len(batch.Records),
		"events", res.Stats.Events,
		"traces", len(traces),
		"excluded", len(res.Traces())-len(traces),
		"unparsed", res.Stats.Unparsed,
		"invalid", res.Stats.Invalid,
		"malformed", res.Stats.Malformed,
		"artifacts", len(rep.Artifacts),
	)
	return rep, nil
}

// OtherData is the document metadata of a run.
func (p *Pipeline) OtherData(source, runID string) map[string]string {
	other := map[string]string{"run": runID}
	if p.export.Version != "" {
		other["version"] = p.export.Version
	}
	if source != "" {
		other["source"] = source
	}
	return other
}

func (p *Pipeline) exclude(ctx context.Context, traces []model.Trace) ([]model.Trace, error) {
	if p.policy == nil {
		return traces, nil
	}
	kept, err := p.policy.Filter(ctx, traces)
	if err != nil {
		return nil, fmt.Errorf("pipeline policy: %w", err)
	}
	return kept, nil
}

// artifacts builds every document of the run in write order. Snapshots whose
// exclusion fails are logged and skipped.
func (p *Pipeline) artifacts(ctx context.Context, res *engine.Result, traces []model.Trace, other map[string]string) []output.Artifact {
	name := p.export.Name
	full := chrome.New(chrome.Config{Phase: p.export.Phase})

	arts := []output.Artifact{
		{Name: name, Doc: full.Export(traces, other)},
		{Name: name + "-actions", Doc: full.Export(actions(traces), other)},
	}
	if p.export.ShortNames {
		short := chrome.New(chrome.Config{Phase: p.export.Phase, ShortNames: true})
		arts = append(arts, output.Artifact{Name: name + "-short", Doc: short.Export(traces, other)})
	}
	if p.export.FilterTask != "" {
		selected := filter.Select(traces, p.export.FilterTask, p.export.FilterMode)
		if len(selected) == 0 {
			slog.Warn("filter matched no traces", "task", p.export.FilterTask, "mode", p.export.FilterMode)
		}
		arts = append(arts, output.Artifact{Name: name + "-filtered", Doc: full.Export(selected, other)})
	}
	for _, snap := range res.Snapshots {
		kept, err := p.exclude(ctx, snap.Traces)
		if err != nil {
			slog.Warn("skipping snapshot", "seq", snap.Seq, "error", err)
			continue
		}
		arts = append(arts, output.Artifact{Name: engine.SnapshotName(name, snap.Seq), Doc: full.Export(kept, other)})
	}
	return arts
}

func actions(traces []model.Trace) []model.Trace {
	var out []model.Trace
	for _, tr := range traces {
		if tr.Optype == model.OptypeAction {
			out = append(out, tr)
		}
	}
	return out
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}
