// Package engine orchestrates classify → normalize → reduce over one planner log.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crimson-sun/plantrace/internal/engine/classifier"
	"github.com/crimson-sun/plantrace/internal/engine/normalizer"
	"github.com/crimson-sun/plantrace/internal/engine/plan"
	"github.com/crimson-sun/plantrace/internal/engine/reducer"
	"github.com/crimson-sun/plantrace/internal/model"
)

// DefaultSnapshotLimit bounds how many snapshots one run produces.
const DefaultSnapshotLimit = 150

const cancelCheckEvery = 1024

// Engine turns decoded log records into traces. It holds no per-log state, so one
// Engine can process any number of logs, one call at a time or concurrently.
type Engine struct {
	format        classifier.Format
	snapshotEvery int
	snapshotLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithSnapshots reduces the event prefix after every nth PlanChanged marker, up
// to limit snapshots. n <= 0 disables snapshots; limit <= 0 uses DefaultSnapshotLimit.
func WithSnapshots(n, limit int) Option {
	return func(e *Engine) {
		e.snapshotEvery = n
		if limit > 0 {
			e.snapshotLimit = limit
		}
	}
}

// New creates an Engine for the given log format.
func New(format classifier.Format, opts ...Option) *Engine {
	e := &Engine{format: format, snapshotLimit: DefaultSnapshotLimit}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Format returns the rule table in use.
func (e *Engine) Format() classifier.Format {
	return e.format
}

// Snapshot is the state of the log after the Seq-th PlanChanged marker.
type Snapshot struct {
	Seq    int
	Time   time.Time
	Traces []model.Trace
	Open   []reducer.OpenTask
}

// Result is everything one Process call learned about a log.
type Result struct {
	Events    []model.Event // normalized stream, synthetic markers included
	Reduced   reducer.Result
	Stats     model.Stats
	Snapshots []Snapshot
}

// Traces returns the finished traces.
func (r *Result) Traces() []model.Trace {
	return r.Reduced.Traces
}

// Plan builds the tree of tasks still open at the end of the log.
func (r *Result) Plan() (*plan.Tree, error) {
	return plan.Build(r.Reduced.Open, r.Reduced)
}

// Process classifies, normalizes and reduces records, which must be in log order.
func (e *Engine) Process(ctx context.Context, records []model.LogRecord) (*Result, error) {
	c := classifier.New(e.format)
	n := normalizer.New()
	for i, rec := range records {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ev, ok, err := c.Classify(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			n.Add(ev)
		}
	}
	n.Close()

	res := &Result{Events: n.Events(), Stats: c.Stats()}
	res.Stats.Synthetic = n.Synthetic()

	r := reducer.New()
	markers := 0
	for i, ev := range res.Events {
		if err := r.Apply(ev); err != nil {
			return nil, err
		}
		if ev.Kind != model.KindPlanChanged || e.snapshotEvery <= 0 {
			continue
		}
		markers++
		if markers%e.snapshotEvery != 0 || len(res.Snapshots) >= e.snapshotLimit {
			continue
		}
		snap, err := e.snapshot(ctx, markers, res.Events[:i+1])
		if err != nil {
			return nil, err
		}
		res.Snapshots = append(res.Snapshots, snap)
	}
	res.Reduced = r.Finish()
	return res, nil
}

// snapshot reduces a prefix of the stream on its own, so tasks open at that
// point are closed at the prefix's last event time.
func (e *Engine) snapshot(ctx context.Context, seq int, prefix []model.Event) (Snapshot, error) {
	reduced, err := reducer.Reduce(prefix)
	if err != nil {
		return Snapshot{}, fmt.Errorf("engine: snapshot %d: %w", seq, err)
	}
	snap := Snapshot{Seq: seq, Time: reduced.Last, Traces: reduced.Traces, Open: reduced.Open}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		tree, err := plan.Build(reduced.Open, reduced)
		if err != nil {
			slog.Debug("snapshot plan unavailable", "seq", seq, "error", err)
		} else {
			slog.Debug("snapshot plan", "seq", seq, "time", reduced.Last, "plan", tree.String())
		}
	}
	return snap, nil
}

// SnapshotName names the export of a snapshot.
func SnapshotName(base string, seq int) string {
	return fmt.Sprintf("%s-%05d", base, seq)
}
