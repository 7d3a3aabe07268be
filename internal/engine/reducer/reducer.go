// Package reducer folds a normalized event stream into finished task traces.
//
// A task opens on NewTask and closes on TaskCompleted. Plan revisions close it
// early: Decomposed and ReplacePlan mark open tasks with a reset time, and the
// next PlanChanged closes every marked task at that time. A task that survives
// the revision is declared again by a NewTask, which clears its mark; once closed
// it reopens as a fresh interval. Dispatch events (TaskReceived, StatusChanged)
// produce separate action traces.
//
// The reducer is a strictly ordered fold and is not safe for concurrent use.
package reducer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crimson-sun/plantrace/internal/model"
)

var (
	// ErrNoPendingAction is returned for a StatusChanged without a prior TaskReceived.
	ErrNoPendingAction = errors.New("no pending action")
	// ErrUnknownTask is returned for a StatusChanged naming a task never opened.
	ErrUnknownTask = errors.New("unknown task")
)

// OpenTask is a task between its NewTask and its closing event.
type OpenTask struct {
	model.Event           // the NewTask that opened it
	Start       time.Time // creation time
	ResetTime   time.Time // zero unless a plan revision is pending
}

// Pending reports whether the task is marked for closing at the next PlanChanged.
func (o OpenTask) Pending() bool {
	return !o.ResetTime.IsZero()
}

// Reducer holds the lifecycle state for one log.
type Reducer struct {
	open    *table
	actions map[string]model.Event
	closed  map[string]OpenTask
	session model.Session
	started bool
	traces  []model.Trace
	last    time.Time
}

// New creates an empty Reducer.
func New() *Reducer {
	return &Reducer{
		open:    newTable(),
		actions: make(map[string]model.Event),
		closed:  make(map[string]OpenTask),
	}
}

// Apply folds one event into the state. Errors are lifecycle violations and
// leave the reducer unusable for the rest of the stream.
func (r *Reducer) Apply(ev model.Event) error {
	if !ev.Time.IsZero() {
		r.last = ev.Time
	}

	switch ev.Kind {
	case model.KindDecomposed:
		if o, ok := r.open.get(ev.Task); ok {
			o.ResetTime = ev.Time
		}

	case model.KindReplacePlan:
		r.open.each(func(o *OpenTask) {
			if !o.Pending() {
				o.ResetTime = ev.Time
			}
		})

	case model.KindNewTask:
		o, ok := r.open.get(ev.Task)
		if !ok {
			o = &OpenTask{Event: ev, Start: ev.Time}
			r.open.put(o)
		}
		o.ResetTime = time.Time{}

	case model.KindPlanChanged:
		var reset []*OpenTask
		r.open.each(func(o *OpenTask) {
			if o.Pending() {
				reset = append(reset, o)
			}
		})
		for _, o := range reset {
			r.close(o, model.NewTrace(o.Event, o.Start, o.ResetTime))
		}

	case model.KindTaskCompleted:
		o, ok := r.open.get(ev.Task)
		if !ok {
			slog.Debug("completion for task not open", "task", ev.Task, "line", ev.Line)
			return nil
		}
		r.close(o, model.NewTrace(completed(o.Event, ev), o.Start, ev.Time))

	case model.KindTaskReceived:
		r.actions[ev.Task] = ev

	case model.KindStatusChanged:
		return r.statusChanged(ev)

	case model.KindStartSession:
		if r.started {
			slog.Debug("ignoring repeated session start", "site", ev.Site, "line", ev.Line)
			return nil
		}
		r.started = true
		r.session = model.Session{Site: ev.Site, Type: ev.SessionType, Args: ev.CLIArgs, Start: ev.Time}
	}
	return nil
}

func (r *Reducer) statusChanged(ev model.Event) error {
	action, ok := r.actions[ev.Task]
	if !ok {
		return fmt.Errorf("reducer: status change of %s at line %d: %w", ev.Task, ev.Line, ErrNoPendingAction)
	}
	known, ok := r.lookup(ev.Task)
	if !ok {
		return fmt.Errorf("reducer: status change of %s at line %d: %w", ev.Task, ev.Line, ErrUnknownTask)
	}

	base := known.Event
	base.Task = model.ActionPrefix + ev.Task
	base.Optype = model.OptypeAction
	base.Status = ev.Status
	switch {
	case action.Agent != "":
		base.Agent = action.Agent
	case ev.Agent != "":
		base.Agent = ev.Agent
	}
	r.traces = append(r.traces, model.NewTrace(base, action.Time, ev.Time))
	delete(r.actions, ev.Task)
	return nil
}

func (r *Reducer) close(o *OpenTask, trace model.Trace) {
	r.traces = append(r.traces, trace)
	r.closed[o.Task] = *o
	r.open.remove(o.Task)
}

func (r *Reducer) lookup(task string) (OpenTask, bool) {
	if o, ok := r.open.get(task); ok {
		return *o, true
	}
	o, ok := r.closed[task]
	return o, ok
}

// completed merges the fields a completion message carries into the task's args.
func completed(task, done model.Event) model.Event {
	args := task.Args.Clone()
	if done.Agent != "" {
		args = args.Set("agent", done.Agent)
	}
	if done.Status != "" {
		args = args.Set("status", done.Status)
		task.Status = done.Status
	}
	if done.Bin != "" {
		args = args.Set("bin", done.Bin)
	}
	if done.MessageID != "" {
		args = args.Set("messageID", done.MessageID)
	}
	if reason := done.Extra["reason"]; reason != "" {
		args = args.Set("reason", reason)
	}
	task.Args = args
	return task
}

// Finish closes every task still open at the time of the last event and
// returns the result. Call it once, after the last Apply.
func (r *Reducer) Finish() Result {
	res := Result{
		Open:    r.open.list(),
		Closed:  r.closed,
		Session: r.session,
		Last:    r.last,
	}
	for _, o := range res.Open {
		r.traces = append(r.traces, model.NewTrace(o.Event, o.Start, r.last))
	}
	res.Session.Finish = r.last
	res.Traces = r.traces
	return res
}

// Reduce folds a whole normalized stream.
func Reduce(events []model.Event) (Result, error) {
	r := New()
	for _, ev := range events {
		if err := r.Apply(ev); err != nil {
			return Result{}, err
		}
	}
	return r.Finish(), nil
}

// Result is the outcome of a fold.
type Result struct {
	Traces  []model.Trace
	Open    []OpenTask          // tasks open at end of stream, in creation order
	Closed  map[string]OpenTask // most recent closed instance per task id
	Session model.Session
	Last    time.Time
}

// Lookup finds a task among the open tasks, then the closed ones.
func (r Result) Lookup(task string) (OpenTask, bool) {
	for _, o := range r.Open {
		if o.Task == task {
			return o, true
		}
	}
	o, ok := r.Closed[task]
	return o, ok
}

// OpenCount returns how many tasks are open.
func (r *Reducer) OpenCount() int {
	return r.open.len()
}
