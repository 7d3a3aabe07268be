package plantrace

import (
	"time"

	"github.com/crimson-sun/plantrace/internal/model"
)

// Trace is one finished task interval.
// This is the stable public type; internal representations may evolve
// independently without breaking consumers.
type Trace struct {
	Task   string            `json:"task"`             // GROUP.SCOPE.ID, "A:" prefix for actions
	Type   string            `json:"type"`             // GROUP, or the dispatched message kind
	Name   string            `json:"name"`             // timeline label
	Optype string            `json:"optype"`           // T, O or A
	Parent string            `json:"parent,omitempty"` // decomposed task it belongs to
	Origin string            `json:"origin,omitempty"`
	Agent  string            `json:"agent,omitempty"`
	Status string            `json:"status,omitempty"`
	Args   map[string]string `json:"args,omitempty"`
	Start  time.Time         `json:"start"`
	Finish time.Time         `json:"finish"`
}

// Session identifies the planner run a log belongs to.
type Session struct {
	Site   string    `json:"site"`
	Type   string    `json:"type"`
	Start  time.Time `json:"start"`
	Finish time.Time `json:"finish"`
}

// Duration is Finish - Start.
func (t Trace) Duration() time.Duration {
	return t.Finish.Sub(t.Start)
}

func traceFromModel(tr model.Trace) Trace {
	out := Trace{
		Task:   tr.Task,
		Type:   tr.Type,
		Name:   tr.Name,
		Optype: string(tr.Optype),
		Parent: tr.Parent,
		Origin: tr.Origin,
		Agent:  tr.Agent,
		Status: tr.Status,
		Start:  tr.Start,
		Finish: tr.Finish,
	}
	if len(tr.Args) > 0 {
		out.Args = tr.Args.Map()
	}
	return out
}
