package model

import (
	"regexp"
	"strings"
	"time"
)

// DispatchType is the task type of generic dispatch-message wrappers, whose real
// kind lives in the "kind" argument.
const DispatchType = "DISP_MSG"

// ActionPrefix marks the task id of action traces, which span a dispatch from
// receipt to status change.
const ActionPrefix = "A:"

var taskIDPattern = regexp.MustCompile(`(\w+)\.(\w+)\.([\w+]+)`)

// Trace is one finished task interval.
type Trace struct {
	Task   string    `json:"task"`
	Optype Optype    `json:"optype"`
	Parent string    `json:"parent,omitempty"`
	Origin string    `json:"origin,omitempty"`
	Args   Args      `json:"args,omitempty"`
	Pres   Pres      `json:"pres,omitempty"`
	Agent  string    `json:"agent,omitempty"`
	Status string    `json:"status,omitempty"`
	Scope  string    `json:"scope,omitempty"`
	Type   string    `json:"type"`
	Name   string    `json:"name"`
	Start  time.Time `json:"start"`
	Finish time.Time `json:"finish"`
}

// NewTrace builds a trace from the event that opened the task. The agent is taken
// from the event, then from the agent or agentID argument; agentID is dropped from args.
func NewTrace(ev Event, start, finish time.Time) Trace {
	if finish.Before(start) {
		finish = start
	}
	args := ev.Args.Clone()
	agent := ev.Agent
	if agent == "" {
		agent, _ = args.Get("agent")
	}
	if agent == "" {
		agent, _ = args.Get("agentID")
	}
	args = args.Delete("agentID")

	t := Trace{
		Task:   ev.Task,
		Optype: ev.Optype,
		Parent: ev.Parent,
		Origin: ev.Origin,
		Args:   args,
		Pres:   ev.Pres,
		Agent:  agent,
		Status: ev.Status,
		Scope:  ev.Scope,
		Start:  start,
		Finish: finish,
	}
	t.Type, t.Name = TaskType(ev.Task), ev.Task
	if t.Type == DispatchType {
		if kind, ok := args.Get("kind"); ok && kind != "" {
			t.Type = kind
			t.Name = kind + "-" + ev.Task
		}
	}
	return t
}

// TaskType returns the GROUP segment of a GROUP.SCOPE.ID task id, or the id itself.
func TaskType(task string) string {
	if m := taskIDPattern.FindStringSubmatch(task); m != nil {
		return m[1]
	}
	return task
}

// Subject returns the task id with any action prefix removed.
func (t Trace) Subject() string {
	return strings.TrimPrefix(t.Task, ActionPrefix)
}

// Duration is Finish - Start.
func (t Trace) Duration() time.Duration {
	return t.Finish.Sub(t.Start)
}
