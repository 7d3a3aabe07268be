// Package filter selects the traces connected to one task, for diagnostic exports.
package filter

import (
	"fmt"
	"strings"

	"github.com/crimson-sun/plantrace/internal/model"
)

// Mode selects how far a family extends.
type Mode string

const (
	// ModeChildren follows traces that mention a family member as parent,
	// origin or argument value.
	ModeChildren Mode = "children"
	// ModeRelated also follows the task references each member carries in its
	// own arguments and preconditions.
	ModeRelated Mode = "related"
)

// ParseMode validates a mode name; "" is children.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeChildren:
		return ModeChildren, nil
	case ModeRelated:
		return ModeRelated, nil
	}
	return "", fmt.Errorf("filter: unknown mode %q", s)
}

// Family returns the ids of every task connected to task. The set grows until
// a full pass over traces adds nothing.
func Family(traces []model.Trace, task string, mode Mode) map[string]struct{} {
	family := map[string]struct{}{task: {}}
	var byTask map[string][]model.Trace
	if mode == ModeRelated {
		byTask = make(map[string][]model.Trace)
		for _, tr := range traces {
			if tr.Optype != model.OptypeAction {
				byTask[tr.Task] = append(byTask[tr.Task], tr)
			}
		}
	}

	for {
		size := len(family)
		for _, tr := range traces {
			if mentions(tr, family) {
				family[tr.Subject()] = struct{}{}
			}
		}
		if mode == ModeRelated {
			for id := range family {
				for _, tr := range byTask[id] {
					for _, ref := range references(tr) {
						family[ref] = struct{}{}
					}
				}
			}
		}
		if len(family) == size {
			return family
		}
	}
}

// Select returns the traces of task's family in their original order.
func Select(traces []model.Trace, task string, mode Mode) []model.Trace {
	family := Family(traces, task, mode)
	var out []model.Trace
	for _, tr := range traces {
		if _, ok := family[tr.Subject()]; ok {
			out = append(out, tr)
		}
	}
	return out
}

func mentions(tr model.Trace, family map[string]struct{}) bool {
	for _, v := range values(tr) {
		if _, ok := family[v]; ok {
			return true
		}
	}
	return false
}

func values(tr model.Trace) []string {
	out := []string{tr.Subject(), tr.Parent, tr.Origin}
	for _, a := range tr.Args {
		out = append(out, a.Value)
	}
	for _, p := range tr.Pres {
		for _, a := range p.Args {
			out = append(out, a.Value)
		}
	}
	return out
}

// references returns the values of "task" arguments, which name other tasks.
func references(tr model.Trace) []string {
	var out []string
	if v, ok := tr.Args.Get("task"); ok {
		out = append(out, v)
	}
	for _, p := range tr.Pres {
		if v, ok := p.Args.Get("task"); ok {
			out = append(out, v)
		}
	}
	return out
}
