// Package plan rebuilds the current plan tree from the reducer's open tasks.
package plan

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/crimson-sun/plantrace/internal/engine/reducer"
	"github.com/crimson-sun/plantrace/internal/model"
)

// ErrMissingAncestor means a task names a parent that was never opened.
var ErrMissingAncestor = errors.New("missing ancestor")

// ErrCycle means a task is its own ancestor.
var ErrCycle = errors.New("parent cycle")

// Source resolves tasks that are not in the open set, usually from the archive
// of closed tasks. reducer.Result implements it.
type Source interface {
	Lookup(task string) (reducer.OpenTask, bool)
}

// Node is one task in the tree. Children are addressed by task id.
type Node struct {
	Task     model.Event
	Children []string
}

// Tree is a parent/children index keyed by task id.
type Tree struct {
	nodes map[string]*Node
	roots []string
}

// Build indexes the open tasks in order. Parents missing from the open set are
// pulled in from src so every printed tree is rooted.
func Build(open []reducer.OpenTask, src Source) (*Tree, error) {
	t := &Tree{nodes: make(map[string]*Node)}
	for _, o := range open {
		if err := t.add(o.Event, src, nil); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) add(ev model.Event, src Source, path []string) error {
	if _, ok := t.nodes[ev.Task]; ok {
		return nil
	}
	t.nodes[ev.Task] = &Node{Task: ev}

	if ev.Parent == "" {
		t.roots = append(t.roots, ev.Task)
		return nil
	}
	path = append([]string{ev.Task}, path...)
	if slices.Contains(path, ev.Parent) {
		return fmt.Errorf("plan: parent %s of %s: %w", ev.Parent, strings.Join(path, " <- "), ErrCycle)
	}
	if _, ok := t.nodes[ev.Parent]; !ok {
		parent, ok := src.Lookup(ev.Parent)
		if !ok {
			return fmt.Errorf("plan: parent %s of %s: %w", ev.Parent, strings.Join(path, " <- "), ErrMissingAncestor)
		}
		if err := t.add(parent.Event, src, path); err != nil {
			return err
		}
	}
	p := t.nodes[ev.Parent]
	p.Children = append(p.Children, ev.Task)
	return nil
}

// Len returns the number of tasks in the tree, ancestors included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Roots returns the top-level task ids.
func (t *Tree) Roots() []string {
	return t.roots
}

// Node returns the node for a task id.
func (t *Tree) Node(task string) (*Node, bool) {
	n, ok := t.nodes[task]
	return n, ok
}

// Walk visits every node depth-first in insertion order.
func (t *Tree) Walk(fn func(n *Node, depth int)) {
	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			n := t.nodes[id]
			fn(n, depth)
			walk(n.Children, depth+1)
		}
	}
	walk(t.roots, 0)
}

// Render writes the tree as indented task lines under a task count header.
func (t *Tree) Render(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d tasks\n", t.Len())
	t.Walk(func(n *Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(Line(n.Task))
		b.WriteByte('\n')
	})
	_, err := io.WriteString(w, b.String())
	return err
}

// String renders the tree.
func (t *Tree) String() string {
	var b strings.Builder
	_ = t.Render(&b)
	return b.String()
}

// Line renders one task the way the planner declares it, without the ordinal.
func Line(ev model.Event) string {
	s := fmt.Sprintf("[%s] %s", ev.Optype, ev.Task)
	if len(ev.Args) > 0 {
		s += "(" + ev.Args.String() + ")"
	}
	if len(ev.Pres) > 0 {
		s += " Pre: " + ev.Pres.String()
	}
	return s
}
