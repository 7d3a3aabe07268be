// Package normalizer turns the classifier's output into the event stream the
// reducer consumes.
package normalizer

import "github.com/crimson-sun/plantrace/internal/model"

// Normalizer appends classified events and closes each run of NewTask events
// with a synthetic PlanChanged marker.
type Normalizer struct {
	events    []model.Event
	synthetic int
}

// New creates an empty Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Add appends ev. When ev ends a run of NewTask events, a PlanChanged carrying the
// time of the last NewTask is inserted before it.
func (n *Normalizer) Add(ev model.Event) {
	if ev.Kind != model.KindNewTask {
		n.boundary()
	}
	n.events = append(n.events, ev)
}

// Close marks the end of the stream, which also ends a trailing NewTask run.
// Add must not be called afterwards.
func (n *Normalizer) Close() {
	n.boundary()
}

func (n *Normalizer) boundary() {
	if len(n.events) == 0 {
		return
	}
	prev := n.events[len(n.events)-1]
	if prev.Kind != model.KindNewTask {
		return
	}
	n.events = append(n.events, model.Event{Kind: model.KindPlanChanged, Time: prev.Time, Line: prev.Line})
	n.synthetic++
}

// Events returns the normalized stream so far.
func (n *Normalizer) Events() []model.Event {
	return n.events
}

// Synthetic returns how many PlanChanged markers were injected.
func (n *Normalizer) Synthetic() int {
	return n.synthetic
}

// Normalize runs a whole classified stream through a Normalizer.
func Normalize(events []model.Event) []model.Event {
	n := New()
	for _, ev := range events {
		n.Add(ev)
	}
	n.Close()
	return n.Events()
}
