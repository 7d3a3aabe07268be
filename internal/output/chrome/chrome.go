// Package chrome converts traces to the Chrome trace-event JSON format, which
// chrome://tracing and Perfetto load directly.
package chrome

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/plantrace/internal/model"
)

// Phase selects how a trace becomes timeline events.
type Phase string

const (
	// PhaseComplete emits one "X" event carrying dur.
	PhaseComplete Phase = "complete"
	// PhaseBeginEnd emits a "B" event at start and an "E" event at finish.
	PhaseBeginEnd Phase = "begin-end"
)

// ParsePhase validates a phase name; "" is complete.
func ParsePhase(s string) (Phase, error) {
	switch Phase(strings.ToLower(s)) {
	case "", PhaseComplete:
		return PhaseComplete, nil
	case PhaseBeginEnd:
		return PhaseBeginEnd, nil
	}
	return "", fmt.Errorf("chrome: unknown phase %q", s)
}

// Config is the rendering configuration for one export.
type Config struct {
	Phase      Phase
	ShortNames bool // name events by task type instead of task id
}

// Event is one trace event. Ts and Dur are microseconds.
type Event struct {
	Name string         `json:"name"`
	Cat  string         `json:"cat,omitempty"`
	Ph   string         `json:"ph"`
	Ts   int64          `json:"ts"`
	Dur  *int64         `json:"dur,omitempty"`
	Pid  int            `json:"pid"`
	Tid  int            `json:"tid"`
	Args map[string]any `json:"args,omitempty"`
}

// Document is a complete trace file.
type Document struct {
	TraceEvents     []Event           `json:"traceEvents"`
	DisplayTimeUnit string            `json:"displayTimeUnit"`
	OtherData       map[string]string `json:"otherData,omitempty"`
}

// Bookkeeping keys that never reach exported args.
var stripped = []string{"reset_time", "ltip", "message", "agentID", "args", "cat", "time"}

var agentSuffix = regexp.MustCompile(`(\d+)$`)

// Exporter renders traces with a fixed Config.
type Exporter struct {
	cfg Config
}

// New creates an Exporter. An empty phase means complete events.
func New(cfg Config) *Exporter {
	if cfg.Phase == "" {
		cfg.Phase = PhaseComplete
	}
	return &Exporter{cfg: cfg}
}

// Config returns the rendering configuration.
func (e *Exporter) Config() Config {
	return e.cfg
}

// Export builds a document from traces in order.
func (e *Exporter) Export(traces []model.Trace, other map[string]string) Document {
	doc := Document{
		TraceEvents:     make([]Event, 0, len(traces)),
		DisplayTimeUnit: "ms",
		OtherData:       other,
	}
	for _, tr := range traces {
		doc.TraceEvents = append(doc.TraceEvents, e.Events(tr)...)
	}
	return doc
}

// Events converts one trace.
func (e *Exporter) Events(tr model.Trace) []Event {
	base := Event{
		Name: tr.Name,
		Cat:  tr.Type,
		Ts:   tr.Start.UnixMicro(),
		Pid:  Pid(tr.Agent),
		Args: Args(tr),
	}
	if e.cfg.ShortNames {
		base.Name = tr.Type
	}
	if base.Name == "" {
		base.Name = tr.Task
	}

	if e.cfg.Phase == PhaseBeginEnd {
		begin, end := base, base
		begin.Ph = "B"
		end.Ph = "E"
		end.Ts = tr.Finish.UnixMicro()
		end.Args = nil
		return []Event{begin, end}
	}
	dur := tr.Finish.UnixMicro() - base.Ts
	base.Ph = "X"
	base.Dur = &dur
	return []Event{base}
}

// Pid is the trailing number of an agent id, e.g. 12 for RS12, or 0.
func Pid(agent string) int {
	m := agentSuffix.FindStringSubmatch(agent)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// Args is the union of the trace's argument payload and its top-level fields,
// with bookkeeping keys stripped and empty values omitted.
func Args(tr model.Trace) map[string]any {
	out := make(map[string]any, len(tr.Args)+9)
	for _, a := range tr.Args {
		if a.Value != "" {
			out[a.Key] = a.Value
		}
	}
	top := map[string]string{
		"task":   tr.Task,
		"parent": tr.Parent,
		"origin": tr.Origin,
		"agent":  tr.Agent,
		"status": tr.Status,
		"scope":  tr.Scope,
	}
	for k, v := range top {
		if v != "" {
			out[k] = v
		}
	}
	if len(tr.Pres) > 0 {
		out["pres"] = tr.Pres.Map()
	}
	if !tr.Start.IsZero() {
		out["start"] = tr.Start.Format(time.RFC3339Nano)
	}
	if !tr.Finish.IsZero() {
		out["finish"] = tr.Finish.Format(time.RFC3339Nano)
	}
	for _, k := range stripped {
		delete(out, k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
