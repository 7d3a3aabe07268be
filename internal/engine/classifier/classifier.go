package classifier

import (
	"fmt"
	"log/slog"
	"strconv"
	"unicode/utf8"

	"github.com/crimson-sun/plantrace/internal/model"
)

const (
	maxUnparsedSamples = 20
	maxSampleLen       = 200
)

var requiredFields = []string{"scope", "message", "time"}

// Classifier turns log records into typed events using a Format's rule table.
// It tracks the decomposition parent across records, so use one instance per log.
type Classifier struct {
	format Format
	parent string
	stats  model.Stats
}

// New creates a Classifier for the given format.
func New(format Format) *Classifier {
	return &Classifier{
		format: format,
		stats:  model.Stats{ByKind: make(map[model.Kind]int)},
	}
}

// Format returns the rule table in use.
func (c *Classifier) Format() Format {
	return c.format
}

// Stats returns the counters accumulated so far.
func (c *Classifier) Stats() model.Stats {
	return c.stats
}

// Classify returns the event for rec, or ok=false when the record is invalid or
// no rule matches. An error means a rule matched but its argument or precondition
// list is malformed.
func (c *Classifier) Classify(rec model.LogRecord) (ev model.Event, ok bool, err error) {
	c.stats.Lines++
	for _, key := range requiredFields {
		if !rec.Has(key) {
			c.stats.Invalid++
			return model.Event{}, false, nil
		}
	}
	ts, err := model.ParseTime(rec.String("time"))
	if err != nil {
		slog.Debug("invalid record time", "line", rec.Line, "error", err)
		c.stats.Invalid++
		return model.Event{}, false, nil
	}

	scope, msg := rec.String("scope"), rec.String("message")
	for _, r := range c.format.Rules {
		if r.Scope != "" && r.Scope != scope {
			continue
		}
		m := r.Pattern.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		ev = model.Event{
			Kind:  r.Kind,
			Time:  ts,
			Scope: scope,
			Tick:  rec.Int("tick"),
			Line:  rec.Line,
		}
		if err := fill(r, m, rec, &ev); err != nil {
			return model.Event{}, false, fmt.Errorf("classifier: line %d (%s/%s): %w", rec.Line, r.Kind, r.Variant, err)
		}
		c.track(&ev)
		c.stats.Events++
		c.stats.ByKind[ev.Kind]++
		return ev, true, nil
	}

	c.stats.Unparsed++
	if len(c.stats.UnparsedSamples) < maxUnparsedSamples {
		c.stats.UnparsedSamples = append(c.stats.UnparsedSamples, truncate(msg, maxSampleLen))
	}
	slog.Debug("unparsed message", "line", rec.Line, "scope", scope, "message", truncate(msg, maxSampleLen))
	return model.Event{}, false, nil
}

// track maintains the decomposition parent: DECOMPOSED opens a new parent,
// plan headers reset it, and task lines inherit it.
func (c *Classifier) track(ev *model.Event) {
	switch ev.Kind {
	case model.KindDecomposed:
		c.parent = ev.Task
	case model.KindAppendPlan, model.KindReplacePlan:
		c.parent = ""
	case model.KindNewTask:
		ev.Parent = c.parent
	}
}

func fill(r Rule, m []string, rec model.LogRecord, ev *model.Event) error {
	for i, name := range r.Pattern.SubexpNames() {
		if name == "" || m[i] == "" {
			continue
		}
		v := m[i]
		switch name {
		case "task":
			ev.Task = v
		case "agent":
			ev.Agent = v
		case "status":
			ev.Status = v
		case "orgn":
			ev.Origin = v
		case "optype":
			ev.Optype = model.Optype(v)
		case "no":
			ev.No, _ = strconv.Atoi(v)
		case "msg":
			ev.MessageID = v
		case "bin":
			ev.Bin = v
		case "args":
			args, err := ParseArgs(v)
			if err != nil {
				return err
			}
			ev.Args = args
		case "pres":
			pres, err := ParsePres(v)
			if err != nil {
				return err
			}
			ev.Pres = pres
		default:
			if ev.Extra == nil {
				ev.Extra = make(map[string]string)
			}
			ev.Extra[name] = v
		}
	}
	if ev.Agent == "" && r.AgentField != "" {
		ev.Agent = rec.String(r.AgentField)
	}
	if r.Map != nil {
		return r.Map(rec, ev)
	}
	return nil
}

// truncate cuts s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
