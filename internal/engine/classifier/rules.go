package classifier

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/crimson-sun/plantrace/internal/model"
)

// Rule maps one message shape to a typed event. Named groups in Pattern are copied
// into the event: task, agent, status, orgn, optype, no, msg, bin, args, pres.
// Any other named group lands in Event.Extra.
type Rule struct {
	Kind    model.Kind
	Variant string
	Pattern *regexp.Regexp

	Scope      string // when set, the record scope must equal it
	AgentField string // record field holding the agent when the message has none

	// Map runs after the groups are copied.
	Map func(rec model.LogRecord, ev *model.Event) error
}

// Format is an ordered rule table for one log producer version. The first rule
// whose pattern matches wins, so specific shapes must precede general ones.
type Format struct {
	Name  string
	Rules []Rule
}

// Kinds returns the event kinds in priority order.
func (f Format) Kinds() []model.Kind {
	var kinds []model.Kind
	seen := make(map[model.Kind]bool)
	for _, r := range f.Rules {
		if !seen[r.Kind] {
			seen[r.Kind] = true
			kinds = append(kinds, r.Kind)
		}
	}
	return kinds
}

const (
	taskExp = `(?P<task>\w+\.\w+\.[\w+]+)`
	orgnExp = `(?P<orgn>\w+\.\w+\.[\w+]+)`
	argsExp = `(?:\((?P<args>[^)]+)\))?`
	presExp = ` Pre:(?: (?P<pres>.*))?$`
	lineExp = `^(?P<no>\d+)\. \[(?P<optype>[TO])\] `
)

func rule(kind model.Kind, variant, pattern string) Rule {
	return Rule{Kind: kind, Variant: variant, Pattern: regexp.MustCompile(pattern)}
}

func planRules() []Rule {
	return []Rule{
		rule(model.KindDecomposed, "decomposed", `^DECOMPOSED `+taskExp),
		rule(model.KindAppendPlan, "append", `^APPEND PLAN`),
		rule(model.KindReplacePlan, "replace", `^REPLACE PLAN`),
	}
}

func newTaskPlain() Rule {
	return rule(model.KindNewTask, "plain", lineExp+taskExp+argsExp+presExp)
}

func newTaskOrigin() Rule {
	return rule(model.KindNewTask, "origin", lineExp+taskExp+`\(orgn=`+orgnExp+argsExp+`\)`+presExp)
}

func dispatchRules() []Rule {
	status := rule(model.KindStatusChanged, "status", `Task `+taskExp+` status changed to (?P<status>.*)`)
	status.AgentField = "agentId"
	received := rule(model.KindTaskReceived, "received", `New task `+taskExp+` received by agent`)
	received.AgentField = "agentId"
	return []Rule{
		rule(model.KindPerformTask, "perform", `^Order agent (?P<agent>\w+) to perform task `+taskExp),
		status,
		received,
	}
}

func completedRules() []Rule {
	return []Rule{
		rule(model.KindTaskCompleted, "agent-short", `Task `+taskExp+`\((?P<agent>\w+)\) completed\.`),
		rule(model.KindTaskCompleted, "agent-id", `Task `+taskExp+`\(agentID=(?P<agent>\w+)(?:,.*)?\) completed\.`),
		rule(model.KindTaskCompleted, "agent", `Task `+taskExp+`\(agent=(?P<agent>\w+)(?:,.*)?\) completed\.`),
		rule(model.KindTaskCompleted, "message", `Task `+taskExp+`\(message=(?P<msg>\w+),\s+status=(?P<status>\w+),\s+binID=(?P<bin>\w+)\) completed\.`),
		rule(model.KindTaskCompleted, "marked", `Task `+taskExp+` is marked as completed because (?P<reason>.*)`),
		rule(model.KindTaskCompleted, "generic", `Task `+taskExp+`(?:\([^)]*\))? completed\.`),
	}
}

func sessionRule() Rule {
	r := rule(model.KindStartSession, "cli-args", `^CLI Args$`)
	r.Scope = "/"
	r.Map = mapSession
	return r
}

// Standard is the rule table for current planner logs.
func Standard() Format {
	var rules []Rule
	rules = append(rules, planRules()...)
	rules = append(rules, newTaskPlain(), newTaskOrigin())
	rules = append(rules, dispatchRules()...)
	rules = append(rules, completedRules()...)
	rules = append(rules, sessionRule())
	return Format{Name: "standard", Rules: rules}
}

// OriginFirst is Standard with origin-wrapped task lines tried before plain ones.
func OriginFirst() Format {
	var rules []Rule
	rules = append(rules, planRules()...)
	rules = append(rules, newTaskOrigin(), newTaskPlain())
	rules = append(rules, dispatchRules()...)
	rules = append(rules, completedRules()...)
	rules = append(rules, sessionRule())
	return Format{Name: "origin-first", Rules: rules}
}

// Legacy matches early planner logs whose task lines carry no argument or
// precondition lists and whose completions name only the agent.
func Legacy() Format {
	var rules []Rule
	rules = append(rules, planRules()...)
	rules = append(rules, rule(model.KindNewTask, "legacy", lineExp+taskExp))
	rules = append(rules, dispatchRules()...)
	rules = append(rules, completedRules()[:4]...)
	rules = append(rules, sessionRule())
	return Format{Name: "legacy", Rules: rules}
}

// FormatByName resolves a configured format name.
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "standard":
		return Standard(), nil
	case "origin-first":
		return OriginFirst(), nil
	case "legacy":
		return Legacy(), nil
	default:
		return Format{}, fmt.Errorf("unknown log format: %s", name)
	}
}

// mapSession pulls the site (-S) and session type out of the CLI argument list.
func mapSession(rec model.LogRecord, ev *model.Event) error {
	args := rec.Strings("args")
	ev.CLIArgs = args
	if len(args) > 0 {
		ev.SessionType = filepath.Base(args[0])
	}
	for i, a := range args {
		if site, ok := siteFlag(args, i, a); ok {
			ev.Site = site
			break
		}
	}
	return nil
}

func siteFlag(args []string, i int, a string) (string, bool) {
	switch {
	case a == "-S" || a == "--site":
		if i+1 < len(args) {
			return args[i+1], true
		}
	case strings.HasPrefix(a, "-S="):
		return strings.TrimPrefix(a, "-S="), true
	case strings.HasPrefix(a, "--site="):
		return strings.TrimPrefix(a, "--site="), true
	}
	return "", false
}
