package model

import "time"

// Kind tags a typed event.
type Kind string

const (
	KindAppendPlan    Kind = "AppendPlan"
	KindReplacePlan   Kind = "ReplacePlan"
	KindDecomposed    Kind = "Decomposed"
	KindNewTask       Kind = "NewTask"
	KindPlanChanged   Kind = "PlanChanged"
	KindPerformTask   Kind = "PerformTask"
	KindStatusChanged Kind = "StatusChanged"
	KindTaskReceived  Kind = "TaskReceived"
	KindTaskCompleted Kind = "TaskCompleted"
	KindStartSession  Kind = "StartSession"
)

// Optype says what a plan node is.
type Optype string

const (
	OptypeTask     Optype = "T"
	OptypeOperator Optype = "O"
	OptypeAction   Optype = "A"
	OptypePre      Optype = "P"
)

// Event is a classified log record. Only the fields relevant to Kind are set;
// anything a rule extracts beyond them goes to Extra.
type Event struct {
	Kind  Kind      `json:"kind"`
	Time  time.Time `json:"time"`
	Scope string    `json:"scope,omitempty"`
	Tick  int64     `json:"tick,omitempty"`
	Line  int       `json:"line,omitempty"`

	// NewTask, Decomposed, dispatch and completion events
	Task   string `json:"task,omitempty"`
	Optype Optype `json:"optype,omitempty"`
	No     int    `json:"no,omitempty"`
	Parent string `json:"parent,omitempty"`
	Origin string `json:"origin,omitempty"`
	Args   Args   `json:"args,omitempty"`
	Pres   Pres   `json:"pres,omitempty"`

	Agent     string `json:"agent,omitempty"`
	Status    string `json:"status,omitempty"`
	MessageID string `json:"messageID,omitempty"`
	Bin       string `json:"bin,omitempty"`

	// StartSession
	Site        string   `json:"site,omitempty"`
	SessionType string   `json:"type,omitempty"`
	CLIArgs     []string `json:"cliArgs,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// Session identifies one planner run.
type Session struct {
	Site   string    `json:"site"`
	Type   string    `json:"type"`
	Args   []string  `json:"args,omitempty"`
	Start  time.Time `json:"start"`
	Finish time.Time `json:"finish"`
}

// Stats counts what happened to the input while classifying it.
type Stats struct {
	Lines           int          `json:"lines"`
	Malformed       int          `json:"malformed"` // not valid JSON
	Invalid         int          `json:"invalid"`   // missing scope, message or time
	Unparsed        int          `json:"unparsed"`  // no rule matched
	Events          int          `json:"events"`
	Synthetic       int          `json:"synthetic"` // injected PlanChanged markers
	ByKind          map[Kind]int `json:"byKind,omitempty"`
	UnparsedSamples []string     `json:"unparsedSamples,omitempty"`
}
