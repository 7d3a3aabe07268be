package model

import (
	"fmt"
	"strings"
)

// Arg is one key/value pair of a parenthesized argument list.
type Arg struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Args is an ordered argument list. Positional lists use the keys arg0, arg1, ...
type Args []Arg

// Get returns the value for key.
func (a Args) Get(key string) (string, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return "", false
}

// Set returns a copy with key replaced or appended.
func (a Args) Set(key, value string) Args {
	out := a.Clone()
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Arg{Key: key, Value: value})
}

// Delete removes key, keeping the order of the rest.
func (a Args) Delete(key string) Args {
	var out Args
	for _, arg := range a {
		if arg.Key != key {
			out = append(out, arg)
		}
	}
	return out
}

// Clone returns an independent copy.
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	return append(Args(nil), a...)
}

// Map returns the arguments as a plain map.
func (a Args) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, arg := range a {
		m[arg.Key] = arg.Value
	}
	return m
}

// Positional reports whether the list was written without keys.
func (a Args) Positional() bool {
	if len(a) == 0 {
		return false
	}
	for i, arg := range a {
		if arg.Key != fmt.Sprintf("arg%d", i) {
			return false
		}
	}
	return true
}

// String renders the list the way the planner writes it.
func (a Args) String() string {
	parts := make([]string, len(a))
	if a.Positional() {
		for i, arg := range a {
			parts[i] = arg.Value
		}
		return strings.Join(parts, " ")
	}
	for i, arg := range a {
		parts[i] = arg.Key + "=" + arg.Value
	}
	return strings.Join(parts, ", ")
}

// Pre is a named precondition with its own argument list.
type Pre struct {
	Name string `json:"name"`
	Args Args   `json:"args,omitempty"`
	Call bool   `json:"call,omitempty"` // written with parentheses, e.g. `STATE_READY()`
}

// Pres is an ordered precondition list.
type Pres []Pre

// Key addresses the i-th precondition as "ordinal.name".
func (p Pres) Key(i int) string {
	return fmt.Sprintf("%d.%s", i, p[i].Name)
}

// Map returns the preconditions keyed by ordinal.name.
func (p Pres) Map() map[string]map[string]string {
	m := make(map[string]map[string]string, len(p))
	for i, pre := range p {
		m[p.Key(i)] = pre.Args.Map()
	}
	return m
}

// String renders the list as backtick-quoted preconditions.
func (p Pres) String() string {
	parts := make([]string, len(p))
	for i, pre := range p {
		s := pre.Name
		if pre.Call || len(pre.Args) > 0 {
			s += "(" + pre.Args.String() + ")"
		}
		parts[i] = "`" + s + "`"
	}
	return strings.Join(parts, ", ")
}
