package model

import (
	"fmt"
	"strconv"
	"time"
)

// LogRecord is one decoded NDJSON line as produced by a connector.
// Fields holds the decoded object unchanged; the classifier decides which keys matter.
type LogRecord struct {
	Line   int            // 1-based line number in the source
	Fields map[string]any // decoded JSON object
}

// Has reports whether key is present in the record.
func (r LogRecord) Has(key string) bool {
	_, ok := r.Fields[key]
	return ok
}

// String returns the value at key as a string. Non-string scalars are formatted;
// missing keys and nulls yield "".
func (r LogRecord) String(key string) string {
	v, ok := r.Fields[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Int returns the numeric value at key, or 0.
func (r LogRecord) Int(key string) int64 {
	switch x := r.Fields[key].(type) {
	case float64:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		return 0
	}
}

// Strings returns the list at key with every element formatted as a string.
func (r LogRecord) Strings(key string) []string {
	list, ok := r.Fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprint(v))
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses an ISO-8601 timestamp with an optional trailing Z.
// Timestamps without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
