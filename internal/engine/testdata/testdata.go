// Package testdata holds a planner log that exercises every message shape the
// standard format recognizes.
package testdata

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"

	"github.com/crimson-sun/plantrace/internal/connector"
	"github.com/crimson-sun/plantrace/internal/model"
)

//go:embed planner.jsonl
var plannerLog []byte

// PlannerLogLines is the number of records in the planner log.
const PlannerLogLines = 30

// PlannerLog returns a reader over the embedded planner log.
func PlannerLog() io.Reader {
	return bytes.NewReader(plannerLog)
}

// LoadRecords decodes the planner log.
func LoadRecords() ([]model.LogRecord, error) {
	batch, err := connector.Decode(context.Background(), PlannerLog(), 0)
	if err != nil {
		return nil, fmt.Errorf("decode planner.jsonl: %w", err)
	}
	return batch.Records, nil
}
