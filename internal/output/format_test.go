package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/plantrace/internal/model"
	"github.com/crimson-sun/plantrace/internal/output/chrome"
)

func artifact() Artifact {
	t0 := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	tr := model.NewTrace(model.Event{Task: "MOVE.R.1", Agent: "RS3"}, t0, t0.Add(time.Second))
	return Artifact{Name: "trace", Doc: chrome.New(chrome.Config{}).Export([]model.Trace{tr}, nil)}
}

func TestMarshalCompact(t *testing.T) {
	data, err := Marshal(artifact(), false)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\n")

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "ms", m["displayTimeUnit"])
}

func TestMarshalPretty(t *testing.T) {
	data, err := Marshal(artifact(), true)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, []byte("\n  \"traceEvents\"")))
}
