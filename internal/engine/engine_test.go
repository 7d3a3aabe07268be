package engine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/plantrace/internal/engine/classifier"
	"github.com/crimson-sun/plantrace/internal/engine/reducer"
	"github.com/crimson-sun/plantrace/internal/engine/testdata"
	"github.com/crimson-sun/plantrace/internal/model"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return base.Add(time.Duration(ms) * time.Millisecond)
}

func loadRecords(t *testing.T) []model.LogRecord {
	t.Helper()
	records, err := testdata.LoadRecords()
	require.NoError(t, err)
	return records
}

func process(t *testing.T, opts ...Option) *Result {
	t.Helper()
	res, err := New(classifier.Standard(), opts...).Process(context.Background(), loadRecords(t))
	require.NoError(t, err)
	return res
}

func TestProcessClassifiesEveryLine(t *testing.T) {
	res := process(t)

	assert.Equal(t, testdata.PlannerLogLines, res.Stats.Lines)
	assert.Equal(t, 0, res.Stats.Unparsed, "unparsed: %v", res.Stats.UnparsedSamples)
	assert.Equal(t, 0, res.Stats.Invalid)
	assert.Equal(t, testdata.PlannerLogLines, res.Stats.Events)
	assert.Equal(t, 5, res.Stats.Synthetic)
	assert.Len(t, res.Events, testdata.PlannerLogLines+5)

	assert.Equal(t, map[model.Kind]int{
		model.KindStartSession:  1,
		model.KindAppendPlan:    2,
		model.KindReplacePlan:   1,
		model.KindNewTask:       13,
		model.KindDecomposed:    2,
		model.KindPerformTask:   1,
		model.KindTaskReceived:  2,
		model.KindStatusChanged: 2,
		model.KindTaskCompleted: 6,
	}, res.Stats.ByKind)
}

func TestProcessTraces(t *testing.T) {
	res := process(t)

	var names []string
	for _, tr := range res.Traces() {
		names = append(names, tr.Task)
	}
	assert.Equal(t, []string{
		"DISP_MSG.3p.1",
		"A:MARK_GROUP_ACTIVE.3p.2",
		"MARK_GROUP_ACTIVE.3p.2",
		"CHECK_ROBOT_BATTERIES.R.1",
		"SET_DESTINATION.R.4",
		"DRE.R.5",
		"SEND_FM_MSG.R.6",
		"WAIT.3p.7",
		"PING.R.8",
		"A:WAIT.3p.7",
		"WRAP.3p.3",
		"SOLVE_MAPF.R.9",
		"CARRY_BIN.3p.10",
		"CHARGE.R.11",
	}, names)

	byTask := make(map[string]model.Trace)
	for _, tr := range res.Traces() {
		byTask[tr.Task] = tr
	}

	disp := byTask["DISP_MSG.3p.1"]
	assert.Equal(t, "AOApplicationSummary", disp.Type)
	assert.Equal(t, "AOApplicationSummary-DISP_MSG.3p.1", disp.Name)
	assert.Equal(t, at(200), disp.Finish)

	action := byTask["A:MARK_GROUP_ACTIVE.3p.2"]
	assert.Equal(t, model.OptypeAction, action.Optype)
	assert.Equal(t, "RS5", action.Agent)
	assert.Equal(t, "Completed", action.Status)
	assert.Equal(t, at(350), action.Start)
	assert.Equal(t, at(400), action.Finish)

	check := byTask["CHECK_ROBOT_BATTERIES.R.1"]
	assert.Equal(t, at(100), check.Start)
	assert.Equal(t, at(500), check.Finish)

	assert.Equal(t, "RS12", byTask["SET_DESTINATION.R.4"].Agent)
	assert.Equal(t, "RS8", byTask["DRE.R.5"].Agent)

	send := byTask["SEND_FM_MSG.R.6"]
	assert.Equal(t, "Assigned", send.Status)
	bin, _ := send.Args.Get("bin")
	assert.Equal(t, "tUnk", bin)

	reason, _ := byTask["WAIT.3p.7"].Args.Get("reason")
	assert.Equal(t, "its message was cancelled", reason)
	assert.Equal(t, "Failed: timeout", byTask["A:WAIT.3p.7"].Status)

	wrap := byTask["WRAP.3p.3"]
	assert.Equal(t, "DISP_MSG.3p.1", wrap.Origin)
	assert.Equal(t, "DISP_MSG.3p.1", wrap.Parent)
	assert.Equal(t, at(200), wrap.Start)
	assert.Equal(t, at(1400), wrap.Finish)

	for _, task := range []string{"SOLVE_MAPF.R.9", "CARRY_BIN.3p.10", "CHARGE.R.11"} {
		assert.Equal(t, at(1500), byTask[task].Finish, task)
	}
	assert.Equal(t, "WRAP.3p.3", byTask["CARRY_BIN.3p.10"].Parent)
}

func TestProcessSession(t *testing.T) {
	sess := process(t).Reduced.Session
	assert.Equal(t, "warehouse-7", sess.Site)
	assert.Equal(t, "planner", sess.Type)
	assert.Equal(t, at(0), sess.Start)
	assert.Equal(t, at(1500), sess.Finish)
}

func TestProcessPlan(t *testing.T) {
	tree, err := process(t).Plan()
	require.NoError(t, err)

	assert.Equal(t, 5, tree.Len())
	assert.Equal(t, []string{"SOLVE_MAPF.R.9", "DISP_MSG.3p.1", "CHARGE.R.11"}, tree.Roots())
	n, ok := tree.Node("WRAP.3p.3")
	require.True(t, ok)
	assert.Equal(t, []string{"CARRY_BIN.3p.10"}, n.Children)
}

func TestProcessSnapshots(t *testing.T) {
	assert.Empty(t, process(t).Snapshots)

	res := process(t, WithSnapshots(2, 0))
	require.Len(t, res.Snapshots, 2)
	assert.Equal(t, 2, res.Snapshots[0].Seq)
	assert.Equal(t, 4, res.Snapshots[1].Seq)

	first := res.Snapshots[0]
	assert.Equal(t, at(200), first.Time)
	assert.Len(t, first.Traces, 4)
	assert.Len(t, first.Open, 3)
	for _, tr := range first.Traces {
		assert.False(t, tr.Finish.After(at(200)), tr.Task)
	}

	// The final result is unaffected by snapshotting.
	assert.Len(t, res.Traces(), 14)
}

func TestProcessSnapshotLimit(t *testing.T) {
	res := process(t, WithSnapshots(1, 3))
	require.Len(t, res.Snapshots, 3)
	assert.Equal(t, 3, res.Snapshots[2].Seq)
}

func TestSnapshotName(t *testing.T) {
	assert.Equal(t, "trace-00012", SnapshotName("trace", 12))
}

func TestProcessEngineIsReusable(t *testing.T) {
	eng := New(classifier.Standard())
	records := loadRecords(t)
	a, err := eng.Process(context.Background(), records)
	require.NoError(t, err)
	b, err := eng.Process(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, a.Traces(), b.Traces())
}

func TestProcessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(classifier.Standard()).Process(ctx, loadRecords(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func record(line int, ms int, msg string, extra ...string) model.LogRecord {
	fields := map[string]any{
		"time":    at(ms).Format(time.RFC3339Nano),
		"scope":   "/planner",
		"message": msg,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		fields[extra[i]] = extra[i+1]
	}
	return model.LogRecord{Line: line, Fields: fields}
}

func TestProcessMalformedArguments(t *testing.T) {
	_, err := New(classifier.Standard()).Process(context.Background(), []model.LogRecord{
		record(1, 0, "0. [T] MOVE.R.1(tenant=RS8, 51.24.4) Pre:"),
	})
	var argErr *classifier.ArgumentError
	assert.True(t, errors.As(err, &argErr))
}

func TestProcessLifecycleViolation(t *testing.T) {
	_, err := New(classifier.Standard()).Process(context.Background(), []model.LogRecord{
		record(1, 0, "0. [T] MOVE.R.1 Pre:"),
		record(2, 10, "Task MOVE.R.1 status changed to Done", "agentId", "RS1"),
	})
	assert.ErrorIs(t, err, reducer.ErrNoPendingAction)
}

func TestDump(t *testing.T) {
	res := process(t)
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, res.Events))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, len(res.Events))
	assert.Equal(t, "     1         StartSession  10:00:00.000000  site=warehouse-7 type=planner", lines[0])
	assert.Contains(t, buf.String(), "[O] MARK_GROUP_ACTIVE.3p.2(fmID=870000000082862, groupID=47d113d4-c79b-42f7-8e24-17ffde564356) Pre: `RUN_AFTER(task=DISP_MSG.3p.1)` <- DISP_MSG.3p.1")
	assert.Contains(t, buf.String(), "         PlanChanged  ")
	assert.Contains(t, buf.String(), "SEND_FM_MSG.R.6 status=Assigned bin=tUnk message=890000000000001")
}
