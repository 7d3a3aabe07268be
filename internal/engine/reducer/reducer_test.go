package reducer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/plantrace/internal/engine/normalizer"
	"github.com/crimson-sun/plantrace/internal/model"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func newTask(task string, sec int, parent string) model.Event {
	return model.Event{Kind: model.KindNewTask, Task: task, Optype: model.OptypeTask, Parent: parent, Time: at(sec)}
}

func event(kind model.Kind, task string, sec int) model.Event {
	return model.Event{Kind: kind, Task: task, Time: at(sec)}
}

func reduce(t *testing.T, events ...model.Event) Result {
	t.Helper()
	res, err := Reduce(normalizer.Normalize(events))
	require.NoError(t, err)
	return res
}

func traceOf(t *testing.T, res Result, task string) model.Trace {
	t.Helper()
	for _, tr := range res.Traces {
		if tr.Task == task {
			return tr
		}
	}
	t.Fatalf("no trace for %s", task)
	return model.Trace{}
}

func TestNewTaskCompletedPair(t *testing.T) {
	res := reduce(t,
		newTask("MOVE.R.1", 1, ""),
		event(model.KindTaskCompleted, "MOVE.R.1", 7),
	)
	require.Len(t, res.Traces, 1)
	tr := res.Traces[0]
	assert.True(t, tr.Start.Equal(at(1)))
	assert.True(t, tr.Finish.Equal(at(7)))
	assert.Equal(t, "MOVE", tr.Type)
	assert.Empty(t, res.Open)
	assert.Contains(t, res.Closed, "MOVE.R.1")
}

func TestNewTaskIsIdempotent(t *testing.T) {
	r := New()
	for _, ev := range []model.Event{
		newTask("A.R.1", 1, ""),
		event(model.KindDecomposed, "A.R.1", 2),
		newTask("A.R.1", 3, ""),
	} {
		require.NoError(t, r.Apply(ev))
	}
	assert.Equal(t, 1, r.OpenCount())
	o, ok := r.open.get("A.R.1")
	require.True(t, ok)
	assert.True(t, o.Start.Equal(at(1)), "start kept")
	assert.False(t, o.Pending(), "reset time cleared")

	require.NoError(t, r.Apply(event(model.KindPlanChanged, "", 3)))
	require.NoError(t, r.Apply(event(model.KindTaskCompleted, "A.R.1", 5)))
	res := r.Finish()
	require.Len(t, res.Traces, 1)
	assert.True(t, res.Traces[0].Start.Equal(at(1)))
	assert.True(t, res.Traces[0].Finish.Equal(at(5)))
}

func TestPlanRevisionClosesSupersededTasks(t *testing.T) {
	res := reduce(t,
		newTask("A.R.1", 1, ""),
		newTask("B.R.2", 2, "A.R.1"),
		event(model.KindDecomposed, "A.R.1", 3),
		event(model.KindReplacePlan, "", 4),
		newTask("A.R.1", 5, ""),
	)

	require.Len(t, res.Traces, 2)
	b := res.Traces[0]
	assert.Equal(t, "B.R.2", b.Task)
	assert.Equal(t, "A.R.1", b.Parent)
	assert.True(t, b.Start.Equal(at(2)))
	assert.True(t, b.Finish.Equal(at(4)), "closed at the replace time")

	a := res.Traces[1]
	assert.Equal(t, "A.R.1", a.Task)
	assert.True(t, a.Start.Equal(at(1)))
	assert.True(t, a.Finish.Equal(at(5)), "force-closed at the last event")

	require.Len(t, res.Open, 1)
	assert.Equal(t, "A.R.1", res.Open[0].Task)
	assert.Contains(t, res.Closed, "B.R.2")
}

func TestDecomposedIgnoresUnknownTask(t *testing.T) {
	r := New()
	require.NoError(t, r.Apply(event(model.KindDecomposed, "X.R.1", 1)))
	assert.Equal(t, 0, r.OpenCount())
}

func TestClosedTaskReopensAsNewInterval(t *testing.T) {
	res := reduce(t,
		newTask("A.R.1", 1, ""),
		event(model.KindTaskCompleted, "A.R.1", 2),
		newTask("A.R.1", 3, ""),
		event(model.KindTaskCompleted, "A.R.1", 4),
	)
	require.Len(t, res.Traces, 2)
	assert.True(t, res.Traces[1].Start.Equal(at(3)))
}

func TestCompletionMergesFields(t *testing.T) {
	done := event(model.KindTaskCompleted, "SEND_FM_MSG.R.Z", 6)
	done.Agent = "RS4"
	done.Status = "Assigned"
	done.Bin = "tUnk"
	done.MessageID = "890000000000001"
	done.Extra = map[string]string{"reason": "its message was cancelled"}

	nt := newTask("SEND_FM_MSG.R.Z", 1, "")
	nt.Args = model.Args{{Key: "message", Value: "890000000000001"}}
	res := reduce(t, nt, done)

	tr := traceOf(t, res, "SEND_FM_MSG.R.Z")
	assert.Equal(t, map[string]string{
		"message":   "890000000000001",
		"agent":     "RS4",
		"status":    "Assigned",
		"bin":       "tUnk",
		"messageID": "890000000000001",
		"reason":    "its message was cancelled",
	}, tr.Args.Map())
	assert.Equal(t, "RS4", tr.Agent)
	assert.Equal(t, "Assigned", tr.Status)
	assert.NotContains(t, nt.Args.Map(), "agent", "source event untouched")
}

func TestCompletionOfUnopenedTaskIsIgnored(t *testing.T) {
	res := reduce(t, event(model.KindTaskCompleted, "GHOST.R.1", 1))
	assert.Empty(t, res.Traces)
}

func TestStatusChangedEmitsActionTrace(t *testing.T) {
	received := event(model.KindTaskReceived, "SELF.R.9", 3)
	received.Agent = "RS2"
	changed := event(model.KindStatusChanged, "SELF.R.9", 8)
	changed.Status = "Completed"
	changed.Agent = "RS5"

	res := reduce(t,
		newTask("SELF.R.9", 1, "ROOT.R.1"),
		received,
		changed,
		event(model.KindTaskCompleted, "SELF.R.9", 9),
	)

	action := traceOf(t, res, "A:SELF.R.9")
	assert.Equal(t, model.OptypeAction, action.Optype)
	assert.Equal(t, "RS2", action.Agent, "receiving agent wins")
	assert.Equal(t, "Completed", action.Status)
	assert.Equal(t, "ROOT.R.1", action.Parent)
	assert.True(t, action.Start.Equal(at(3)))
	assert.True(t, action.Finish.Equal(at(8)))

	task := traceOf(t, res, "SELF.R.9")
	assert.Equal(t, model.OptypeTask, task.Optype)
}

func TestStatusChangedForArchivedTask(t *testing.T) {
	changed := event(model.KindStatusChanged, "SELF.R.9", 5)
	changed.Agent = "RS5"
	res := reduce(t,
		newTask("SELF.R.9", 1, ""),
		event(model.KindTaskCompleted, "SELF.R.9", 2),
		event(model.KindTaskReceived, "SELF.R.9", 3),
		changed,
	)
	assert.Equal(t, "RS5", traceOf(t, res, "A:SELF.R.9").Agent)
}

func TestStatusChangedWithoutPendingAction(t *testing.T) {
	_, err := Reduce([]model.Event{
		newTask("SELF.R.9", 1, ""),
		event(model.KindStatusChanged, "SELF.R.9", 2),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPendingAction))
	assert.Contains(t, err.Error(), "SELF.R.9")
}

func TestStatusChangedForUnknownTask(t *testing.T) {
	_, err := Reduce([]model.Event{
		event(model.KindTaskReceived, "X.R.1", 1),
		event(model.KindStatusChanged, "X.R.1", 2),
	})
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestPendingActionConsumedOnce(t *testing.T) {
	_, err := Reduce([]model.Event{
		newTask("SELF.R.9", 1, ""),
		event(model.KindTaskReceived, "SELF.R.9", 2),
		event(model.KindStatusChanged, "SELF.R.9", 3),
		event(model.KindStatusChanged, "SELF.R.9", 4),
	})
	assert.ErrorIs(t, err, ErrNoPendingAction)
}

func TestSession(t *testing.T) {
	first := model.Event{Kind: model.KindStartSession, Site: "warehouse-7", SessionType: "planner", CLIArgs: []string{"planner", "-S", "warehouse-7"}, Time: at(0)}
	second := first
	second.Site = "other"
	second.Time = at(3)

	res := reduce(t, first, newTask("A.R.1", 1, ""), second, event(model.KindTaskCompleted, "A.R.1", 9))
	assert.Equal(t, "warehouse-7", res.Session.Site)
	assert.Equal(t, "planner", res.Session.Type)
	assert.True(t, res.Session.Start.Equal(at(0)))
	assert.True(t, res.Session.Finish.Equal(at(9)))
	assert.True(t, res.Last.Equal(at(9)))
}

func TestForceCloseKeepsCreationOrder(t *testing.T) {
	res := reduce(t,
		newTask("C.R.3", 1, ""),
		newTask("A.R.1", 2, ""),
		newTask("B.R.2", 3, ""),
		event(model.KindAppendPlan, "", 10),
	)
	var got []string
	for _, tr := range res.Traces {
		got = append(got, tr.Task)
		assert.True(t, tr.Finish.Equal(at(10)))
	}
	assert.Equal(t, []string{"C.R.3", "A.R.1", "B.R.2"}, got)
}

func TestLookup(t *testing.T) {
	res := reduce(t,
		newTask("A.R.1", 1, ""),
		newTask("B.R.2", 2, "A.R.1"),
		event(model.KindTaskCompleted, "A.R.1", 3),
	)
	_, ok := res.Lookup("A.R.1")
	assert.True(t, ok, "archived")
	_, ok = res.Lookup("B.R.2")
	assert.True(t, ok, "open")
	_, ok = res.Lookup("Z.R.9")
	assert.False(t, ok)
}
