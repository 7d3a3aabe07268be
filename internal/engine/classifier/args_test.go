package classifier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/plantrace/internal/model"
)

var argsExamples = []struct {
	input string
	want  map[string]string
}{
	{"RS5", map[string]string{"arg0": "RS5"}},
	{"tenant=RS8, node=51.24.4-WS-4-N-10000001530-1f0", map[string]string{"tenant": "RS8", "node": "51.24.4-WS-4-N-10000001530-1f0"}},
	{"RS1 other", map[string]string{"arg0": "RS1", "arg1": "other"}},
	{"task=CARRY_BIN.3p.4n", map[string]string{"task": "CARRY_BIN.3p.4n"}},
	{"w=0.5, e=[0.01500, 0.02500], n=3", map[string]string{"w": "0.5", "e": "[0.01500, 0.02500]", "n": "3"}},
}

func TestParseArgs(t *testing.T) {
	for _, ex := range argsExamples {
		args, err := ParseArgs(ex.input)
		require.NoError(t, err, ex.input)
		assert.Equal(t, ex.want, args.Map(), ex.input)
	}
}

func TestRenderArgsRoundTrip(t *testing.T) {
	for _, ex := range argsExamples {
		args, err := ParseArgs(ex.input)
		require.NoError(t, err)
		assert.Equal(t, ex.input, args.String())
	}
}

func TestParseArgsKeepsOrder(t *testing.T) {
	args, err := ParseArgs("z=1, a=2, m=3")
	require.NoError(t, err)
	assert.Equal(t, model.Args{{Key: "z", Value: "1"}, {Key: "a", Value: "2"}, {Key: "m", Value: "3"}}, args)
}

func TestParseArgsEmpty(t *testing.T) {
	args, err := ParseArgs("  ")
	require.NoError(t, err)
	assert.Nil(t, args)
}

func TestParseArgsMissingEquals(t *testing.T) {
	_, err := ParseArgs("tenant=RS8, oops")
	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, "oops", argErr.Fragment)
	assert.Contains(t, err.Error(), "oops")
}

var presExamples = []struct {
	input string
	want  map[string]map[string]string
}{
	{
		"`IF_VALID(task=CARRY_BIN.3p.4n)`, `CAN_LEASE_NODE(tenant=RS8, node=51.24.4-WS-4-N-10000001530-1f0)`",
		map[string]map[string]string{
			"0.IF_VALID":       {"task": "CARRY_BIN.3p.4n"},
			"1.CAN_LEASE_NODE": {"tenant": "RS8", "node": "51.24.4-WS-4-N-10000001530-1f0"},
		},
	},
	{
		"`RUN_AFTER(task=MARK_GROUP_ACTIVE.3p.1d)`, `IS_MESSAGE_GROUP_ACTIVE(fmID=870000000082862, groupID=47d113d4-c79b-42f7-8e24-17ffde564356)`",
		map[string]map[string]string{
			"0.RUN_AFTER":               {"task": "MARK_GROUP_ACTIVE.3p.1d"},
			"1.IS_MESSAGE_GROUP_ACTIVE": {"fmID": "870000000082862", "groupID": "47d113d4-c79b-42f7-8e24-17ffde564356"},
		},
	},
	{
		"`RUN_AFTER(task=MARK_GROUP_ACTIVE.3p.1d)`, `IS_MESSAGE_GROUP_ACTIVE(fmID=870000000082862, groupID=47d113d4-c79b-42f7-8e24-17ffde564356)`, `AFTER_TASK_TICK()`, `NO_BIN`",
		map[string]map[string]string{
			"0.RUN_AFTER":               {"task": "MARK_GROUP_ACTIVE.3p.1d"},
			"1.IS_MESSAGE_GROUP_ACTIVE": {"fmID": "870000000082862", "groupID": "47d113d4-c79b-42f7-8e24-17ffde564356"},
			"2.AFTER_TASK_TICK":         {},
			"3.NO_BIN":                  {},
		},
	},
}

func TestParsePres(t *testing.T) {
	for _, ex := range presExamples {
		pres, err := ParsePres(ex.input)
		require.NoError(t, err, ex.input)
		assert.Equal(t, ex.want, pres.Map(), ex.input)
	}
}

func TestRenderPresRoundTrip(t *testing.T) {
	for _, ex := range presExamples {
		pres, err := ParsePres(ex.input)
		require.NoError(t, err)
		assert.Equal(t, ex.input, pres.String())
	}
}

func TestParsePresSameNameTwice(t *testing.T) {
	pres, err := ParsePres("`RUN_AFTER(task=A.B.1)`, `RUN_AFTER(task=A.B.2)`")
	require.NoError(t, err)
	m := pres.Map()
	assert.Equal(t, "A.B.1", m["0.RUN_AFTER"]["task"])
	assert.Equal(t, "A.B.2", m["1.RUN_AFTER"]["task"])
}

func TestSplitTopLevel(t *testing.T) {
	assert.Equal(t, []string{"a=1", "b=[1, 2]", "c=(x, y)"}, splitTopLevel("a=1, b=[1, 2], c=(x, y)", ", "))
	assert.Equal(t, []string{"single"}, splitTopLevel("single", ", "))
}
