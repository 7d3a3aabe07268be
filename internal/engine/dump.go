package engine

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/crimson-sun/plantrace/internal/engine/plan"
	"github.com/crimson-sun/plantrace/internal/model"
)

const (
	kindWidth   = 20
	detailWidth = 160
)

// Dump writes one line per event: source line, kind right-aligned, time and a
// short description. Synthetic markers show the line of the event they follow.
func Dump(w io.Writer, events []model.Event) error {
	bw := bufio.NewWriter(w)
	for _, ev := range events {
		kind := runewidth.FillLeft(string(ev.Kind), kindWidth)
		detail := runewidth.Truncate(describe(ev), detailWidth, "...")
		fmt.Fprintf(bw, "%6d %s  %s  %s\n", ev.Line, kind, ev.Time.Format("15:04:05.000000"), detail)
	}
	return bw.Flush()
}

func describe(ev model.Event) string {
	switch ev.Kind {
	case model.KindNewTask:
		s := plan.Line(ev)
		if ev.Parent != "" {
			s += " <- " + ev.Parent
		}
		return s
	case model.KindStartSession:
		return fmt.Sprintf("site=%s type=%s", ev.Site, ev.SessionType)
	case model.KindPlanChanged, model.KindAppendPlan, model.KindReplacePlan:
		return ""
	}
	var parts []string
	for _, kv := range [][2]string{
		{"", ev.Task},
		{"agent=", ev.Agent},
		{"status=", ev.Status},
		{"bin=", ev.Bin},
		{"message=", ev.MessageID},
		{"reason=", ev.Extra["reason"]},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+kv[1])
		}
	}
	return strings.Join(parts, " ")
}
