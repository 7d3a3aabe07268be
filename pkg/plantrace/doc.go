// Package plantrace reconstructs task timelines from planner NDJSON logs and
// exports them as Chrome trace-event documents.
//
// Quick start:
//
//	t, err := plantrace.New(plantrace.WithPhase("begin-end"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	run, err := t.Parse(ctx, f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	doc, _ := run.Chrome()
//	os.WriteFile("trace.json", doc, 0o644)
//
// A Tracer holds no per-log state and is safe for concurrent use.
package plantrace
