package main

import (
	"fmt"
	"io"
	"time"

	"copyir/internal/driver"
	"copyir/internal/pipeline"
)

// collectTimings sums per-stage durations over every unit of a session.
func collectTimings(sess *driver.Session) pipeline.Timings {
	var timings pipeline.Timings
	if sess == nil {
		return timings
	}
	for i := range sess.Results {
		for _, ph := range sess.Results[i].Timing.Phases {
			dur := time.Duration(ph.DurationMS * float64(time.Millisecond))
			timings.Add(pipeline.Stage(ph.Name), dur)
		}
	}
	return timings
}

func printStageTimings(out io.Writer, timings pipeline.Timings) {
	if out == nil {
		return
	}
	labels := map[pipeline.Stage]string{
		pipeline.StageLoad:  "loaded",
		pipeline.StageCheck: "checked",
		pipeline.StageBuild: "built",
		pipeline.StageLower: "lowered",
		pipeline.StageExec:  "ran",
	}
	for _, stage := range pipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		fmt.Fprintf(out, "%s %.1f ms\n", labels[stage], toMillis(timings.Duration(stage)))
	}
	total := timings.Sum(pipeline.Stages...)
	fmt.Fprintf(out, "total %.1f ms\n", toMillis(total))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
