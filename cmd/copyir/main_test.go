package main

import (
	"bytes"
	"strings"
	"testing"

	"copyir/internal/driver"
	"copyir/internal/observ"
	"copyir/internal/pipeline"
)

func TestReadUIMode(t *testing.T) {
	cases := map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, " on ": uiModeOn, "off": uiModeOff}
	for in, want := range cases {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Fatalf("readUIMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatal("expected error for unknown ui mode")
	}
	if shouldUseTUI(uiModeAuto, true, 5) {
		t.Fatal("quiet runs must not draw the progress view")
	}
	if shouldUseTUI(uiModeAuto, false, 1) {
		t.Fatal("a single unit must not draw the progress view")
	}
}

func TestFirstPositive(t *testing.T) {
	if got := firstPositive(0, -1, 3, 4); got != 3 {
		t.Fatalf("firstPositive = %d, want 3", got)
	}
	if got := firstPositive(0); got != 0 {
		t.Fatalf("firstPositive = %d, want 0", got)
	}
}

func TestStageTimings(t *testing.T) {
	sess := &driver.Session{Results: []driver.UnitResult{
		{Timing: observ.Report{Phases: []observ.PhaseReport{{Name: "load", DurationMS: 1}, {Name: "lower", DurationMS: 2}}}},
		{Timing: observ.Report{Phases: []observ.PhaseReport{{Name: "lower", DurationMS: 3}}}},
	}}
	timings := collectTimings(sess)
	if got := toMillis(timings.Duration(pipeline.StageLower)); got != 5 {
		t.Fatalf("lower = %.1f ms, want 5", got)
	}
	if timings.Has(pipeline.StageExec) {
		t.Fatal("exec was never timed")
	}

	var buf bytes.Buffer
	printStageTimings(&buf, timings)
	want := "loaded 1.0 ms\nlowered 5.0 ms\ntotal 6.0 ms\n"
	if buf.String() != want {
		t.Fatalf("timings output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderVersionJSON(&buf, versionOptions{format: "json", showHash: true}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"tool": "copyir"`) || !strings.Contains(out, `"git_commit": "unknown"`) {
		t.Fatalf("unexpected payload: %s", out)
	}
}
