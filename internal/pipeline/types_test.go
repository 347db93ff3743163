package pipeline

import (
	"testing"
	"time"
)

func TestTimingsAccumulate(t *testing.T) {
	var tm Timings
	if tm.Has(StageLower) || tm.Duration(StageLower) != 0 {
		t.Fatal("zero Timings must be empty")
	}
	tm.Add(StageLower, 2*time.Millisecond)
	tm.Add(StageLower, 3*time.Millisecond)
	tm.Add(StageBuild, time.Millisecond)
	if got := tm.Duration(StageLower); got != 5*time.Millisecond {
		t.Fatalf("lower = %v", got)
	}
	if got := tm.Sum(Stages...); got != 6*time.Millisecond {
		t.Fatalf("sum = %v", got)
	}
	var nilTimings *Timings
	nilTimings.Add(StageLoad, time.Second)
}

func TestRecorderAndEmit(t *testing.T) {
	var r Recorder
	Emit(&r, Event{File: "a.toml", Stage: StageLoad, Status: StatusWorking})
	Emit(nil, Event{File: "ignored"})
	ch := make(chan Event, 1)
	Emit(ChannelSink{Ch: ch}, Event{File: "b.toml", Status: StatusDone})
	if evs := r.Events(); len(evs) != 1 || evs[0].File != "a.toml" {
		t.Fatalf("recorded %+v", evs)
	}
	if ev := <-ch; ev.File != "b.toml" {
		t.Fatalf("channel got %+v", ev)
	}
}
