package observ

import (
	"strings"
	"sync"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	done := tm.Track("load")
	done("2 units")
	idx := tm.Begin("lower")
	tm.End(idx, "")
	tm.End(42, "ignored")

	rep := tm.Report()
	if len(rep.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(rep.Phases))
	}
	if rep.Phases[0].Name != "load" || rep.Phases[0].Note != "2 units" {
		t.Fatalf("unexpected first phase: %+v", rep.Phases[0])
	}
	sum := tm.Summary()
	if !strings.Contains(sum, "load") || !strings.Contains(sum, "// 2 units") || !strings.Contains(sum, "total") {
		t.Fatalf("unexpected summary:\n%s", sum)
	}
}

func TestTimerConcurrentUse(t *testing.T) {
	tm := NewTimer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tm.Track("unit")("")
		}()
	}
	wg.Wait()
	if n := len(tm.Report().Phases); n != 8 {
		t.Fatalf("expected 8 phases, got %d", n)
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	tm.Track("x")("")
	if rep := tm.Report(); len(rep.Phases) != 0 {
		t.Fatalf("nil timer reported phases")
	}
}
