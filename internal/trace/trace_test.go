package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeUnit, false},
		{LevelDetail, ScopeUnit, true},
		{LevelDetail, ScopeNode, false},
		{LevelDebug, ScopeNode, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatText)

	span := Begin(tr, ScopePass, "lower", 0)
	Point(tr, ScopeNode, "hidden", "", span.ID())
	span.WithExtra("units", "2").WithExtra("calls", "1").End("ok")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("node-scope event leaked at detail level:\n%s", out)
	}
	if !strings.Contains(out, "→ lower") || !strings.Contains(out, "← lower (ok) {calls=1, units=2}") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatNDJSON)
	Failure(tr, "unit", errors.New("boom"), 0)

	var ev map[string]any
	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatalf("invalid ndjson %q: %v", buf.String(), err)
	}
	if ev["kind"] != "error" || ev["detail"] != "boom" {
		t.Fatalf("unexpected event: %v", ev)
	}
}

func TestRingTracerWraps(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(r, ScopeNode, name, "", 0)
	}
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Name != "b" || snap[1].Name != "c" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestMultiTracerFansOut(t *testing.T) {
	var buf bytes.Buffer
	stream := NewStreamTracer(&buf, LevelPhase, FormatText)
	ring := NewRingTracer(8, LevelPhase)
	m := NewMultiTracer(LevelPhase, stream, ring)
	Point(m, ScopeDriver, "start", "", 0)
	if !strings.Contains(buf.String(), "start") {
		t.Fatalf("stream missed the event")
	}
	if m.Ring() != ring || len(ring.Snapshot()) != 1 {
		t.Fatalf("ring missed the event")
	}
}

func TestStartPropagatesParent(t *testing.T) {
	ring := NewRingTracer(8, LevelDebug)
	ctx := WithTracer(context.Background(), ring)
	outer, ctx := Start(ctx, ScopePass, "outer")
	inner, _ := Start(ctx, ScopeUnit, "inner")
	inner.End("")
	outer.End("")

	snap := ring.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected 4 events, got %d", len(snap))
	}
	if snap[1].Name != "inner" || snap[1].ParentID != outer.ID() {
		t.Fatalf("inner span parent = %d, want %d", snap[1].ParentID, outer.ID())
	}
}

func TestNewOffReturnsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("off config should produce a disabled tracer")
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("invalid level accepted")
	}
}

func TestRingModeDumpsOnClose(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPhase, Mode: ModeRing, Output: &buf, RingSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"load", "check", "lower"} {
		Point(tr, ScopePass, name, "", 0)
	}
	if buf.Len() != 0 {
		t.Fatalf("ring mode wrote before Close:\n%s", buf.String())
	}
	ring := tr.(*RingTracer)
	if ring.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", ring.Dropped())
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "load") || !strings.Contains(out, "check") || !strings.Contains(out, "lower") {
		t.Fatalf("unexpected dump:\n%s", out)
	}
}

func TestParseModeAndFormat(t *testing.T) {
	for _, s := range []string{"stream", "RING", " both "} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q): %v", s, err)
		}
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Errorf("invalid mode accepted")
	}
	if got := formatForPath("run.ndjson"); got != FormatNDJSON {
		t.Errorf("formatForPath(ndjson) = %v", got)
	}
}

func TestHeartbeatStops(t *testing.T) {
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Fatalf("heartbeat started on a disabled tracer")
	}
	ring := NewRingTracer(64, LevelPhase)
	h := StartHeartbeat(ring, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for len(ring.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	snap := ring.Snapshot()
	if len(snap) == 0 || snap[0].Kind != KindHeartbeat {
		t.Fatalf("no heartbeat recorded: %+v", snap)
	}
}

func TestSiteEventsCarryOrigin(t *testing.T) {
	var buf bytes.Buffer
	Site(NewStreamTracer(&buf, LevelDetail, FormatText), "lowered", 3, "checked", 0)
	if buf.Len() != 0 {
		t.Fatalf("site event leaked at detail level: %s", buf.String())
	}
	Site(NewStreamTracer(&buf, LevelDebug, FormatText), "lowered", 3, "checked", 0)
	if !strings.Contains(buf.String(), "• lowered copy#3 (checked)") {
		t.Fatalf("unexpected output: %s", buf.String())
	}

	buf.Reset()
	Site(NewStreamTracer(&buf, LevelDebug, FormatNDJSON), "ran", 7, "", 0)
	var ev map[string]any
	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatal(err)
	}
	if ev["origin"] != float64(7) || ev["scope"] != "node" {
		t.Fatalf("unexpected event: %v", ev)
	}
}
