package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the most recent events in memory.
type RingTracer struct {
	gate
	mu      sync.Mutex
	events  []Event
	written uint64 // total events accepted

	out    io.Writer
	format Format
}

// NewRingTracer keeps up to capacity events (4096 when capacity <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{gate: gate{level}, events: make([]Event, capacity)}
}

// closeTo makes Close write the retained events to w.
func (t *RingTracer) closeTo(w io.Writer, format Format) {
	t.out, t.format = w, format
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.accepts(ev) {
		return
	}
	t.mu.Lock()
	stored := *ev
	stored.Seq = NextSeq()
	t.events[t.written%uint64(len(t.events))] = stored
	t.written++
	t.mu.Unlock()
}

// Snapshot returns the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	size := uint64(len(t.events))
	if t.written <= size {
		return append([]Event(nil), t.events[:t.written]...)
	}
	head := t.written % size
	out := make([]Event, 0, size)
	out = append(out, t.events[head:]...)
	return append(out, t.events[:head]...)
}

// Dropped is the number of events overwritten so far.
func (t *RingTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if size := uint64(len(t.events)); t.written > size {
		return t.written - size
	}
	return 0
}

// Dump writes the retained events to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	events := t.Snapshot()
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error { return nil }

// Close dumps to the configured output, if any.
func (t *RingTracer) Close() error {
	if t.out == nil {
		return nil
	}
	err := t.Dump(t.out, t.format)
	if c, ok := t.out.(*fileOutput); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	} else if f, ok := t.out.(interface{ Flush() error }); ok && err == nil {
		err = f.Flush()
	}
	t.out = nil
	return err
}
