package trace

import (
	"io"
	"sync"
)

// StreamTracer writes each event as it is emitted.
type StreamTracer struct {
	gate
	mu     sync.Mutex
	w      io.Writer
	format Format
}

func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	return &StreamTracer{gate: gate{level}, w: w, format: format}
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.accepts(ev) {
		return
	}
	ev.Seq = NextSeq()
	data := FormatEvent(ev, t.format)
	t.mu.Lock()
	// A failed trace write never fails lowering.
	_, _ = t.w.Write(data)
	t.mu.Unlock()
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes and closes owned outputs. Writers passed in by the caller,
// such as the standard streams or a test buffer, are never closed.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.w.(*fileOutput); ok {
		return c.Close()
	}
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
