package trace

import "errors"

// MultiTracer fans events out to several tracers.
type MultiTracer struct {
	gate
	tracers []Tracer
}

func NewMultiTracer(level Level, tracers ...Tracer) *MultiTracer {
	return &MultiTracer{gate: gate{level}, tracers: tracers}
}

// Emit hands each tracer its own copy since tracers stamp sequence numbers.
func (t *MultiTracer) Emit(ev *Event) {
	for _, tr := range t.tracers {
		cp := *ev
		tr.Emit(&cp)
	}
}

func (t *MultiTracer) Flush() error {
	return t.each(Tracer.Flush)
}

func (t *MultiTracer) Close() error {
	return t.each(Tracer.Close)
}

func (t *MultiTracer) each(fn func(Tracer) error) error {
	errs := make([]error, 0, len(t.tracers))
	for _, tr := range t.tracers {
		errs = append(errs, fn(tr))
	}
	return errors.Join(errs...)
}

// Ring returns the first ring tracer, or nil.
func (t *MultiTracer) Ring() *RingTracer {
	for _, tr := range t.tracers {
		if r, ok := tr.(*RingTracer); ok {
			return r
		}
	}
	return nil
}
