package trace

import "context"

// state is what a context carries: the tracer and the innermost span.
type state struct {
	tracer Tracer
	span   SpanContext
}

type stateKey struct{}

func stateOf(ctx context.Context) state {
	if ctx != nil {
		if st, ok := ctx.Value(stateKey{}).(state); ok {
			return st
		}
	}
	return state{tracer: Nop}
}

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	return stateOf(ctx).tracer
}

// WithTracer attaches t to ctx and resets the parent span.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, stateKey{}, state{tracer: t})
}

// SpanContext identifies the innermost open span.
type SpanContext struct {
	SpanID uint64
	GID    uint64
}

// CurrentSpan returns the innermost span recorded in ctx, or the zero value.
func CurrentSpan(ctx context.Context) SpanContext {
	return stateOf(ctx).span
}

// Start begins a span under the span recorded in ctx. The returned context
// makes the new span the parent of nested work.
func Start(ctx context.Context, scope Scope, name string) (*Span, context.Context) {
	st := stateOf(ctx)
	span := Begin(st.tracer, scope, name, st.span.SpanID)
	if span.ID() == 0 {
		return span, ctx
	}
	st.span = SpanContext{SpanID: span.ID(), GID: span.gid}
	return span, context.WithValue(ctx, stateKey{}, st)
}
