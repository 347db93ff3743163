// Package trace records what the lowering pipeline is doing so slow or stuck
// runs can be diagnosed.
//
// # Usage
//
//	copyir lower --trace=- --trace-level=detail units/*.toml
//
// # Tracers
//
//   - Nop: zero-overhead tracer used when tracing is off
//   - StreamTracer: writes every event immediately (file or stderr)
//   - RingTracer: keeps the last N events; in ring mode they are written out
//     when the tracer is closed
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// LevelPhase shows driver and pass boundaries, LevelDetail adds one span per
// unit file, and LevelDebug adds one event per copy site as it is lowered
// and executed (see Site).
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span, ctx := trace.Start(ctx, trace.ScopePass, "lower")
//	defer span.End("")
package trace
