// Package trace is the diagnostic event log of ctxview.
//
// The correlation engine, the contextual field index and the event stream
// report what they do (metadata resolution, overflow drains, name clashes,
// source exhaustion) as trace events instead of writing free-form log lines.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	ctxview view --trace=- --trace-level=detail WorkEvent rec.ctxr
//
// # Architecture
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer, dumped on demand
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only anomalies
//   - LevelPhase: run boundaries (resolve, complete)
//   - LevelDetail: stream and drain activity
//   - LevelDebug: everything including per-type index decisions
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	sp := trace.Begin(t, trace.ScopeRun, "complete")
//	defer sp.End("")
package trace
