// Package trace provides the trace log of a bbtrace run.
//
// Every execution of an instrumented block produces one Record. Sinks render
// records and write them to the log; a record is always written whole, so
// lines from concurrently executing threads never interleave.
//
// # Verbosity
//
// How much of a record is rendered is fixed when the sink is built:
//
//   - Terse: module-relative offset only
//   - Annotated: module name and offset
//   - Full: header with time and thread, followed by the block's cached disassembly
//
// # Sinks
//
//   - StreamSink: immediate write and flush to an io.Writer (the log file)
//   - RingSink: last N records in memory, dumped on fatal errors
//   - MultiSink: fans out to several sinks
//   - Nop: discards everything
//
// # Context Propagation
//
//	ctx = trace.WithSink(ctx, sink)
//	s := trace.FromContext(ctx)
package trace
