package trace

// nopSink discards every record.
type nopSink struct{}

// Emit does nothing.
func (nopSink) Emit(*Record) error { return nil }

// Flush does nothing.
func (nopSink) Flush() error { return nil }

// Close does nothing.
func (nopSink) Close() error { return nil }

// Verbosity returns Terse.
func (nopSink) Verbosity() Verbosity { return Terse }

// Nop is the package-level singleton nop sink.
var Nop Sink = nopSink{}
