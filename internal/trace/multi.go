package trace

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	sinks     []Sink
	verbosity Verbosity
}

// NewMultiSink creates a new MultiSink that emits to all provided sinks.
func NewMultiSink(verbosity Verbosity, sinks ...Sink) *MultiSink {
	return &MultiSink{
		sinks:     sinks,
		verbosity: verbosity,
	}
}

// Emit sends the record to all underlying sinks in order. The first sink
// assigns the sequence number seen by the rest.
func (t *MultiSink) Emit(rec *Record) error {
	var firstErr error
	for _, s := range t.sinks {
		if err := s.Emit(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Flush flushes all underlying sinks.
func (t *MultiSink) Flush() error {
	var firstErr error
	for _, s := range t.sinks {
		if err := s.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes all underlying sinks.
func (t *MultiSink) Close() error {
	var firstErr error
	for _, s := range t.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Verbosity returns the configured policy.
func (t *MultiSink) Verbosity() Verbosity {
	return t.verbosity
}
