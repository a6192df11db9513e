// Package formatter turns block executions into trace records.
//
// OnExecute runs on the hot path, once per execution of every instrumented
// block, possibly from many threads at once. It resolves the address to a
// module, builds a record under the configured verbosity, writes it to the
// sink and flushes so that readers tailing the log see it immediately.
package formatter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bbtrace/internal/blockcache"
	"bbtrace/internal/host"
	"bbtrace/internal/metrics"
	"bbtrace/internal/trace"
)

// Formatter renders execution records.
type Formatter struct {
	resolver  host.ModuleResolver
	cache     *blockcache.Cache
	sink      trace.Sink
	verbosity trace.Verbosity
	now       func() time.Time
	metrics   *metrics.Metrics
	execs     prometheus.Counter
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// WithMetrics records execution counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Formatter) { f.metrics = m }
}

// New returns a formatter. The verbosity is taken from the sink.
func New(resolver host.ModuleResolver, cache *blockcache.Cache, sink trace.Sink, opts ...Option) *Formatter {
	f := &Formatter{
		resolver:  resolver,
		cache:     cache,
		sink:      sink,
		verbosity: sink.Verbosity(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.metrics == nil {
		f.metrics = metrics.Nop()
	}
	f.execs = f.metrics.Executions.WithLabelValues(f.verbosity.String())
	return f
}

// OnExecute records one execution of the block starting at addr on thread.
// A write or flush failure is fatal and panics with *trace.FatalError.
func (f *Formatter) OnExecute(addr host.Addr, thread uint64) {
	rec := trace.Record{
		Thread: thread,
		Addr:   addr,
		Offset: uint64(addr),
	}
	if f.verbosity == trace.Full {
		rec.Time = f.now()
	}

	mod, ok := f.resolver.ResolveModule(addr)
	if ok {
		defer f.resolver.ReleaseModule(mod)
		rec.HasModule = true
		rec.Module = mod.DisplayName()
		rec.Offset = uint64(addr - mod.Base)
		if f.verbosity.NeedsBody() {
			body, found := f.cache.Lookup(addr)
			if !found {
				f.metrics.BodyMisses.Inc()
			}
			rec.Body = body
		}
	} else {
		f.metrics.NoModule.Inc()
	}

	if err := f.sink.Emit(&rec); err != nil {
		trace.Fatal("write trace record", addr, err)
	}
	if err := f.sink.Flush(); err != nil {
		trace.Fatal("flush trace log", addr, err)
	}
	f.execs.Inc()
}
