// Package analyzer renders a newly seen block's instructions into text and
// stores the result in the block cache, once per block.
package analyzer

import (
	"bbtrace/internal/blockcache"
	"bbtrace/internal/host"
	"bbtrace/internal/metrics"
	"bbtrace/internal/textbuf"
)

// Analyzer builds cache entries for blocks.
type Analyzer struct {
	cache     *blockcache.Cache
	dec       host.Decoder
	metrics   *metrics.Metrics
	addresses bool
	initial   int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithAddresses prefixes every rendered line with the instruction address.
func WithAddresses(on bool) Option {
	return func(a *Analyzer) { a.addresses = on }
}

// WithMetrics records analysis counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithInitialCapacity sets the starting size of the per-block text buffer.
func WithInitialCapacity(n int) Option {
	return func(a *Analyzer) { a.initial = n }
}

// New returns an analyzer writing into cache. dec may be nil, in which case
// truncated blocks are not extended.
func New(cache *blockcache.Cache, dec host.Decoder, opts ...Option) *Analyzer {
	a := &Analyzer{cache: cache, dec: dec}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = metrics.Nop()
	}
	return a
}

// Analyze renders b and inserts it under b.Start. It reports whether this
// call created the cache entry; false means the block was already cached and
// the cache is unchanged.
func (a *Analyzer) Analyze(b *host.Block) bool {
	buf := textbuf.New(a.initial)
	for i := range b.Instrs {
		a.appendInstr(buf, &b.Instrs[i])
	}
	if b.Truncated {
		a.extend(buf, b)
	}
	buf.EnsureTerminated()

	if !a.cache.Insert(b.Start, buf.Finalize()) {
		a.metrics.DuplicateBlocks.Inc()
		return false
	}
	a.metrics.BlocksAnalyzed.Inc()
	return true
}

// extend decodes straight-line code past the end of a truncated block until
// a control transfer (inclusive) or the first decode failure.
func (a *Analyzer) extend(buf *textbuf.Buffer, b *host.Block) {
	if a.dec == nil {
		return
	}
	next := b.Start
	if n := len(b.Instrs); n > 0 {
		last := b.Instrs[n-1]
		if last.ControlTransfer {
			return
		}
		next = last.Next()
	}
	for {
		in, err := a.dec.Decode(next)
		if err != nil || in.Len <= 0 {
			a.metrics.DecodeStops.Inc()
			return
		}
		a.appendInstr(buf, &in)
		a.metrics.FallthroughInstrs.Inc()
		if in.ControlTransfer {
			return
		}
		next = in.Next()
	}
}

func (a *Analyzer) appendInstr(buf *textbuf.Buffer, in *host.Instr) {
	if a.addresses {
		buf.Appendf("%s  %s", in.Addr, in.Text)
	} else {
		buf.AppendLine(in.Text)
	}
	a.metrics.InstrsCached.Inc()
}
