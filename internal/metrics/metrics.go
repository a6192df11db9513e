// Package metrics holds the Prometheus counters of a tracing run.
package metrics

import (
	"fmt"
	"io"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the tracer.
type Metrics struct {
	BlocksAnalyzed     prometheus.Counter
	DuplicateBlocks    prometheus.Counter
	InstrsCached       prometheus.Counter
	FallthroughInstrs  prometheus.Counter
	DecodeStops        prometheus.Counter
	Executions         *prometheus.CounterVec
	NoModule           prometheus.Counter
	BodyMisses         prometheus.Counter
	RecordBytesWritten prometheus.Counter
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bbtrace_blocks_analyzed_total",
			Help: "Unique blocks whose disassembly was cached",
		}),
		DuplicateBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bbtrace_duplicate_blocks_total",
			Help: "Block analyses dropped because the block was already cached",
		}),
		InstrsCached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bbtrace_instructions_cached_total",
			Help: "Instructions rendered into the block cache",
		}),
		FallthroughInstrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bbtrace_fallthrough_instructions_total",
			Help: "Instructions decoded past a truncated block boundary",
		}),
		DecodeStops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bbtrace_decode_stops_total",
			Help: "Fallthrough extensions ended by a decode failure",
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bbtrace_executions_total",
			Help: "Block executions recorded, by verbosity",
		}, []string{"verbosity"}),
		NoModule: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bbtrace_no_module_total",
			Help: "Executions at addresses not owned by any module",
		}),
		BodyMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bbtrace_body_misses_total",
			Help: "Full records written without cached disassembly",
		}),
		RecordBytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bbtrace_record_bytes_total",
			Help: "Bytes of rendered trace records",
		}),
	}

	reg.MustRegister(
		m.BlocksAnalyzed,
		m.DuplicateBlocks,
		m.InstrsCached,
		m.FallthroughInstrs,
		m.DecodeStops,
		m.Executions,
		m.NoModule,
		m.BodyMisses,
		m.RecordBytesWritten,
	)
	return m
}

// Nop returns metrics registered on a throwaway registry.
func Nop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// WriteSummary prints every counter gathered from g as "name value" lines,
// sorted by name. Labelled series are rendered as name{label="v"}.
func WriteSummary(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			default:
				continue
			}
			lines = append(lines, fmt.Sprintf("  %-52s %12.0f", name, v))
		}
	}
	sort.Strings(lines)
	if _, err := fmt.Fprintln(w, "metrics:"); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
