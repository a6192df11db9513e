package metrics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	require.NotNil(t, m)

	m.BlocksAnalyzed.Inc()
	m.InstrsCached.Add(12)
	m.Executions.WithLabelValues("full").Add(3)

	require.Equal(t, float64(1), testutil.ToFloat64(m.BlocksAnalyzed))
	require.Equal(t, float64(12), testutil.ToFloat64(m.InstrsCached))
	require.Equal(t, float64(3), testutil.ToFloat64(m.Executions.WithLabelValues("full")))
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	require.Panics(t, func() { NewMetrics(reg) })
}

func TestWriteSummary(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.NoModule.Add(2)
	m.Executions.WithLabelValues("terse").Add(5)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, reg))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "metrics:\n"))
	require.Contains(t, out, "bbtrace_no_module_total")
	require.Contains(t, out, `bbtrace_executions_total{verbosity="terse"}`)
	require.Regexp(t, `bbtrace_no_module_total\s+2\n`, out)
}
