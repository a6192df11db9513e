package analyzer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bbtrace/internal/blockcache"
	"bbtrace/internal/host"
	"bbtrace/internal/metrics"
	"bbtrace/internal/x86dec"
)

// fakeDecoder serves instructions from a fixed table; every other address
// fails to decode.
type fakeDecoder struct {
	mu     sync.Mutex
	instrs map[host.Addr]host.Instr
	calls  int
}

func (d *fakeDecoder) Decode(addr host.Addr) (host.Instr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	in, ok := d.instrs[addr]
	if !ok {
		return host.Instr{}, fmt.Errorf("%w at %s", host.ErrDecode, addr)
	}
	return in, nil
}

func instr(addr host.Addr, n int, text string, cti bool) host.Instr {
	return host.Instr{Addr: addr, Len: n, Text: text, ControlTransfer: cti}
}

func TestAnalyze_ProgramOrder(t *testing.T) {
	cache := blockcache.New(0)
	a := New(cache, nil)

	b := &host.Block{Start: 0x1000, Instrs: []host.Instr{
		instr(0x1000, 1, "A", false),
		instr(0x1001, 1, "B", true),
	}}
	require.True(t, a.Analyze(b))

	got, ok := cache.Lookup(0x1000)
	require.True(t, ok)
	assert.Equal(t, "A\nB\n", got)
}

func TestAnalyze_EmptyBlockStillTerminated(t *testing.T) {
	cache := blockcache.New(0)
	a := New(cache, nil)
	require.True(t, a.Analyze(&host.Block{Start: 0x2000}))

	got, ok := cache.Lookup(0x2000)
	require.True(t, ok)
	assert.Equal(t, "\n", got)
}

func TestAnalyze_TruncatedExtendsToControlTransfer(t *testing.T) {
	dec := &fakeDecoder{instrs: map[host.Addr]host.Instr{
		0x1002: instr(0x1002, 3, "C", false),
		0x1005: instr(0x1005, 1, "jmp", true),
		0x1006: instr(0x1006, 1, "never", false),
	}}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	cache := blockcache.New(0)
	a := New(cache, dec, WithMetrics(m))

	b := &host.Block{Start: 0x1000, Truncated: true, Instrs: []host.Instr{
		instr(0x1000, 1, "A", false),
		instr(0x1001, 1, "B", false),
	}}
	require.True(t, a.Analyze(b))

	got, _ := cache.Lookup(0x1000)
	assert.Equal(t, "A\nB\nC\njmp\n", got)
	assert.Equal(t, 2, dec.calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FallthroughInstrs))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.InstrsCached))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.DecodeStops))
}

func TestAnalyze_TruncatedStopsOnDecodeFailure(t *testing.T) {
	dec := &fakeDecoder{instrs: map[host.Addr]host.Instr{
		0x1001: instr(0x1001, 2, "C", false),
	}}
	m := metrics.Nop()
	cache := blockcache.New(0)
	a := New(cache, dec, WithMetrics(m))

	b := &host.Block{Start: 0x1000, Truncated: true, Instrs: []host.Instr{instr(0x1000, 1, "A", false)}}
	require.True(t, a.Analyze(b))

	got, _ := cache.Lookup(0x1000)
	assert.Equal(t, "A\nC\n", got, "partial extension is still cached")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DecodeStops))
}

func TestAnalyze_ZeroLengthDecodeStops(t *testing.T) {
	dec := &fakeDecoder{instrs: map[host.Addr]host.Instr{
		0x1001: instr(0x1001, 0, "bogus", false),
	}}
	cache := blockcache.New(0)
	a := New(cache, dec)
	b := &host.Block{Start: 0x1000, Truncated: true, Instrs: []host.Instr{instr(0x1000, 1, "A", false)}}
	a.Analyze(b)

	got, _ := cache.Lookup(0x1000)
	assert.Equal(t, "A\n", got)
}

func TestAnalyze_TruncatedEmptyBlockDecodesFromStart(t *testing.T) {
	dec := &fakeDecoder{instrs: map[host.Addr]host.Instr{
		0x3000: instr(0x3000, 1, "ret", true),
	}}
	cache := blockcache.New(0)
	a := New(cache, dec)
	a.Analyze(&host.Block{Start: 0x3000, Truncated: true})

	got, _ := cache.Lookup(0x3000)
	assert.Equal(t, "ret\n", got)
}

func TestAnalyze_NotTruncatedNeverDecodes(t *testing.T) {
	dec := &fakeDecoder{instrs: map[host.Addr]host.Instr{}}
	a := New(blockcache.New(0), dec)
	a.Analyze(&host.Block{Start: 0x1000, Instrs: []host.Instr{instr(0x1000, 1, "A", false)}})
	assert.Zero(t, dec.calls)
}

func TestAnalyze_SecondAnalysisKeepsFirstEntry(t *testing.T) {
	m := metrics.Nop()
	cache := blockcache.New(4)
	a := New(cache, nil, WithMetrics(m))

	first := &host.Block{Start: 0x1000, Instrs: []host.Instr{instr(0x1000, 1, "A", true)}}
	again := &host.Block{Start: 0x1000, Instrs: []host.Instr{instr(0x1000, 1, "Z", true)}}
	require.True(t, a.Analyze(first))
	require.False(t, a.Analyze(again))

	got, ok := cache.Lookup(0x1000)
	require.True(t, ok)
	assert.Equal(t, "A\n", got)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1, cache.Stats().LongestChain)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DuplicateBlocks))
}

func TestAnalyze_WithAddresses(t *testing.T) {
	cache := blockcache.New(0)
	a := New(cache, nil, WithAddresses(true))
	a.Analyze(&host.Block{Start: 0x401000, Instrs: []host.Instr{instr(0x401000, 1, "nop", false)}})

	got, _ := cache.Lookup(0x401000)
	assert.Equal(t, "0x401000  nop\n", got)
}

func TestAnalyze_LongBlockNotTruncated(t *testing.T) {
	cache := blockcache.New(0)
	a := New(cache, nil, WithInitialCapacity(1))

	b := &host.Block{Start: 0x1000}
	want := ""
	for i := range 5000 {
		text := fmt.Sprintf("insn%d", i)
		b.Instrs = append(b.Instrs, instr(host.Addr(0x1000+i), 1, text, false))
		want += text + "\n"
	}
	a.Analyze(b)
	got, _ := cache.Lookup(0x1000)
	assert.Equal(t, want, got)
}

func TestAnalyze_ExtensionStopsBeforeCutOffInstruction(t *testing.T) {
	// nop, then the first two bytes of a five-byte mov at the region end.
	img, err := x86dec.NewImage(x86dec.Region{Base: 0x1000, Data: []byte{0x90, 0xb8, 0x01}})
	require.NoError(t, err)
	dec, err := x86dec.New(img, 64, x86dec.SyntaxIntel)
	require.NoError(t, err)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	cache := blockcache.New(0)
	a := New(cache, dec, WithMetrics(m))
	require.True(t, a.Analyze(&host.Block{Start: 0x1000, Truncated: true}))

	got, ok := cache.Lookup(0x1000)
	require.True(t, ok)
	assert.Equal(t, "nop\n", got)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DecodeStops))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FallthroughInstrs))
}
