// Package tracer is the bbtrace client: it registers with the
// instrumentation host, analyzes newly seen blocks and installs a per-block
// hook that writes one trace record per execution.
package tracer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"bbtrace/internal/analyzer"
	"bbtrace/internal/blockcache"
	"bbtrace/internal/formatter"
	"bbtrace/internal/host"
	"bbtrace/internal/metrics"
	"bbtrace/internal/trace"
)

// Config holds client configuration. It is fixed once the client is built.
type Config struct {
	Verbosity  trace.Verbosity
	Format     trace.Format
	OutputPath string    // trace log path, "-" for stderr
	Output     io.Writer // overrides OutputPath when set
	Buckets    int       // block cache bucket count
	RingSize   int       // recent records kept for crash dumps
	DumpPath   string    // msgpack cache dump written at exit ("" = none)
	Addresses  bool      // prefix disassembly lines with addresses
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Verbosity:  trace.Annotated,
		Format:     trace.FormatAuto,
		OutputPath: trace.DefaultOutputPath,
		Buckets:    blockcache.DefaultBuckets,
		RingSize:   256,
	}
}

// Client is one tracing session. It is created before the host starts
// reporting blocks and torn down by Exit after the last execution.
type Client struct {
	cfg     Config
	logger  log.Logger
	metrics *metrics.Metrics

	cache     *blockcache.Cache
	sink      trace.Sink
	ring      *trace.RingSink
	analyzer  *analyzer.Analyzer
	formatter *formatter.Formatter
	analyze   bool

	exitOnce sync.Once
	exitErr  error
}

// New opens the trace log and prepares the block cache.
func New(cfg Config, logger log.Logger, m *metrics.Metrics) (*Client, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if m == nil {
		m = metrics.Nop()
	}
	if cfg.Verbosity == 0 {
		cfg.Verbosity = trace.Annotated
	}

	sink, ring, err := trace.New(trace.Config{
		Verbosity:  cfg.Verbosity,
		Format:     cfg.Format,
		Output:     cfg.Output,
		OutputPath: cfg.OutputPath,
		RingSize:   cfg.RingSize,
		OnWrite: func(n int) {
			m.RecordBytesWritten.Add(float64(n))
		},
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		cache:   blockcache.New(cfg.Buckets),
		sink:    sink,
		ring:    ring,
		analyze: cfg.Verbosity.NeedsBody() || cfg.DumpPath != "",
	}
	level.Info(logger).Log("msg", "trace log opened", "path", cfg.OutputPath, "verbosity", cfg.Verbosity)
	return c, nil
}

// Attach binds the client to h and registers its block and exit events.
func (c *Client) Attach(h host.Host) {
	c.Bind(h.Decoder(), h.Resolver())
	h.RegisterBlockEvent(c.OnBlockSeen)
	h.RegisterExitEvent(func() {
		if err := c.Exit(); err != nil {
			level.Error(c.logger).Log("msg", "trace teardown failed", "err", err)
		}
	})
}

// Bind wires the host services used by analysis and formatting.
func (c *Client) Bind(dec host.Decoder, resolver host.ModuleResolver) {
	c.analyzer = analyzer.New(c.cache, dec,
		analyzer.WithAddresses(c.cfg.Addresses),
		analyzer.WithMetrics(c.metrics),
	)
	c.formatter = formatter.New(resolver, c.cache, c.sink, formatter.WithMetrics(c.metrics))
}

// OnBlockSeen is the block event. It caches the block's disassembly when
// records need it and returns the execution hook for the block.
func (c *Client) OnBlockSeen(b *host.Block) (host.ExecHook, host.EmitFlags) {
	if c.formatter == nil {
		panic("tracer: block event before Bind")
	}
	if c.analyze && !c.analyzer.Analyze(b) {
		level.Debug(c.logger).Log("msg", "block already cached", "addr", b.Start)
	}

	start := b.Start
	f := c.formatter
	return func(thread uint64) {
		f.OnExecute(start, thread)
	}, host.EmitDefault
}

// Cache exposes the block cache, mainly for inspection in tests.
func (c *Client) Cache() *blockcache.Cache {
	return c.cache
}

// Exit closes the trace log, writes the optional cache dump and releases the
// cache. Only the first call does any work; later calls return its result.
func (c *Client) Exit() error {
	c.exitOnce.Do(func() {
		var errs []error
		if err := c.sink.Close(); err != nil {
			errs = append(errs, err)
		}
		if c.cfg.DumpPath != "" {
			if err := c.writeDump(c.cfg.DumpPath); err != nil {
				errs = append(errs, err)
			}
		}
		st := c.cache.Stats()
		c.cache.Teardown()
		level.Info(c.logger).Log("msg", "trace closed",
			"blocks", st.Entries, "duplicates", st.Duplicates, "longest_chain", st.LongestChain)
		c.exitErr = errors.Join(errs...)
	})
	return c.exitErr
}

func (c *Client) writeDump(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cache dump: %w", err)
	}
	if err := c.cache.WriteDump(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close cache dump: %w", err)
	}
	level.Info(c.logger).Log("msg", "cache dump written", "path", path)
	return nil
}

// CrashDump writes the most recent records to w. It is used when a fatal
// error ends the run.
func (c *Client) CrashDump(w io.Writer) error {
	if c.ring == nil {
		return nil
	}
	if _, err := fmt.Fprintln(w, "last trace records:"); err != nil {
		return err
	}
	return c.ring.Dump(w, trace.FormatText)
}
