package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"bbtrace/internal/blockcache"
	"bbtrace/internal/config"
	"bbtrace/internal/metrics"
	"bbtrace/internal/observ"
	"bbtrace/internal/replay"
	"bbtrace/internal/session"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] <session.toml|session.mp>",
		Short: "Replay a recorded session through the tracer",
		Long:  `Replay the threads of a recorded session on the built-in host and write the trace log`,
		Args:  cobra.ExactArgs(1),
		RunE:  runSession,
	}
	f := cmd.Flags()
	f.Int(config.FlagJobs, 0, "threads replayed concurrently (0 = GOMAXPROCS)")
	f.Bool(config.FlagOSThreads, false, "pin replayed threads to OS threads and report their tids")
	f.String(config.FlagDump, "", "write the block cache to this msgpack file at exit")
	f.Int(config.FlagBuckets, blockcache.DefaultBuckets, "block cache bucket count")
	f.Bool(config.FlagAddresses, false, "prefix cached disassembly lines with addresses")
	f.String("ui", "auto", "progress UI (auto|on|off)")
	f.String("metrics-addr", "", "serve /metrics on this address while replaying")
	return cmd
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return fmt.Errorf("failed to get metrics-addr flag: %w", err)
	}
	quiet, _ := cmd.Flags().GetBool("quiet")
	showTimings, _ := cmd.Flags().GetBool("timings")
	showMetrics, _ := cmd.Flags().GetBool("metrics")

	profiler, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			level.Warn(logger).Log("msg", "profiling", "err", err)
		}
	}()

	timer := observ.NewTimer()
	idx := timer.Begin("load")
	sess, err := session.Load(args[0])
	if err != nil {
		return err
	}
	timer.End(idx, args[0])

	client, reg, err := setupTracing(cfg, logger)
	if err != nil {
		return err
	}

	useUI := !quiet && shouldUseTUI(mode)
	var events chan replay.Event
	opts := replay.Options{Jobs: cfg.Replay.Jobs, OSThreads: cfg.Replay.OSThreads}
	if useUI {
		events = make(chan replay.Event, 256)
		opts.Progress = replay.ChannelSink{Ch: events}
	}
	h, err := replay.New(sess, opts)
	if err != nil {
		return err
	}
	client.Attach(h)

	if metricsAddr != "" {
		stop, err := serveMetrics(metricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	idx = timer.Begin("replay")
	if useUI {
		err = runReplayWithUI(ctx, replayTitle(sess, args[0]), threadIDs(sess), events, h)
	} else {
		err = h.Run(ctx)
	}
	timer.End(idx, fmt.Sprintf("%d threads, %d executions", len(sess.Threads), sess.TotalExecutions()))
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	// Exit already ran as the host's exit event; this returns its result.
	if err := client.Exit(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !quiet {
		fmt.Fprintf(out, "traced %d executions to %s\n", sess.TotalExecutions(), cfg.Log.Path)
	}
	if showMetrics {
		if err := metrics.WriteSummary(out, reg); err != nil {
			return err
		}
	}
	if showTimings {
		fmt.Fprint(out, timer.Summary())
	}
	return nil
}

func replayTitle(s *session.Session, path string) string {
	if s.Name != "" {
		return "replaying " + s.Name
	}
	return "replaying " + path
}

func threadIDs(s *session.Session) []uint64 {
	ids := make([]uint64, 0, len(s.Threads))
	for _, th := range s.Threads {
		ids = append(ids, th.ID)
	}
	return ids
}

// serveMetrics exposes reg over HTTP until the returned stop is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			level.Error(logger).Log("msg", "metrics server failed", "err", err)
		}
	}()
	level.Info(logger).Log("msg", "serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
