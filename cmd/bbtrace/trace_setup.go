package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"bbtrace/internal/config"
	"bbtrace/internal/metrics"
	"bbtrace/internal/trace"
	"bbtrace/internal/tracer"
)

const configDefaultName = config.DefaultPath

// activeClient is the tracer of the running command, used to print recent
// records when a fatal error unwinds to main.
var activeClient *tracer.Client

// loadConfig layers defaults, the config file and the command's flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	optional := path == ""
	if optional {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// tracerConfig converts the layered configuration into the tracer's.
func tracerConfig(cfg config.Config) (tracer.Config, error) {
	verbosity, err := trace.ParseVerbosity(cfg.Log.Verbosity)
	if err != nil {
		return tracer.Config{}, fmt.Errorf("invalid verbosity: %w", err)
	}
	format, err := trace.ParseFormat(cfg.Log.Format)
	if err != nil {
		return tracer.Config{}, fmt.Errorf("invalid format: %w", err)
	}
	tc := tracer.DefaultConfig()
	tc.Verbosity = verbosity
	tc.Format = format
	tc.OutputPath = cfg.Log.Path
	tc.RingSize = cfg.Log.RingSize
	tc.Buckets = cfg.Cache.Buckets
	tc.DumpPath = cfg.Cache.Dump
	tc.Addresses = cfg.Cache.Addresses
	return tc, nil
}

// newLogger builds the operational logger. --quiet keeps errors only.
func newLogger(cmd *cobra.Command, w io.Writer) (log.Logger, error) {
	lvl, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if quiet {
		lvl = "error"
	}

	var allow level.Option
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		allow = level.AllowDebug()
	case "", "info":
		allow = level.AllowInfo()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	case "none":
		allow = level.AllowNone()
	default:
		return nil, fmt.Errorf("invalid --log-level %q (expected debug|info|warn|error|none)", lvl)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)
	return level.NewFilter(logger, allow), nil
}

// setupTracing builds the tracer client and the registry its metrics are
// registered on.
func setupTracing(cfg config.Config, logger log.Logger) (*tracer.Client, *prometheus.Registry, error) {
	tc, err := tracerConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	reg := prometheus.NewRegistry()
	client, err := tracer.New(tc, logger, metrics.NewMetrics(reg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	activeClient = client
	return client, reg, nil
}
