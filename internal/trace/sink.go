package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultOutputPath is the log file used when no path is configured.
const DefaultOutputPath = "bbtrace.log"

// ErrClosed is returned by sinks used after Close.
var ErrClosed = errors.New("trace sink closed")

// Sink is the destination of trace records.
type Sink interface {
	// Emit renders and writes one record atomically. Must be goroutine-safe.
	Emit(rec *Record) error

	// Flush pushes buffered records to the underlying medium.
	Flush() error

	// Close flushes and releases resources. It is called once.
	Close() error

	// Verbosity returns the rendering policy of the sink.
	Verbosity() Verbosity
}

// Config holds sink configuration.
type Config struct {
	Verbosity  Verbosity   // rendering policy
	Format     Format      // output format (FormatAuto for auto-detection)
	Output     io.Writer   // if set, used instead of OutputPath
	OutputPath string      // log file path ("-" for stderr)
	RingSize   int         // recent records kept for crash dumps (0 = disabled)
	OnWrite    func(n int) // called with the size of every written record
}

// New creates the sink described by cfg. When RingSize is positive the
// returned sink also feeds a RingSink, which is returned separately so
// callers can dump it on fatal errors.
func New(cfg Config) (Sink, *RingSink, error) {
	if cfg.Verbosity == 0 {
		cfg.Verbosity = Annotated
	}
	if cfg.Output == nil && cfg.OutputPath == "" {
		cfg.OutputPath = DefaultOutputPath
	}
	format := formatForPath(cfg.Format, cfg.OutputPath)

	w, err := openOutput(cfg)
	if err != nil {
		return nil, nil, err
	}
	stream := NewStreamSink(w, cfg.Verbosity, format)
	stream.onWrite = cfg.OnWrite
	if cfg.RingSize <= 0 {
		return stream, nil, nil
	}
	ring := NewRingSink(cfg.RingSize, cfg.Verbosity)
	return NewMultiSink(cfg.Verbosity, stream, ring), ring, nil
}

// openOutput opens the output writer from config. Files are truncated.
func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}

	if cfg.OutputPath == "-" {
		return nopCloser{os.Stderr}, nil
	}

	f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace log: %w", err)
	}

	return &bufferedFile{Writer: bufio.NewWriterSize(f, 64<<10), f: f}, nil
}

// bufferedFile buffers writes to a file; Flush drains the buffer and Close
// closes the file.
type bufferedFile struct {
	*bufio.Writer
	f *os.File
}

func (b *bufferedFile) Close() error {
	if err := b.Writer.Flush(); err != nil {
		_ = b.f.Close()
		return err
	}
	return b.f.Close()
}

// nopCloser keeps Close from closing stderr.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
