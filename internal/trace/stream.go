package trace

import (
	"fmt"
	"io"
	"sync"
)

// StreamSink writes records immediately to an io.Writer.
type StreamSink struct {
	mu        sync.Mutex
	w         io.Writer
	verbosity Verbosity
	format    Format
	closed    bool
	onWrite   func(n int)
}

// NewStreamSink creates a new StreamSink.
func NewStreamSink(w io.Writer, verbosity Verbosity, format Format) *StreamSink {
	if format == FormatAuto {
		format = FormatText
	}
	return &StreamSink{
		w:         w,
		verbosity: verbosity,
		format:    format,
	}
}

// Emit writes a record to the output with a single Write call.
func (s *StreamSink) Emit(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	// Assigned under the lock so sequence order matches log order.
	rec.Seq = NextSeq()
	data := FormatRecord(rec, s.verbosity, s.format)
	n, err := s.w.Write(data)
	if err != nil {
		return fmt.Errorf("write trace record: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("write trace record: %w", io.ErrShortWrite)
	}
	if s.onWrite != nil {
		s.onWrite(n)
	}
	return nil
}

// Flush ensures all buffered data is written.
func (s *StreamSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.flushLocked()
}

func (s *StreamSink) flushLocked() error {
	if flusher, ok := s.w.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			return fmt.Errorf("flush trace log: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the writer if it implements io.Closer.
func (s *StreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true

	err := s.flushLocked()
	if closer, ok := s.w.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close trace log: %w", cerr)
		}
	}
	return err
}

// Verbosity returns the rendering policy.
func (s *StreamSink) Verbosity() Verbosity {
	return s.verbosity
}
