package trace

import (
	"io"
	"sort"
	"sync"
)

// RingSink keeps the last N records in memory (circular buffer).
type RingSink struct {
	mu        sync.RWMutex
	records   []Record
	capacity  int
	head      int  // next write position
	full      bool // has wrapped around
	verbosity Verbosity
}

// NewRingSink creates a new RingSink with specified capacity.
func NewRingSink(capacity int, verbosity Verbosity) *RingSink {
	if capacity <= 0 {
		capacity = 256
	}

	return &RingSink{
		records:   make([]Record, capacity),
		capacity:  capacity,
		verbosity: verbosity,
	}
}

// Emit adds a record to the ring buffer.
func (t *RingSink) Emit(rec *Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records[t.head] = *rec
	t.head = (t.head + 1) % t.capacity

	if t.head == 0 {
		t.full = true
	}
	return nil
}

// Snapshot returns a copy of all stored records in log order. Concurrent
// emitters may reach the ring in a different order than the stream, so
// records are ordered by Seq; records with equal Seq keep arrival order.
func (t *RingSink) Snapshot() []Record {
	t.mu.RLock()
	var result []Record
	if !t.full {
		result = make([]Record, t.head)
		copy(result, t.records[:t.head])
	} else {
		result = make([]Record, t.capacity)
		copy(result, t.records[t.head:])
		copy(result[t.capacity-t.head:], t.records[:t.head])
	}
	t.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}

// Dump writes all records to the provided writer in the specified format.
func (t *RingSink) Dump(w io.Writer, format Format) error {
	records := t.Snapshot()

	for i := range records {
		data := FormatRecord(&records[i], t.verbosity, format)
		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	return nil
}

// Flush is a no-op for RingSink since everything is in memory.
func (t *RingSink) Flush() error {
	return nil
}

// Close is a no-op for RingSink.
func (t *RingSink) Close() error {
	return nil
}

// Verbosity returns the rendering policy.
func (t *RingSink) Verbosity() Verbosity {
	return t.verbosity
}
