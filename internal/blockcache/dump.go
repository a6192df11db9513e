package blockcache

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"bbtrace/internal/host"
)

// Current schema version - increment when Dump format changes
const dumpSchemaVersion uint16 = 1

// Dump is a serialized snapshot of the cache, written for offline
// inspection after a run.
type Dump struct {
	Schema  uint16
	Created time.Time
	Buckets int
	Blocks  []DumpBlock
}

// DumpBlock is one cached block.
type DumpBlock struct {
	Addr uint64
	Text string
}

// Snapshot copies the cache contents sorted by address.
func (c *Cache) Snapshot() *Dump {
	d := &Dump{Schema: dumpSchemaVersion, Created: time.Now().UTC()}
	c.mu.RLock()
	d.Buckets = len(c.buckets)
	c.mu.RUnlock()

	c.Range(func(key host.Addr, text string) bool {
		d.Blocks = append(d.Blocks, DumpBlock{Addr: uint64(key), Text: text})
		return true
	})
	sort.Slice(d.Blocks, func(i, j int) bool { return d.Blocks[i].Addr < d.Blocks[j].Addr })
	return d
}

// WriteDump encodes a snapshot of the cache to w.
func (c *Cache) WriteDump(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(c.Snapshot()); err != nil {
		return fmt.Errorf("encode cache dump: %w", err)
	}
	return nil
}

// ReadDump decodes a dump written by WriteDump.
func ReadDump(r io.Reader) (*Dump, error) {
	var d Dump
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode cache dump: %w", err)
	}
	if d.Schema != dumpSchemaVersion {
		return nil, fmt.Errorf("unsupported cache dump schema %d (want %d)", d.Schema, dumpSchemaVersion)
	}
	return &d, nil
}
