// Package textbuf implements the growable line buffer used to assemble a
// block's disassembly before it is handed to the block cache.
package textbuf

import (
	"fmt"
	"math"
)

// DefaultCapacity is the initial capacity used when New is given a
// non-positive size.
const DefaultCapacity = 64

// Buffer accumulates newline-terminated lines. Capacity at least doubles on
// every growth, so appends are amortized O(1). The zero value is not usable;
// call New.
type Buffer struct {
	data      []byte // len(data) is the allocated capacity
	n         int    // bytes in use, always <= len(data)
	grows     int
	finalized bool
}

// New returns an empty buffer with the given initial capacity.
func New(initial int) *Buffer {
	if initial <= 0 {
		initial = DefaultCapacity
	}
	return &Buffer{data: make([]byte, initial)}
}

// AppendLine appends s followed by a newline.
func (b *Buffer) AppendLine(s string) {
	b.reserve(len(s) + 1)
	b.n += copy(b.data[b.n:], s)
	b.data[b.n] = '\n'
	b.n++
}

// Appendf appends a formatted line.
func (b *Buffer) Appendf(format string, args ...any) {
	b.AppendLine(fmt.Sprintf(format, args...))
}

// EnsureTerminated appends a newline unless the buffer already ends with one.
// An empty buffer gets a single newline.
func (b *Buffer) EnsureTerminated() {
	if b.n > 0 && b.data[b.n-1] == '\n' {
		return
	}
	b.reserve(1)
	b.data[b.n] = '\n'
	b.n++
}

// Len returns the number of bytes in use.
func (b *Buffer) Len() int { return b.n }

// Cap returns the allocated capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Grows returns how many times the storage was reallocated.
func (b *Buffer) Grows() int { return b.grows }

// Finalize returns the accumulated text. The buffer must not be used
// afterwards.
func (b *Buffer) Finalize() string {
	if b.finalized {
		panic("textbuf: finalize called twice")
	}
	out := string(b.data[:b.n])
	b.finalized = true
	b.data = nil
	return out
}

// reserve makes room for need more bytes, doubling until it fits.
func (b *Buffer) reserve(need int) {
	if b.finalized {
		panic("textbuf: append after finalize")
	}
	want, ok := addOverflowSafe(b.n, need)
	if !ok {
		panic(fmt.Errorf("textbuf: size overflow: len=%d need=%d", b.n, need))
	}
	if want < len(b.data) {
		return
	}
	newCap := max(len(b.data), 1)
	for want >= newCap {
		if newCap > math.MaxInt/2 {
			panic(fmt.Errorf("textbuf: capacity overflow growing past %d", newCap))
		}
		newCap *= 2
	}
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.n])
	b.data = grown
	b.grows++
}

// addOverflowSafe adds a and b, returning ok = false when the result would
// overflow int.
func addOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}
