package x86dec

import (
	"errors"
	"fmt"
	"sort"

	"fortio.org/safecast"

	"bbtrace/internal/host"
)

// ErrUnmapped is returned when no region covers an address.
var ErrUnmapped = errors.New("address not mapped")

// MemoryAccessor reads bytes from the traced program's memory. It returns
// the number of bytes read, which may be short at the end of a region.
type MemoryAccessor interface {
	ReadMemory(addr host.Addr, data []byte) (int, error)
}

// Region is a contiguous range of code bytes.
type Region struct {
	Base host.Addr
	Data []byte
}

// Image is a read-only set of non-overlapping regions.
type Image struct {
	regions []Region // sorted by Base
}

// NewImage builds an image from regions.
func NewImage(regions ...Region) (*Image, error) {
	sorted := append([]Region(nil), regions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		if prev.Base+host.Addr(len(prev.Data)) > sorted[i].Base {
			return nil, fmt.Errorf("region at %s overlaps region at %s", sorted[i].Base, prev.Base)
		}
	}
	return &Image{regions: sorted}, nil
}

// ReadMemory implements MemoryAccessor.
func (im *Image) ReadMemory(addr host.Addr, data []byte) (int, error) {
	i := sort.Search(len(im.regions), func(i int) bool { return im.regions[i].Base > addr })
	if i == 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnmapped, addr)
	}
	r := im.regions[i-1]
	off, err := safecast.Conv[int](uint64(addr - r.Base))
	if err != nil || off >= len(r.Data) {
		return 0, fmt.Errorf("%w: %s", ErrUnmapped, addr)
	}
	return copy(data, r.Data[off:]), nil
}
