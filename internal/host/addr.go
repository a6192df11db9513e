package host

import "strconv"

// Addr is an address in the traced program's address space.
type Addr uint64

// String renders the address as 0x-prefixed lowercase hex.
func (a Addr) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}
