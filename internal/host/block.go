package host

import "errors"

// ErrDecode is returned by decoders for unmapped or invalid bytes.
var ErrDecode = errors.New("decode failed")

// Instr is one decoded instruction.
type Instr struct {
	Addr            Addr
	Len             int    // encoded length in bytes
	Text            string // rendered disassembly
	ControlTransfer bool   // jump, call, return, trap
}

// Next returns the address immediately following the instruction.
func (in Instr) Next() Addr {
	return in.Addr + Addr(in.Len)
}

// Block is a straight-line instruction sequence reported by the host.
type Block struct {
	// Start is the address of the first instruction actually executed.
	Start  Addr
	Instrs []Instr
	// Truncated is set when the host cut the block before reaching a
	// control transfer.
	Truncated bool
}

// Decoder decodes a single instruction at an address.
type Decoder interface {
	Decode(addr Addr) (Instr, error)
}
