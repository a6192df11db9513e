// Package x86dec implements the host decode primitive for x86 code using
// golang.org/x/arch/x86/x86asm.
package x86dec

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"bbtrace/internal/host"
)

// maxInstrLen is the architectural limit of an x86 instruction.
const maxInstrLen = 15

// ErrInvalid is returned for bytes that do not form a complete instruction.
// x86asm reports these as a one-byte pseudo-instruction without an opcode.
var ErrInvalid = errors.New("invalid or truncated instruction")

// Syntax selects the assembly dialect.
type Syntax uint8

const (
	SyntaxIntel Syntax = iota
	SyntaxGNU
)

// ParseSyntax converts a string to a Syntax.
func ParseSyntax(s string) (Syntax, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "intel":
		return SyntaxIntel, nil
	case "gnu", "att":
		return SyntaxGNU, nil
	default:
		return SyntaxIntel, fmt.Errorf("invalid syntax: %q (expected: intel|gnu)", s)
	}
}

// Decoder decodes x86 instructions from a MemoryAccessor.
type Decoder struct {
	mem    MemoryAccessor
	mode   int // 16, 32 or 64
	syntax Syntax
}

// New returns a decoder for the given CPU mode.
func New(mem MemoryAccessor, mode int, syntax Syntax) (*Decoder, error) {
	switch mode {
	case 16, 32, 64:
	default:
		return nil, fmt.Errorf("unsupported x86 mode %d", mode)
	}
	return &Decoder{mem: mem, mode: mode, syntax: syntax}, nil
}

// Decode implements host.Decoder.
func (d *Decoder) Decode(addr host.Addr) (host.Instr, error) {
	var raw [maxInstrLen]byte
	n, err := d.mem.ReadMemory(addr, raw[:])
	if err != nil {
		return host.Instr{}, fmt.Errorf("%w at %s: %w", host.ErrDecode, addr, err)
	}
	inst, err := x86asm.Decode(raw[:n], d.mode)
	if err != nil {
		return host.Instr{}, fmt.Errorf("%w at %s: %w", host.ErrDecode, addr, err)
	}
	if inst.Op == 0 || inst.Len <= 0 {
		return host.Instr{}, fmt.Errorf("%w at %s: %w", host.ErrDecode, addr, ErrInvalid)
	}

	var text string
	switch d.syntax {
	case SyntaxGNU:
		text = x86asm.GNUSyntax(inst, uint64(addr), nil)
	default:
		text = x86asm.IntelSyntax(inst, uint64(addr), nil)
	}
	return host.Instr{
		Addr:            addr,
		Len:             inst.Len,
		Text:            text,
		ControlTransfer: isControlTransfer(inst.Op),
	}, nil
}

// isControlTransfer reports whether op ends straight-line execution.
func isControlTransfer(op x86asm.Op) bool {
	switch op {
	case x86asm.JMP, x86asm.LJMP, x86asm.CALL, x86asm.LCALL,
		x86asm.RET, x86asm.LRET, x86asm.IRET, x86asm.IRETD, x86asm.IRETQ,
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JE, x86asm.JG,
		x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP,
		x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JS,
		x86asm.JCXZ, x86asm.JECXZ, x86asm.JRCXZ,
		x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE,
		x86asm.INT, x86asm.INTO, x86asm.UD2, x86asm.HLT,
		x86asm.SYSCALL, x86asm.SYSENTER, x86asm.SYSEXIT, x86asm.SYSRET:
		return true
	}
	return false
}
