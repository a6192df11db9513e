// Package session describes a recorded tracing session: the modules and
// code of a traced program, and the sequence of block executions of each of
// its threads. Sessions drive the replay host.
package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"bbtrace/internal/host"
	"bbtrace/internal/x86dec"
)

// DefaultMaxBlockInstrs is the host block size limit when a session does not
// set one. Blocks cut at this limit are reported as truncated.
const DefaultMaxBlockInstrs = 32

// Session is the root of a session file.
type Session struct {
	Name           string   `toml:"name" msgpack:"name"`
	Mode           int      `toml:"mode" msgpack:"mode"`
	Syntax         string   `toml:"syntax" msgpack:"syntax"`
	MaxBlockInstrs int      `toml:"max_block_instrs" msgpack:"max_block_instrs"`
	Maps           string   `toml:"maps" msgpack:"maps"`
	Modules        []Module `toml:"module" msgpack:"module"`
	Regions        []Region `toml:"region" msgpack:"region"`
	Blocks         []Block  `toml:"block" msgpack:"block"`
	Threads        []Thread `toml:"thread" msgpack:"thread"`
}

// Module is a loaded module.
type Module struct {
	Name string `toml:"name" msgpack:"name"`
	File string `toml:"file" msgpack:"file"`
	Base uint64 `toml:"base" msgpack:"base"`
	Size uint64 `toml:"size" msgpack:"size"`
}

// Region is code mapped at Base, hex encoded. Whitespace is ignored.
type Region struct {
	Base uint64 `toml:"base" msgpack:"base"`
	Code string `toml:"code" msgpack:"code"`
}

// Block overrides what the host reports for the block starting at Start.
// Without Instrs the host decodes the block from the session's code.
type Block struct {
	Start        uint64   `toml:"start" msgpack:"start"`
	Instrs       []string `toml:"instrs" msgpack:"instrs"`
	Truncated    bool     `toml:"truncated" msgpack:"truncated"`
	Reinstrument int      `toml:"reinstrument" msgpack:"reinstrument"`
}

// Thread is one thread of the traced program.
type Thread struct {
	ID   uint64 `toml:"id" msgpack:"id"`
	Exec []Exec `toml:"exec" msgpack:"exec"`
}

// Exec runs the block at Block Repeat times (once when Repeat is zero).
type Exec struct {
	Block  uint64 `toml:"block" msgpack:"block"`
	Repeat int    `toml:"repeat" msgpack:"repeat"`
}

// Times returns how many executions the entry stands for.
func (e Exec) Times() int {
	return max(e.Repeat, 1)
}

var (
	// ErrNoThreads is returned for sessions without any thread.
	ErrNoThreads = errors.New("session has no threads")
	// ErrTooManyExecutions is returned when the execution count of a
	// session does not fit in 64 bits.
	ErrTooManyExecutions = errors.New("execution count overflows uint64")
)

// Normalize fills defaults and validates the session.
func (s *Session) Normalize() error {
	if s.Mode == 0 {
		s.Mode = 64
	}
	if s.MaxBlockInstrs <= 0 {
		s.MaxBlockInstrs = DefaultMaxBlockInstrs
	}
	if _, err := x86dec.ParseSyntax(s.Syntax); err != nil {
		return err
	}
	if len(s.Threads) == 0 {
		return ErrNoThreads
	}

	seen := make(map[uint64]bool, len(s.Threads))
	var total uint64
	for i, th := range s.Threads {
		if seen[th.ID] {
			return fmt.Errorf("thread[%d]: duplicate id %d", i, th.ID)
		}
		seen[th.ID] = true
		for j, ex := range th.Exec {
			if ex.Repeat < 0 {
				return fmt.Errorf("thread %d exec[%d]: negative repeat %d", th.ID, j, ex.Repeat)
			}
			var carry uint64
			total, carry = bits.Add64(total, uint64(ex.Times()), 0)
			if carry != 0 {
				return fmt.Errorf("thread %d exec[%d]: %w", th.ID, j, ErrTooManyExecutions)
			}
		}
	}
	for i, b := range s.Blocks {
		if b.Reinstrument < 0 {
			return fmt.Errorf("block[%d] at %s: negative reinstrument", i, host.Addr(b.Start))
		}
	}
	return nil
}

// HostModules converts the module list.
func (s *Session) HostModules() []host.Module {
	mods := make([]host.Module, 0, len(s.Modules))
	for _, m := range s.Modules {
		mods = append(mods, host.Module{
			Name:     m.Name,
			FileName: m.File,
			Base:     host.Addr(m.Base),
			Size:     m.Size,
		})
	}
	return mods
}

// CodeRegions decodes the hex code regions.
func (s *Session) CodeRegions() ([]x86dec.Region, error) {
	out := make([]x86dec.Region, 0, len(s.Regions))
	for i, r := range s.Regions {
		code := strings.Join(strings.Fields(r.Code), "")
		data, err := hex.DecodeString(code)
		if err != nil {
			return nil, fmt.Errorf("region[%d] at %s: %w", i, host.Addr(r.Base), err)
		}
		out = append(out, x86dec.Region{Base: host.Addr(r.Base), Data: data})
	}
	return out, nil
}

// TotalExecutions counts every block execution in the session.
func (s *Session) TotalExecutions() uint64 {
	var n uint64
	for _, th := range s.Threads {
		n += th.Executions()
	}
	return n
}

// Executions counts the block executions of one thread. Normalize
// guarantees the count fits.
func (th *Thread) Executions() uint64 {
	var n uint64
	for _, ex := range th.Exec {
		n += uint64(ex.Times())
	}
	return n
}
