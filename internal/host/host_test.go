package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddr_String(t *testing.T) {
	assert.Equal(t, "0x0", Addr(0).String())
	assert.Equal(t, "0x401000", Addr(0x401000).String())
	assert.Equal(t, "0xffffffffffffffff", Addr(^uint64(0)).String())
}

func TestModule_Contains(t *testing.T) {
	m := &Module{Base: 0x1000, Size: 0x100}
	assert.True(t, m.Contains(0x1000))
	assert.True(t, m.Contains(0x10ff))
	assert.False(t, m.Contains(0x1100))
	assert.False(t, m.Contains(0xfff))

	top := &Module{Base: 0xffffffffffffff00, Size: 0x100}
	assert.True(t, top.Contains(0xffffffffffffffff))
}

func TestModule_DisplayName(t *testing.T) {
	assert.Equal(t, "app", (&Module{Name: "app", FileName: "/usr/bin/other"}).DisplayName())
	assert.Equal(t, "libc.so.6", (&Module{FileName: "/lib/x86_64-linux-gnu/libc.so.6"}).DisplayName())
	assert.Equal(t, "<unknown>", (&Module{}).DisplayName())
}

func TestInstr_Next(t *testing.T) {
	assert.Equal(t, Addr(0x1005), Instr{Addr: 0x1000, Len: 5}.Next())
}
