package session

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bbtrace/internal/host"
)

func TestLoad_TOML(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "demo.toml"))
	require.NoError(t, err)

	assert.Equal(t, "demo", s.Name)
	assert.Equal(t, 8, s.MaxBlockInstrs)
	require.Len(t, s.Modules, 2, "module from the maps file is appended")
	assert.Equal(t, "app", s.Modules[0].Name)
	assert.Equal(t, uint64(0x401000), s.Modules[1].Base)
	assert.Empty(t, s.Maps)

	require.Len(t, s.Blocks, 2)
	assert.Equal(t, []string{"A", "B"}, s.Blocks[0].Instrs)
	assert.Equal(t, 2, s.Blocks[1].Reinstrument)

	require.Len(t, s.Threads, 2)
	assert.Equal(t, uint64(4), s.Threads[0].Executions())
	assert.Equal(t, uint64(5), s.TotalExecutions())

	regions, err := s.CodeRegions()
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, host.Addr(0x401000), regions[0].Base)
	assert.Equal(t, []byte{0xb8, 0x01, 0x00, 0x00, 0x00, 0x01, 0xd8, 0xc3}, regions[0].Data)
}

func TestLoad_MsgpackRoundTrip(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "demo.toml"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "demo.mp")
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = \"x\"\ncolour = 1\n[[thread]]\nid = 1\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestNormalize(t *testing.T) {
	s := &Session{}
	assert.ErrorIs(t, s.Normalize(), ErrNoThreads)

	s = &Session{Threads: []Thread{{ID: 1}, {ID: 1}}}
	assert.ErrorContains(t, s.Normalize(), "duplicate id")

	s = &Session{Threads: []Thread{{ID: 1, Exec: []Exec{{Block: 1, Repeat: -1}}}}}
	assert.ErrorContains(t, s.Normalize(), "negative repeat")

	s = &Session{Syntax: "masm", Threads: []Thread{{ID: 1}}}
	assert.Error(t, s.Normalize())

	s = &Session{Threads: []Thread{{ID: 1}}}
	require.NoError(t, s.Normalize())
	assert.Equal(t, 64, s.Mode)
	assert.Equal(t, DefaultMaxBlockInstrs, s.MaxBlockInstrs)
}

func TestNormalize_ExecutionOverflow(t *testing.T) {
	big := Exec{Block: 0x1000, Repeat: math.MaxInt}
	s := &Session{Threads: []Thread{
		{ID: 1, Exec: []Exec{big, big}},
		{ID: 2, Exec: []Exec{{Block: 0x1000, Repeat: 1}}},
	}}
	require.NoError(t, s.Normalize())
	assert.Equal(t, uint64(math.MaxUint64), s.TotalExecutions())

	s.Threads[1].Exec = append(s.Threads[1].Exec, Exec{Block: 0x1000})
	assert.ErrorIs(t, s.Normalize(), ErrTooManyExecutions)
}

func TestCodeRegions_BadHex(t *testing.T) {
	s := &Session{Regions: []Region{{Base: 0x1000, Code: "zz"}}}
	_, err := s.CodeRegions()
	assert.ErrorContains(t, err, "region[0] at 0x1000")
}
