package x86dec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bbtrace/internal/host"
)

// mov eax, 1 ; add eax, ebx ; ret
var sampleCode = []byte{0xb8, 0x01, 0x00, 0x00, 0x00, 0x01, 0xd8, 0xc3}

func newDecoder(t *testing.T, syntax Syntax) *Decoder {
	t.Helper()
	img, err := NewImage(Region{Base: 0x401000, Data: sampleCode})
	require.NoError(t, err)
	d, err := New(img, 64, syntax)
	require.NoError(t, err)
	return d
}

func TestDecode_Sequence(t *testing.T) {
	d := newDecoder(t, SyntaxIntel)

	in, err := d.Decode(0x401000)
	require.NoError(t, err)
	assert.Equal(t, 5, in.Len)
	assert.Equal(t, "mov eax, 0x1", in.Text)
	assert.False(t, in.ControlTransfer)

	in, err = d.Decode(in.Next())
	require.NoError(t, err)
	assert.Equal(t, 2, in.Len)
	assert.Equal(t, "add eax, ebx", in.Text)

	in, err = d.Decode(in.Next())
	require.NoError(t, err)
	assert.Equal(t, "ret", in.Text)
	assert.True(t, in.ControlTransfer)
	assert.Equal(t, host.Addr(0x401008), in.Next())
}

func TestDecode_GNUSyntax(t *testing.T) {
	d := newDecoder(t, SyntaxGNU)
	in, err := d.Decode(0x401000)
	require.NoError(t, err)
	assert.Equal(t, "mov $0x1,%eax", in.Text)
}

func TestDecode_Unmapped(t *testing.T) {
	d := newDecoder(t, SyntaxIntel)
	for _, addr := range []host.Addr{0x400fff, 0x401008, 0} {
		_, err := d.Decode(addr)
		require.Error(t, err)
		assert.True(t, errors.Is(err, host.ErrDecode))
		assert.True(t, errors.Is(err, ErrUnmapped))
	}
}

func TestDecode_Truncated(t *testing.T) {
	// First two bytes of a five-byte mov.
	img, err := NewImage(Region{Base: 0x1000, Data: []byte{0xb8, 0x01}})
	require.NoError(t, err)
	d, err := New(img, 64, SyntaxIntel)
	require.NoError(t, err)
	_, err = d.Decode(0x1000)
	assert.ErrorIs(t, err, host.ErrDecode)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDecode_LoneEscapeByte(t *testing.T) {
	img, err := NewImage(Region{Base: 0x2000, Data: []byte{0x90, 0x0f, 0xff}})
	require.NoError(t, err)
	d, err := New(img, 64, SyntaxIntel)
	require.NoError(t, err)

	in, err := d.Decode(0x2000)
	require.NoError(t, err)
	assert.Equal(t, "nop", in.Text)

	_, err = d.Decode(0x2001)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewImage_Overlap(t *testing.T) {
	_, err := NewImage(
		Region{Base: 0x1000, Data: make([]byte, 0x20)},
		Region{Base: 0x1010, Data: make([]byte, 0x20)},
	)
	assert.Error(t, err)
}

func TestNew_BadMode(t *testing.T) {
	_, err := New(&Image{}, 8, SyntaxIntel)
	assert.Error(t, err)
}

func TestParseSyntax(t *testing.T) {
	s, err := ParseSyntax("GNU")
	require.NoError(t, err)
	assert.Equal(t, SyntaxGNU, s)
	_, err = ParseSyntax("masm")
	assert.Error(t, err)
}
