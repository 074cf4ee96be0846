package bitstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitReader_ReadBits(t *testing.T) {
	data := []byte{0xAB, 0xCD, 0xEF, 0x12}
	br := NewBitReader(data)

	// Read 4 bits: should be 0xA (1010)
	v, err := br.ReadBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0A), v)

	// Read 8 bits: remaining B from first byte + C from second
	v, err = br.ReadBits(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xBC), v)

	v, err = br.ReadBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0D), v)

	v, err = br.ReadBits(16)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xEF12), v)
	assert.True(t, br.AtEnd())
}

func TestBitReader_ReadBit(t *testing.T) {
	br := NewBitReader([]byte{0x80}) // 10000000

	bit, err := br.ReadBit()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), bit, "first bit of 0x80 should be 1")

	for i := 0; i < 7; i++ {
		bit, err = br.ReadBit()
		require.NoError(t, err)
		assert.Equal(t, uint32(0), bit)
	}

	_, err = br.ReadBit()
	assert.ErrorIs(t, err, ErrOverrun)
}

func TestBitReader_PeekDoesNotConsume(t *testing.T) {
	br := NewBitReader([]byte{0xF0, 0x0F})

	assert.Equal(t, uint32(0xF), br.PeekBits(4))
	assert.Equal(t, uint32(0xF), br.PeekBits(4))
	assert.Equal(t, 16, br.RemainingBits())

	require.NoError(t, br.SkipBits(4))
	assert.Equal(t, uint32(0x00), br.PeekBits(8))
	assert.Equal(t, 12, br.RemainingBits())
}

func TestBitReader_PeekPastEndIsZeroPadded(t *testing.T) {
	br := NewBitReader([]byte{0xFF})

	// 8 real bits followed by zero padding
	assert.Equal(t, uint32(0xFF0), br.PeekBits(12))

	err := br.SkipBits(12)
	assert.ErrorIs(t, err, ErrOverrun)
	assert.True(t, br.AtEnd())
}

func TestBitReader_WideReads(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0}
	br := NewBitReader(data)

	v, err := br.ReadBits(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0), v)

	// Next 25 bits of 0x123456789A... after dropping 3 bits
	v, err = br.ReadBits(MaxPeekBits)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678>>4)&(1<<25-1), v)

	assert.Equal(t, 64-28, br.RemainingBits())
}

func TestBitReader_Empty(t *testing.T) {
	br := NewBitReader(nil)
	assert.True(t, br.AtEnd())
	assert.Equal(t, uint32(0), br.PeekBits(8))

	_, err := br.ReadBits(1)
	assert.ErrorIs(t, err, ErrOverrun)
}
