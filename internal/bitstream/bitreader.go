// Package bitstream provides the MSB-first bit reader and the big-endian
// segment reader the VC-5 decoder consumes its payload through.
package bitstream

import "errors"

// MaxPeekBits is the widest value PeekBits and ReadBits can return.
const MaxPeekBits = 25

// ErrOverrun is returned when a read or skip goes past the end of the data.
var ErrOverrun = errors.New("bitstream: read past end of data")

// BitReader provides bit-level reading from a byte slice.
// It uses a 32-bit accumulator for efficient bit extraction.
// Bits are read MSB-first (most significant bit first).
type BitReader struct {
	data      []byte
	bytePos   int
	acc       uint32 // 32-bit lookahead accumulator, left-aligned
	bitsInAcc int    // bits available in accumulator
}

// NewBitReader creates a new bit reader over data.
func NewBitReader(data []byte) *BitReader {
	br := &BitReader{data: data}
	br.refill()
	return br
}

// refill loads more bytes into the accumulator (left-aligned)
func (br *BitReader) refill() {
	for br.bitsInAcc <= 24 && br.bytePos < len(br.data) {
		br.acc |= uint32(br.data[br.bytePos]) << (24 - br.bitsInAcc)
		br.bytePos++
		br.bitsInAcc += 8
	}
}

// PeekBits returns the next n bits (n <= MaxPeekBits) without consuming
// them. Bits past the end of the data read as zero; the subsequent
// SkipBits reports the overrun.
func (br *BitReader) PeekBits(n int) uint32 {
	if n == 0 {
		return 0
	}
	if n > br.bitsInAcc {
		br.refill()
	}
	return br.acc >> (32 - n)
}

// SkipBits consumes n bits (n <= MaxPeekBits).
func (br *BitReader) SkipBits(n int) error {
	if n > br.bitsInAcc {
		br.refill()
	}
	if n > br.bitsInAcc {
		br.acc = 0
		br.bitsInAcc = 0
		br.bytePos = len(br.data)
		return ErrOverrun
	}
	br.acc <<= n
	br.bitsInAcc -= n
	return nil
}

// ReadBits reads n bits (n <= MaxPeekBits) as an unsigned integer.
func (br *BitReader) ReadBits(n int) (uint32, error) {
	v := br.PeekBits(n)
	if err := br.SkipBits(n); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadBit reads a single bit
func (br *BitReader) ReadBit() (uint32, error) {
	return br.ReadBits(1)
}

// RemainingBits returns the number of unread bits.
func (br *BitReader) RemainingBits() int {
	return (len(br.data)-br.bytePos)*8 + br.bitsInAcc
}

// AtEnd reports whether every bit has been consumed.
func (br *BitReader) AtEnd() bool {
	return br.RemainingBits() == 0
}
