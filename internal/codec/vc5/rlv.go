package vc5

import (
	"fmt"
	"math"

	"github.com/rcarmo/go-vc5/internal/bitstream"
)

// DecodeRLV reads one run/value token. It returns the run length and the
// signed value; the band-end marker is returned as (0, 1).
func (cb *Codebook) DecodeRLV(br *bitstream.BitReader) (count int, value int32, err error) {
	var e *RLV

	if le := cb.lut[br.PeekBits(lutBits)]; le.size != 0 {
		e = &cb.entries[le.index]
	} else {
		for _, size := range cb.longSizes {
			if idx, ok := cb.long[size][br.PeekBits(size)]; ok {
				e = &cb.entries[idx]
				break
			}
		}
		if e == nil {
			return 0, 0, fmt.Errorf("%w: invalid code word", ErrCorruptBitstream)
		}
	}

	if err := br.SkipBits(e.Size); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrCorruptBitstream, err)
	}
	if e.Value == 0 || e.Count == 0 {
		return e.Count, e.Value, nil
	}

	sign, err := br.ReadBit()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrCorruptBitstream, err)
	}
	if sign != 0 {
		return e.Count, -e.Value, nil
	}
	return e.Count, e.Value, nil
}

// decodeHighpass fills band with RLV-coded coefficients, decompanding each
// value, and requires the band-end marker once the band is full.
func decodeHighpass(br *bitstream.BitReader, cb *Codebook, compand *CompandTable, band Plane[int16]) error {
	w, total := band.Width(), band.Len()
	pos := 0
	var row []int16
	for pos < total {
		count, value, err := cb.DecodeRLV(br)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: band ended after %d of %d coefficients", ErrCorruptBitstream, pos, total)
		}
		if count > total-pos {
			return fmt.Errorf("%w: run of %d overflows band at %d of %d", ErrCorruptBitstream, count, pos, total)
		}
		v := compand.Expand(int16(value))
		for ; count > 0; count-- {
			x := pos % w
			if x == 0 {
				row = band.Row(pos / w)
			}
			row[x] = v
			pos++
		}
	}

	count, value, err := cb.DecodeRLV(br)
	if err != nil {
		return err
	}
	if count != 0 || value != 1 {
		return fmt.Errorf("%w: missing band-end marker", ErrCorruptBitstream)
	}
	return nil
}

// decodeLowpass reads precision-bit unsigned coefficients row by row.
func decodeLowpass(br *bitstream.BitReader, precision int, band Plane[int16]) error {
	for y := 0; y < band.Height(); y++ {
		row := band.Row(y)
		for x := range row {
			v, err := br.ReadBits(precision)
			if err != nil {
				return fmt.Errorf("%w: lowpass coefficient (%d,%d): %w", ErrCorruptBitstream, x, y, err)
			}
			if v > math.MaxInt16 {
				return fmt.Errorf("%w: lowpass coefficient (%d,%d) = %d overflows int16", ErrCorruptBitstream, x, y, v)
			}
			row[x] = int16(v)
		}
	}
	return nil
}
