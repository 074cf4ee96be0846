package vc5

import (
	"fmt"
	"math"
)

// companding law: c + 768*c^3/255^3
const (
	compandGain    = 768
	compandDivisor = 255 * 255 * 255
)

// CompandTable maps a companded coefficient to its linear value. It is
// indexed by the 16-bit pattern of the input so lookups never branch.
type CompandTable struct {
	table [1 << 16]int16
}

// NewCompandTable builds the decompanding curve.
func NewCompandTable() *CompandTable {
	t := &CompandTable{}
	for i := range t.table {
		c := int64(int16(uint16(i)))
		v := c + c*c*c*compandGain/compandDivisor
		t.table[i] = saturate16(v)
	}
	return t
}

// Expand returns the linear value of the companded coefficient v.
func (t *CompandTable) Expand(v int16) int16 {
	return t.table[uint16(v)]
}

func saturate16(v int64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// LogTable expands log-encoded samples to linear output.
type LogTable struct {
	table      [LogTableSize]int32
	outputBits int
}

// NewLogTable builds the log-domain expansion table scaled to outputBits
// (1..16) of linear range.
func NewLogTable(outputBits int) (*LogTable, error) {
	if outputBits < 1 || outputBits > 16 {
		return nil, fmt.Errorf("%w: log table output depth %d", ErrUnsupportedStream, outputBits)
	}
	t := &LogTable{outputBits: outputBits}
	shift := uint(16 - outputBits)
	for i := range t.table {
		f := float64(i) / float64(LogTableSize-1)
		v := int32(65535 * (math.Pow(113, f) - 1) / 112)
		t.table[i] = v >> shift
	}
	return t, nil
}

// OutputBits returns the linear depth the table was built for.
func (t *LogTable) OutputBits() int { return t.outputBits }

// DecodeLog returns the linear value for log index v.
func (t *LogTable) DecodeLog(v int32) (int32, error) {
	if v < 0 || v >= LogTableSize {
		return 0, fmt.Errorf("%w: log index %d", ErrCorruptBitstream, v)
	}
	return t.table[v], nil
}

// expandClamped clamps v into the table before the lookup.
func (t *LogTable) expandClamped(v int32) uint16 {
	if v < 0 {
		v = 0
	} else if v >= LogTableSize {
		v = LogTableSize - 1
	}
	return uint16(t.table[v])
}
