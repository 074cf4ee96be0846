// Package vc5 implements the VC-5 wavelet decoder used by GoPro raw
// payloads. A payload is a tag/value segment stream carrying a header, a
// quantisation table and one entropy-coded codeblock per subband. Each
// channel is reconstructed through up to three levels of the inverse 2/6
// lifting transform and written into a destination image.
package vc5

import "errors"

// Structural maxima
const (
	MaxChannels  = 4
	MaxWavelets  = 3 // levels per channel
	MaxBands     = 4 // bands per level
	MaxSubbands  = 1 + 3*MaxWavelets
	LogTableSize = 4096
)

// RAW components index the log table directly.
const rawBitsPerComponent = 12

// Band indices within a level
const (
	BandLowLow   = 0
	BandLowHigh  = 1
	BandHighLow  = 2
	BandHighHigh = 3
)

// Image format tags
const (
	FormatPattern = 1 // each channel is one position of a repeat pattern
	FormatRAW     = 4 // 2x2 Bayer, channels carry gs/rg/bg/gd differences
)

var (
	// ErrUnsupportedStream reports a count or dimension outside the fixed
	// maxima, or an unrecognised format or tag.
	ErrUnsupportedStream = errors.New("vc5: unsupported stream")
	// ErrCorruptBitstream reports malformed entropy data, a reader overrun
	// or an out-of-range table index.
	ErrCorruptBitstream = errors.New("vc5: corrupt bitstream")
	// ErrSequencingViolation reports an operation issued in the wrong order.
	ErrSequencingViolation = errors.New("vc5: sequencing violation")
)
