package vc5test

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/rcarmo/go-vc5/internal/codec/vc5"
)

// Config describes a payload to encode.
type Config struct {
	Width, Height  int // full image size
	Format         int
	PatternWidth   int
	PatternHeight  int
	Levels         int
	Bits           int
	Precision      int    // lowpass precision
	PrescaleShift  uint16 // raw PrescaleShift value, written when non-zero
	Quant          [vc5.MaxSubbands]int16
	Codebook       *vc5.Codebook
	SequenceID     uuid.UUID
	SequenceNumber uint32
}

func (c Config) withDefaults() Config {
	if c.Format == 0 {
		c.Format = vc5.FormatPattern
	}
	if c.PatternWidth == 0 {
		c.PatternWidth = 1
	}
	if c.PatternHeight == 0 {
		c.PatternHeight = 1
	}
	if c.Levels == 0 {
		c.Levels = vc5.MaxWavelets
	}
	if c.Bits == 0 {
		c.Bits = 12
	}
	if c.Precision == 0 {
		c.Precision = 16
	}
	if c.Codebook == nil {
		c.Codebook = vc5.DefaultCodebook()
	}
	return c
}

// Prescale returns the per-level shifts encoded in c.PrescaleShift.
func (c Config) Prescale() [vc5.MaxWavelets]int16 {
	var p [vc5.MaxWavelets]int16
	for level := range p {
		p[level] = int16(c.PrescaleShift>>uint(14-2*level)) & 3
	}
	return p
}

// Encode transforms and entropy-codes one plane per channel (row-major,
// Width/PatternWidth x Height/PatternHeight) into a payload.
func Encode(cfg Config, channels [][]int32) ([]byte, error) {
	cfg = cfg.withDefaults()
	cw, ch := cfg.Width/cfg.PatternWidth, cfg.Height/cfg.PatternHeight
	numSubbands := 1 + 3*cfg.Levels

	s := &Stream{}
	s.Tag(vc5.TagImageWidth, uint16(cfg.Width))
	s.Tag(vc5.TagImageHeight, uint16(cfg.Height))
	s.Tag(vc5.TagImageFormat, uint16(cfg.Format))
	s.Tag(vc5.TagPatternWidth, uint16(cfg.PatternWidth))
	s.Tag(vc5.TagPatternHeight, uint16(cfg.PatternHeight))
	s.Tag(vc5.TagChannelCount, uint16(len(channels)))
	if cfg.Levels != vc5.MaxWavelets {
		s.Tag(vc5.TagWaveletCount, uint16(cfg.Levels))
	}
	s.Tag(vc5.TagSubbandCount, uint16(numSubbands))
	s.Tag(vc5.TagMaxBitsPerComponent, uint16(cfg.Bits))
	s.Optional(vc5.TagComponentsPerSample, 1)
	if cfg.SequenceID != uuid.Nil {
		s.Identifier(cfg.SequenceID, cfg.SequenceNumber)
	}
	if cfg.PrescaleShift != 0 {
		s.Tag(vc5.TagPrescaleShift, cfg.PrescaleShift)
	}

	compand := vc5.NewCompandTable()
	codes := codeIndex(cfg.Codebook)

	for c, plane := range channels {
		if len(plane) != cw*ch {
			return nil, fmt.Errorf("channel %d has %d samples, want %d", c, len(plane), cw*ch)
		}
		subbands, err := Analyze(plane, cw, ch, cfg.Levels, cfg.Prescale())
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}

		s.Tag(vc5.TagChannelNumber, uint16(c))
		for sb, coeffs := range subbands {
			s.Tag(vc5.TagSubbandNumber, uint16(sb))
			var payload []byte
			if sb == 0 {
				s.Tag(vc5.TagLowpassPrecision, uint16(cfg.Precision))
				payload, err = EncodeLowpass(coeffs, cfg.Precision)
			} else {
				q := cfg.Quant[sb]
				s.Tag(vc5.TagQuantization, uint16(q))
				payload, err = EncodeHighpass(codes, compand, Quantize(coeffs, q))
			}
			if err != nil {
				return nil, fmt.Errorf("channel %d subband %d: %w", c, sb, err)
			}
			s.Codeblock(payload)
		}
	}
	return s.Bytes(), nil
}

// Quantize divides coefficients by q, truncating toward zero.
func Quantize(coeffs []int32, q int16) []int32 {
	if q <= 1 {
		return coeffs
	}
	out := make([]int32, len(coeffs))
	for i, c := range coeffs {
		out[i] = c / int32(q)
	}
	return out
}

// EncodeLowpass packs unsigned coefficients at the given precision.
func EncodeLowpass(coeffs []int32, precision int) ([]byte, error) {
	var w BitWriter
	limit := int32(1) << uint(precision)
	for i, c := range coeffs {
		if c < 0 || c >= limit || c > math.MaxUint16 {
			return nil, fmt.Errorf("lowpass coefficient %d = %d does not fit %d bits", i, c, precision)
		}
		w.WriteBits(uint32(c), precision)
	}
	return w.Bytes(), nil
}

type codeKey struct {
	count int
	value int32
}

// CodeIndex maps (count, magnitude) to a codebook entry.
type CodeIndex struct {
	codes   map[codeKey]vc5.RLV
	runs    []vc5.RLV // zero runs, longest first
	bandEnd vc5.RLV
}

func codeIndex(cb *vc5.Codebook) *CodeIndex {
	idx := &CodeIndex{codes: make(map[codeKey]vc5.RLV)}
	for _, e := range cb.Entries() {
		switch {
		case e.IsBandEnd():
			idx.bandEnd = e
		case e.Value == 0:
			idx.runs = append(idx.runs, e)
		default:
			idx.codes[codeKey{e.Count, e.Value}] = e
		}
	}
	for i := 1; i < len(idx.runs); i++ {
		for j := i; j > 0 && idx.runs[j].Count > idx.runs[j-1].Count; j-- {
			idx.runs[j], idx.runs[j-1] = idx.runs[j-1], idx.runs[j]
		}
	}
	return idx
}

// NewCodeIndex indexes cb for encoding.
func NewCodeIndex(cb *vc5.Codebook) *CodeIndex {
	return codeIndex(cb)
}

var errNoCode = errors.New("no code for value")

// EncodeHighpass entropy-codes linear coefficients, companding each
// non-zero value, and terminates the band.
func EncodeHighpass(codes *CodeIndex, compand *vc5.CompandTable, coeffs []int32) ([]byte, error) {
	var w BitWriter
	for i := 0; i < len(coeffs); {
		if coeffs[i] == 0 {
			n := 0
			for i+n < len(coeffs) && coeffs[i+n] == 0 {
				n++
			}
			if err := codes.writeZeros(&w, n); err != nil {
				return nil, err
			}
			i += n
			continue
		}

		v, ok := Compand(compand, coeffs[i])
		if !ok {
			return nil, fmt.Errorf("coefficient %d = %d has no companded form", i, coeffs[i])
		}
		mag := int32(v)
		sign := uint32(0)
		if mag < 0 {
			mag, sign = -mag, 1
		}
		e, ok := codes.codes[codeKey{1, mag}]
		if !ok {
			return nil, fmt.Errorf("%w: magnitude %d", errNoCode, mag)
		}
		w.WriteBits(e.Bits, e.Size)
		w.WriteBits(sign, 1)
		i++
	}
	w.WriteBits(codes.bandEnd.Bits, codes.bandEnd.Size)
	return w.Bytes(), nil
}

func (idx *CodeIndex) writeZeros(w *BitWriter, n int) error {
	for n > 0 {
		wrote := false
		for _, e := range idx.runs {
			if e.Count <= n {
				w.WriteBits(e.Bits, e.Size)
				n -= e.Count
				wrote = true
				break
			}
		}
		if !wrote {
			return fmt.Errorf("%w: zero run of %d", errNoCode, n)
		}
	}
	return nil
}

// Compand returns the companded value that expands exactly to v.
func Compand(t *vc5.CompandTable, v int32) (int16, bool) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, false
	}
	lo, hi := int32(math.MinInt16), int32(math.MaxInt16)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if int32(t.Expand(int16(mid))) < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if int32(t.Expand(int16(lo))) != v {
		return 0, false
	}
	return int16(lo), true
}
