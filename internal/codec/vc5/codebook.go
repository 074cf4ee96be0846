package vc5

import (
	"errors"
	"fmt"
	"io"
	"math/bits"
	"slices"
	"sync"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCodebook is returned when a codebook table is not usable.
var ErrInvalidCodebook = errors.New("vc5: invalid codebook")

const (
	lutBits     = 12 // direct lookup width
	maxCodeSize = 24 // sign bit is read separately

	maxDefaultMagnitude = 1023
	maxDefaultRunLog2   = 11
)

// RLV is one codebook entry: a code word of Size bits (MSB-first) that
// decodes to Count copies of the unsigned magnitude Value. The entry with
// Count 0 and Value 1 marks the end of a band.
type RLV struct {
	Size  int    `yaml:"size"`
	Bits  uint32 `yaml:"bits"`
	Count int    `yaml:"count"`
	Value int32  `yaml:"value"`
}

// IsBandEnd reports whether r is the band-end marker.
func (r RLV) IsBandEnd() bool { return r.Count == 0 && r.Value == 1 }

type lutEntry struct {
	size  uint8
	index int32
}

// Codebook is an immutable prefix code table.
type Codebook struct {
	entries []RLV
	lut     [1 << lutBits]lutEntry

	// codes longer than lutBits, grouped by length
	longSizes []int
	long      map[int]map[uint32]int32
}

// NewCodebook validates entries and builds the lookup tables.
func NewCodebook(entries []RLV) (*Codebook, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidCodebook)
	}

	bandEnd := false
	for i, e := range entries {
		if e.Size < 1 || e.Size > maxCodeSize {
			return nil, fmt.Errorf("%w: entry %d has size %d", ErrInvalidCodebook, i, e.Size)
		}
		if e.Bits >= 1<<uint(e.Size) {
			return nil, fmt.Errorf("%w: entry %d code %#x wider than %d bits", ErrInvalidCodebook, i, e.Bits, e.Size)
		}
		if e.Count < 0 || e.Value < 0 || e.Value > 1<<15-1 {
			return nil, fmt.Errorf("%w: entry %d has count %d value %d", ErrInvalidCodebook, i, e.Count, e.Value)
		}
		if e.Count == 0 {
			if !e.IsBandEnd() {
				return nil, fmt.Errorf("%w: entry %d has zero count", ErrInvalidCodebook, i)
			}
			bandEnd = true
		}
	}
	if !bandEnd {
		return nil, fmt.Errorf("%w: no band-end entry", ErrInvalidCodebook)
	}

	cb := &Codebook{
		entries: slices.Clone(entries),
		long:    make(map[int]map[uint32]int32),
	}

	bySize := lo.GroupBy(lo.Range(len(cb.entries)), func(i int) int {
		return cb.entries[i].Size
	})
	sizes := lo.Keys(bySize)
	slices.Sort(sizes)

	// Prefix freedom: no code may start with a shorter code.
	codes := make(map[int]map[uint32]struct{}, len(sizes))
	for _, size := range sizes {
		set := make(map[uint32]struct{}, len(bySize[size]))
		for _, i := range bySize[size] {
			e := cb.entries[i]
			if _, dup := set[e.Bits]; dup {
				return nil, fmt.Errorf("%w: duplicate %d-bit code %#x", ErrInvalidCodebook, size, e.Bits)
			}
			for _, shorter := range sizes {
				if shorter >= size {
					break
				}
				if _, ok := codes[shorter][e.Bits>>uint(size-shorter)]; ok {
					return nil, fmt.Errorf("%w: code %#x/%d has a shorter code as prefix", ErrInvalidCodebook, e.Bits, size)
				}
			}
			set[e.Bits] = struct{}{}
		}
		codes[size] = set
	}

	for i, e := range cb.entries {
		if e.Size > lutBits {
			continue
		}
		span := uint32(1) << uint(lutBits-e.Size)
		first := e.Bits << uint(lutBits-e.Size)
		for j := first; j < first+span; j++ {
			cb.lut[j] = lutEntry{size: uint8(e.Size), index: int32(i)}
		}
	}

	cb.longSizes = lo.Filter(sizes, func(size int, _ int) bool { return size > lutBits })
	for _, size := range cb.longSizes {
		m := make(map[uint32]int32, len(bySize[size]))
		for _, i := range bySize[size] {
			m[cb.entries[i].Bits] = int32(i)
		}
		cb.long[size] = m
	}

	return cb, nil
}

// Entries returns a copy of the codebook entries.
func (cb *Codebook) Entries() []RLV {
	return slices.Clone(cb.entries)
}

type codebookFile struct {
	Entries []RLV `yaml:"entries"`
}

// LoadCodebook reads a YAML codebook of the form
//
//	entries:
//	  - {size: 3, bits: 1, count: 0, value: 1}
//	  - ...
func LoadCodebook(r io.Reader) (*Codebook, error) {
	var f codebookFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCodebook, err)
	}
	return NewCodebook(f.Entries)
}

// DefaultCodebook returns the built-in codebook:
//
//	1 + expgolomb(m-1)   one coefficient of magnitude m (1..1023), then a sign bit
//	01 + expgolomb(j)    a run of 2^j zeros (j <= 11)
//	001                  band end
var DefaultCodebook = sync.OnceValue(func() *Codebook {
	cb, err := NewCodebook(defaultEntries())
	if err != nil {
		panic(err)
	}
	return cb
})

func defaultEntries() []RLV {
	entries := make([]RLV, 0, maxDefaultMagnitude+maxDefaultRunLog2+2)
	entries = append(entries, RLV{Size: 3, Bits: 0b001, Count: 0, Value: 1})
	for j := 0; j <= maxDefaultRunLog2; j++ {
		size, code := expGolomb(uint32(j))
		entries = append(entries, RLV{
			Size:  2 + size,
			Bits:  1<<uint(size) | code,
			Count: 1 << uint(j),
			Value: 0,
		})
	}
	for m := 1; m <= maxDefaultMagnitude; m++ {
		size, code := expGolomb(uint32(m - 1))
		entries = append(entries, RLV{
			Size:  1 + size,
			Bits:  1<<uint(size) | code,
			Count: 1,
			Value: int32(m),
		})
	}
	return entries
}

// expGolomb returns the order-0 Exp-Golomb code of n.
func expGolomb(n uint32) (size int, code uint32) {
	k := bits.Len32(n+1) - 1
	return 2*k + 1, n + 1
}
