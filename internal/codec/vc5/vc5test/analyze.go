package vc5test

import (
	"fmt"
	"math"

	"github.com/rcarmo/go-vc5/internal/codec/vc5"
)

// Analyze runs the forward 2/6 transform over a width x height plane and
// returns its subbands in stream order: subband 0 is the coarsest lowpass,
// then lowhigh, highlow, highhigh per level from coarse to fine. Each
// level's input is shifted right by that level's prescale first.
func Analyze(plane []int32, width, height, levels int, prescale [vc5.MaxWavelets]int16) ([][]int32, error) {
	if width%(1<<uint(levels)) != 0 || height%(1<<uint(levels)) != 0 {
		return nil, fmt.Errorf("plane %dx%d not divisible by %d", width, height, 1<<uint(levels))
	}

	subbands := make([][]int32, 1+3*levels)
	cur := append([]int32(nil), plane...)
	w, h := width, height
	for level := 0; level < levels; level++ {
		for i := range cur {
			cur[i] >>= uint(prescale[level])
		}
		bands := analyzeLevel(cur, w, h)
		for b := 1; b < vc5.MaxBands; b++ {
			subbands[1+3*(levels-1-level)+(b-1)] = bands[b]
		}
		cur = bands[vc5.BandLowLow]
		w, h = w/2, h/2
	}
	subbands[0] = cur

	for sb, coeffs := range subbands {
		for i, c := range coeffs {
			if c < math.MinInt16 || c > math.MaxInt16 {
				return nil, fmt.Errorf("subband %d coefficient %d = %d overflows 16 bits", sb, i, c)
			}
		}
	}
	return subbands, nil
}

// analyzeLevel splits a plane into lowlow, lowhigh, highlow and highhigh
// bands: horizontal pass first, then vertical.
func analyzeLevel(x []int32, width, height int) [vc5.MaxBands][]int32 {
	hw, hh := width/2, height/2
	lowCols := make([]int32, hw*height)
	highCols := make([]int32, hw*height)
	for y := 0; y < height; y++ {
		analyze1D(x[y*width:], 1, lowCols[y*hw:], highCols[y*hw:], 1, hw)
	}

	var bands [vc5.MaxBands][]int32
	for b := range bands {
		bands[b] = make([]int32, hw*hh)
	}
	for c := 0; c < hw; c++ {
		analyze1D(lowCols[c:], hw, bands[vc5.BandLowLow][c:], bands[vc5.BandHighLow][c:], hw, hh)
		analyze1D(highCols[c:], hw, bands[vc5.BandLowHigh][c:], bands[vc5.BandHighHigh][c:], hw, hh)
	}
	return bands
}

// analyze1D transforms 2n strided samples into n lows and n highs.
func analyze1D(x []int32, stride int, low, high []int32, outStride, n int) {
	for i := 0; i < n; i++ {
		a, b := x[2*i*stride], x[(2*i+1)*stride]
		low[i*outStride] = a + b
	}
	l := func(i int) int32 {
		if i < 0 {
			i = 0
		} else if i >= n {
			i = n - 1
		}
		return low[i*outStride]
	}
	for i := 0; i < n; i++ {
		var corr int32
		switch {
		case n < 3:
			corr = (l(i-1) - l(i+1) + 4) >> 3
		case i == 0:
			corr = (3*l(0) - 4*l(1) + l(2) + 4) >> 3
		case i == n-1:
			corr = (-l(n-3) + 4*l(n-2) - 3*l(n-1) + 4) >> 3
		default:
			corr = (l(i-1) - l(i+1) + 4) >> 3
		}
		d := x[2*i*stride] - x[(2*i+1)*stride]
		high[i*outStride] = d - corr
	}
}
